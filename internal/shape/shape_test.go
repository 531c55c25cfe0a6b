package shape

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"

	"github.com/burzumishi/e16go/internal/win"
)

// TestShapeCollapse covers P2 / scenario 5: a single rectangle equal to
// the full window geometry always normalises to Unshaped.
func TestShapeCollapse(t *testing.T) {
	geom := win.Geometry{W: 100, H: 100}
	rects := []xproto.Rectangle{{X: 0, Y: 0, Width: 100, Height: 100}}

	state, clear := ApplyFetched(geom, rects, 4096)
	assert.Equal(t, win.Unshaped, state.Kind)
	assert.True(t, clear)
}

func TestShapeKeepsMultiRect(t *testing.T) {
	geom := win.Geometry{W: 100, H: 100}
	rects := []xproto.Rectangle{
		{X: 0, Y: 0, Width: 50, Height: 50},
		{X: 50, Y: 50, Width: 50, Height: 50},
	}
	state, clear := ApplyFetched(geom, rects, 4096)
	assert.Equal(t, win.Shaped, state.Kind)
	assert.False(t, clear)
	assert.Equal(t, rects, state.Rects)
}

func TestShapeSanityThreshold(t *testing.T) {
	geom := win.Geometry{W: 100, H: 100}
	rects := make([]xproto.Rectangle, 5000)
	state, clear := ApplyFetched(geom, rects, 4096)
	assert.Equal(t, win.Unshaped, state.Kind)
	assert.True(t, clear)
}

func TestShapeEmptyIsUnshapedNoClear(t *testing.T) {
	geom := win.Geometry{W: 100, H: 100}
	state, clear := ApplyFetched(geom, nil, 4096)
	assert.Equal(t, win.Unshaped, state.Kind)
	assert.False(t, clear)
}

func TestCombineMaskAbsentButPreviouslyShapedStillClears(t *testing.T) {
	assert.True(t, PlanCombineMask(true, false))
	assert.False(t, PlanCombineMask(false, false))
	assert.False(t, PlanCombineMask(true, true))
}

func TestCombineRectsFullWindowSetFallsThroughToClear(t *testing.T) {
	geom := win.Geometry{W: 100, H: 100}
	rects := []xproto.Rectangle{{X: 0, Y: 0, Width: 100, Height: 100}}
	state, clear := PlanCombineRects(geom, rects, OpSet, 4096)
	assert.Equal(t, win.Unshaped, state.Kind)
	assert.True(t, clear)
}

func TestCombineRectsSetClipsToBounds(t *testing.T) {
	geom := win.Geometry{W: 100, H: 100}
	rects := []xproto.Rectangle{{X: 50, Y: 50, Width: 100, Height: 100}}
	state, clear := PlanCombineRects(geom, rects, OpSet, 4096)
	assert.False(t, clear)
	assert.Equal(t, win.Shaped, state.Kind)
	assert.Equal(t, []xproto.Rectangle{{X: 50, Y: 50, Width: 50, Height: 50}}, state.Rects)
}

func TestPropagateUnshapedChildContributesFullGeometry(t *testing.T) {
	parent := win.Geometry{W: 200, H: 200}
	children := []ChildShape{
		{Geom: win.Geometry{X: 0, Y: 0, W: 50, H: 50}, Mapped: true, Shape: win.ShapeState{Kind: win.Unshaped}},
	}
	state := Propagate(parent, children)
	assert.Equal(t, win.Shaped, state.Kind)
	assert.Equal(t, []xproto.Rectangle{{X: 0, Y: 0, Width: 50, Height: 50}}, state.Rects)
}

func TestPropagateSkipsUnmappedChildren(t *testing.T) {
	parent := win.Geometry{W: 200, H: 200}
	children := []ChildShape{
		{Geom: win.Geometry{X: 0, Y: 0, W: 50, H: 50}, Mapped: false, Shape: win.ShapeState{Kind: win.Unshaped}},
	}
	state := Propagate(parent, children)
	assert.Equal(t, win.Shaped, state.Kind)
	assert.Empty(t, state.Rects)
}

func TestPropagateNoChildrenIsEmptyHiddenShape(t *testing.T) {
	state := Propagate(win.Geometry{W: 10, H: 10}, nil)
	assert.Equal(t, win.Shaped, state.Kind)
	assert.Nil(t, state.Rects)
}

func TestPropagateSkipsChildEntirelyOutsideParent(t *testing.T) {
	parent := win.Geometry{W: 50, H: 50}
	children := []ChildShape{
		{Geom: win.Geometry{X: 1000, Y: 1000, W: 20, H: 20}, Mapped: true, Shape: win.ShapeState{Kind: win.Unshaped}},
	}
	state := Propagate(parent, children)
	assert.Empty(t, state.Rects)
}

func TestPropagateSingleFullWindowResultCollapses(t *testing.T) {
	parent := win.Geometry{W: 50, H: 50}
	children := []ChildShape{
		{Geom: win.Geometry{X: 0, Y: 0, W: 50, H: 50}, Mapped: true, Shape: win.ShapeState{Kind: win.Unshaped}},
	}
	state := Propagate(parent, children)
	assert.Equal(t, win.Unshaped, state.Kind)
}
