package screen

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
)

func TestManualSplitProducesEqualCells(t *testing.T) {
	heads := manualSplit(1920, 1080, 2, 1)
	assert.Len(t, heads, 2)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 960, Height: 1080}, heads[0])
	assert.Equal(t, Rect{X: 960, Y: 0, Width: 960, Height: 1080}, heads[1])
}

func TestGeometryAtInsideHead(t *testing.T) {
	tbl := &Table{heads: manualSplit(1920, 1080, 2, 1), rootW: 1920, rootH: 1080, struts: map[xproto.Window]Strut{}}
	got := tbl.GeometryAt(10, 10)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 960, Height: 1080}, got)

	got = tbl.GeometryAt(1000, 10)
	assert.Equal(t, Rect{X: 960, Y: 0, Width: 960, Height: 1080}, got)
}

func TestGeometryAtFallsBackToNearestByCenter(t *testing.T) {
	heads := []Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 1000, Y: 1000, Width: 100, Height: 100},
	}
	tbl := &Table{heads: heads, rootW: 2000, rootH: 2000, struts: map[xproto.Window]Strut{}}

	// Point outside both heads, but much closer to the first one's center.
	got := tbl.GeometryAt(-500, -500)
	assert.Equal(t, heads[0], got)
}

func TestAvailableAreaAtIgnoresStrutsWhenRequested(t *testing.T) {
	tbl := &Table{
		heads:  []Rect{{X: 0, Y: 0, Width: 1000, Height: 1000}},
		rootW:  1000, rootH: 1000,
		struts: map[xproto.Window]Strut{1: {Top: 50}},
	}
	got := tbl.AvailableAreaAt(10, 10, true)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 1000, Height: 1000}, got)
}

func TestAvailableAreaAtIntersectsAggregateStruts(t *testing.T) {
	tbl := &Table{
		heads: []Rect{{X: 0, Y: 0, Width: 1000, Height: 1000}},
		rootW: 1000, rootH: 1000,
		struts: map[xproto.Window]Strut{
			1: {Top: 50},
			2: {Left: 20, Top: 30},
		},
	}
	got := tbl.AvailableAreaAt(10, 10, false)
	// aggregate takes the max reservation per edge across all clients.
	assert.Equal(t, int32(20), got.X)
	assert.Equal(t, int32(50), got.Y)
	assert.Equal(t, int32(980), got.Width)
	assert.Equal(t, int32(950), got.Height)
}

func TestSetStrutZeroValueClearsEntry(t *testing.T) {
	tbl := &Table{struts: map[xproto.Window]Strut{}}
	tbl.SetStrut(7, Strut{Top: 10})
	assert.Len(t, tbl.struts, 1)
	tbl.SetStrut(7, Strut{})
	assert.Len(t, tbl.struts, 0)
}

func TestGeometryByHeadOutOfRange(t *testing.T) {
	tbl := &Table{heads: manualSplit(100, 100, 1, 1), struts: map[xproto.Window]Strut{}}
	_, ok := tbl.GeometryByHead(5)
	assert.False(t, ok)
	r, ok := tbl.GeometryByHead(0)
	assert.True(t, ok)
	assert.Equal(t, Rect{0, 0, 100, 100}, r)
}
