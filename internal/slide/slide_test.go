package slide

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burzumishi/e16go/internal/anim"
	"github.com/burzumishi/e16go/internal/win"
)

func TestLerpGeomMidpoint(t *testing.T) {
	from := win.Geometry{X: 0, Y: 0, W: 100, H: 100}
	to := win.Geometry{X: 100, Y: 200, W: 200, H: 300}
	got := lerpGeom(from, to, 512)
	assert.Equal(t, int16(50), got.X)
	assert.Equal(t, int16(100), got.Y)
	assert.Equal(t, uint16(150), got.W)
	assert.Equal(t, uint16(200), got.H)
}

func TestLerpGeomEndpoints(t *testing.T) {
	from := win.Geometry{X: 0, Y: 0, W: 10, H: 10}
	to := win.Geometry{X: 50, Y: 60, W: 20, H: 30}
	assert.Equal(t, from, lerpGeom(from, to, 0))
	assert.Equal(t, to, lerpGeom(from, to, 1024))
}

func TestOpaqueSlideStartLeavesGeometryUntilFirstTick(t *testing.T) {
	reg := win.NewRegistry(nil)
	id, err := reg.Register(xproto.Window(1), &xproto.GetGeometryReply{X: 0, Y: 0, Width: 10, Height: 10})
	require.NoError(t, err)

	eng := anim.New(60, nil)
	from := win.Geometry{X: 0, Y: 0, W: 10, H: 10}
	to := win.Geometry{X: 100, Y: 0, W: 10, H: 10}
	Start(eng, reg, id, from, to, 1000, Opaque, 0, nil, nil)

	w, _ := reg.Get(id)
	assert.Equal(t, int16(0), w.Geom.X)
}

func TestPointInside(t *testing.T) {
	g := win.Geometry{X: 10, Y: 10, W: 20, H: 20}
	assert.True(t, pointInside(15, 15, g))
	assert.False(t, pointInside(5, 5, g))
	assert.False(t, pointInside(30, 15, g))
}
