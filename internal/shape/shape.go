// Package shape implements the bounding-shape propagation engine from
// spec.md §4.C6: querying and normalising a window's Shape-extension
// state, and recomputing a parent's region from its mapped children.
package shape

import (
	"log"

	"github.com/jezek/xgb/shape"
	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/win"
	"github.com/burzumishi/e16go/internal/xconn"
	"github.com/burzumishi/e16go/internal/xerr"
)

// Engine drives shape updates for a single window registry.
type Engine struct {
	conn        *xconn.Conn
	registry    *win.Registry
	sanityLimit int
}

// New creates a shape Engine. sanityLimit is the rectangle-count
// threshold above which a reported shape is treated as unshaped and
// cleared (spec.md §9 Open Questions; default 4096).
func New(conn *xconn.Conn, registry *win.Registry, sanityLimit int) *Engine {
	if sanityLimit <= 0 {
		sanityLimit = 4096
	}
	return &Engine{conn: conn, registry: registry, sanityLimit: sanityLimit}
}

func isFullWindow(geom win.Geometry, r xproto.Rectangle) bool {
	return r.X == 0 && r.Y == 0 && r.Width == geom.W && r.Height == geom.H
}

// clipToBounds intersects each rectangle with the window's (0,0,W,H)
// bounding box, dropping rectangles that fall entirely outside it
// (spec.md §4.C6: "prevents leakage beyond geometry").
func clipToBounds(geom win.Geometry, rects []xproto.Rectangle) []xproto.Rectangle {
	out := make([]xproto.Rectangle, 0, len(rects))
	for _, r := range rects {
		x0, y0 := max16(r.X, 0), max16(r.Y, 0)
		x1 := min32(int32(r.X)+int32(r.Width), int32(geom.W))
		y1 := min32(int32(r.Y)+int32(r.Height), int32(geom.H))
		if int32(x0) >= x1 || int32(y0) >= y1 {
			continue
		}
		out = append(out, xproto.Rectangle{
			X: x0, Y: y0,
			Width:  uint16(x1 - int32(x0)),
			Height: uint16(y1 - int32(y0)),
		})
	}
	return out
}

func max16(a, b int16) int16 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// ApplyFetched is the pure decision function behind Update: given the
// window's geometry and the rectangles the server reported, decide the
// normalised local shape state and whether the server's bounding mask
// needs to be cleared to bring it back in sync (spec.md P2, scenario 5).
func ApplyFetched(geom win.Geometry, rects []xproto.Rectangle, sanityLimit int) (state win.ShapeState, clearServer bool) {
	if len(rects) > sanityLimit {
		log.Printf("shape: %d rectangles exceeds sanity limit %d, treating as unshaped", len(rects), sanityLimit)
		return win.ShapeState{Kind: win.Unshaped}, true
	}
	if len(rects) == 1 && isFullWindow(geom, rects[0]) {
		return win.ShapeState{Kind: win.Unshaped}, true
	}
	if len(rects) == 0 {
		return win.ShapeState{Kind: win.Unshaped}, false
	}
	return win.ShapeState{Kind: win.Shaped, Rects: rects}, false
}

// CombineRectsOp mirrors the XShapeCombine "how" parameter.
type CombineRectsOp int

const (
	OpSet CombineRectsOp = iota
	OpUnion
	OpIntersect
	OpSubtract
	OpInvert
)

// PlanCombineRects is the pure decision function behind CombineRects: it
// decides the resulting local shape state for a combine-rects request,
// including the full-window-Set fallthrough to the clear path and the
// post-Set clip-to-bounds step from spec.md §4.C6.
func PlanCombineRects(geom win.Geometry, rects []xproto.Rectangle, op CombineRectsOp, sanityLimit int) (state win.ShapeState, clearServer bool) {
	if op == OpSet && len(rects) == 1 && isFullWindow(geom, rects[0]) {
		return win.ShapeState{Kind: win.Unshaped}, true
	}
	result := rects
	if op == OpSet {
		result = clipToBounds(geom, rects)
	}
	return ApplyFetched(geom, result, sanityLimit)
}

// PlanCombineMask is the pure decision function behind CombineMask: if
// the mask is absent and the window was previously shaped, the clear
// must still be emitted to re-synchronise server and local state
// (spec.md §4.C6).
func PlanCombineMask(wasShaped bool, maskPresent bool) (clearServer bool) {
	return !maskPresent && wasShaped
}

// ChildShape is the propagation input for one mapped (or unmapped)
// child window.
type ChildShape struct {
	Geom   win.Geometry
	Shape  win.ShapeState
	Mapped bool
}

// Propagate rebuilds a parent's shape from the union of its mapped
// children's translated shapes (spec.md §4.C6). Unshaped children
// contribute a full-geometry rectangle; children clipped entirely
// outside the parent are skipped; an empty union yields an empty
// (fully hidden) shape; a single full-window result collapses to
// unshaped.
func Propagate(parent win.Geometry, children []ChildShape) win.ShapeState {
	var rects []xproto.Rectangle
	for _, c := range children {
		if !c.Mapped {
			continue
		}
		var childRects []xproto.Rectangle
		if c.Shape.Kind == win.Unshaped {
			childRects = []xproto.Rectangle{{X: 0, Y: 0, Width: c.Geom.W, Height: c.Geom.H}}
		} else {
			childRects = c.Shape.Rects
		}
		for _, r := range childRects {
			translated := xproto.Rectangle{
				X:      r.X + c.Geom.X,
				Y:      r.Y + c.Geom.Y,
				Width:  r.Width,
				Height: r.Height,
			}
			rects = append(rects, clipToBounds(parent, []xproto.Rectangle{translated})...)
		}
	}

	if len(rects) == 0 {
		return win.ShapeState{Kind: win.Shaped, Rects: nil}
	}
	if len(rects) == 1 && isFullWindow(parent, rects[0]) {
		return win.ShapeState{Kind: win.Unshaped}
	}
	return win.ShapeState{Kind: win.Shaped, Rects: rects}
}

// Update queries the server's bounding rectangles for win and applies
// ApplyFetched, clearing the server-side mask when required.
func (e *Engine) Update(id win.WinId) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "shape.Update", nil)
	}

	reply, err := shape.GetRectangles(e.conn.X(), w.Xid, shape.KindBounding).Reply()
	if err != nil || reply == nil {
		return xerr.New(xerr.Gone, "shape.Update", err)
	}

	state, clear := ApplyFetched(w.Geom, reply.Rectangles, e.sanityLimit)
	w.Shape = state
	if clear {
		return e.clearMask(w.Xid)
	}
	return nil
}

// CombineMask applies an XShapeCombineMask-style request.
func (e *Engine) CombineMask(id win.WinId, destKind shape.Kind, x, y int16, maskPixmap xproto.Pixmap, op byte) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "shape.CombineMask", nil)
	}
	wasShaped := w.Shape.Kind == win.Shaped
	if PlanCombineMask(wasShaped, maskPixmap != 0) {
		return e.clearMask(w.Xid)
	}
	if maskPixmap == 0 {
		return nil
	}
	if err := shape.MaskChecked(e.conn.X(), op, destKind, w.Xid, x, y, maskPixmap).Check(); err != nil {
		return xerr.New(xerr.Protocol, "shape.CombineMask", err)
	}
	return e.Update(id)
}

// CombineRects applies an XShapeCombineRectangles-style request.
func (e *Engine) CombineRects(id win.WinId, x, y int16, rects []xproto.Rectangle, op CombineRectsOp) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "shape.CombineRects", nil)
	}
	state, clear := PlanCombineRects(w.Geom, rects, op, e.sanityLimit)
	if clear {
		return e.clearMask(w.Xid)
	}
	if err := shape.RectanglesChecked(e.conn.X(), byte(op), shape.KindBounding, xproto.OrderingYXBanded, w.Xid, x, y, rects).Check(); err != nil {
		return xerr.New(xerr.Protocol, "shape.CombineRects", err)
	}
	w.Shape = state
	return nil
}

// Propagate rebuilds win's shape from its mapped children and applies
// it to the server.
func (e *Engine) Propagate(id win.WinId) error {
	w, ok := e.registry.Get(id)
	if !ok {
		return xerr.New(xerr.Gone, "shape.Propagate", nil)
	}
	var kids []ChildShape
	for _, cid := range w.Children() {
		cw, ok := e.registry.Get(cid)
		if !ok {
			continue
		}
		kids = append(kids, ChildShape{Geom: cw.Geom, Shape: cw.Shape, Mapped: cw.Mapped})
	}
	state := Propagate(w.Geom, kids)
	w.Shape = state
	if state.Kind == win.Unshaped {
		return e.clearMask(w.Xid)
	}
	return shape.RectanglesChecked(e.conn.X(), shape.SoSet, shape.KindBounding, xproto.OrderingYXBanded, w.Xid, 0, 0, state.Rects).Check()
}

func (e *Engine) clearMask(w xproto.Window) error {
	if err := shape.MaskChecked(e.conn.X(), shape.SoSet, shape.KindBounding, w, 0, 0, 0).Check(); err != nil {
		return xerr.New(xerr.Protocol, "shape.clearMask", err)
	}
	return nil
}
