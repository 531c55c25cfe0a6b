// Package slide implements the move/resize animation built on top of
// the frame-accurate engine, per spec.md §4.C11: linear interpolation
// between two geometries, with an opaque (resize-every-tick) mode and
// an outline (XOR GC) mode for non-opaque windows.
package slide

import (
	"github.com/burzumishi/e16go/internal/anim"
	"github.com/burzumishi/e16go/internal/win"
)

// Mode selects how a slide is rendered each tick.
type Mode int

const (
	// Opaque calls MoveResize on the target every tick.
	Opaque Mode = iota
	// Outline draws an XOR GC rectangle outline on the root instead of
	// moving the real window, for non-opaque clients.
	Outline
)

// Flag is a bitset of slide behaviour toggles.
type Flag uint8

const (
	// FlagWarp requests focus/pointer restoration at the end of the
	// slide, subject to the conditions in done.
	FlagWarp Flag = 1 << iota
)

// OutlineDrawer draws or erases the XOR-GC outline rectangle on the
// root window. Only used in Outline mode.
type OutlineDrawer interface {
	DrawOutline(geom win.Geometry)
	EraseOutline(geom win.Geometry)
}

// FocusRestorer implements the end-of-slide focus/pointer-warp logic.
// PointerPos returns the current pointer position in root coordinates.
type FocusRestorer interface {
	IsFocused(id win.WinId) bool
	PointerPos() (x, y int16)
	WarpPointer(x, y int16)
	SetFocus(id win.WinId)
}

// lerp linearly interpolates a to b at t in [0,1024] (anim's remaining
// range), returning a value scaled the same way.
func lerp(a, b int32, t int32) int32 {
	return a + (b-a)*t/1024
}

func lerpGeom(from, to win.Geometry, t int32) win.Geometry {
	return win.Geometry{
		X: int16(lerp(int32(from.X), int32(to.X), t)),
		Y: int16(lerp(int32(from.Y), int32(to.Y), t)),
		W: uint16(lerp(int32(from.W), int32(to.W), t)),
		H: uint16(lerp(int32(from.H), int32(to.H), t)),
	}
}

// Slide drives one move/resize animation for a single window.
type Slide struct {
	reg      *win.Registry
	id       win.WinId
	from, to win.Geometry
	mode     Mode
	flags    Flag
	drawer   OutlineDrawer
	focus    FocusRestorer
	wasFocusedAtStart bool

	firstTick bool
	lastTick  bool
}

// Start registers a new slide animator on eng, animating win.WinId id
// from "from" to "to" over durationMs.
func Start(eng *anim.Engine, reg *win.Registry, id win.WinId, from, to win.Geometry, durationMs int64, mode Mode, flags Flag, drawer OutlineDrawer, focus FocusRestorer) *anim.Animator {
	s := &Slide{
		reg: reg, id: id, from: from, to: to, mode: mode, flags: flags,
		drawer: drawer, focus: focus, firstTick: true,
	}
	if focus != nil {
		s.wasFocusedAtStart = focus.IsFocused(id)
	}

	return eng.AddAnimator(id, 0, s.tick, durationMs, anim.WithDone(s.done))
}

func (s *Slide) tick(_ any, remaining float64, _ any) int {
	t := int32(remaining)
	if t > 1024 {
		t = 1024
	}
	if t < 0 {
		t = 0
	}
	geom := lerpGeom(s.from, s.to, t)

	switch s.mode {
	case Opaque:
		_ = s.reg.MoveResize(s.id, geom.X, geom.Y, geom.W, geom.H)
	case Outline:
		if s.drawer != nil {
			if !s.firstTick {
				w, ok := s.reg.Get(s.id)
				if ok {
					s.drawer.EraseOutline(w.Geom)
				}
			}
			s.drawer.DrawOutline(geom)
			if w, ok := s.reg.Get(s.id); ok {
				w.Geom = geom
			}
		}
	}
	s.firstTick = false

	if t >= 1024 {
		return -1 // reached the end, self-cancel
	}
	return 0
}

func (s *Slide) done(_ any, _ any) {
	if s.mode == Opaque {
		_ = s.reg.MoveResize(s.id, s.to.X, s.to.Y, s.to.W, s.to.H)
	} else if s.drawer != nil {
		s.drawer.EraseOutline(s.to)
		if w, ok := s.reg.Get(s.id); ok {
			w.Geom = s.to
		}
	}

	if s.flags&FlagWarp == 0 || s.focus == nil || !s.wasFocusedAtStart {
		return
	}
	px, py := s.focus.PointerPos()
	if pointInside(px, py, s.to) {
		return
	}
	cx := s.to.X + int16(s.to.W/2)
	cy := s.to.Y + int16(s.to.H/2)
	s.focus.WarpPointer(cx, cy)
	s.focus.SetFocus(s.id)
}

func pointInside(x, y int16, g win.Geometry) bool {
	return x >= g.X && x < g.X+int16(g.W) && y >= g.Y && y < g.Y+int16(g.H)
}
