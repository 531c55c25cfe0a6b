package eventloop

import (
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/shape"
	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/xext"
)

// Kind names an event's role for compression purposes, independent of
// which concrete xgb struct carries it.
type Kind int

const (
	KindOther Kind = iota
	KindMotion
	KindEnter
	KindLeave
	KindCreate
	KindDestroy
	KindUnmap
	KindMap
	KindMapRequest
	KindReparent
	KindConfigureRequest
	KindExpose
	KindGraphicsExpose
	KindNoExpose
	KindShape
	KindDamage
	KindRandR
	KindScreenSaver

	// Synthetic kinds produced by the DestroyNotify rewrite rule.
	KindCreateGone
	KindUnmapGone
	KindMapGone
	KindMapRequestGone
	KindReparentGone
)

// Entry is one slot in the pump's per-iteration event buffer.
type Entry struct {
	Kind   Kind
	Window xproto.Window
	Raw    any
	Rect   xproto.Rectangle // valid for KindExpose
	zeroed bool
}

// Zeroed reports whether compression dropped this entry.
func (e *Entry) Zeroed() bool { return e.zeroed }

// Classify maps a decoded xgb event to a compression Entry by its Go
// type, extension notify events included. probe is not consulted and
// may be nil.
func Classify(ev any, probe *xext.Probe) Entry {
	switch e := ev.(type) {
	case xproto.MotionNotifyEvent:
		return Entry{Kind: KindMotion, Window: e.Event, Raw: e}
	case xproto.EnterNotifyEvent:
		return Entry{Kind: KindEnter, Window: e.Event, Raw: e}
	case xproto.LeaveNotifyEvent:
		return Entry{Kind: KindLeave, Window: e.Event, Raw: e}
	case xproto.CreateNotifyEvent:
		return Entry{Kind: KindCreate, Window: e.Window, Raw: e}
	case xproto.DestroyNotifyEvent:
		return Entry{Kind: KindDestroy, Window: e.Window, Raw: e}
	case xproto.UnmapNotifyEvent:
		return Entry{Kind: KindUnmap, Window: e.Window, Raw: e}
	case xproto.MapNotifyEvent:
		return Entry{Kind: KindMap, Window: e.Window, Raw: e}
	case xproto.MapRequestEvent:
		return Entry{Kind: KindMapRequest, Window: e.Window, Raw: e}
	case xproto.ReparentNotifyEvent:
		return Entry{Kind: KindReparent, Window: e.Window, Raw: e}
	case xproto.ConfigureRequestEvent:
		return Entry{Kind: KindConfigureRequest, Window: e.Window, Raw: e}
	case xproto.ExposeEvent:
		return Entry{Kind: KindExpose, Window: e.Window, Raw: e, Rect: xproto.Rectangle{
			X: int16(e.X), Y: int16(e.Y), Width: e.Width, Height: e.Height,
		}}
	case xproto.GraphicsExposeEvent:
		return Entry{Kind: KindGraphicsExpose, Window: xproto.Window(e.Drawable), Raw: e}
	case xproto.NoExposeEvent:
		return Entry{Kind: KindNoExpose, Window: xproto.Window(e.Drawable), Raw: e}
	case shape.NotifyEvent:
		return Entry{Kind: KindShape, Window: e.AffectedWindow, Raw: e}
	case damage.NotifyEvent:
		return Entry{Kind: KindDamage, Window: xproto.Window(e.Drawable), Raw: e}
	case randr.NotifyEvent:
		return Entry{Kind: KindRandR, Raw: e}
	case randr.ScreenChangeNotifyEvent:
		return Entry{Kind: KindRandR, Window: e.Root, Raw: e}
	case screensaver.NotifyEvent:
		return Entry{Kind: KindScreenSaver, Window: e.Root, Raw: e}
	case xproto.ClientMessageEvent:
		return Entry{Kind: KindOther, Window: e.Window, Raw: e}
	default:
		return Entry{Kind: KindOther, Raw: ev}
	}
}

// unionRect returns the smallest rectangle containing both a and b.
func unionRect(a, b xproto.Rectangle) xproto.Rectangle {
	x0 := min16(a.X, b.X)
	y0 := min16(a.Y, b.Y)
	x1 := max16(a.X+int16(a.Width), b.X+int16(b.Width))
	y1 := max16(a.Y+int16(a.Height), b.Y+int16(b.Height))
	return xproto.Rectangle{X: x0, Y: y0, Width: uint16(x1 - x0), Height: uint16(y1 - y0)}
}

func min16(a, b int16) int16 {
	if a < b {
		return a
	}
	return b
}

func max16(a, b int16) int16 {
	if a > b {
		return a
	}
	return b
}

// isGoneKind reports whether k is a synthetic rewrite the DestroyNotify
// rule already produced on a prior pass, so a re-run of Compress leaves
// it untouched (P7: compress(compress(buf)) == compress(buf)).
func isGoneKind(k Kind) bool {
	switch k {
	case KindCreateGone, KindUnmapGone, KindMapGone, KindMapRequestGone, KindReparentGone:
		return true
	default:
		return false
	}
}

// destroyRewrite maps the kind of an event preceding a DestroyNotify on
// the same window to its "-Gone" synthetic replacement, or reports
// whether the kind should instead be zeroed outright.
func destroyRewrite(k Kind) (rewritten Kind, zero bool, matched bool) {
	switch k {
	case KindCreate:
		return KindCreateGone, false, true
	case KindUnmap:
		return KindUnmapGone, false, true
	case KindMap:
		return KindMapGone, false, true
	case KindMapRequest:
		return KindMapRequestGone, false, true
	case KindReparent:
		return KindReparentGone, false, true
	case KindConfigureRequest:
		return 0, true, true
	default:
		return 0, true, false
	}
}

// Compress implements spec.md §4.C8's compression table over buf in
// place, walking newest-first. Entries are never removed from the
// slice (preserving indices for diagnostics); zeroed entries are
// skipped by Pump.RunOnce.
func Compress(buf []Entry) {
	seenNewestMotion := false
	shapeSurvivor := make(map[xproto.Window]int)
	exposeSurvivor := make(map[xproto.Window]int)
	pendingLeave := make(map[xproto.Window][]int)

	for j := len(buf) - 1; j >= 0; j-- {
		e := &buf[j]
		if e.zeroed {
			continue
		}

		switch e.Kind {
		case KindGraphicsExpose, KindNoExpose:
			e.zeroed = true

		case KindMotion:
			if seenNewestMotion {
				e.zeroed = true
			} else {
				seenNewestMotion = true
			}

		case KindShape:
			if _, ok := shapeSurvivor[e.Window]; ok {
				e.zeroed = true
			} else {
				shapeSurvivor[e.Window] = j
			}

		case KindExpose:
			if survivor, ok := exposeSurvivor[e.Window]; ok {
				buf[survivor].Rect = unionRect(buf[survivor].Rect, e.Rect)
				e.zeroed = true
			} else {
				exposeSurvivor[e.Window] = j
			}

		case KindLeave:
			pendingLeave[e.Window] = append(pendingLeave[e.Window], j)

		case KindEnter:
			stack := pendingLeave[e.Window]
			if len(stack) > 0 {
				leaveIdx := stack[len(stack)-1]
				pendingLeave[e.Window] = stack[:len(stack)-1]
				buf[leaveIdx].zeroed = true
				e.zeroed = true
				for i := j + 1; i < leaveIdx; i++ {
					if buf[i].Kind == KindMotion && buf[i].Window == e.Window {
						buf[i].zeroed = true
					}
				}
			}

		case KindDestroy:
			for i := j - 1; i >= 0; i-- {
				if buf[i].zeroed || buf[i].Window != e.Window || isGoneKind(buf[i].Kind) {
					continue
				}
				rewritten, zero, matched := destroyRewrite(buf[i].Kind)
				if !matched {
					buf[i].zeroed = true
					continue
				}
				if zero {
					buf[i].zeroed = true
				} else {
					buf[i].Kind = rewritten
				}
			}
		}
	}
}
