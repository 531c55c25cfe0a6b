// Package screen maintains the head table used for multi-monitor
// layout (spec.md §4.C14): populated from RandR or Xinerama when
// present, or from a manual N×M split otherwise, with nearest-head and
// strut-aware available-area queries layered on top.
package screen

import (
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/xconn"
	"github.com/burzumishi/e16go/internal/xext"
)

// Rect is an axis-aligned pixel rectangle in root coordinates.
type Rect struct {
	X, Y          int32
	Width, Height int32
}

func (r Rect) contains(x, y int32) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

func (r Rect) center() (int32, int32) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Strut is one client's reserved-edge reservation, as collected from
// _NET_WM_STRUT (spec.md §4.C14, §6).
type Strut struct {
	Left, Right, Top, Bottom int32
}

// Table is the current head layout plus the struts collected from
// managed clients.
type Table struct {
	heads   []Rect
	struts  map[xproto.Window]Strut
	rootW   int32
	rootH   int32
}

// New builds a Table populated from RandR if present, else Xinerama if
// present, else a manual split of the root geometry into cols x rows
// equal cells (spec.md §4.C14's fallback order).
func New(conn *xconn.Conn, probe *xext.Probe, cols, rows int) *Table {
	screen := conn.Screen()
	t := &Table{
		struts: make(map[xproto.Window]Strut),
		rootW:  int32(screen.WidthInPixels),
		rootH:  int32(screen.HeightInPixels),
	}

	if probe != nil && probe.Has(xext.RandR) {
		if heads, ok := queryRandR(conn); ok && len(heads) > 0 {
			t.heads = heads
			return t
		}
	}
	if probe != nil && probe.Has(xext.Xinerama) {
		if heads, ok := queryXinerama(conn); ok && len(heads) > 0 {
			t.heads = heads
			return t
		}
	}
	t.heads = manualSplit(t.rootW, t.rootH, cols, rows)
	return t
}

func queryRandR(conn *xconn.Conn) ([]Rect, bool) {
	root := conn.Root()
	res, err := randr.GetScreenResources(conn.X(), root).Reply()
	if err != nil || res == nil {
		return nil, false
	}
	var heads []Rect
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(conn.X(), crtc, res.ConfigTimestamp).Reply()
		if err != nil || info == nil {
			continue
		}
		if info.Width == 0 || info.Height == 0 {
			continue
		}
		heads = append(heads, Rect{
			X: int32(info.X), Y: int32(info.Y),
			Width: int32(info.Width), Height: int32(info.Height),
		})
	}
	return heads, len(heads) > 0
}

func queryXinerama(conn *xconn.Conn) ([]Rect, bool) {
	reply, err := xinerama.QueryScreens(conn.X()).Reply()
	if err != nil || reply == nil {
		return nil, false
	}
	heads := make([]Rect, 0, len(reply.ScreenInfo))
	for _, s := range reply.ScreenInfo {
		heads = append(heads, Rect{X: int32(s.XOrg), Y: int32(s.YOrg), Width: int32(s.Width), Height: int32(s.Height)})
	}
	return heads, len(heads) > 0
}

// manualSplit divides a rootW x rootH area into cols x rows equal
// cells, left-to-right then top-to-bottom, used when neither RandR nor
// Xinerama answer.
func manualSplit(rootW, rootH int32, cols, rows int) []Rect {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	cellW := rootW / int32(cols)
	cellH := rootH / int32(rows)
	heads := make([]Rect, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			heads = append(heads, Rect{
				X: int32(col) * cellW, Y: int32(row) * cellH,
				Width: cellW, Height: cellH,
			})
		}
	}
	return heads
}

// NumHeads reports the number of heads in the table.
func (t *Table) NumHeads() int { return len(t.heads) }

// GeometryByHead returns the head's geometry. ok is false if h is out
// of range.
func (t *Table) GeometryByHead(h int) (Rect, bool) {
	if h < 0 || h >= len(t.heads) {
		return Rect{}, false
	}
	return t.heads[h], true
}

// GeometryAt returns the head containing (x,y), or — when the point
// lies in none of them — the head whose center is nearest (spec.md
// §4.C14).
func (t *Table) GeometryAt(x, y int32) Rect {
	for _, h := range t.heads {
		if h.contains(x, y) {
			return h
		}
	}
	return t.nearestHead(x, y)
}

func (t *Table) nearestHead(x, y int32) Rect {
	if len(t.heads) == 0 {
		return Rect{0, 0, t.rootW, t.rootH}
	}
	best := t.heads[0]
	bestDist := distSq(x, y, best)
	for _, h := range t.heads[1:] {
		d := distSq(x, y, h)
		if d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}

func distSq(x, y int32, r Rect) int64 {
	cx, cy := r.center()
	dx := int64(x - cx)
	dy := int64(y - cy)
	return dx*dx + dy*dy
}

// SetStrut records or clears a client's _NET_WM_STRUT reservation.
// Passing the zero Strut removes the entry.
func (t *Table) SetStrut(win xproto.Window, s Strut) {
	if s == (Strut{}) {
		delete(t.struts, win)
		return
	}
	t.struts[win] = s
}

// AvailableAreaAt intersects the head at (x,y) with the aggregate
// strut reservations of every managed client, unless ignoreStruts is
// set (spec.md §4.C14).
func (t *Table) AvailableAreaAt(x, y int32, ignoreStruts bool) Rect {
	head := t.GeometryAt(x, y)
	if ignoreStruts {
		return head
	}

	left, right, top, bottom := int32(0), int32(0), int32(0), int32(0)
	for _, s := range t.struts {
		if s.Left > left {
			left = s.Left
		}
		if s.Right > right {
			right = s.Right
		}
		if s.Top > top {
			top = s.Top
		}
		if s.Bottom > bottom {
			bottom = s.Bottom
		}
	}

	avail := Rect{
		X: head.X, Y: head.Y,
		Width: head.Width, Height: head.Height,
	}
	// Struts are expressed in root coordinates from the full desktop's
	// edges, so only clip the bounds that actually fall inside this head.
	if left > head.X {
		d := left - head.X
		avail.X += d
		avail.Width -= d
	}
	if top > head.Y {
		d := top - head.Y
		avail.Y += d
		avail.Height -= d
	}
	rightEdge := t.rootW - right
	if rightEdge < head.X+head.Width {
		avail.Width -= (head.X + head.Width) - rightEdge
	}
	bottomEdge := t.rootH - bottom
	if bottomEdge < head.Y+head.Height {
		avail.Height -= (head.Y + head.Height) - bottomEdge
	}
	if avail.Width < 0 {
		avail.Width = 0
	}
	if avail.Height < 0 {
		avail.Height = 0
	}
	return avail
}
