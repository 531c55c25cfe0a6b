// Package group implements many-to-many window grouping (spec.md
// §4.C15): create/destroy/add/remove/break/find_common/list, with a
// symmetric membership index and the line-oriented "KEY: value" text
// persistence format grounded on original_source/src/groups.c's
// GroupsSave/_GroupsLoad.
package group

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/burzumishi/e16go/internal/clock"
	"github.com/burzumishi/e16go/internal/win"
)

// Config mirrors the per-group behaviour toggles original_source
// persists (Iconify, Kill, Move, Raise, SetBorder, Stick, Shade).
type Config struct {
	Iconify   bool
	Kill      bool
	Move      bool
	Raise     bool
	SetBorder bool
	Stick     bool
	Shade     bool
}

// DefaultConfig matches original_source/src/groups.c's Conf_groups.dflt.
func DefaultConfig() Config {
	return Config{Iconify: true, Move: true, SetBorder: true, Stick: true, Shade: true}
}

// Group is one membership set.
type Group struct {
	ID      int64
	Cfg     Config
	Save    bool
	members map[win.WinId]struct{}
}

// Members returns the group's current membership as a slice. The order
// of the elements is not defined (it follows Go map iteration).
func (g *Group) Members() []win.WinId {
	out := make([]win.WinId, 0, len(g.members))
	for id := range g.members {
		out = append(out, id)
	}
	return out
}

// Registry tracks every live Group plus the reverse win -> groups
// index, maintained symmetrically on every mutation (P5).
type Registry struct {
	groups  map[int64]*Group
	byWin   map[win.WinId]map[int64]struct{}
}

// New returns an empty group Registry.
func New() *Registry {
	return &Registry{
		groups: make(map[int64]*Group),
		byWin:  make(map[win.WinId]map[int64]struct{}),
	}
}

// Create allocates a new Group. If id is nil, a fresh id is seeded
// from clock.Micros(), matching original_source's GetTimeUs() seeding
// (not guaranteed globally unique, same caveat original_source notes).
func (r *Registry) Create(id *int64) *Group {
	var gid int64
	if id != nil {
		gid = *id
	} else {
		gid = clock.Micros()
	}
	if existing, ok := r.groups[gid]; ok {
		return existing
	}
	g := &Group{ID: gid, Cfg: DefaultConfig(), members: make(map[win.WinId]struct{})}
	r.groups[gid] = g
	return g
}

// getOrCreateLazy implements "group ids not present at load time are
// created lazily on member add" (spec.md §4.C15).
func (r *Registry) getOrCreateLazy(gid int64) *Group {
	if g, ok := r.groups[gid]; ok {
		return g
	}
	return r.Create(&gid)
}

// Destroy removes a group and symmetrically detaches every member.
func (r *Registry) Destroy(gid int64) {
	g, ok := r.groups[gid]
	if !ok {
		return
	}
	for ewin := range g.members {
		delete(r.byWin[ewin], gid)
		if len(r.byWin[ewin]) == 0 {
			delete(r.byWin, ewin)
		}
	}
	delete(r.groups, gid)
}

// Add inserts ewin into group gid, creating the group lazily if
// needed, updating both sides of the edge atomically.
func (r *Registry) Add(ewin win.WinId, gid int64) {
	g := r.getOrCreateLazy(gid)
	g.members[ewin] = struct{}{}
	if r.byWin[ewin] == nil {
		r.byWin[ewin] = make(map[int64]struct{})
	}
	r.byWin[ewin][gid] = struct{}{}
}

// Remove detaches ewin from group gid on both sides of the edge.
func (r *Registry) Remove(ewin win.WinId, gid int64) {
	if g, ok := r.groups[gid]; ok {
		delete(g.members, ewin)
	}
	if set, ok := r.byWin[ewin]; ok {
		delete(set, gid)
		if len(set) == 0 {
			delete(r.byWin, ewin)
		}
	}
}

// Break removes ewin from every group it belongs to, or from the
// single group gids if non-empty.
func (r *Registry) Break(ewin win.WinId, gids ...int64) {
	if len(gids) == 0 {
		for gid := range r.byWin[ewin] {
			r.Remove(ewin, gid)
		}
		return
	}
	for _, gid := range gids {
		r.Remove(ewin, gid)
	}
}

// FindCommon returns a group both ewin1 and ewin2 belong to, or nil.
func (r *Registry) FindCommon(ewin1, ewin2 win.WinId) *Group {
	for gid := range r.byWin[ewin1] {
		if _, ok := r.byWin[ewin2][gid]; ok {
			return r.groups[gid]
		}
	}
	return nil
}

// ListByEwin returns every group ewin belongs to.
func (r *Registry) ListByEwin(ewin win.WinId) []*Group {
	out := make([]*Group, 0, len(r.byWin[ewin]))
	for gid := range r.byWin[ewin] {
		out = append(out, r.groups[gid])
	}
	return out
}

// ListAll returns every group the Registry knows about.
func (r *Registry) ListAll() []*Group {
	out := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out
}

// SaveToStream writes every group with Save set using the
// "NEW: id" / "KEY: value" line format original_source persists.
func SaveToStream(w io.Writer, groups []*Group) error {
	bw := bufio.NewWriter(w)
	for _, g := range groups {
		if !g.Save {
			continue
		}
		fmt.Fprintf(bw, "NEW: %d\n", g.ID)
		fmt.Fprintf(bw, "ICONIFY: %d\n", boolToInt(g.Cfg.Iconify))
		fmt.Fprintf(bw, "KILL: %d\n", boolToInt(g.Cfg.Kill))
		fmt.Fprintf(bw, "MOVE: %d\n", boolToInt(g.Cfg.Move))
		fmt.Fprintf(bw, "RAISE: %d\n", boolToInt(g.Cfg.Raise))
		fmt.Fprintf(bw, "SET_BORDER: %d\n", boolToInt(g.Cfg.SetBorder))
		fmt.Fprintf(bw, "STICK: %d\n", boolToInt(g.Cfg.Stick))
		fmt.Fprintf(bw, "SHADE: %d\n", boolToInt(g.Cfg.Shade))
	}
	return bw.Flush()
}

// LoadFromStream parses the "NEW:"/"KEY: value" format into r, marking
// every loaded group as Save-worthy (it came from a save file).
func (r *Registry) LoadFromStream(rd io.Reader) error {
	sc := bufio.NewScanner(rd)
	var g *Group
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			continue
		}

		if key == "NEW:" {
			gid := int64(n)
			g = r.getOrCreateLazy(gid)
			g.Save = true
			continue
		}
		if g == nil {
			continue
		}
		switch key {
		case "ICONIFY:":
			g.Cfg.Iconify = n != 0
		case "KILL:":
			g.Cfg.Kill = n != 0
		case "MOVE:":
			g.Cfg.Move = n != 0
		case "RAISE:":
			g.Cfg.Raise = n != 0
		case "SET_BORDER:":
			g.Cfg.SetBorder = n != 0
		case "STICK:":
			g.Cfg.Stick = n != 0
		case "SHADE:":
			g.Cfg.Shade = n != 0
		}
	}
	return sc.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
