// Package hints implements the typed ICCCM/EWMH/MWM property access and
// ClientMessage dispatch chain from spec.md §4.C12, plus the internal
// persistence atoms used to round-trip per-window state that has no
// public protocol (spec.md §6). Built directly on jezek/xgb/xproto's
// GetProperty/ChangeProperty/InternAtom/GetAtomName, the same way
// internal/selection constructs and sends its ClientMessages — there is
// no second X connection here, only typed encode/decode layered over
// the core's single jezek/xgb connection.
package hints

import (
	"encoding/binary"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// Engine interns atom numbers once at startup and exposes typed
// property accessors over the core's X connection.
type Engine struct {
	conn  *xgb.Conn
	atoms map[string]xproto.Atom

	handlers []handlerEntry
}

type handlerEntry struct {
	name string
	fn   ClientMessageHandler
}

// ClientMessageHandler inspects a ClientMessage and reports whether it
// consumed it. The dispatch chain stops at the first true.
type ClientMessageHandler func(win xproto.Window, ev xproto.ClientMessageEvent) bool

// New wraps an already-open xgb connection for property access. The
// core never opens a second connection; every hints call rides the one
// xconn established at startup.
func New(conn *xgb.Conn) (*Engine, error) {
	e := &Engine{conn: conn, atoms: make(map[string]xproto.Atom, 64)}

	// ICCCM -> EWMH -> GNOME legacy, in that priority order (spec.md
	// §4.C12: "the first handler that consumes the message wins").
	e.handlers = []handlerEntry{
		{"icccm", e.handleICCCM},
		{"ewmh", e.handleEWMH},
		{"gnome-legacy", e.handleGnomeLegacy},
	}
	return e, nil
}

// Atom interns name once and caches it for the life of the Engine.
func (e *Engine) Atom(name string) (xproto.Atom, error) {
	if a, ok := e.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(e.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("hints: intern %s: %w", name, err)
	}
	e.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (e *Engine) atomName(a xproto.Atom) (string, error) {
	reply, err := xproto.GetAtomName(e.conn, a).Reply()
	if err != nil {
		return "", err
	}
	return reply.Name, nil
}

// --- Property wire helpers ---

// propWords is the long-length GetProperty requests: the protocol
// maximum, so strings, window lists and area data of any length are
// read in full rather than cut off.
const propWords = 1<<32 - 1

// getProperty reads atom off win in full, format-agnostic.
func (e *Engine) getProperty(win xproto.Window, atom string) (*xproto.GetPropertyReply, error) {
	a, err := e.Atom(atom)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(e.conn, false, win, a, xproto.GetPropertyTypeAny, 0, propWords).Reply()
	if err != nil {
		return nil, err
	}
	if reply.Format == 0 {
		return nil, fmt.Errorf("hints: %s not set on window %d", atom, win)
	}
	return reply, nil
}

// propCard32s decodes a format-32 property's value as a CARD32 array.
// jezek/xgb always negotiates little-endian byte order at connection
// setup, so the wire bytes decode directly with binary.LittleEndian.
func propCard32s(reply *xproto.GetPropertyReply) []uint32 {
	if reply.Format != 32 {
		return nil
	}
	n := len(reply.Value) / 4
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(reply.Value[i*4 : i*4+4])
	}
	return out
}

func encodeCard32s(vals []uint32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return buf
}

func (e *Engine) changeProperty32(win xproto.Window, prop, typ string, vals []uint32) error {
	propAtom, err := e.Atom(prop)
	if err != nil {
		return err
	}
	typAtom, err := e.Atom(typ)
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(e.conn, xproto.PropModeReplace, win,
		propAtom, typAtom, 32, uint32(len(vals)), encodeCard32s(vals)).Check()
}

func (e *Engine) changePropertyBytes(win xproto.Window, prop, typ string, value []byte) error {
	propAtom, err := e.Atom(prop)
	if err != nil {
		return err
	}
	typAtom, err := e.Atom(typ)
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(e.conn, xproto.PropModeReplace, win,
		propAtom, typAtom, 8, uint32(len(value)), value).Check()
}

// --- Typed property access (ICCCM/EWMH equivalents) ---

// WMState is the decoded ICCCM WM_STATE property: {state, icon}.
type WMState struct {
	State uint32
	Icon  xproto.Window
}

// WMState reads ICCCM WM_STATE, returning the state code and icon
// window. Absence is reported as ok=false, never as zero (spec.md §7).
func (e *Engine) WMState(win xproto.Window) (WMState, bool) {
	reply, err := e.getProperty(win, "WM_STATE")
	if err != nil {
		return WMState{}, false
	}
	nums := propCard32s(reply)
	if len(nums) < 2 {
		return WMState{}, false
	}
	return WMState{State: nums[0], Icon: xproto.Window(nums[1])}, true
}

// SetWMState writes ICCCM WM_STATE as CARD32x2 {state, icon}.
func (e *Engine) SetWMState(win xproto.Window, state uint32, icon xproto.Window) error {
	return e.changeProperty32(win, "WM_STATE", "WM_STATE", []uint32{state, uint32(icon)})
}

// Protocols reads WM_PROTOCOLS as resolved atom names.
func (e *Engine) Protocols(win xproto.Window) ([]string, error) {
	reply, err := e.getProperty(win, "WM_PROTOCOLS")
	if err != nil {
		return nil, err
	}
	return e.resolveAtomList(propCard32s(reply)), nil
}

// NetWMState reads _NET_WM_STATE as an atom-name list.
func (e *Engine) NetWMState(win xproto.Window) ([]string, error) {
	reply, err := e.getProperty(win, "_NET_WM_STATE")
	if err != nil {
		return nil, err
	}
	return e.resolveAtomList(propCard32s(reply)), nil
}

// SetNetWMState writes _NET_WM_STATE.
func (e *Engine) SetNetWMState(win xproto.Window, states []string) error {
	vals, err := e.internAtomList(states)
	if err != nil {
		return err
	}
	return e.changeProperty32(win, "_NET_WM_STATE", "ATOM", vals)
}

// NetWMDesktop reads _NET_WM_DESKTOP (CARDINAL).
func (e *Engine) NetWMDesktop(win xproto.Window) (uint32, bool) {
	return e.GetCard32(win, "_NET_WM_DESKTOP")
}

// SetNetWMDesktop writes _NET_WM_DESKTOP.
func (e *Engine) SetNetWMDesktop(win xproto.Window, desktop uint32) error {
	return e.SetCard32(win, "_NET_WM_DESKTOP", desktop)
}

// NetWMOpacity reads _NET_WM_WINDOW_OPACITY as CARD32 in [0,0xFFFFFFFF].
func (e *Engine) NetWMOpacity(win xproto.Window) (uint32, bool) {
	return e.GetCard32(win, "_NET_WM_WINDOW_OPACITY")
}

// SetNetWMOpacity writes _NET_WM_WINDOW_OPACITY.
func (e *Engine) SetNetWMOpacity(win xproto.Window, opacity uint32) error {
	return e.SetCard32(win, "_NET_WM_WINDOW_OPACITY", opacity)
}

// MotifHints is the decoded _MOTIF_WM_HINTS property.
type MotifHints struct {
	Flags       uint32
	Functions   uint32
	Decorations uint32
	InputMode   uint32
	Status      uint32
}

// MotifHints reads _MOTIF_WM_HINTS (5xCARD32, min 4 required).
func (e *Engine) MotifHints(win xproto.Window) (MotifHints, bool) {
	reply, err := e.getProperty(win, "_MOTIF_WM_HINTS")
	if err != nil {
		return MotifHints{}, false
	}
	nums := propCard32s(reply)
	if len(nums) < 4 {
		return MotifHints{}, false
	}
	h := MotifHints{Flags: nums[0], Functions: nums[1], Decorations: nums[2], InputMode: nums[3]}
	if len(nums) >= 5 {
		h.Status = nums[4]
	}
	return h, true
}

// SetMotifHints writes _MOTIF_WM_HINTS.
func (e *Engine) SetMotifHints(win xproto.Window, h MotifHints) error {
	return e.changeProperty32(win, "_MOTIF_WM_HINTS", "_MOTIF_WM_HINTS",
		[]uint32{h.Flags, h.Functions, h.Decorations, h.InputMode, h.Status})
}

// --- Generic typed accessors (R1-R3) ---

// GetCard32 implements R1's read half: a single CARDINAL value.
func (e *Engine) GetCard32(win xproto.Window, atom string) (uint32, bool) {
	reply, err := e.getProperty(win, atom)
	if err != nil {
		return 0, false
	}
	nums := propCard32s(reply)
	if len(nums) == 0 {
		return 0, false
	}
	return nums[0], true
}

// SetCard32 implements R1's write half.
func (e *Engine) SetCard32(win xproto.Window, atom string, v uint32) error {
	return e.changeProperty32(win, atom, "CARDINAL", []uint32{v})
}

// GetWindowList implements R2's read half: an array of WINDOW values.
func (e *Engine) GetWindowList(win xproto.Window, atom string) ([]xproto.Window, bool) {
	reply, err := e.getProperty(win, atom)
	if err != nil {
		return nil, false
	}
	nums := propCard32s(reply)
	out := make([]xproto.Window, len(nums))
	for i, n := range nums {
		out[i] = xproto.Window(n)
	}
	return out, true
}

// SetWindowList implements R2's write half.
func (e *Engine) SetWindowList(win xproto.Window, atom string, list []xproto.Window) error {
	vals := make([]uint32, len(list))
	for i, w := range list {
		vals[i] = uint32(w)
	}
	return e.changeProperty32(win, atom, "WINDOW", vals)
}

// GetAtomList reads an ATOM-typed id list as resolved atom values.
func (e *Engine) GetAtomList(win xproto.Window, atom string) ([]xproto.Atom, bool) {
	reply, err := e.getProperty(win, atom)
	if err != nil {
		return nil, false
	}
	nums := propCard32s(reply)
	out := make([]xproto.Atom, len(nums))
	for i, n := range nums {
		out[i] = xproto.Atom(n)
	}
	return out, true
}

// SetAtomList writes an ATOM-typed id list.
func (e *Engine) SetAtomList(win xproto.Window, atom string, list []xproto.Atom) error {
	vals := make([]uint32, len(list))
	for i, a := range list {
		vals[i] = uint32(a)
	}
	return e.changeProperty32(win, atom, "ATOM", vals)
}

// GetUTF8 implements R3's read half.
func (e *Engine) GetUTF8(win xproto.Window, atom string) (string, bool) {
	reply, err := e.getProperty(win, atom)
	if err != nil {
		return "", false
	}
	return string(reply.Value), true
}

// SetUTF8 implements R3's write half.
func (e *Engine) SetUTF8(win xproto.Window, atom, value string) error {
	return e.changePropertyBytes(win, atom, "UTF8_STRING", []byte(value))
}

// GetSTRING reads a legacy Latin-1 STRING property.
func (e *Engine) GetSTRING(win xproto.Window, atom string) (string, bool) {
	reply, err := e.getProperty(win, atom)
	if err != nil {
		return "", false
	}
	return string(reply.Value), true
}

func (e *Engine) resolveAtomList(nums []uint32) []string {
	out := make([]string, 0, len(nums))
	for _, n := range nums {
		name, err := e.atomName(xproto.Atom(n))
		if err != nil {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (e *Engine) internAtomList(names []string) ([]uint32, error) {
	vals := make([]uint32, len(names))
	for i, s := range names {
		a, err := e.Atom(s)
		if err != nil {
			return nil, err
		}
		vals[i] = uint32(a)
	}
	return vals, nil
}

// ListOp selects the mutation list_change applies.
type ListOp int

const (
	ListAdd ListOp = iota
	ListRemove
	ListToggle
)

// ListChange implements the read-modify-write Add|Remove|Toggle
// primitive over an ATOM-typed id-list property (spec.md §4.C12). It
// is idempotent under repeated Add (R4).
func (e *Engine) ListChange(win xproto.Window, atom string, item xproto.Atom, op ListOp) error {
	cur, _ := e.GetAtomList(win, atom)
	idx := -1
	for i, a := range cur {
		if a == item {
			idx = i
			break
		}
	}

	switch op {
	case ListAdd:
		if idx >= 0 {
			return nil
		}
		cur = append(cur, item)
	case ListRemove:
		if idx < 0 {
			return nil
		}
		cur = append(cur[:idx], cur[idx+1:]...)
	case ListToggle:
		if idx >= 0 {
			cur = append(cur[:idx], cur[idx+1:]...)
		} else {
			cur = append(cur, item)
		}
	}
	return e.SetAtomList(win, atom, cur)
}

// --- Internal persistence atoms (spec.md §6, private to this core) ---

// WinData is the decoded form of the ENL_WIN_DATA CARD32 array:
// {flags, raw_flags[2], save_max[4], save_fs[5]}, with the format
// version carried in the low 8 bits of the flags word.
type WinData struct {
	Version  uint8
	Flags    uint32
	RawFlags [2]uint32
	SaveMax  [4]uint32
	SaveFS   [5]uint32
}

const winDataVersion = 0

// GetWinData reads ENL_WIN_DATA. ok is false if absent or short.
func (e *Engine) GetWinData(win xproto.Window) (WinData, bool) {
	reply, err := e.getProperty(win, "ENL_WIN_DATA")
	if err != nil {
		return WinData{}, false
	}
	nums := propCard32s(reply)
	if len(nums) < 12 {
		return WinData{}, false
	}
	d := WinData{Flags: nums[0]}
	d.Version = uint8(d.Flags & 0xFF)
	for i := 0; i < 2; i++ {
		d.RawFlags[i] = nums[1+i]
	}
	for i := 0; i < 4; i++ {
		d.SaveMax[i] = nums[3+i]
	}
	for i := 0; i < 5; i++ {
		d.SaveFS[i] = nums[7+i]
	}
	return d, true
}

// SetWinData writes ENL_WIN_DATA, stamping the current format version
// into the low 8 bits of the flags word.
func (e *Engine) SetWinData(win xproto.Window, d WinData) error {
	flags := (d.Flags &^ 0xFF) | uint32(winDataVersion)
	vals := make([]uint32, 0, 12)
	vals = append(vals, flags)
	vals = append(vals, d.RawFlags[:]...)
	vals = append(vals, d.SaveMax[:]...)
	vals = append(vals, d.SaveFS[:]...)
	return e.changeProperty32(win, "ENL_WIN_DATA", "CARDINAL", vals)
}

// GetWinBorder reads ENL_WIN_BORDER, a legacy STRING.
func (e *Engine) GetWinBorder(win xproto.Window) (string, bool) {
	return e.GetSTRING(win, "ENL_WIN_BORDER")
}

// SetWinBorder writes ENL_WIN_BORDER.
func (e *Engine) SetWinBorder(win xproto.Window, name string) error {
	return e.changePropertyBytes(win, "ENL_WIN_BORDER", "STRING", []byte(name))
}

// DeskData is the decoded ENL_INTERNAL_DESK_DATA CARD32x2 pair.
type DeskData struct {
	CurrentDesk uint32
	HiddenDesks uint32 // bitmask
}

// GetDeskData reads ENL_INTERNAL_DESK_DATA off the root window.
func (e *Engine) GetDeskData(root xproto.Window) (DeskData, bool) {
	reply, err := e.getProperty(root, "ENL_INTERNAL_DESK_DATA")
	if err != nil {
		return DeskData{}, false
	}
	nums := propCard32s(reply)
	if len(nums) < 2 {
		return DeskData{}, false
	}
	return DeskData{CurrentDesk: nums[0], HiddenDesks: nums[1]}, true
}

// SetDeskData writes ENL_INTERNAL_DESK_DATA on the root window.
func (e *Engine) SetDeskData(root xproto.Window, d DeskData) error {
	return e.changeProperty32(root, "ENL_INTERNAL_DESK_DATA", "CARDINAL",
		[]uint32{d.CurrentDesk, d.HiddenDesks})
}

// GetAreaData reads ENL_INTERNAL_AREA_DATA, a CARD32x(2*N) array of
// per-desktop (cols, rows) pairs, one pair per virtual desktop.
func (e *Engine) GetAreaData(root xproto.Window, nDesks int) ([][2]uint32, bool) {
	reply, err := e.getProperty(root, "ENL_INTERNAL_AREA_DATA")
	if err != nil {
		return nil, false
	}
	nums := propCard32s(reply)
	if len(nums) < 2*nDesks {
		return nil, false
	}
	out := make([][2]uint32, nDesks)
	for i := 0; i < nDesks; i++ {
		out[i] = [2]uint32{nums[2*i], nums[2*i+1]}
	}
	return out, true
}

// SetAreaData writes ENL_INTERNAL_AREA_DATA.
func (e *Engine) SetAreaData(root xproto.Window, areas [][2]uint32) error {
	vals := make([]uint32, 0, 2*len(areas))
	for _, a := range areas {
		vals = append(vals, a[0], a[1])
	}
	return e.changeProperty32(root, "ENL_INTERNAL_AREA_DATA", "CARDINAL", vals)
}

// --- ClientMessage dispatch ---

// RegisterHandler inserts a handler at the end of the dispatch chain.
// Built-in ICCCM/EWMH/GNOME-legacy handlers already occupy the front of
// the chain; this is for core-specific extensions.
func (e *Engine) RegisterHandler(name string, fn ClientMessageHandler) {
	e.handlers = append(e.handlers, handlerEntry{name, fn})
}

// Dispatch walks the handler chain in priority order, stopping at the
// first handler that reports it consumed the message.
func (e *Engine) Dispatch(win xproto.Window, ev xproto.ClientMessageEvent) (consumedBy string, consumed bool) {
	for _, h := range e.handlers {
		if h.fn(win, ev) {
			return h.name, true
		}
	}
	return "", false
}

func (e *Engine) handleICCCM(_ xproto.Window, ev xproto.ClientMessageEvent) bool {
	name, err := e.atomName(ev.Type)
	if err != nil {
		return false
	}
	switch name {
	case "WM_CHANGE_STATE":
		return true
	default:
		return false
	}
}

func (e *Engine) handleEWMH(_ xproto.Window, ev xproto.ClientMessageEvent) bool {
	name, err := e.atomName(ev.Type)
	if err != nil {
		return false
	}
	switch name {
	case "_NET_ACTIVE_WINDOW", "_NET_CLOSE_WINDOW", "_NET_WM_STATE",
		"_NET_WM_DESKTOP", "_NET_MOVERESIZE_WINDOW", "_NET_REQUEST_FRAME_EXTENTS":
		return true
	default:
		return false
	}
}

func (e *Engine) handleGnomeLegacy(_ xproto.Window, ev xproto.ClientMessageEvent) bool {
	name, err := e.atomName(ev.Type)
	if err != nil {
		return false
	}
	switch name {
	case "_WIN_STATE", "_WIN_LAYER", "_WIN_WORKSPACE":
		return true
	default:
		return false
	}
}
