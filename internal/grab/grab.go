// Package grab implements pointer, keyboard, button and key grabs with
// modifier-combo expansion over the lock-key set, as used by a window
// manager's input path. Grounded on the core-X grab calls in
// noisetorch's connection handling and on the GrabKey/GrabPointer
// patterns shown by the marwind and resetti example clients.
package grab

import (
	"fmt"

	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/xconn"
	"github.com/burzumishi/e16go/internal/xext"
)

// Backend identifies the grab implementation in use. XInput2 device
// grabs are an optional enhancement this core does not implement (see
// DESIGN.md); every grab request goes over the legacy core-X path
// regardless of what the extension probe reports.
type Backend int

const (
	// BackendCore uses legacy core-X GrabKey/GrabButton/GrabPointer/
	// GrabKeyboard requests. The only backend this Manager implements.
	BackendCore Backend = iota
)

// ModAny means "ignore modifiers", installed as a single grab instead
// of being expanded over the lock-key combo set.
const ModAny = uint16(0x8000)

// lockMods are the modifier bits whose state is irrelevant to the
// grabber's intent but which the X server still matches literally,
// forcing one physical grab per combination actually in use.
var lockMods = []uint16{xproto.ModMaskLock, xproto.ModMask2, xproto.ModMask3}

// ComboSet returns every combination of the known lock modifiers,
// capped at 8 elements (spec: "at most 8 elements" for 3 independent
// lock bits: Caps, Num, Scroll).
func ComboSet() []uint16 {
	n := len(lockMods)
	combos := make([]uint16, 0, 1<<uint(n))
	for mask := 0; mask < (1 << uint(n)); mask++ {
		var combo uint16
		for i, m := range lockMods {
			if mask&(1<<uint(i)) != 0 {
				combo |= m
			}
		}
		combos = append(combos, combo)
	}
	return combos
}

// Manager installs and releases grabs, choosing a backend once at
// startup from the extension probe.
type Manager struct {
	conn    *xconn.Conn
	backend Backend
	combos  []uint16
}

// New constructs a Manager. probe is accepted for parity with the rest
// of the core's startup sequence (every subsystem is handed the same
// extension probe); grab backend selection does not consult it, since
// BackendCore is the only backend implemented.
func New(conn *xconn.Conn, probe *xext.Probe) *Manager {
	_ = probe
	return &Manager{conn: conn, backend: BackendCore, combos: ComboSet()}
}

// Backend reports the chosen backend.
func (m *Manager) Backend() Backend { return m.backend }

// modsToGrab expands mod into the set of literal modifier values the
// server must be told about: either the single "any modifier" grab, or
// one grab per element of the lock-key combo set with mod ORed in.
func (m *Manager) modsToGrab(mod uint16) []uint16 {
	if mod == ModAny {
		return []uint16{xproto.ModMaskAny}
	}
	out := make([]uint16, len(m.combos))
	for i, c := range m.combos {
		out[i] = mod | c
	}
	return out
}

// GrabKey grabs a keyboard key on win for every expansion of mod.
func (m *Manager) GrabKey(win xproto.Window, mod uint16, keycode xproto.Keycode, ownerEvents bool) error {
	for _, expanded := range m.modsToGrab(mod) {
		err := xproto.GrabKeyChecked(
			m.conn.X(), ownerEvents, win, expanded, keycode,
			xproto.GrabModeAsync, xproto.GrabModeAsync,
		).Check()
		if err != nil {
			m.ungrabKeyUpTo(win, mod, keycode)
			return fmt.Errorf("grab key %d mod %#x: %w", keycode, expanded, err)
		}
	}
	return nil
}

// ungrabKeyUpTo unwinds a partially-applied GrabKey expansion (used
// when a grab fails partway through the combo set).
func (m *Manager) ungrabKeyUpTo(win xproto.Window, mod uint16, keycode xproto.Keycode) {
	for _, expanded := range m.modsToGrab(mod) {
		xproto.UngrabKeyChecked(m.conn.X(), keycode, win, expanded).Check()
	}
}

// UngrabKey releases every expansion of a previously-installed key grab.
func (m *Manager) UngrabKey(win xproto.Window, mod uint16, keycode xproto.Keycode) error {
	var firstErr error
	for _, expanded := range m.modsToGrab(mod) {
		err := xproto.UngrabKeyChecked(m.conn.X(), keycode, win, expanded).Check()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GrabButton grabs a pointer button on win for every expansion of mod.
func (m *Manager) GrabButton(win xproto.Window, mod uint16, button xproto.Button, eventMask uint16, ownerEvents, confine bool) error {
	confineTo := xproto.WindowNone
	if confine {
		confineTo = win
	}
	for _, expanded := range m.modsToGrab(mod) {
		err := xproto.GrabButtonChecked(
			m.conn.X(), ownerEvents, win, eventMask,
			xproto.GrabModeAsync, xproto.GrabModeAsync,
			confineTo, xproto.CursorNone, button, expanded,
		).Check()
		if err != nil {
			m.ungrabButtonUpTo(win, mod, button)
			return fmt.Errorf("grab button %d mod %#x: %w", button, expanded, err)
		}
	}
	return nil
}

func (m *Manager) ungrabButtonUpTo(win xproto.Window, mod uint16, button xproto.Button) {
	for _, expanded := range m.modsToGrab(mod) {
		xproto.UngrabButtonChecked(m.conn.X(), button, win, expanded).Check()
	}
}

// UngrabButton releases every expansion of a previously-installed
// button grab.
func (m *Manager) UngrabButton(win xproto.Window, mod uint16, button xproto.Button) error {
	var firstErr error
	for _, expanded := range m.modsToGrab(mod) {
		err := xproto.UngrabButtonChecked(m.conn.X(), button, win, expanded).Check()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GrabPointerMode controls whether GrabPointer is installed in Sync or
// Async mode for pointer events; a grabber that intends to replay
// events needs Sync so it can call AllowEvents(ReplayPointer).
type GrabPointerMode int

const (
	PointerAsync GrabPointerMode = iota
	PointerSync
)

// GrabPointer grabs the pointer unconditionally (mod already resolved
// by the caller; pointer grabs are not expanded over the lock combo
// set since they are not a key/button-specific passive grab).
func (m *Manager) GrabPointer(win xproto.Window, eventMask uint16, confine xproto.Window, mode GrabPointerMode, cursor xproto.Cursor) error {
	pm := xproto.GrabModeAsync
	if mode == PointerSync {
		pm = xproto.GrabModeSync
	}
	reply, err := xproto.GrabPointer(
		m.conn.X(), false, win, eventMask,
		pm, xproto.GrabModeAsync,
		confine, cursor, xproto.TimeCurrentTime,
	).Reply()
	if err != nil {
		return err
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("grab pointer: status %d", reply.Status)
	}
	return nil
}

// UngrabPointer releases the active pointer grab, if any.
func (m *Manager) UngrabPointer() error {
	return xproto.UngrabPointerChecked(m.conn.X(), xproto.TimeCurrentTime).Check()
}

// GrabKeyboard grabs the keyboard. mode chooses Sync vs Async
// on the keyboard device depending on whether the grabber intends to
// replay key events.
func (m *Manager) GrabKeyboard(win xproto.Window, mode GrabPointerMode) error {
	km := xproto.GrabModeAsync
	if mode == PointerSync {
		km = xproto.GrabModeSync
	}
	reply, err := xproto.GrabKeyboard(
		m.conn.X(), false, win, xproto.TimeCurrentTime,
		xproto.GrabModeAsync, km,
	).Reply()
	if err != nil {
		return err
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("grab keyboard: status %d", reply.Status)
	}
	return nil
}

// UngrabKeyboard releases the active keyboard grab, if any.
func (m *Manager) UngrabKeyboard() error {
	return xproto.UngrabKeyboardChecked(m.conn.X(), xproto.TimeCurrentTime).Check()
}

// ThawPointer releases a synchronous pointer grab's frozen event queue
// without dropping the button state, equivalent to
// AllowEvents(ReplayPointer).
func (m *Manager) ThawPointer() error {
	return xproto.AllowEventsChecked(m.conn.X(), xproto.AllowReplayPointer, xproto.TimeCurrentTime).Check()
}

// ThawKeyboard is ThawPointer's keyboard-device counterpart.
func (m *Manager) ThawKeyboard() error {
	return xproto.AllowEventsChecked(m.conn.X(), xproto.AllowReplayKeyboard, xproto.TimeCurrentTime).Check()
}
