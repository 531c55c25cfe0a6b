// Package selection implements manager-style selection ownership
// (spec.md §4.C13): acquiring a named selection atom, announcing the
// takeover via a MANAGER ClientMessage broadcast, and surfacing loss
// of ownership via SelectionClear.
package selection

import (
	"fmt"

	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/xconn"
)

// LostHandler is invoked exactly once when the owned selection is
// taken over by another client.
type LostHandler func(name string)

// Owner tracks one acquired selection.
type Owner struct {
	conn      *xconn.Conn
	name      string
	atom      xproto.Atom
	window    xproto.Window
	timestamp xproto.Timestamp
	onLost    LostHandler
}

// Name returns the interned selection name this Owner holds.
func (o *Owner) Name() string { return o.name }

// Window returns the InputOnly owner window backing the selection.
func (o *Owner) Window() xproto.Window { return o.window }

// Acquire interns name, creates an InputOnly owner window, claims
// selection ownership at the current server time, verifies the claim
// by re-reading GetSelectionOwner, and broadcasts the MANAGER
// ClientMessage (spec.md §4.C13, §6, P8).
func Acquire(conn *xconn.Conn, name string, onLost LostHandler) (*Owner, error) {
	atomReply, err := xproto.InternAtom(conn.X(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return nil, fmt.Errorf("selection: intern %s: %w", name, err)
	}
	atom := atomReply.Atom

	xid, err := xproto.NewWindowId(conn.X())
	if err != nil {
		return nil, fmt.Errorf("selection: alloc owner window: %w", err)
	}
	screen := conn.Screen()
	err = xproto.CreateWindowChecked(
		conn.X(), 0, xid, screen.Root,
		-1, -1, 1, 1, 0,
		xproto.WindowClassInputOnly, screen.RootVisual,
		0, nil,
	).Check()
	if err != nil {
		return nil, fmt.Errorf("selection: create owner window: %w", err)
	}

	ts, err := currentServerTime(conn, xid)
	if err != nil {
		xproto.DestroyWindow(conn.X(), xid)
		return nil, fmt.Errorf("selection: sample server time: %w", err)
	}

	err = xproto.SetSelectionOwnerChecked(conn.X(), xid, atom, ts).Check()
	if err != nil {
		xproto.DestroyWindow(conn.X(), xid)
		return nil, fmt.Errorf("selection: set owner: %w", err)
	}

	verify, err := xproto.GetSelectionOwner(conn.X(), atom).Reply()
	if err != nil || verify.Owner != xid {
		xproto.DestroyWindow(conn.X(), xid)
		return nil, fmt.Errorf("selection: ownership not confirmed for %s", name)
	}

	o := &Owner{conn: conn, name: name, atom: atom, window: xid, timestamp: ts, onLost: onLost}
	if err := o.announce(); err != nil {
		xproto.DestroyWindow(conn.X(), xid)
		return nil, err
	}
	return o, nil
}

// currentServerTime samples the server clock by changing a property on
// win and reading back the resulting PropertyNotify timestamp. This is
// the standard ICCCM idiom for obtaining a real (non-CurrentTime)
// timestamp without an existing event to borrow one from.
func currentServerTime(conn *xconn.Conn, win xproto.Window) (xproto.Timestamp, error) {
	err := xproto.ChangeWindowAttributesChecked(conn.X(), win, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		return 0, err
	}
	atomReply, err := xproto.InternAtom(conn.X(), false,
		uint16(len("WM_CLASS")), "WM_CLASS").Reply()
	if err != nil {
		return 0, err
	}
	err = xproto.ChangePropertyChecked(conn.X(), xproto.PropModeAppend, win,
		atomReply.Atom, xproto.AtomString, 8, 0, nil).Check()
	if err != nil {
		return 0, err
	}
	for {
		ev, err := conn.X().WaitForEvent()
		if err != nil {
			return 0, fmt.Errorf("selection: waiting for timestamp event: %v", err)
		}
		if pn, ok := ev.(xproto.PropertyNotifyEvent); ok && pn.Window == win {
			return pn.Time, nil
		}
	}
}

// announce broadcasts the MANAGER ClientMessage per spec.md §6: 32-bit
// format, data = (timestamp, atom, owner_window, 0, 0).
func (o *Owner) announce() error {
	managerAtom, err := xproto.InternAtom(o.conn.X(), false, uint16(len("MANAGER")), "MANAGER").Reply()
	if err != nil {
		return fmt.Errorf("selection: intern MANAGER: %w", err)
	}

	data := []uint32{uint32(o.timestamp), uint32(o.atom), uint32(o.window), 0, 0}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: o.conn.Root(),
		Type:   managerAtom.Atom,
		Data:   xproto.ClientMessageDataUnionData32New(data),
	}
	return xproto.SendEventChecked(o.conn.X(), false, o.conn.Root(),
		xproto.EventMaskStructureNotify, string(ev.Bytes())).Check()
}

// HandleSelectionClear surfaces loss of ownership to onLost exactly
// once and marks the Owner as no longer live. Safe to call on every
// SelectionClear the event pump observes; events for atoms/windows
// this Owner doesn't hold are ignored.
func (o *Owner) HandleSelectionClear(ev xproto.SelectionClearEvent) {
	if ev.Selection != o.atom || ev.Owner != o.window || o.onLost == nil {
		return
	}
	cb := o.onLost
	o.onLost = nil
	cb(o.name)
}

// Release clears ownership at the acquisition timestamp (never
// CurrentTime, so a stale release can't clobber a later legitimate
// owner) and destroys the owner window.
func (o *Owner) Release() error {
	verify, err := xproto.GetSelectionOwner(o.conn.X(), o.atom).Reply()
	if err == nil && verify.Owner == o.window {
		_ = xproto.SetSelectionOwnerChecked(o.conn.X(), 0, o.atom, o.timestamp).Check()
	}
	return xproto.DestroyWindowChecked(o.conn.X(), o.window).Check()
}
