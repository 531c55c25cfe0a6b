// Package xext probes the X server for the extensions the core cares
// about and builds the explicit event-remap table spec.md §9 asks for,
// replacing the original's "ev->type == base + code" arithmetic.
package xext

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/shape"
	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
)

// Kind names an extension this module cares about.
type Kind int

const (
	Shape Kind = iota
	RandR
	Xinerama
	Damage
	ScreenSaver
	XInput2
)

// Info records an extension's presence and, if present, its major
// opcode and first event/error bases.
type Info struct {
	Present    bool
	MajorOpcode byte
	FirstEvent  byte
	FirstError  byte
}

// RemapID is the internal, backend-agnostic event id the event pump
// dispatches on, independent of which extension base produced it
// (spec.md §4.C8 "remaps extension events into a unified space").
type RemapID int

const (
	RemapNone RemapID = iota
	RemapShapeNotify
	RemapDamageNotify
	RemapRandRNotify
	RemapScreenSaverNotify
	RemapXInputNotify
)

// Probe holds the result of querying every extension this module uses.
type Probe struct {
	info  map[Kind]Info
	remap map[byte]RemapID // event type -> internal id, built from FirstEvent
}

// Query probes all known extensions on conn. It never fails outright —
// a missing extension simply has Present == false, callers (e.g. the
// screen module choosing RandR vs Xinerama vs manual split) branch on
// that.
func Query(conn *xgb.Conn) *Probe {
	p := &Probe{
		info:  make(map[Kind]Info, 6),
		remap: make(map[byte]RemapID, 6),
	}

	p.probeShape(conn)
	p.probeRandR(conn)
	p.probeXinerama(conn)
	p.probeDamage(conn)
	p.probeScreenSaver(conn)
	p.probeXInput2(conn)

	return p
}

func (p *Probe) probeShape(conn *xgb.Conn) {
	if err := shape.Init(conn); err != nil {
		p.info[Shape] = Info{}
		return
	}
	reply, err := xproto.QueryExtension(conn, uint16(len("SHAPE")), "SHAPE").Reply()
	if err != nil || reply == nil || !reply.Present {
		p.info[Shape] = Info{}
		return
	}
	info := Info{Present: true, MajorOpcode: reply.MajorOpcode, FirstEvent: reply.FirstEvent, FirstError: reply.FirstError}
	p.info[Shape] = info
	p.remap[info.FirstEvent] = RemapShapeNotify
}

func (p *Probe) probeRandR(conn *xgb.Conn) {
	if err := randr.Init(conn); err != nil {
		p.info[RandR] = Info{}
		return
	}
	reply, err := xproto.QueryExtension(conn, uint16(len("RANDR")), "RANDR").Reply()
	if err != nil || reply == nil || !reply.Present {
		p.info[RandR] = Info{}
		return
	}
	info := Info{Present: true, MajorOpcode: reply.MajorOpcode, FirstEvent: reply.FirstEvent, FirstError: reply.FirstError}
	p.info[RandR] = info
	p.remap[info.FirstEvent] = RemapRandRNotify
}

func (p *Probe) probeXinerama(conn *xgb.Conn) {
	if err := xinerama.Init(conn); err != nil {
		p.info[Xinerama] = Info{}
		return
	}
	reply, err := xproto.QueryExtension(conn, uint16(len("XINERAMA")), "XINERAMA").Reply()
	if err != nil || reply == nil || !reply.Present {
		p.info[Xinerama] = Info{}
		return
	}
	p.info[Xinerama] = Info{Present: true, MajorOpcode: reply.MajorOpcode, FirstEvent: reply.FirstEvent, FirstError: reply.FirstError}
}

func (p *Probe) probeDamage(conn *xgb.Conn) {
	if err := damage.Init(conn); err != nil {
		p.info[Damage] = Info{}
		return
	}
	reply, err := xproto.QueryExtension(conn, uint16(len("DAMAGE")), "DAMAGE").Reply()
	if err != nil || reply == nil || !reply.Present {
		p.info[Damage] = Info{}
		return
	}
	info := Info{Present: true, MajorOpcode: reply.MajorOpcode, FirstEvent: reply.FirstEvent, FirstError: reply.FirstError}
	p.info[Damage] = info
	p.remap[info.FirstEvent] = RemapDamageNotify
}

func (p *Probe) probeScreenSaver(conn *xgb.Conn) {
	if err := screensaver.Init(conn); err != nil {
		p.info[ScreenSaver] = Info{}
		return
	}
	reply, err := xproto.QueryExtension(conn, uint16(len("MIT-SCREEN-SAVER")), "MIT-SCREEN-SAVER").Reply()
	if err != nil || reply == nil || !reply.Present {
		p.info[ScreenSaver] = Info{}
		return
	}
	info := Info{Present: true, MajorOpcode: reply.MajorOpcode, FirstEvent: reply.FirstEvent, FirstError: reply.FirstError}
	p.info[ScreenSaver] = info
	p.remap[info.FirstEvent] = RemapScreenSaverNotify
}

func (p *Probe) probeXInput2(conn *xgb.Conn) {
	reply, err := xproto.QueryExtension(conn, uint16(len("XInputExtension")), "XInputExtension").Reply()
	if err != nil || reply == nil || !reply.Present {
		p.info[XInput2] = Info{}
		return
	}
	info := Info{Present: true, MajorOpcode: reply.MajorOpcode, FirstEvent: reply.FirstEvent, FirstError: reply.FirstError}
	p.info[XInput2] = info
	p.remap[info.FirstEvent] = RemapXInputNotify
}

// Has reports whether the given extension was found on the server.
func (p *Probe) Has(k Kind) bool { return p.info[k].Present }

// Get returns the full Info for an extension.
func (p *Probe) Get(k Kind) Info { return p.info[k] }

// Remap returns the internal event id for a raw X event type, or
// RemapNone if the type isn't a known extension's first notify event.
func (p *Probe) Remap(eventType byte) RemapID {
	if id, ok := p.remap[eventType]; ok {
		return id
	}
	return RemapNone
}
