// Package systray implements a _NET_SYSTEM_TRAY docking area (spec.md
// §4.C16): reparenting REQUEST_DOCK clients into an icon container,
// XEmbed handshake, mapped-flag tracking, and selection-loss hiding.
package systray

import (
	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/win"
)

// Opcode values carried in a _NET_SYSTEM_TRAY_OPCODE ClientMessage.
const (
	OpcodeRequestDock      = 0
	OpcodeBeginMessage     = 1
	OpcodeCancelMessage    = 2
)

// XEmbed message opcodes (data.l[1] of the _XEMBED ClientMessage).
const (
	XEmbedEmbeddedNotify = 0
)

const xembedMappedFlag = 1

// Info is the decoded _XEMBED_INFO CARD32 pair.
type Info struct {
	ProtocolVersion uint32
	Mapped          bool
}

// defaultInfo is used when a docking client asserts no _XEMBED_INFO at
// all: proceed anyway with protocol version 0 and mapped=true (spec.md
// §4.C16).
func defaultInfo() Info { return Info{ProtocolVersion: 0, Mapped: true} }

// Client wraps one docked window.
type Client struct {
	EWin   win.WinId
	Window xproto.Window
	Icon   win.WinId // not filled by RequestDock; the reparent target is the Container's icon window
	Info   Info
}

// PropertyReader abstracts the typed _XEMBED_INFO read so this package
// stays independent of the chosen property-access layer.
type PropertyReader interface {
	GetXEmbedInfo(w xproto.Window) (protocolVersion uint32, flags uint32, ok bool)
}

// Backend performs the server-side effects a dock operation requires.
type Backend interface {
	Reparent(child, newParent xproto.Window, x, y int16) error
	AddToSaveSet(child xproto.Window) error
	SelectStructureAndPropertyEvents(child xproto.Window) error
	SendXEmbedEvent(target xproto.Window, opcode uint32, detail, data1, data2 uint32, timestamp xproto.Timestamp) error
	MapWindow(w xproto.Window) error
	UnmapWindow(w xproto.Window) error
}

// Container holds every docked client in mapping order.
type Container struct {
	icon    xproto.Window
	backend Backend
	props   PropertyReader
	clients []*Client
	byWin   map[xproto.Window]*Client
}

// New builds an empty Container whose icon window is the reparenting
// target for docked clients.
func New(icon xproto.Window, backend Backend, props PropertyReader) *Container {
	return &Container{icon: icon, backend: backend, props: props, byWin: make(map[xproto.Window]*Client)}
}

// Clients returns the docked clients in mapping order.
func (c *Container) Clients() []*Client {
	out := make([]*Client, len(c.clients))
	copy(out, c.clients)
	return out
}

// RequestDock handles a _NET_SYSTEM_TRAY_OPCODE REQUEST_DOCK message:
// reads _XEMBED_INFO (falling back to version 0/mapped if absent),
// reparents into the container, adds to the save-set, selects
// structure+property events and sends XEMBED_EMBEDDED_NOTIFY.
func (c *Container) RequestDock(ewin win.WinId, child xproto.Window, timestamp xproto.Timestamp) (*Client, error) {
	if existing, ok := c.byWin[child]; ok {
		return existing, nil
	}

	info := defaultInfo()
	if c.props != nil {
		if ver, flags, ok := c.props.GetXEmbedInfo(child); ok {
			info = Info{ProtocolVersion: ver, Mapped: flags&xembedMappedFlag != 0}
		}
	}

	if err := c.backend.Reparent(child, c.icon, 0, 0); err != nil {
		return nil, err
	}
	if err := c.backend.AddToSaveSet(child); err != nil {
		return nil, err
	}
	if err := c.backend.SelectStructureAndPropertyEvents(child); err != nil {
		return nil, err
	}
	if err := c.backend.SendXEmbedEvent(child, XEmbedEmbeddedNotify, 0, uint32(c.icon), info.ProtocolVersion, timestamp); err != nil {
		return nil, err
	}

	cl := &Client{EWin: ewin, Window: child, Info: info}
	if info.Mapped {
		_ = c.backend.MapWindow(child)
	}
	c.clients = append(c.clients, cl)
	c.byWin[child] = cl
	return cl, nil
}

// SetMapped applies a changed _XEMBED_INFO MAPPED bit to the client's
// local visibility.
func (c *Container) SetMapped(child xproto.Window, mapped bool) {
	cl, ok := c.byWin[child]
	if !ok || cl.Info.Mapped == mapped {
		return
	}
	cl.Info.Mapped = mapped
	if mapped {
		_ = c.backend.MapWindow(child)
	} else {
		_ = c.backend.UnmapWindow(child)
	}
}

// Drop removes a client on destroy or reparent-away, without touching
// the server (the window is already gone from this container's care).
func (c *Container) Drop(child xproto.Window) {
	cl, ok := c.byWin[child]
	if !ok {
		return
	}
	delete(c.byWin, child)
	for i, e := range c.clients {
		if e == cl {
			c.clients = append(c.clients[:i], c.clients[i+1:]...)
			break
		}
	}
}

// HideAll implements "on SelectionClear the whole systray hides"
// (spec.md §4.C16): unmaps every docked client without dropping them.
// Nothing in this package maps them again afterwards.
func (c *Container) HideAll() {
	for _, cl := range c.clients {
		_ = c.backend.UnmapWindow(cl.Window)
	}
}
