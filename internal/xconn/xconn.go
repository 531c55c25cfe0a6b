// Package xconn owns the X11 connection: opening and closing the
// display, the server-grab depth counter, flush/sync, and the error
// handlers from spec.md §4.C3. It wraps github.com/jezek/xgb the way
// github.com/BurntSushi/xgbutil does (the teacher's fixWindowClass opens
// its connection the same way, via xgbutil.NewConn atop an *xgb.Conn).
package xconn

import (
	"log"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/xerr"
)

// ErrorHandler is invoked for every non-fatal protocol error the server
// sends back (BadMatch, BadValue, ...). It never blocks the loop.
type ErrorHandler func(err xgb.Error)

// FatalHandler is invoked exactly once when the connection to the X
// server is lost. No further server traffic is attempted afterward.
type FatalHandler func(cause error)

// Conn wraps an open X11 display connection.
type Conn struct {
	mu sync.Mutex

	conn   *xgb.Conn
	setup  *xproto.SetupInfo
	screen *xproto.ScreenInfo

	grabDepth int

	lastErrorCode byte
	logErrors     bool
	onError       ErrorHandler
	onFatal       FatalHandler

	// noSyncMask: sync(mask) is a no-op when mask&noSyncMask != 0 (debug
	// builds use this to exercise races deliberately, spec.md §4.C3).
	noSyncMask uint32
}

// Option configures Open.
type Option func(*Conn)

// WithNoSyncMask sets the debug mask consulted by Sync.
func WithNoSyncMask(mask uint32) Option {
	return func(c *Conn) { c.noSyncMask = mask }
}

// WithErrorHandler installs the non-fatal error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Conn) { c.onError = h }
}

// WithFatalHandler installs the fatal-IO handler.
func WithFatalHandler(h FatalHandler) Option {
	return func(c *Conn) { c.onFatal = h }
}

// WithLogErrors turns on best-effort logging of every protocol error.
func WithLogErrors(v bool) Option {
	return func(c *Conn) { c.logErrors = v }
}

// Open connects to displayName (empty uses $DISPLAY), optionally
// overriding the preferred screen index (< 0 keeps the server default).
func Open(displayName string, screenOverride int, opts ...Option) (*Conn, error) {
	xc, err := xgb.NewConnDisplay(displayName)
	if err != nil {
		return nil, xerr.New(xerr.FatalIO, "xconn.Open", err)
	}

	setup := xproto.Setup(xc)
	if setup == nil || len(setup.Roots) == 0 {
		xc.Close()
		return nil, xerr.New(xerr.FatalIO, "xconn.Open", nil)
	}

	idx := 0
	if screenOverride >= 0 && screenOverride < len(setup.Roots) {
		idx = screenOverride
	}

	c := &Conn{
		conn:   xc,
		setup:  setup,
		screen: &setup.Roots[idx],
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// X returns the underlying xgb connection for packages that need to
// issue raw protocol requests.
func (c *Conn) X() *xgb.Conn { return c.conn }

// Setup returns the connection setup info.
func (c *Conn) Setup() *xproto.SetupInfo { return c.setup }

// Screen returns the active screen.
func (c *Conn) Screen() *xproto.ScreenInfo { return c.screen }

// Root returns the root window of the active screen.
func (c *Conn) Root() xproto.Window { return c.screen.Root }

// Close issues XCloseDisplay equivalent (closes the underlying socket).
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Disconnect is for forked children (spec.md §6 "init window child
// process"). It does exactly what Close does: it closes the underlying
// connection, with no separate lighter-weight path.
func (c *Conn) Disconnect() {
	c.Close()
}

// GrabServer increments the grab depth; only the first call reaches the
// server (spec.md P6).
func (c *Conn) GrabServer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grabDepth == 0 {
		if err := xproto.GrabServerChecked(c.conn).Check(); err != nil {
			return xerr.New(xerr.Protocol, "xconn.GrabServer", err)
		}
	}
	c.grabDepth++
	return nil
}

// UngrabServer decrements the grab depth; only the last call reaches the
// server.
func (c *Conn) UngrabServer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grabDepth == 0 {
		return nil
	}
	c.grabDepth--
	if c.grabDepth == 0 {
		if err := xproto.UngrabServerChecked(c.conn).Check(); err != nil {
			return xerr.New(xerr.Protocol, "xconn.UngrabServer", err)
		}
	}
	return nil
}

// GrabDepth returns the current outstanding grab depth, so callers can
// check P6 (grab/ungrab balance).
func (c *Conn) GrabDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grabDepth
}

// Flush sends all buffered requests without waiting for a reply.
func (c *Conn) Flush() {
	// jezek/xgb writes requests synchronously on the wire; there is no
	// separate flush buffer, so this is a documented no-op kept for
	// symmetry with the Xlib-shaped API spec.md describes.
}

// Sync performs a round trip, forcing every previously issued request to
// be processed by the server, unless mask intersects the configured
// no-sync debug mask (spec.md §4.C3).
func (c *Conn) Sync(mask uint32) error {
	if mask&c.noSyncMask != 0 {
		return nil
	}
	_, err := xproto.GetInputFocus(c.conn).Reply()
	if err != nil {
		return xerr.New(xerr.Protocol, "xconn.Sync", err)
	}
	return nil
}

// HandleError routes a protocol error from the event pump to the
// installed non-fatal handler, recording its code.
func (c *Conn) HandleError(err xgb.Error) {
	c.mu.Lock()
	c.lastErrorCode = errorCode(err)
	handler := c.onError
	logIt := c.logErrors
	c.mu.Unlock()

	if logIt {
		log.Printf("xconn: X protocol error: %v", err)
	}
	if handler != nil {
		handler(err)
	}
}

// HandleFatal routes a connection-lost condition to the installed fatal
// handler and clears the connection so no further traffic is attempted.
func (c *Conn) HandleFatal(cause error) {
	c.mu.Lock()
	handler := c.onFatal
	c.onFatal = nil // fire at most once
	c.conn = nil
	c.mu.Unlock()

	if handler != nil {
		handler(cause)
	}
}

// LastErrorCode returns the most recently recorded protocol error code.
func (c *Conn) LastErrorCode() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErrorCode
}

// errorCode extracts the wire error code via the xgb.Error interface's
// SequenceId/BadId are not uniform across error types, so we fall back
// to a generic code of 0 when the concrete type isn't recognised.
func errorCode(err xgb.Error) byte {
	switch e := err.(type) {
	case xproto.ValueError:
		return byte(xproto.ErrorCodeValue)
	case xproto.MatchError:
		_ = e
		return byte(xproto.ErrorCodeMatch)
	case xproto.WindowError:
		return byte(xproto.ErrorCodeWindow)
	case xproto.DrawableError:
		return byte(xproto.ErrorCodeDrawable)
	case xproto.AccessError:
		return byte(xproto.ErrorCodeAccess)
	default:
		return 0
	}
}
