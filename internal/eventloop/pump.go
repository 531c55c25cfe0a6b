// Package eventloop implements the core control loop from spec.md
// §4.C8: drain pending X events, compress them, dispatch to window
// callbacks, service timers and idlers, then block until there is more
// work to do. Grounded on noisetorch's single binary's simple polling
// loops for overall shape, generalized to xgb's channel-based event
// delivery since jezek/xgb exposes no raw fd to select(2) on.
package eventloop

import (
	"log"
	"reflect"
	"time"

	"github.com/jezek/xgb"

	"github.com/burzumishi/e16go/internal/timerq"
	"github.com/burzumishi/e16go/internal/win"
	"github.com/burzumishi/e16go/internal/xconn"
	"github.com/burzumishi/e16go/internal/xerr"
	"github.com/burzumishi/e16go/internal/xext"
)

// RenderHook is invoked once per pump iteration after timers and
// idlers have run. It returns the number of milliseconds until its
// next desired wake, or a negative number if it has no preference.
type RenderHook interface {
	Render() (nextWakeMs int64)
}

// AuxSource is an auxiliary readiness channel the pump multiplexes
// alongside the X connection, modeling the original's auxiliary fds
// (IPC sockets, audio) since xgb has no fd for select(2) (spec.md §5).
type AuxSource struct {
	Name  string
	Ready <-chan struct{}
	OnFire func()
}

// Pump drains, compresses, and dispatches X events, and services the
// timer queue in between.
type Pump struct {
	conn    *xconn.Conn
	probe   *xext.Probe
	reg     *win.Registry
	timers  *timerq.Queue
	render  RenderHook
	aux     []AuxSource
	clock   func() int64

	events  chan eventOrError
	closing chan struct{}
}

type eventOrError struct {
	ev  xgb.Event
	err xgb.Error
}

// New constructs a Pump. clockMs must return the current time in
// milliseconds on a monotonic basis; render may be nil.
func New(conn *xconn.Conn, probe *xext.Probe, reg *win.Registry, timers *timerq.Queue, render RenderHook, clockMs func() int64) *Pump {
	return &Pump{
		conn:    conn,
		probe:   probe,
		reg:     reg,
		timers:  timers,
		render:  render,
		clock:   clockMs,
		events:  make(chan eventOrError, 256),
		closing: make(chan struct{}),
	}
}

// AddAux registers an auxiliary readiness source to multiplex alongside
// the X connection's event channel.
func (p *Pump) AddAux(src AuxSource) { p.aux = append(p.aux, src) }

// Start launches the background reader goroutine that feeds p.events
// from the X connection. It must be called once before RunOnce.
func (p *Pump) Start() {
	go func() {
		for {
			ev, err := p.conn.X().WaitForEvent()
			select {
			case p.events <- eventOrError{ev: ev, err: err}:
			case <-p.closing:
				return
			}
			if ev == nil && err == nil {
				return // connection closed
			}
		}
	}()
}

// Stop terminates the background reader goroutine.
func (p *Pump) Stop() { close(p.closing) }

// RunOnce executes exactly one pump iteration: drain, compress,
// dispatch, service timers/idlers, render. With block false it returns
// right after rendering; with block true it first waits for at least
// one event and, after rendering, waits until the next timer, render
// wake or auxiliary source is due. It returns the buffer of entries
// dispatched this iteration, for tests and diagnostics.
func (p *Pump) RunOnce(block bool) []Entry {
	buf := p.drain(block)
	Compress(buf)

	now := p.clock()
	for _, e := range buf {
		if e.Zeroed() {
			continue
		}
		p.dispatchOne(e)
		p.timers.Advance()
	}

	p.timers.RunExpired(now)
	p.timers.RunIdlers()

	var renderWakeMs int64 = -1
	if p.render != nil {
		renderWakeMs = p.render.Render()
	}

	if !block {
		return buf
	}

	timeout := p.nextTimeout(now, renderWakeMs)
	p.waitFor(timeout)
	return buf
}

// drain fetches every currently pending event without blocking, unless
// block is true and nothing is yet available, in which case it waits
// for the first one.
func (p *Pump) drain(block bool) []Entry {
	var buf []Entry

	first := true
	for {
		var item eventOrError
		if first && block {
			item = <-p.events
			first = false
		} else {
			select {
			case item = <-p.events:
			default:
				return buf
			}
		}
		if item.ev == nil && item.err == nil {
			// connection closed
			p.conn.HandleFatal(xerr.New(xerr.FatalIO, "eventloop.drain", nil))
			return buf
		}
		if item.err != nil {
			p.conn.HandleError(item.err)
			continue
		}
		buf = append(buf, Classify(decode(item.ev), p.probe))
	}
}

// decode unwraps xgb's generic Event interface into the concrete
// struct types Classify switches on. jezek/xgb already returns
// concrete structs (e.g. xproto.MotionNotifyEvent) from WaitForEvent,
// so this is an identity pass kept as a seam for XI2 cookie decoding
// (spec.md §4.C8), not yet implemented.
func decode(ev xgb.Event) any { return ev }

func (p *Pump) dispatchOne(e Entry) {
	if e.Window == 0 {
		return
	}
	id, ok := p.reg.Lookup(e.Window)
	if !ok {
		return
	}
	p.reg.CallbacksProcess(id, e.Raw)
}

func (p *Pump) nextTimeout(now, renderWakeMs int64) time.Duration {
	best := int64(-1)
	if next, ok := p.timers.NextExpiry(); ok {
		d := next - now
		if d < 0 {
			d = 0
		}
		best = d
	}
	if renderWakeMs >= 0 && (best < 0 || renderWakeMs < best) {
		best = renderWakeMs
	}
	if best < 0 {
		return -1 // block indefinitely for the next event
	}
	return time.Duration(best) * time.Millisecond
}

// waitFor blocks until either an event arrives, an aux source fires, or
// timeout elapses (a negative timeout blocks forever). A woken aux
// source's OnFire is invoked inline, matching the single-threaded
// cooperative model (spec.md §5): no other goroutine runs concurrent
// application logic while it fires. This is the select() substitute
// spec.md §5 calls for: jezek/xgb exposes no raw fd, so the connection
// is represented by p.events and every other wakeup source by a plain
// channel, merged dynamically with reflect.Select.
func (p *Pump) waitFor(timeout time.Duration) {
	branches := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(p.events)},
	}
	for i := range p.aux {
		branches = append(branches, reflect.SelectCase{
			Dir: reflect.SelectRecv, Chan: reflect.ValueOf(p.aux[i].Ready),
		})
	}
	if timeout >= 0 {
		branches = append(branches, reflect.SelectCase{
			Dir: reflect.SelectRecv, Chan: reflect.ValueOf(time.After(timeout)),
		})
	}

	chosen, recv, _ := reflect.Select(branches)
	switch {
	case chosen == 0:
		// An event arrived; requeue it since channels don't support
		// un-receive, so the next RunOnce's drain picks it up.
		item, _ := recv.Interface().(eventOrError)
		p.requeue(item)
	case chosen-1 < len(p.aux):
		aux := p.aux[chosen-1]
		if aux.OnFire != nil {
			aux.OnFire()
		}
	default:
		// timeout branch: nothing to do, loop back to RunOnce.
	}
}

func (p *Pump) requeue(item eventOrError) {
	select {
	case p.events <- item:
	default:
		log.Printf("eventloop: requeue buffer full, dropping event")
	}
}
