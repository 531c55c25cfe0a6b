package eventloop

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burzumishi/e16go/internal/timerq"
	"github.com/burzumishi/e16go/internal/win"
)

func newTestPump(t *testing.T) (*Pump, *win.Registry) {
	t.Helper()
	reg := win.NewRegistry(nil)
	tq := timerq.New()
	p := New(nil, nil, reg, tq, nil, func() int64 { return 0 })
	return p, reg
}

func TestRunOnceDispatchesCompressedEventsToCallbacks(t *testing.T) {
	p, reg := newTestPump(t)

	xid := xproto.Window(100)
	id, err := reg.Register(xid, &xproto.GetGeometryReply{Width: 10, Height: 10})
	require.NoError(t, err)

	var gotCount int
	require.NoError(t, reg.CallbackRegister(id, func(_ *win.Win, _ any, _ any) {
		gotCount++
	}, nil))

	// Two motion events for the same window should compress to one
	// dispatched callback invocation (spec.md §8 scenario 2).
	p.events <- eventOrError{ev: xproto.MotionNotifyEvent{Event: xid, EventX: 1, EventY: 1}}
	p.events <- eventOrError{ev: xproto.MotionNotifyEvent{Event: xid, EventX: 2, EventY: 2}}

	buf := p.RunOnce(false)
	assert.Len(t, buf, 2)
	assert.Equal(t, 1, gotCount)
}

func TestRunOnceSkipsEventsForUnregisteredWindows(t *testing.T) {
	p, _ := newTestPump(t)
	p.events <- eventOrError{ev: xproto.MotionNotifyEvent{Event: 999, EventX: 1, EventY: 1}}

	assert.NotPanics(t, func() {
		p.RunOnce(false)
	})
}

func TestNextTimeoutPrefersEarlierOfTimerAndRender(t *testing.T) {
	p, _ := newTestPump(t)
	p.timers.Schedule(0, 50, func() int64 { return 0 })

	d := p.nextTimeout(0, 10)
	assert.Equal(t, int64(10), d.Milliseconds())

	d = p.nextTimeout(0, 200)
	assert.Equal(t, int64(50), d.Milliseconds())
}

func TestNextTimeoutIsNegativeWithNoPendingWork(t *testing.T) {
	p, _ := newTestPump(t)
	d := p.nextTimeout(0, -1)
	assert.Equal(t, int64(-1), int64(d))
}
