package timerq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExpiredOrdersByExpiryThenInsertion(t *testing.T) {
	q := New()
	var order []string
	q.Schedule(0, 10, func() int64 { order = append(order, "b"); return 0 })
	q.Schedule(0, 10, func() int64 { order = append(order, "a-first"); return 0 })
	q.Schedule(0, 5, func() int64 { order = append(order, "earliest"); return 0 })

	q.RunExpired(100)
	assert.Equal(t, []string{"earliest", "b", "a-first"}, order)
}

func TestRunExpiredSkipsFutureTimers(t *testing.T) {
	q := New()
	ran := false
	q.Schedule(0, 1000, func() int64 { ran = true; return 0 })
	q.RunExpired(5)
	assert.False(t, ran)

	next, ok := q.NextExpiry()
	require.True(t, ok)
	assert.Equal(t, int64(1000), next)
}

func TestPeriodicTimerReschedules(t *testing.T) {
	q := New()
	count := 0
	q.Schedule(0, 10, func() int64 {
		count++
		if count < 3 {
			return 10
		}
		return 0
	})

	q.RunExpired(10)
	assert.Equal(t, 1, count)
	next, ok := q.NextExpiry()
	require.True(t, ok)
	assert.Equal(t, int64(20), next)

	q.RunExpired(20)
	assert.Equal(t, 2, count)
	q.RunExpired(30)
	assert.Equal(t, 3, count)

	_, ok = q.NextExpiry()
	assert.False(t, ok)
}

func TestCancelIsIdempotentAndSelfCancellable(t *testing.T) {
	q := New()
	var h Handle
	h = q.Schedule(0, 10, func() int64 {
		h.Cancel()
		h.Cancel() // idempotent, even from within the callback
		return 50
	})
	q.RunExpired(10)
	_, ok := q.NextExpiry()
	assert.False(t, ok, "self-cancelled timer must not reschedule")
}

func TestIdlerRunsOnlyWhenSequenceAdvanced(t *testing.T) {
	q := New()
	runs := 0
	q.AddIdler(func() { runs++ })

	q.RunIdlers()
	assert.Equal(t, 1, runs, "first run always fires")

	q.RunIdlers()
	assert.Equal(t, 1, runs, "no new events, idler must not re-fire")

	q.Advance()
	q.RunIdlers()
	assert.Equal(t, 2, runs)
}
