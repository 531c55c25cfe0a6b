// Package timerq implements the expiring timer heap and idle-callback
// list from spec.md §4.C9: timers fire in expiry order (ties in
// insertion order), idlers fire once per pump iteration iff the event
// sequence counter advanced since the last run.
package timerq

import "container/heap"

// TimerFunc is called when a timer expires. Returning a positive value
// reschedules the timer that many milliseconds from now (periodic);
// returning <= 0 makes it single-shot.
type TimerFunc func() (nextMs int64)

type timerEntry struct {
	expiry   int64
	seq      int64 // insertion order, used to break expiry ties
	fn       TimerFunc
	cancelled bool
	index    int // heap index, maintained by container/heap
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].expiry != h[j].expiry {
		return h[i].expiry < h[j].expiry
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Handle identifies a scheduled timer for cancellation.
type Handle struct{ entry *timerEntry }

// Idler is called once per event-loop iteration when the sequence
// counter has advanced since its last run.
type Idler func()

type idlerEntry struct {
	fn      Idler
	lastSeq int64
	ran     bool
}

// Queue holds pending timers and idlers for one event loop.
type Queue struct {
	h       timerHeap
	nextSeq int64
	idlers  []*idlerEntry
	seq     int64 // event sequence counter, bumped by Advance
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Schedule adds a timer firing delayMs from now.
func (q *Queue) Schedule(nowMs, delayMs int64, fn TimerFunc) Handle {
	e := &timerEntry{expiry: nowMs + delayMs, seq: q.nextSeq, fn: fn}
	q.nextSeq++
	heap.Push(&q.h, e)
	return Handle{entry: e}
}

// Cancel marks a timer cancelled. Idempotent, and safe to call from
// within the timer's own callback (spec.md §5).
func (h Handle) Cancel() {
	if h.entry != nil {
		h.entry.cancelled = true
	}
}

// NextExpiry returns the expiry time of the earliest live timer and
// true, or (0, false) if no timers are scheduled.
func (q *Queue) NextExpiry() (int64, bool) {
	for q.h.Len() > 0 && q.h[0].cancelled {
		heap.Pop(&q.h)
	}
	if q.h.Len() == 0 {
		return 0, false
	}
	return q.h[0].expiry, true
}

// RunExpired runs every timer whose expiry is <= now, in expiry order
// (ties in insertion order), rescheduling periodic ones.
func (q *Queue) RunExpired(now int64) {
	for q.h.Len() > 0 {
		top := q.h[0]
		if top.cancelled {
			heap.Pop(&q.h)
			continue
		}
		if top.expiry > now {
			break
		}
		heap.Pop(&q.h)
		next := top.fn()
		if next > 0 && !top.cancelled {
			top.expiry = now + next
			top.seq = q.nextSeq
			q.nextSeq++
			top.cancelled = false
			heap.Push(&q.h, top)
		}
	}
}

// AddIdler registers a callback to run once per pump iteration whenever
// the event sequence counter has advanced since its last run.
func (q *Queue) AddIdler(fn Idler) {
	q.idlers = append(q.idlers, &idlerEntry{fn: fn, lastSeq: -1})
}

// Advance bumps the event sequence counter; call once per event actually
// dispatched in a pump iteration.
func (q *Queue) Advance() { q.seq++ }

// Sequence returns the current event sequence counter.
func (q *Queue) Sequence() int64 { return q.seq }

// RunIdlers runs every idler whose lastSeq differs from the current
// sequence counter (spec.md §4.C9, §5).
func (q *Queue) RunIdlers() {
	for _, ie := range q.idlers {
		if ie.lastSeq == q.seq {
			continue
		}
		ie.lastSeq = q.seq
		ie.fn()
	}
}
