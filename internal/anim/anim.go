// Package anim implements the frame-accurate animation engine from
// spec.md §4.C10: a fixed-rate ticker advancing categorised animators
// with serialisation, skip-frame accounting, and sinusoidal easing.
package anim

import (
	"log"
	"math"

	"github.com/burzumishi/e16go/internal/clock"
	"github.com/burzumishi/e16go/internal/xlist"
)

// AnimFunc is called on every tick an animator is due to run. remaining
// ranges over [0,1024] for time-limited animators (a quarter-period sine
// ease of elapsed/duration) or holds milliseconds-since-last-tick for
// forever animators. Returning r >= 0 reschedules r frames from now;
// r < 0 self-cancels.
type AnimFunc func(eobj any, remaining float64, state any) int

// DoneFunc is called exactly once when an animator is cancelled or
// completes, whichever happens first.
type DoneFunc func(eobj any, state any)

// SoundPlayer plays the optional start/end sounds an animator may
// request. Sound loading itself is out of scope (spec.md §1); this is
// only the playback seam.
type SoundPlayer interface {
	Play(id string)
}

// Animator is a single scheduled, frame-advanced callback.
type Animator struct {
	Fn             AnimFunc
	Done           DoneFunc
	Category       int // negative: infinite/global; >=0: frame-scheduled
	DurationFrames int64 // negative: forever
	Serialise      bool
	StartSound     string
	EndSound       string
	EObj           any
	State          any

	cancelled      bool
	initialised    bool
	startFrame     int64
	endFrame       int64
	nextFrame      int64
	lastTickMs     int64
	startSoundDone bool

	engine *Engine
	node   *xlist.Node[*Animator]
	list   *xlist.List[*Animator]
}

// Cancel marks the animator for cleanup on the next tick (spec.md §5:
// "actual free happens the next tick").
func (a *Animator) Cancel() {
	a.cancelled = true
}

// NextFrame exposes the animator's last-scheduled frame number, used by
// tests to verify P4 (monotonicity).
func (a *Animator) NextFrame() int64 { return a.nextFrame }

// Engine drives every registered animator on a fixed fps grid.
type Engine struct {
	fps       int
	startMs   int64
	global    *xlist.List[*Animator]
	perObject map[any]*xlist.List[*Animator]
	objOrder  []any
	sound     SoundPlayer
}

// New creates an Engine ticking at fps frames per second (spec.md
// default 60). sound may be nil, in which case start/end sound ids are
// silently ignored.
func New(fps int, sound SoundPlayer) *Engine {
	if fps <= 0 {
		fps = 60
	}
	return &Engine{
		fps:       fps,
		startMs:   clock.Millis(),
		global:    xlist.New[*Animator](),
		perObject: make(map[any]*xlist.List[*Animator]),
		sound:     sound,
	}
}

// CurrentFrame returns the number of frames elapsed since the engine
// started, derived from the monotonic clock and the configured fps.
func (e *Engine) CurrentFrame() int64 {
	elapsed := clock.Millis() - e.startMs
	return elapsed * int64(e.fps) / 1000
}

// AddAnimator registers a new animator. durationMs < 0 means forever;
// it is converted to frames using the engine's fps.
func (e *Engine) AddAnimator(eobj any, category int, fn AnimFunc, durationMs int64, opts ...AnimatorOption) *Animator {
	a := &Animator{
		Fn:       fn,
		Category: category,
		engine:   e,
	}
	if durationMs < 0 {
		a.DurationFrames = -1
	} else {
		a.DurationFrames = durationMs * int64(e.fps) / 1000
		if a.DurationFrames < 1 {
			a.DurationFrames = 1
		}
	}
	a.EObj = eobj
	for _, o := range opts {
		o(a)
	}

	if category < 0 {
		a.node = e.global.PushBack(a)
		a.list = e.global
		return a
	}

	l, ok := e.perObject[eobj]
	if !ok {
		l = xlist.New[*Animator]()
		e.perObject[eobj] = l
		e.objOrder = append(e.objOrder, eobj)
	}
	a.node = l.PushBack(a)
	a.list = l
	return a
}

// AnimatorOption configures an Animator at creation time.
type AnimatorOption func(*Animator)

// WithDone sets the done callback.
func WithDone(fn DoneFunc) AnimatorOption { return func(a *Animator) { a.Done = fn } }

// WithSerialise marks the animator as refusing to start while another
// non-infinite animator is already pending (spec.md §3).
func WithSerialise() AnimatorOption { return func(a *Animator) { a.Serialise = true } }

// WithSounds sets the optional start/end sound ids.
func WithSounds(start, end string) AnimatorOption {
	return func(a *Animator) { a.StartSound, a.EndSound = start, end }
}

// WithState attaches arbitrary inline extra data.
func WithState(state any) AnimatorOption { return func(a *Animator) { a.State = state } }

// TickResult summarises one Tick call.
type TickResult struct {
	// NextWakeMs is the number of milliseconds to sleep before the next
	// tick is required to keep every live animator on schedule, or -1 if
	// there are no scheduled (category>=0) animators pending.
	NextWakeMs int64
}

// Tick advances every animator once. It must be called at least once
// per animation frame; calling it more often is harmless (animators
// whose next_frame is in the future simply defer again).
func (e *Engine) Tick() TickResult {
	frameNum := e.CurrentFrame()
	now := clock.Millis()

	anyNonInfiniteRan := false
	var minNextFrame int64 = -1

	run := func(l *xlist.List[*Animator]) {
		for n := l.Front(); n != nil; {
			next := n.Next()
			a := n.Value
			e.stepOne(a, frameNum, now, &anyNonInfiniteRan, &minNextFrame)
			n = next
		}
	}

	run(e.global)
	for _, key := range e.objOrder {
		if l, ok := e.perObject[key]; ok {
			run(l)
		}
	}
	e.pruneEmptyObjects()

	if minNextFrame < 0 {
		return TickResult{NextWakeMs: -1}
	}
	wake := (minNextFrame - frameNum - 1) * 1000 / int64(e.fps)
	if wake < 0 {
		wake = 0
	}
	return TickResult{NextWakeMs: wake}
}

func (e *Engine) stepOne(a *Animator, frameNum, now int64, anyNonInfiniteRan *bool, minNextFrame *int64) {
	if a.cancelled {
		e.finish(a)
		return
	}

	if !a.initialised {
		if a.Serialise && *anyNonInfiniteRan {
			if a.Category >= 0 {
				trackMin(minNextFrame, frameNum+1)
			}
			return
		}
		a.startFrame = frameNum + 1
		if a.DurationFrames >= 0 {
			a.endFrame = a.startFrame + a.DurationFrames - 1
		}
		a.nextFrame = a.startFrame
		a.lastTickMs = now
		a.initialised = true
	}

	if a.Category >= 0 && a.nextFrame > frameNum {
		trackMin(minNextFrame, a.nextFrame)
		return
	}

	if !a.startSoundDone {
		if a.StartSound != "" && e.sound != nil {
			e.sound.Play(a.StartSound)
		}
		a.startSoundDone = true
	}

	var remaining float64
	timeLimited := a.DurationFrames >= 0
	var elapsed int64
	if timeLimited {
		elapsed = frameNum - a.startFrame
		t := float64(elapsed) / float64(a.DurationFrames)
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		remaining = 1024 * (1 - math.Cos((math.Pi/2)*t))
	} else {
		remaining = float64(now - a.lastTickMs)
	}

	r := a.Fn(a.EObj, remaining, a.State)
	a.lastTickMs = now
	if timeLimited {
		*anyNonInfiniteRan = true
	}

	switch {
	case r < 0:
		a.cancelled = true
		e.finish(a)
	case r >= 0:
		a.nextFrame = frameNum + 1 + int64(r)
		if timeLimited && elapsed+1 >= a.DurationFrames {
			a.cancelled = true
			e.finish(a)
			return
		}
		if a.Category >= 0 {
			trackMin(minNextFrame, a.nextFrame)
		}
	}
}

func trackMin(min *int64, v int64) {
	if *min < 0 || v < *min {
		*min = v
	}
}

func (e *Engine) finish(a *Animator) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("anim: done callback panicked: %v", r)
			}
		}()
		if a.Done != nil {
			a.Done(a.EObj, a.State)
		}
	}()
	if a.EndSound != "" && e.sound != nil {
		e.sound.Play(a.EndSound)
	}
	if a.list != nil && a.node != nil {
		a.list.Remove(a.node)
	}
}

func (e *Engine) pruneEmptyObjects() {
	for key, l := range e.perObject {
		if l.Len() == 0 {
			delete(e.perObject, key)
			for i, k := range e.objOrder {
				if k == key {
					e.objOrder = append(e.objOrder[:i], e.objOrder[i+1:]...)
					break
				}
			}
		}
	}
}
