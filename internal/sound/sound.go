// Package sound implements anim.SoundPlayer on top of a PulseAudio
// connection, grounded on the teacher's own use of
// github.com/lawl/pulseaudio for server/volume control (cli.go,
// main.go). That client speaks the native protocol for volume and
// module control only — it exposes no sample-upload/play call — so
// actual playback is delegated to paplay, the PulseAudio project's own
// CLI player, while this package still opens a lawl/pulseaudio Client
// to confirm a server is reachable before spawning anything and to
// skip playback cleanly when the session is muted.
package sound

import (
	"os/exec"
	"sync"

	"github.com/lawl/pulseaudio"
)

// Player implements anim.SoundPlayer.
type Player struct {
	mu      sync.Mutex
	client  *pulseaudio.Client
	sounds  map[string]string // id -> wav path
	playCmd string
}

// Option configures New.
type Option func(*Player)

// WithPlayCommand overrides the player binary (default "paplay").
func WithPlayCommand(cmd string) Option {
	return func(p *Player) { p.playCmd = cmd }
}

// New connects to the default PulseAudio server and returns a Player
// wired to the given id->wav-path table. A nil client is tolerated —
// Play becomes a silent no-op — so a core without a reachable audio
// server still runs (spec.md §7: never fatal to the core).
func New(sounds map[string]string, opts ...Option) *Player {
	client, _ := pulseaudio.NewClient()
	p := &Player{client: client, sounds: sounds, playCmd: "paplay"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close releases the underlying PulseAudio connection.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
	}
}

// Muted reports whether the default sink is currently muted, in which
// case Play is skipped rather than queued.
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return false
	}
	muted, err := p.client.Mute()
	if err != nil {
		return false
	}
	return muted
}

// Play looks up id in the configured sound table and plays it
// asynchronously. Unknown ids, a nil/unreachable server, or a muted
// sink are all silent no-ops — sound is cosmetic, never load-bearing.
func (p *Player) Play(id string) {
	if p.client == nil || p.Muted() {
		return
	}
	path, ok := p.sounds[id]
	if !ok {
		return
	}
	cmd := exec.Command(p.playCmd, path)
	_ = cmd.Start()
	go func() { _ = cmd.Wait() }()
}
