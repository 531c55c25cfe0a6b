// Package initwin manages the subordinate "init window" child process
// spec.md §6 describes: a forked helper that keeps a splash window
// visible during the core's restart critical sections, discovered by
// other processes via a well-known root atom. Adapted from the
// teacher's capability.go/rlimit.go, which raise a target pid's
// RLIMIT_RTTIME so a latency-sensitive helper isn't scheduled out —
// here applied to the splash child instead of the audio server.
package initwin

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/jezek/xgb/xproto"

	"github.com/burzumishi/e16go/internal/hints"
)

const presenceAtom = "_E16GO_INIT_WINDOW_PID"

// rtTimeLimitUs is the RLIMIT_RTTIME ceiling (microseconds of
// uninterrupted real-time execution before the kernel kills the
// process), mirroring the teacher's rlimitRTTime use for pulseaudio.
const rtTimeLimitUs = 1_000_000

// Handle tracks one spawned init-window child.
type Handle struct {
	cmd *exec.Cmd
	pid int
}

// Spawn forks path (the init-window binary) and publishes its pid on
// the root window via the well-known presence atom so other core
// processes can discover a splash is already active (spec.md §6).
func Spawn(h *hints.Engine, root xproto.Window, path string, args ...string) (*Handle, error) {
	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("initwin: spawn %s: %w", path, err)
	}

	if err := raiseRTTimeLimit(cmd.Process.Pid, rtTimeLimitUs); err != nil {
		// Best-effort: a missing CAP_SYS_RESOURCE must not prevent the
		// splash from running, only its real-time protection.
		fmt.Fprintf(os.Stderr, "initwin: could not raise RLIMIT_RTTIME for pid %d: %v\n", cmd.Process.Pid, err)
	}

	if err := h.SetCard32(root, presenceAtom, uint32(cmd.Process.Pid)); err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("initwin: publish presence atom: %w", err)
	}

	return &Handle{cmd: cmd, pid: cmd.Process.Pid}, nil
}

// Discover reads the presence atom to find an already-running
// init-window child left by a prior core instance (e.g. across a
// restart), returning ok=false if none is published.
func Discover(h *hints.Engine, root xproto.Window) (pid int, ok bool) {
	v, ok := h.GetCard32(root, presenceAtom)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// Stop signals the child to exit and clears the presence atom.
func (hd *Handle) Stop(h *hints.Engine, root xproto.Window) error {
	if hd.cmd.Process != nil {
		_ = hd.cmd.Process.Signal(syscall.SIGTERM)
	}
	_ = hd.cmd.Wait()
	return h.SetCard32(root, presenceAtom, 0)
}

// PID returns the child's process id.
func (hd *Handle) PID() int { return hd.pid }
