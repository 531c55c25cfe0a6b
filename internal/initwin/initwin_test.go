package initwin

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlePIDReflectsStartedProcess(t *testing.T) {
	h := &Handle{cmd: &exec.Cmd{}, pid: 4242}
	assert.Equal(t, 4242, h.PID())
}

func TestPresenceAtomNameIsStable(t *testing.T) {
	// Other processes rediscover a running init window by this exact
	// atom name; changing it silently would orphan old helpers.
	assert.Equal(t, "_E16GO_INIT_WINDOW_PID", presenceAtom)
}
