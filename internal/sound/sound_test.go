package sound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlayWithNilClientIsNoop(t *testing.T) {
	p := &Player{client: nil, sounds: map[string]string{"start": "/tmp/start.wav"}}
	assert.NotPanics(t, func() { p.Play("start") })
}

func TestPlayWithUnknownIdIsNoop(t *testing.T) {
	p := &Player{client: nil, sounds: map[string]string{"start": "/tmp/start.wav"}}
	assert.NotPanics(t, func() { p.Play("does-not-exist") })
}

func TestMutedWithNilClientReportsFalse(t *testing.T) {
	p := &Player{client: nil}
	assert.False(t, p.Muted())
}
