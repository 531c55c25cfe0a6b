package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMillisMonotonic(t *testing.T) {
	a := Millis()
	Sleep(5)
	b := Millis()
	assert.GreaterOrEqual(t, b, a)
}

func TestMicrosMonotonic(t *testing.T) {
	a := Micros()
	b := Micros()
	assert.GreaterOrEqual(t, b, a)
}
