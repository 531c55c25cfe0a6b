package selection

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
)

func TestHandleSelectionClearIgnoresForeignSelection(t *testing.T) {
	var fired int
	o := &Owner{
		name:   "_NET_SYSTEM_TRAY_S0",
		atom:   xproto.Atom(42),
		window: xproto.Window(7),
		onLost: func(name string) { fired++ },
	}

	o.HandleSelectionClear(xproto.SelectionClearEvent{Selection: xproto.Atom(99), Owner: 7})
	assert.Equal(t, 0, fired, "an event for a different atom must not fire onLost")

	o.HandleSelectionClear(xproto.SelectionClearEvent{Selection: xproto.Atom(42), Owner: 123})
	assert.Equal(t, 0, fired, "an event for a different owner window must not fire onLost")
}

func TestHandleSelectionClearFiresExactlyOnce(t *testing.T) {
	var fired int
	o := &Owner{
		name:   "_NET_SYSTEM_TRAY_S0",
		atom:   xproto.Atom(42),
		window: xproto.Window(7),
		onLost: func(name string) { fired++ },
	}

	ev := xproto.SelectionClearEvent{Selection: xproto.Atom(42), Owner: 7}
	o.HandleSelectionClear(ev)
	o.HandleSelectionClear(ev)
	assert.Equal(t, 1, fired, "losing ownership surfaces to the callback exactly once")
}

func TestNameAndWindowAccessors(t *testing.T) {
	o := &Owner{name: "_NET_SYSTEM_TRAY_S0", window: xproto.Window(7)}
	assert.Equal(t, "_NET_SYSTEM_TRAY_S0", o.Name())
	assert.Equal(t, xproto.Window(7), o.Window())
}
