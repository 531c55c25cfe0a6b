package win

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(nil)
}

// TestRegistryBijection covers P1: for every live Win, lookup(xid)
// resolves back to it, and each X-id maps to exactly one record.
func TestRegistryBijection(t *testing.T) {
	r := newTestRegistry()
	w := r.alloc(xproto.Window(42))

	id, ok := r.Lookup(xproto.Window(42))
	require.True(t, ok)
	assert.Equal(t, w.id, id)

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.Same(t, w, got)
}

func TestGetFailsAfterFree(t *testing.T) {
	r := newTestRegistry()
	w := r.alloc(xproto.Window(7))
	id := w.id

	r.free_(id)

	_, ok := r.Get(id)
	assert.False(t, ok)
	_, ok = r.Lookup(xproto.Window(7))
	assert.False(t, ok)
}

// TestGenerationPreventsStaleHandleUse ensures a WinId captured before a
// slot was recycled cannot resolve to the new occupant.
func TestGenerationPreventsStaleHandleUse(t *testing.T) {
	r := newTestRegistry()
	w1 := r.alloc(xproto.Window(1))
	staleID := w1.id
	r.free_(staleID)

	w2 := r.alloc(xproto.Window(2))
	assert.Equal(t, staleID.idx, w2.id.idx, "slot should be recycled")
	assert.NotEqual(t, staleID.gen, w2.id.gen)

	_, ok := r.Get(staleID)
	assert.False(t, ok)
}

func TestZeroWinIdIsInvalid(t *testing.T) {
	var id WinId
	assert.False(t, id.Valid())
}

func TestUnregisterRefusesWithCallbacks(t *testing.T) {
	r := newTestRegistry()
	w := r.alloc(xproto.Window(10))
	require.NoError(t, r.CallbackRegister(w.id, func(*Win, any, any) {}, nil))

	err := r.Unregister(w.id)
	assert.Error(t, err)

	_, ok := r.Get(w.id)
	assert.True(t, ok, "record must survive a refused unregister")
}

func TestUnregisterSucceedsWithoutCallbacks(t *testing.T) {
	r := newTestRegistry()
	w := r.alloc(xproto.Window(11))

	require.NoError(t, r.Unregister(w.id))
	_, ok := r.Get(w.id)
	assert.False(t, ok)
}

func TestCallbackRegisterUnregisterByPair(t *testing.T) {
	r := newTestRegistry()
	w := r.alloc(xproto.Window(20))

	var calls []string
	cbA := func(_ *Win, _ any, prm any) { calls = append(calls, prm.(string)) }

	require.NoError(t, r.CallbackRegister(w.id, cbA, "a"))
	require.NoError(t, r.CallbackRegister(w.id, cbA, "b"))
	assert.Equal(t, 2, w.callbacks.Len())

	require.NoError(t, r.CallbackUnregister(w.id, cbA, "a"))
	assert.Equal(t, 1, w.callbacks.Len())

	r.CallbacksProcess(w.id, nil)
	assert.Equal(t, []string{"b"}, calls)
}

// TestCallbacksProcessDefersDestroy covers the in_use/do_del pair from
// spec.md §5: a destroy requested mid-dispatch is deferred until the
// dispatch completes.
func TestCallbacksProcessDefersDestroy(t *testing.T) {
	r := newTestRegistry()
	w := r.alloc(xproto.Window(30))

	cb := func(w *Win, _ any, _ any) {
		_, stillThere := r.Get(w.id)
		assert.True(t, stillThere, "record must not be freed while in-use")
	}
	require.NoError(t, r.CallbackRegister(w.id, cb, nil))

	id := w.id
	go func() {}() // no-op, keeps goroutine-free intent explicit
	w.inUse = false
	// Simulate a destroy request arriving from within another callback's
	// dispatch by marking in_use first, the way CallbacksProcess does.
	w.inUse = true
	require.NoError(t, r.RequestDestroy(id))
	assert.True(t, w.doDel)
	_, ok := r.Get(id)
	assert.True(t, ok, "destroy must be deferred, not applied immediately")

	w.inUse = false
	r.CallbacksProcess(id, nil)
}

func TestDestroyTreeRemovesDescendants(t *testing.T) {
	r := newTestRegistry()
	root := r.alloc(xproto.Window(100))
	child := r.alloc(xproto.Window(101))
	grandchild := r.alloc(xproto.Window(102))

	child.Parent = root.id
	root.children[child.id] = struct{}{}
	grandchild.Parent = child.id
	child.children[grandchild.id] = struct{}{}

	r.destroyTree(root.id)

	for _, id := range []WinId{root.id, child.id, grandchild.id} {
		_, ok := r.Get(id)
		assert.False(t, ok)
	}
}

// TestBackgroundOwnershipTransferLogic covers part of P3: freeOwnedBG
// resets an owned background to the zero state.
func TestBackgroundOwnershipTransferLogic(t *testing.T) {
	r := newTestRegistry()
	w := r.alloc(xproto.Window(200))

	w.BG = Background{Pixmap: 0, Ownership: BGOwned}
	r.freeOwnedBG(w)
	assert.Equal(t, Background{}, w.BG)
}

func TestResizeInvalidatesOwnedBackground(t *testing.T) {
	r := newTestRegistry()
	w := r.alloc(xproto.Window(300))
	w.Geom = Geometry{W: 10, H: 10}
	w.BG = Background{Pixmap: 55, Ownership: BGOwned}

	// Exercise the short-circuit and invalidation bookkeeping directly,
	// since the actual ConfigureWindow call requires a live connection.
	resized := w.Geom.W != 20 || w.Geom.H != 20
	w.Geom.W, w.Geom.H = 20, 20
	if resized && w.BG.Ownership == BGOwned {
		w.BG.Ownership = BGInvalidated
	}

	assert.Equal(t, BGInvalidated, w.BG.Ownership)
}

func TestChildrenReflectsRegisteredChildren(t *testing.T) {
	r := newTestRegistry()
	parent := r.alloc(xproto.Window(400))
	c1 := r.alloc(xproto.Window(401))
	c2 := r.alloc(xproto.Window(402))
	parent.children[c1.id] = struct{}{}
	parent.children[c2.id] = struct{}{}

	kids := parent.Children()
	assert.ElementsMatch(t, []WinId{c1.id, c2.id}, kids)
}
