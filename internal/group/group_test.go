package group

import (
	"strings"
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burzumishi/e16go/internal/win"
)

// testWins mints n distinct, comparable WinId values backed by a
// fresh connection-free registry (Register skips the server round
// trip whenever attrs is non-nil).
func testWins(t *testing.T, n int) []win.WinId {
	t.Helper()
	reg := win.NewRegistry(nil)
	ids := make([]win.WinId, n)
	for i := 0; i < n; i++ {
		id, err := reg.Register(xproto.Window(i+1), &xproto.GetGeometryReply{Width: 10, Height: 10})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestAddRemoveIsSymmetric(t *testing.T) {
	r := New()
	g := r.Create(nil)
	wins := testWins(t, 2)
	a, b := wins[0], wins[1]

	r.Add(a, g.ID)
	r.Add(b, g.ID)

	assert.Contains(t, g.Members(), a)
	assert.Contains(t, g.Members(), b)
	assert.Contains(t, r.ListByEwin(a), g)

	r.Remove(a, g.ID)
	assert.NotContains(t, g.Members(), a)
	assert.Empty(t, r.ListByEwin(a), "P5: removing from the group side must also clear the win-side index")
}

func TestBreakRemovesFromAllGroups(t *testing.T) {
	r := New()
	g1 := r.Create(nil)
	id2 := g1.ID + 1
	g2 := r.Create(&id2)
	a := testWins(t, 1)[0]

	r.Add(a, g1.ID)
	r.Add(a, g2.ID)

	r.Break(a)
	assert.Empty(t, r.ListByEwin(a))
	assert.NotContains(t, g1.Members(), a)
	assert.NotContains(t, g2.Members(), a)
}

func TestFindCommonReturnsSharedGroup(t *testing.T) {
	r := New()
	g := r.Create(nil)
	wins := testWins(t, 3)
	a, b, c := wins[0], wins[1], wins[2]
	r.Add(a, g.ID)
	r.Add(b, g.ID)

	assert.Equal(t, g, r.FindCommon(a, b))
	assert.Nil(t, r.FindCommon(a, c))
}

func TestDestroyDetachesAllMembers(t *testing.T) {
	r := New()
	g := r.Create(nil)
	a := testWins(t, 1)[0]
	r.Add(a, g.ID)

	r.Destroy(g.ID)
	assert.Empty(t, r.ListByEwin(a))
	assert.Empty(t, r.ListAll())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r := New()
	id := int64(12345)
	g := r.Create(&id)
	g.Save = true
	g.Cfg = Config{Iconify: false, Kill: true, Move: true, Raise: true, SetBorder: false, Stick: true, Shade: false}

	var buf strings.Builder
	require.NoError(t, SaveToStream(&buf, r.ListAll()))
	assert.Contains(t, buf.String(), "NEW: 12345")
	assert.Contains(t, buf.String(), "KILL: 1")

	r2 := New()
	require.NoError(t, r2.LoadFromStream(strings.NewReader(buf.String())))
	loaded := r2.ListAll()
	require.Len(t, loaded, 1)
	assert.Equal(t, id, loaded[0].ID)
	assert.Equal(t, g.Cfg, loaded[0].Cfg)
}

func TestUnsavedGroupsAreSkippedBySave(t *testing.T) {
	r := New()
	r.Create(nil) // Save defaults to false

	var buf strings.Builder
	require.NoError(t, SaveToStream(&buf, r.ListAll()))
	assert.Empty(t, buf.String())
}

func TestLazyGroupCreationOnLoad(t *testing.T) {
	r := New()
	input := "NEW: 7\nSTICK: 1\n"
	require.NoError(t, r.LoadFromStream(strings.NewReader(input)))
	all := r.ListAll()
	require.Len(t, all, 1)
	assert.Equal(t, int64(7), all[0].ID)
	assert.True(t, all[0].Cfg.Stick)
}
