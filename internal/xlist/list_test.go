package xlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushAndSlice(t *testing.T) {
	l := New[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.PushFront(0)
	assert.Equal(t, []int{0, 1, 2}, l.Slice())
	assert.Equal(t, 3, l.Len())
}

func TestRemoveDuringEach(t *testing.T) {
	l := New[string]()
	a := l.PushBack("a")
	l.PushBack("b")
	l.PushBack("c")

	var seen []string
	l.Each(func(n *Node[string]) {
		seen = append(seen, n.Value)
		if n.Value == "a" {
			l.Remove(a)
		}
	})

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, []string{"b", "c"}, l.Slice())
}

func TestRemoveUnlinkedIsNoop(t *testing.T) {
	l := New[int]()
	n := &Node[int]{Value: 5}
	l.Remove(n)
	assert.Equal(t, 0, l.Len())
}

func TestFrontBackEmpty(t *testing.T) {
	l := New[int]()
	require.Nil(t, l.Front())
	require.Nil(t, l.Back())
}
