package collab

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSet(t *testing.T) {
	s := newSeenSet(3)
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("a"))
	assert.True(t, s.Add("b"))
	assert.True(t, s.Add("c"))
	assert.Equal(t, 3, s.Len())

	// The oldest key is forgotten first.
	assert.True(t, s.Add("d"))
	assert.False(t, s.Has("a"))
	assert.True(t, s.Has("b"))
	assert.Equal(t, 3, s.Len())

	assert.True(t, s.Add("e"))
	assert.False(t, s.Has("b"))
	assert.True(t, s.Has("c"))

	// Events without an id cannot be deduplicated.
	assert.True(t, s.Add(""))
	assert.True(t, s.Add(""))
}

func TestSeenSetBounded(t *testing.T) {
	s := newSeenSet(0)
	for i := range DefaultDedupCapacity * 2 {
		s.Add(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, DefaultDedupCapacity, s.Len())
	assert.True(t, s.Has(fmt.Sprintf("k%d", DefaultDedupCapacity*2-1)))
	assert.False(t, s.Has("k0"))
}

func TestStrokeKey(t *testing.T) {
	assert.Equal(t, "s1|p1", strokeKey("s1", "p1"))
	assert.NotEqual(t, strokeKey("s1", "p1"), strokeKey("s1", "p2"))
}
