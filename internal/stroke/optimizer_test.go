package stroke

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodymap/bodymap/internal/document"
)

func marksN(n int) []document.Mark {
	out := make([]document.Mark, n)
	for i := range out {
		out[i] = document.Mark{ID: fmt.Sprintf("m%d", i), Timestamp: int64(i)}
	}
	return out
}

func TestOptimizerDefaults(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{}, nil)
	assert.Equal(t, DefaultOptimizerConfig(), o.cfg)
}

func TestShouldTriggerCleanup(t *testing.T) {
	clock := newFakeClock(0)
	o := NewOptimizer(OptimizerConfig{HardLimit: 10, SoftLimit: 5, CleanupInterval: time.Second}, clock.Now)

	tests := []struct {
		name    string
		marks   int
		advance time.Duration
		want    bool
	}{
		{"under soft limit", 5, 0, false},
		{"over hard limit", 11, 0, true},
		{"over soft limit, interval elapsed since start", 6, time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance.Milliseconds())
			assert.Equal(t, tt.want, o.ShouldTriggerCleanup(marksN(tt.marks)))
		})
	}

	o.Optimize(marksN(6))
	assert.False(t, o.ShouldTriggerCleanup(marksN(6)), "debounced right after a cleanup")
	assert.True(t, o.ShouldTriggerCleanup(marksN(11)), "hard limit ignores the debounce")
	clock.Advance(999)
	assert.False(t, o.ShouldTriggerCleanup(marksN(6)))
	clock.Advance(1)
	assert.True(t, o.ShouldTriggerCleanup(marksN(6)))
}

func TestOptimize(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{KeepRecent: 4, ThinStride: 3}, newFakeClock(0).Now)

	small := marksN(4)
	assert.Equal(t, small, o.Optimize(small), "nothing to thin")

	// Shuffle the input; output follows timestamps.
	in := marksN(10)
	in[0], in[9] = in[9], in[0]
	out := o.Optimize(in)

	var ids []string
	for _, m := range out {
		ids = append(ids, m.ID)
	}
	// Older: m0..m5 keeps m0 and m3; recent: m6..m9 kept in full.
	assert.Equal(t, []string{"m0", "m3", "m6", "m7", "m8", "m9"}, ids)
}

func TestOptimizeDefaultBounds(t *testing.T) {
	o := NewOptimizer(DefaultOptimizerConfig(), newFakeClock(0).Now)
	out := o.Optimize(marksN(DefaultHardLimit + 1))

	older := DefaultHardLimit + 1 - DefaultKeepRecent
	want := (older+DefaultThinStride-1)/DefaultThinStride + DefaultKeepRecent
	require.Len(t, out, want)
	assert.Less(t, len(out), DefaultSoftLimit)
	assert.Equal(t, fmt.Sprintf("m%d", DefaultHardLimit), out[len(out)-1].ID)
}
