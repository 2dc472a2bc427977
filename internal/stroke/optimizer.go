package stroke

import (
	"cmp"
	"slices"
	"time"

	"github.com/bodymap/bodymap/internal/document"
)

const (
	DefaultHardLimit       = 5000
	DefaultSoftLimit       = 4000
	DefaultCleanupInterval = 30 * time.Second
	DefaultKeepRecent      = 1000
	DefaultThinStride      = 3
)

// OptimizerConfig tunes when and how hard old marks are thinned out.
type OptimizerConfig struct {
	HardLimit       int
	SoftLimit       int
	CleanupInterval time.Duration
	KeepRecent      int
	ThinStride      int
}

func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		HardLimit:       DefaultHardLimit,
		SoftLimit:       DefaultSoftLimit,
		CleanupInterval: DefaultCleanupInterval,
		KeepRecent:      DefaultKeepRecent,
		ThinStride:      DefaultThinStride,
	}
}

// Optimizer bounds the number of marks in long sessions by thinning old
// strokes. The loss is intentional: density of old marks is traded for
// memory and render cost.
type Optimizer struct {
	cfg         OptimizerConfig
	clock       Clock
	lastCleanup int64
}

func NewOptimizer(cfg OptimizerConfig, clock Clock) *Optimizer {
	def := DefaultOptimizerConfig()
	if cfg.HardLimit <= 0 {
		cfg.HardLimit = def.HardLimit
	}
	if cfg.SoftLimit <= 0 {
		cfg.SoftLimit = def.SoftLimit
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = def.KeepRecent
	}
	if cfg.ThinStride <= 0 {
		cfg.ThinStride = def.ThinStride
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Optimizer{cfg: cfg, clock: clock}
}

// ShouldTriggerCleanup reports whether the mark count calls for a cleanup.
// Above the soft limit cleanups are debounced by the cleanup interval.
func (o *Optimizer) ShouldTriggerCleanup(marks []document.Mark) bool {
	n := len(marks)
	if n > o.cfg.HardLimit {
		return true
	}
	if n <= o.cfg.SoftLimit {
		return false
	}
	return o.clock()-o.lastCleanup >= o.cfg.CleanupInterval.Milliseconds()
}

// Optimize keeps the most recent marks in full and every ThinStride-th of
// the older ones. The result is in timestamp order.
func (o *Optimizer) Optimize(marks []document.Mark) []document.Mark {
	o.lastCleanup = o.clock()
	if len(marks) <= o.cfg.KeepRecent {
		return slices.Clone(marks)
	}
	sorted := slices.Clone(marks)
	slices.SortStableFunc(sorted, func(a, b document.Mark) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	cut := len(sorted) - o.cfg.KeepRecent
	older, recent := sorted[:cut], sorted[cut:]

	out := make([]document.Mark, 0, len(older)/o.cfg.ThinStride+1+len(recent))
	for i := 0; i < len(older); i += o.cfg.ThinStride {
		out = append(out, older[i])
	}
	return append(out, recent...)
}
