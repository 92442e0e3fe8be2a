package upgrade

import (
	"context"
	"time"

	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/metrics"
	"github.com/loykin/dataupgrader/internal/retry"
)

// Batch size defaults.
const (
	DefaultBatchSize        = 50
	DefaultCleanupBatchSize = 50
)

type options struct {
	enabled          func() bool
	batchSize        int
	cleanupBatchSize int
	overrides        map[string]int
	sleep            func(ctx context.Context, d time.Duration) error
	now              func() time.Time
	initialTimeout   time.Duration
	logger           *common.Logger
	metrics          *metrics.Collector
	retry            *retry.Config
}

func defaultOptions() options {
	return options{
		enabled:          func() bool { return true },
		batchSize:        DefaultBatchSize,
		cleanupBatchSize: DefaultCleanupBatchSize,
		sleep:            sleepContext,
		now:              time.Now,
		initialTimeout:   DefaultInitialTimeout,
		retry:            retry.DefaultRetryConfig(),
	}
}

// Option configures a Runner.
type Option func(*options)

// WithEnabled sets the toggle consulted before every batch. While it
// returns false the runner polls every PausedSleep without touching the store.
func WithEnabled(fn func() bool) Option {
	return func(o *options) {
		if fn != nil {
			o.enabled = fn
		}
	}
}

// WithBatchSize sets how many rows an upgrade batch fetches.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithCleanupBatchSize sets how many rows a cleanup batch fetches.
func WithCleanupBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cleanupBatchSize = n
		}
	}
}

// WithBatchSizeOverrides sets per-upgrade batch sizes keyed by upgrade name.
func WithBatchSizeOverrides(m map[string]int) Option {
	return func(o *options) {
		o.overrides = make(map[string]int, len(m))
		for k, v := range m {
			if v > 0 {
				o.overrides[k] = v
			}
		}
	}
}

// WithSleep replaces the timer used between batches.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithClock replaces time.Now when measuring batches.
func WithClock(fn func() time.Time) Option {
	return func(o *options) {
		if fn != nil {
			o.now = fn
		}
	}
}

// WithInitialTimeout seeds the backoff of every upgrade and cleanup loop.
func WithInitialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.initialTimeout = d
		}
	}
}

func WithLogger(l *common.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithRetryConfig sets how transient fetch errors are retried.
func WithRetryConfig(cfg *retry.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.retry = cfg
		}
	}
}

func (o options) batchSizeFor(name string) int {
	if n, ok := o.overrides[name]; ok {
		return n
	}
	return o.batchSize
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
