package upgrade

import (
	"context"
	"time"

	"github.com/loykin/dataupgrader/internal/common"
)

// Runner drives the configured upgrades, then the configured cleanups,
// for every table in order.
type Runner[S any] struct {
	tables []Table[S]
	opts   options
	state  *State
	logger *common.Logger
}

// NewRunner builds a runner and its state. No I/O happens here.
func NewRunner[S any](tables []Table[S], opts ...Option) *Runner[S] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Runner[S]{
		tables: append([]Table[S](nil), tables...),
		opts:   o,
		state:  newState(tables),
		logger: logger.WithComponent("data-upgrader"),
	}
}

// State returns the live state for readers such as a health endpoint.
func (r *Runner[S]) State() *State {
	return r.state
}

// Run performs the upgrade phase for every table, then the cleanup phase
// for every table. newExecutor is called once per batch.
//
// Row and upgrade failures are logged, never returned. Run only returns
// an error when ctx is cancelled.
func (r *Runner[S]) Run(ctx context.Context, newExecutor func() Executor, svc S) error {
	for _, t := range r.tables {
		if err := r.upgradeTable(ctx, t, newExecutor, svc); err != nil {
			return err
		}
	}
	for _, t := range r.tables {
		if err := r.cleanupTable(ctx, t, newExecutor); err != nil {
			return err
		}
	}
	r.logger.Info("data upgrades finished")
	return nil
}

func (r *Runner[S]) pause(logger *common.Logger) {
	logger.Debug("skipping data upgrades due to run-data-upgrades toggle")
	r.state.setCurrent(CurrentUpgrade{Type: PhasePaused})
	r.opts.metrics.SetPaused(true)
}

func (r *Runner[S]) resume(c CurrentUpgrade) {
	r.state.setCurrent(c)
	r.opts.metrics.SetPaused(false)
}

// wait sleeps for the next timeout and returns it.
func (r *Runner[S]) wait(ctx context.Context, logger *common.Logger, start time.Time, previous time.Duration, enabled bool) (time.Duration, error) {
	d := logTimeout(logger, start, r.opts.now(), previous, enabled)
	r.opts.metrics.SetSleep(d)
	return d, r.opts.sleep(ctx, d)
}
