package upgrade

import (
	"context"
	"fmt"

	"github.com/loykin/dataupgrader/internal/common"
)

func (r *Runner[S]) cleanupTable(ctx context.Context, t Table[S], newExecutor func() Executor) error {
	logger := r.logger.WithTable(t.Name)

	for _, name := range t.Cleanups {
		if err := r.runCleanup(ctx, t.Name, name, newExecutor); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("failed to clean up upgrade", "cleanup", name, "error", err)
			r.opts.metrics.CleanupFailed(t.Name, name)
			continue
		}
		r.state.completeCleanup(t.Name, name)
		logger.Info("done cleaning up upgrade", "cleanup", name)
	}

	logger.Info("completed data cleanups")
	r.state.setCurrent(CurrentUpgrade{Type: PhaseDone})
	return nil
}

// runCleanup strips markers batch by batch until no row carries name.
func (r *Runner[S]) runCleanup(ctx context.Context, table, name string, newExecutor func() Executor) error {
	logger := r.logger.WithTable(table).WithUpgrade(name)
	timeout := r.opts.initialTimeout

	for ranUpgrades := true; ranUpgrades; {
		start := r.opts.now()
		enabled := r.opts.enabled()

		if !enabled {
			r.pause(logger)
		} else {
			r.resume(CurrentUpgrade{Type: PhaseCleaningUp, TableName: table, UpgradeName: name})

			n, err := r.cleanupBatch(ctx, table, name, newExecutor(), logger)
			if err != nil {
				return err
			}
			ranUpgrades = n > 0
		}

		var err error
		if timeout, err = r.wait(ctx, logger, start, timeout, enabled); err != nil {
			return err
		}
	}
	return nil
}

// cleanupBatch removes every still-pending cleanup name from one batch of
// rows carrying name, all inside a single unit of work.
func (r *Runner[S]) cleanupBatch(ctx context.Context, table, name string, exec Executor, logger *common.Logger) (int, error) {
	var cleaned int
	err := exec.UnitOfWork(ctx, func(tx Querier) error {
		rows, err := tx.FetchWith(ctx, table, name, r.opts.cleanupBatchSize)
		if err != nil {
			return fmt.Errorf("fetch rows with %q: %w", name, err)
		}

		strip := r.state.remainingCleanups(table)
		for _, row := range rows {
			logger.Debug("persisting upgrade cleanup", "id", row.ID)
			updates := Updates{AppliedUpgradesField: RemoveApplied(row.AppliedUpgrades, strip...)}
			if err := tx.Update(ctx, table, row.ID, updates); err != nil {
				return fmt.Errorf("update %s: %w", row.ID, err)
			}
		}
		cleaned = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.opts.metrics.RowsCleanedUp(table, name, cleaned)
	return cleaned, nil
}
