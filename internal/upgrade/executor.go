package upgrade

import (
	"context"
	"fmt"

	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/retry"
)

type batchResult struct {
	rows   int
	errors int
}

// abandoned reports whether every row of a non-empty batch failed.
func (b batchResult) abandoned() bool {
	return b.rows > 0 && b.errors >= b.rows
}

func (r *Runner[S]) upgradeTable(ctx context.Context, t Table[S], newExecutor func() Executor, svc S) error {
	logger := r.logger.WithTable(t.Name)

	for _, u := range t.Upgrades {
		if err := r.runUpgrade(ctx, t.Name, u, newExecutor, svc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("failed to perform data upgrade", "upgrade", u.Name, "error", err)
			r.opts.metrics.UpgradeFailed(t.Name, u.Name)
			continue
		}
		r.state.completeUpgrade(t.Name, u.Name)
		logger.Info("done performing upgrade", "upgrade", u.Name)
	}

	logger.Info("completed data upgrades")
	r.state.setCurrent(CurrentUpgrade{Type: PhaseDone})
	return nil
}

// runUpgrade drives one upgrade until a fetch comes back empty or a
// whole batch fails.
func (r *Runner[S]) runUpgrade(ctx context.Context, table string, u Upgrade[S], newExecutor func() Executor, svc S) error {
	logger := r.logger.WithTable(table).WithUpgrade(u.Name)
	logger.Info("performing upgrade")

	limit := r.opts.batchSizeFor(u.Name)
	timeout := r.opts.initialTimeout

	for ranUpgrades := true; ranUpgrades; {
		start := r.opts.now()
		enabled := r.opts.enabled()

		if !enabled {
			r.pause(logger)
		} else {
			if cur := r.state.Current(); cur.TableName != table || cur.UpgradeName != u.Name {
				logger.Info("starting data upgrade")
			}
			r.resume(CurrentUpgrade{Type: PhaseUpgrading, TableName: table, UpgradeName: u.Name})

			res, err := r.upgradeBatch(ctx, table, u, newExecutor(), limit, svc, logger)
			r.opts.metrics.ObserveBatch(table, u.Name, r.opts.now().Sub(start))
			if err != nil {
				return err
			}
			if res.abandoned() {
				logger.Info("skipping upgrade", "failed_rows", res.errors)
				r.opts.metrics.UpgradeAbandoned(table, u.Name)
				return nil
			}
			ranUpgrades = res.rows > 0
		}

		var err error
		if timeout, err = r.wait(ctx, logger, start, timeout, enabled); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner[S]) upgradeBatch(ctx context.Context, table string, u Upgrade[S], exec Executor, limit int, svc S, logger *common.Logger) (batchResult, error) {
	logger.Debug("performing data upgrade batch", "limit", limit)

	batch, err := retry.Do(ctx, r.opts.retry, func() ([]Row, error) {
		return exec.FetchWithout(ctx, table, u.Name, limit)
	})
	if err != nil {
		return batchResult{}, fmt.Errorf("fetch rows without %q: %w", u.Name, err)
	}

	res := batchResult{rows: len(batch)}
	for _, row := range batch {
		if err := r.upgradeRow(ctx, exec, table, u, row, svc); err != nil {
			res.errors++
			r.opts.metrics.RowFailed(table, u.Name)
			logger.Error("failed to upgrade item", "id", row.ID, "error", err)
			continue
		}
		r.opts.metrics.RowUpgraded(table, u.Name)
	}
	return res, nil
}

// upgradeRow applies u to one row inside its own unit of work.
func (r *Runner[S]) upgradeRow(ctx context.Context, exec Executor, table string, u Upgrade[S], row Row, svc S) error {
	return exec.UnitOfWork(ctx, func(tx Querier) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()

		updates, err := u.updatesFor(ctx, row, tx, svc)
		if err != nil {
			return err
		}
		return tx.Update(ctx, table, row.ID, updates)
	})
}
