package upgrade

import (
	"context"
	"fmt"
)

// Upgrade is a named, pluggable transform over rows of one table.
// S is the caller's services type passed through to both functions.
//
// An Upgrade with neither Apply nor ApplyAsync is valid and only
// appends its marker.
type Upgrade[S any] struct {
	Name string

	// Apply computes field changes synchronously. A nil result means no changes.
	Apply func(row Row, svc S) (Updates, error)

	// ApplyAsync runs inside the row's transaction and only for rows that
	// do not yet carry the marker. It sees the row with Apply's result merged.
	ApplyAsync func(ctx context.Context, row Row, tx Querier, svc S) (Updates, error)
}

// Table groups the upgrades and cleanups configured for one table.
type Table[S any] struct {
	Name     string
	Upgrades []Upgrade[S]
	Cleanups []string
}

// updatesFor computes the full update for one row, marker included.
func (u Upgrade[S]) updatesFor(ctx context.Context, row Row, tx Querier, svc S) (Updates, error) {
	updates := Updates{}
	if u.Apply != nil {
		sync, err := u.Apply(row, svc)
		if err != nil {
			return nil, fmt.Errorf("apply: %w", err)
		}
		updates = updates.Merge(sync)
	}
	if u.ApplyAsync != nil && !HasApplied(row, u.Name) {
		async, err := u.ApplyAsync(ctx, row.Merge(updates), tx, svc)
		if err != nil {
			return nil, fmt.Errorf("apply async: %w", err)
		}
		updates = updates.Merge(async)
	}
	updates[AppliedUpgradesField] = AddApplied(row.AppliedUpgrades, u.Name)
	return updates, nil
}
