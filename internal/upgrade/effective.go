package upgrade

import "fmt"

// Effective is a read-time view of a row with pending sync upgrades
// applied, so readers see upgraded data before the runner reaches the row.
// Nothing is written back to the store.
type Effective[S any] struct {
	original Row
	updates  Updates
}

// NewEffective wraps row.
func NewEffective[S any](row Row) *Effective[S] {
	return &Effective[S]{original: row.Clone()}
}

// Current returns the row with every update applied.
func (e *Effective[S]) Current() Row {
	return e.original.Merge(e.updates)
}

// Original returns the row as read from the store.
func (e *Effective[S]) Original() Row {
	return e.original.Clone()
}

// Update overlays u on the current view.
func (e *Effective[S]) Update(u Updates) {
	e.updates = e.updates.Merge(u)
}

// ApplyUpgrades runs the Apply function of every upgrade not yet marked
// on the current view and records its marker. ApplyAsync is never run
// here since it needs a transaction.
func (e *Effective[S]) ApplyUpgrades(svc S, upgrades ...Upgrade[S]) error {
	for _, u := range upgrades {
		if u.Apply == nil {
			continue
		}
		cur := e.Current()
		if HasApplied(cur, u.Name) {
			continue
		}
		updates, err := u.Apply(cur, svc)
		if err != nil {
			return fmt.Errorf("apply %s: %w", u.Name, err)
		}
		next := e.updates.Merge(updates)
		next[AppliedUpgradesField] = AddApplied(cur.AppliedUpgrades, u.Name)
		e.updates = next
	}
	return nil
}
