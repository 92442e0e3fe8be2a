package upgrade

import "context"

// Querier runs the reads and writes the runner needs against one store.
type Querier interface {
	// FetchWithout returns up to limit rows of table lacking the marker.
	FetchWithout(ctx context.Context, table, upgradeName string, limit int) ([]Row, error)
	// FetchWith returns up to limit rows of table carrying the marker.
	FetchWith(ctx context.Context, table, upgradeName string, limit int) ([]Row, error)
	// Update writes a partial field set to the row with the given id.
	Update(ctx context.Context, table, id string, updates Updates) error
}

// Executor is a Querier that can also open a unit of work. fn's writes
// commit together when it returns nil and roll back on error or panic.
type Executor interface {
	Querier
	UnitOfWork(ctx context.Context, fn func(tx Querier) error) error
}
