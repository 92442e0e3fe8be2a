package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/store/connector"
	"github.com/loykin/dataupgrader/internal/upgrade"
)

// pgxQuerier is the subset shared by *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	pool     *pgxpool.Pool
	sqlDB    *sql.DB
	dialect  *Dialect
	DSN      string
	MaxConns int32
}

var _ connector.Connector = (*Store)(nil)

// NewStore creates a new PostgreSQL store
func NewStore() *Store {
	return &Store{
		dialect: NewDialect(),
	}
}

// Load loads configuration into the PostgreSQL store
func (p *Store) Load(config map[string]interface{}) error {
	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		p.DSN = dsn
	}
	switch n := config["max_conns"].(type) {
	case int32:
		p.MaxConns = n
	case int:
		p.MaxConns = int32(n)
	case int64:
		p.MaxConns = int32(n)
	case float64:
		p.MaxConns = int32(n)
	}
	return nil
}

// Validate requires a DSN; the pool cannot be opened without one.
func (p *Store) Validate() error {
	if p.DSN == "" {
		return errors.New("postgresql store requires a dsn or host")
	}
	return nil
}

// Connect opens the connection pool
func (p *Store) Connect(ctx context.Context) error {
	pool, err := p.dialect.Connect(ctx, p.DSN, p.MaxConns)
	if err != nil {
		return err
	}
	p.pool = pool

	logger := common.GetLogger().WithStore(p.DriverName())
	logger.Info("PostgreSQL database connection established successfully", "dsn", common.MaskSensitiveData(p.DSN))
	return nil
}

// DB wraps the pool in a database/sql handle for schema migrations.
func (p *Store) DB() (*sql.DB, error) {
	if p.pool == nil {
		return nil, errors.New("postgresql store is not connected")
	}
	if p.sqlDB == nil {
		p.sqlDB = stdlib.OpenDBFromPool(p.pool)
	}
	return p.sqlDB, nil
}

func (p *Store) DriverName() string {
	return p.dialect.GetDriverName()
}

// Close closes the database connection
func (p *Store) Close() error {
	if p.sqlDB != nil {
		_ = p.sqlDB.Close()
		p.sqlDB = nil
	}
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *Store) queries() *queries {
	return &queries{db: p.pool, dialect: p.dialect}
}

func (p *Store) FetchWithout(ctx context.Context, table, upgradeName string, limit int) ([]upgrade.Row, error) {
	return p.queries().fetch(ctx, table, upgradeName, limit, false)
}

func (p *Store) FetchWith(ctx context.Context, table, upgradeName string, limit int) ([]upgrade.Row, error) {
	return p.queries().fetch(ctx, table, upgradeName, limit, true)
}

func (p *Store) Update(ctx context.Context, table, id string, updates upgrade.Updates) error {
	return p.queries().Update(ctx, table, id, updates)
}

func (p *Store) Insert(ctx context.Context, table string, fields map[string]any) error {
	return p.queries().insert(ctx, table, fields)
}

func (p *Store) Select(ctx context.Context, table string, where map[string]any, limit int) ([]upgrade.Row, error) {
	return p.queries().selectRows(ctx, table, where, limit)
}

// UnitOfWork runs fn inside a transaction; pgx rolls back on error or panic.
func (p *Store) UnitOfWork(ctx context.Context, fn func(tx upgrade.Querier) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&queries{db: tx, dialect: p.dialect})
	})
}

// queries implements upgrade.Querier over either the pool or a transaction.
type queries struct {
	db      pgxQuerier
	dialect *Dialect
}

func (q *queries) builder() connector.Builder {
	return connector.Builder{Placeholder: q.dialect.GetPlaceholder}
}

func (q *queries) FetchWithout(ctx context.Context, table, upgradeName string, limit int) ([]upgrade.Row, error) {
	return q.fetch(ctx, table, upgradeName, limit, false)
}

func (q *queries) FetchWith(ctx context.Context, table, upgradeName string, limit int) ([]upgrade.Row, error) {
	return q.fetch(ctx, table, upgradeName, limit, true)
}

func (q *queries) fetch(ctx context.Context, table, upgradeName string, limit int, with bool) ([]upgrade.Row, error) {
	qt, err := connector.QuoteIdent(table)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx, q.dialect.FetchStatement(qt, with), upgradeName, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for %s: %w", table, upgradeName, err)
	}
	return q.scan(rows)
}

func (q *queries) Update(ctx context.Context, table, id string, updates upgrade.Updates) error {
	stmt, args, err := q.builder().Update(table, id, q.toStorage(updates))
	if err != nil {
		return err
	}
	if stmt == "" {
		return nil
	}
	tag, err := q.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %s: %w", table, id, connector.ErrNotFound)
	}
	return nil
}

func (q *queries) insert(ctx context.Context, table string, fields map[string]any) error {
	stmt, args, err := q.builder().Insert(table, q.toStorage(fields))
	if err != nil {
		return err
	}
	if _, err := q.db.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (q *queries) selectRows(ctx context.Context, table string, where map[string]any, limit int) ([]upgrade.Row, error) {
	stmt, args, err := q.builder().Select(table, q.toStorage(where), limit)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	return q.scan(rows)
}

func (q *queries) toStorage(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = q.dialect.ConvertToStorage(v)
	}
	return out
}

func (q *queries) scan(rows pgx.Rows) ([]upgrade.Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []upgrade.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := upgrade.Row{Fields: make(map[string]any, len(fields))}
		for i, fd := range fields {
			v := q.dialect.ConvertFromStorage(vals[i])
			switch fd.Name {
			case upgrade.IDField:
				row.ID = fmt.Sprint(v)
			case upgrade.AppliedUpgradesField:
				row.AppliedUpgrades, _ = v.([]string)
			default:
				row.Fields[fd.Name] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
