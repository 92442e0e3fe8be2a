package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/store/connector"
	"github.com/loykin/dataupgrader/internal/upgrade"
)

// dbtx is the subset shared by *sql.DB and *sql.Tx.
type dbtx interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Store struct {
	db      *sql.DB
	dialect *Dialect
	DSN     string
}

var _ connector.Connector = (*Store)(nil)

// NewStore creates a new SQLite store
func NewStore() *Store {
	return &Store{
		dialect: NewDialect(),
	}
}

// Load loads configuration into the SQLite store
func (s *Store) Load(config map[string]interface{}) error {
	if dsn, ok := config["dsn"].(string); ok && dsn != "" {
		s.DSN = dsn
		return nil
	}
	if path, ok := config["path"].(string); ok && path != "" {
		s.DSN = pathDSN(path)
	}
	return nil
}

// Validate performs basic validation (default implementation)
func (s *Store) Validate() error {
	return nil
}

// Connect establishes a connection to SQLite
func (s *Store) Connect(ctx context.Context) error {
	if s.DSN == "" {
		// Default to in-memory database for testing
		s.DSN = ":memory:"
	}

	db, err := s.dialect.Connect(ctx, s.DSN)
	if err != nil {
		return err
	}
	s.db = db

	logger := common.GetLogger().WithStore(s.DriverName())
	logger.Info("SQLite database connection established successfully")
	return nil
}

func (s *Store) DB() (*sql.DB, error) {
	if s.db == nil {
		return nil, errors.New("sqlite store is not connected")
	}
	return s.db, nil
}

func (s *Store) DriverName() string {
	return s.dialect.GetDriverName()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) queries() *queries {
	return &queries{db: s.db, dialect: s.dialect}
}

func (s *Store) FetchWithout(ctx context.Context, table, upgradeName string, limit int) ([]upgrade.Row, error) {
	return s.queries().fetch(ctx, table, upgradeName, limit, false)
}

func (s *Store) FetchWith(ctx context.Context, table, upgradeName string, limit int) ([]upgrade.Row, error) {
	return s.queries().fetch(ctx, table, upgradeName, limit, true)
}

func (s *Store) Update(ctx context.Context, table, id string, updates upgrade.Updates) error {
	return s.queries().Update(ctx, table, id, updates)
}

func (s *Store) Insert(ctx context.Context, table string, fields map[string]any) error {
	return s.queries().insert(ctx, table, fields)
}

func (s *Store) Select(ctx context.Context, table string, where map[string]any, limit int) ([]upgrade.Row, error) {
	return s.queries().selectRows(ctx, table, where, limit)
}

// UnitOfWork runs fn inside a transaction. A panic in fn rolls back and is re-raised.
func (s *Store) UnitOfWork(ctx context.Context, fn func(tx upgrade.Querier) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&queries{db: tx, dialect: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			common.GetLogger().WithStore(s.DriverName()).Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// queries implements upgrade.Querier over either the pool or a transaction.
type queries struct {
	db      dbtx
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
	rows, err := q.db.QueryContext(ctx, q.dialect.FetchStatement(qt, with), upgradeName, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for %s: %w", table, upgradeName, err)
	}
	return q.scan(rows)
}

func (q *queries) Update(ctx context.Context, table, id string, updates upgrade.Updates) error {
	stored, err := q.toStorage(updates)
	if err != nil {
		return err
	}
	stmt, args, err := q.builder().Update(table, id, stored)
	if err != nil {
		return err
	}
	if stmt == "" {
		return nil
	}
	res, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s %s: %w", table, id, connector.ErrNotFound)
	}
	return nil
}

func (q *queries) insert(ctx context.Context, table string, fields map[string]any) error {
	stored, err := q.toStorage(fields)
	if err != nil {
		return err
	}
	stmt, args, err := q.builder().Insert(table, stored)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (q *queries) selectRows(ctx context.Context, table string, where map[string]any, limit int) ([]upgrade.Row, error) {
	stored, err := q.toStorage(where)
	if err != nil {
		return nil, err
	}
	stmt, args, err := q.builder().Select(table, stored, limit)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	return q.scan(rows)
}

func (q *queries) toStorage(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		sv, err := q.dialect.ConvertToStorage(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = sv
	}
	return out, nil
}

func (q *queries) scan(rows *sql.Rows) ([]upgrade.Row, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []upgrade.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := upgrade.Row{Fields: make(map[string]any, len(cols))}
		for i, col := range cols {
			v, err := q.dialect.ConvertFromStorage(col, vals[i])
			if err != nil {
				return nil, err
			}
			switch col {
			case upgrade.IDField:
				row.ID = fmt.Sprint(v)
			case upgrade.AppliedUpgradesField:
				row.AppliedUpgrades, _ = v.([]string)
			default:
				row.Fields[col] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
