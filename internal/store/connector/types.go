package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/loykin/dataupgrader/internal/upgrade"
)

var (
	// ErrInvalidIdentifier is returned for table or column names that are not plain identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNotFound is returned when an update matches no row.
	ErrNotFound = errors.New("row not found")
)

// Connector is a store driver: an upgrade.Executor plus lifecycle and the
// plain reads and writes used for seeding and serving rows.
type Connector interface {
	upgrade.Executor

	Load(config map[string]interface{}) error
	Validate() error
	Connect(ctx context.Context) error
	// DB exposes a database/sql handle for schema migrations.
	DB() (*sql.DB, error)
	DriverName() string
	Insert(ctx context.Context, table string, fields map[string]any) error
	// Select returns rows whose columns equal every value in where, ordered by id.
	// limit <= 0 means no limit.
	Select(ctx context.Context, table string, where map[string]any, limit int) ([]upgrade.Row, error)
	Close() error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdent validates name and returns it double-quoted.
func QuoteIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return `"` + name + `"`, nil
}

// Builder renders the statements shared by every SQL dialect. Placeholder
// returns the bind marker for the 1-based argument index.
type Builder struct {
	Placeholder func(i int) string
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Update renders UPDATE table SET ... WHERE id = ?. The id key is never written.
func (b Builder) Update(table, id string, updates map[string]any) (string, []any, error) {
	qt, err := QuoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	var sets []string
	var args []any
	for _, k := range SortedKeys(updates) {
		if k == upgrade.IDField {
			continue
		}
		qc, err := QuoteIdent(k)
		if err != nil {
			return "", nil, err
		}
		args = append(args, updates[k])
		sets = append(sets, qc+" = "+b.Placeholder(len(args)))
	}
	if len(sets) == 0 {
		return "", nil, nil
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", qt, strings.Join(sets, ", "), b.Placeholder(len(args)))
	return q, args, nil
}

// Insert renders INSERT INTO table (...) VALUES (...).
func (b Builder) Insert(table string, fields map[string]any) (string, []any, error) {
	qt, err := QuoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no fields", table)
	}
	var cols, marks []string
	var args []any
	for _, k := range SortedKeys(fields) {
		qc, err := QuoteIdent(k)
		if err != nil {
			return "", nil, err
		}
		args = append(args, fields[k])
		cols = append(cols, qc)
		marks = append(marks, b.Placeholder(len(args)))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return q, args, nil
}

// Select renders SELECT * FROM table WHERE col = ? AND ... ORDER BY id [LIMIT n].
func (b Builder) Select(table string, where map[string]any, limit int) (string, []any, error) {
	qt, err := QuoteIdent(table)
	if err != nil {
		return "", nil, err
	}
	var conds []string
	var args []any
	for _, k := range SortedKeys(where) {
		qc, err := QuoteIdent(k)
		if err != nil {
			return "", nil, err
		}
		args = append(args, where[k])
		conds = append(conds, qc+" = "+b.Placeholder(len(args)))
	}
	q := "SELECT * FROM " + qt
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY id"
	if limit > 0 {
		args = append(args, limit)
		q += " LIMIT " + b.Placeholder(len(args))
	}
	return q, args, nil
}
