package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loykin/dataupgrader/internal/constants"
	"github.com/loykin/dataupgrader/internal/upgrade"
	_ "modernc.org/sqlite"
)

// Dialect implements SQL dialect for SQLite
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns SQLite-style placeholders (?)
func (s *Dialect) GetPlaceholder(int) string {
	return "?"
}

// ConvertToStorage maps Go values onto SQLite's storage classes. String
// slices are stored as JSON arrays so json_each can query them.
func (s *Dialect) ConvertToStorage(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return t.UTC().Format(time.RFC3339Nano), nil
	case []string:
		if t == nil {
			t = []string{}
		}
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case []any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

// ConvertFromStorage normalizes a scanned column value. applied_upgrades is
// decoded from its JSON form; other TEXT columns come back as strings.
func (s *Dialect) ConvertFromStorage(column string, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if column != upgrade.AppliedUpgradesField {
		return v, nil
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(str), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return out, nil
}

// Connect establishes a connection to SQLite with connection pooling
func (s *Dialect) Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
	db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)

	return db, nil
}

// FetchStatement selects rows with (or without) a marker in the JSON array.
func (s *Dialect) FetchStatement(quotedTable string, with bool) string {
	if with {
		return fmt.Sprintf("SELECT * FROM %s WHERE EXISTS (SELECT 1 FROM json_each(%s.applied_upgrades) WHERE value = ?) ORDER BY id LIMIT ?",
			quotedTable, quotedTable)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE applied_upgrades IS NULL OR NOT EXISTS (SELECT 1 FROM json_each(%s.applied_upgrades) WHERE value = ?) ORDER BY id LIMIT ?",
		quotedTable, quotedTable)
}

// GetDriverName returns the driver name for logging
func (s *Dialect) GetDriverName() string {
	return "sqlite"
}
