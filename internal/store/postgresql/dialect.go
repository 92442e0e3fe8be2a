package postgresql

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loykin/dataupgrader/internal/constants"
)

// Dialect implements SQL dialect for PostgreSQL
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns PostgreSQL-style placeholders ($1, $2, etc.)
func (p *Dialect) GetPlaceholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// ConvertToStorage passes values through; pgx encodes bool, time and
// string slices natively. A nil []string is stored as an empty array.
func (p *Dialect) ConvertToStorage(v any) any {
	if s, ok := v.([]string); ok && s == nil {
		return []string{}
	}
	return v
}

// ConvertFromStorage normalizes values decoded by pgx. Arrays of text come
// back as []any and uuid columns as [16]byte.
func (p *Dialect) ConvertFromStorage(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case [16]byte:
		return uuid.UUID(t).String()
	}
	return v
}

// Connect opens a pgx pool and verifies it with a ping.
func (p *Dialect) Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL DSN: %w", err)
	}
	if maxConns <= 0 {
		maxConns = constants.DefaultPostgresMaxConnections
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = constants.DefaultPostgresMinConnections
	cfg.MaxConnLifetime = constants.DefaultMaxConnLifetime
	cfg.MaxConnIdleTime = constants.DefaultMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return pool, nil
}

// FetchStatement selects rows with (or without) a marker in the text[] column.
func (p *Dialect) FetchStatement(quotedTable string, with bool) string {
	if with {
		return fmt.Sprintf("SELECT * FROM %s WHERE applied_upgrades @> ARRAY[$1::text] ORDER BY id LIMIT $2", quotedTable)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE applied_upgrades IS NULL OR NOT ($1::text = ANY(applied_upgrades)) ORDER BY id LIMIT $2", quotedTable)
}

// GetDriverName returns the driver name for logging
func (p *Dialect) GetDriverName() string {
	return "postgresql"
}
