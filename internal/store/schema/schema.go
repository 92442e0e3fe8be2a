package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/constants"
	"github.com/pressly/goose/v3"
)

// Embed all SQL migrations for both backends
//
//go:embed migrations/**/*.sql
var migrationFS embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// gooseLogger routes goose output through the structured logger.
type gooseLogger struct {
	logger *common.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// setup points goose at the embedded FS and returns the directory for driver.
func setup(driver string) (string, error) {
	goose.SetBaseFS(migrationFS)
	goose.SetTableName(constants.SchemaVersionTable)
	goose.SetLogger(gooseLogger{logger: common.GetLogger().WithComponent("schema").WithStore(driver)})

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pg", "postgresql":
		if err := goose.SetDialect("postgres"); err != nil {
			return "", err
		}
		return "migrations/postgres", nil
	case "sqlite", "sqlite3", "":
		if err := goose.SetDialect("sqlite3"); err != nil {
			return "", err
		}
		return "migrations/sqlite", nil
	default:
		return "", fmt.Errorf("unsupported dialect for migrations: %s", driver)
	}
}

// Migrate applies every pending embedded migration for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, err := setup(driver)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("apply schema migrations: %w", err)
	}
	return nil
}

// Version returns the applied schema version, creating the version table when missing.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if _, err := setup(driver); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
