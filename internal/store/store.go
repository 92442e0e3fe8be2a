package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/store/connector"
	"github.com/loykin/dataupgrader/internal/store/postgresql"
	"github.com/loykin/dataupgrader/internal/store/schema"
	"github.com/loykin/dataupgrader/internal/store/sqlite"
	"github.com/loykin/dataupgrader/internal/util"
)

type Connector = connector.Connector

var (
	ErrUnsupportedDriver = errors.New("unsupported store driver")
	ErrNotFound          = connector.ErrNotFound
	ErrInvalidIdentifier = connector.ErrInvalidIdentifier
)

// NewConnector returns an unconnected store for the driver name.
func NewConnector(driver string) (Connector, error) {
	switch util.TrimAndLower(driver) {
	case "", DriverSqlite, "sqlite3":
		return sqlite.NewStore(), nil
	case DriverPostgresql, "postgres", "pg":
		return postgresql.NewStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// Open loads cfg into a new connector and connects it.
func Open(ctx context.Context, cfg Config) (Connector, error) {
	c, err := NewConnector(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DriverConfig != nil {
		if err := c.Load(cfg.DriverConfig.ToMap()); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	common.GetLogger().WithStore(c.DriverName()).Debug("store opened")
	return c, nil
}

// Migrate applies the embedded schema for the connector's driver.
func Migrate(ctx context.Context, c Connector) error {
	db, err := c.DB()
	if err != nil {
		return err
	}
	return schema.Migrate(ctx, db, c.DriverName())
}

// SchemaVersion reports the applied schema version.
func SchemaVersion(ctx context.Context, c Connector) (int64, error) {
	db, err := c.DB()
	if err != nil {
		return 0, err
	}
	return schema.Version(ctx, db, c.DriverName())
}
