package store

import (
	"github.com/loykin/dataupgrader/internal/store/postgresql"
	"github.com/loykin/dataupgrader/internal/store/sqlite"
)

const (
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"
)

type Config struct {
	Driver       string `mapstructure:"driver"`
	DriverConfig DriverConfig
}

type DriverConfig interface {
	ToMap() map[string]interface{}
}

type SqliteConfig = sqlite.Config
type PostgresConfig = postgresql.Config
