package constants

import "time"

// Store defaults
const (
	DefaultSQLitePath = "./dataupgrader.db"

	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	// Connection pool settings
	DefaultPostgresMaxConnections = 25
	DefaultPostgresMinConnections = 1
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1
	DefaultSQLiteBusyTimeoutMS    = 5000

	// Version table used by the embedded schema migrations
	SchemaVersionTable = "dataupgrader_goose_version"
)

// Connection pool lifetimes
const (
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute
)

// HTTP surface defaults
const (
	DefaultListenAddr      = ":4600"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultStatusTimeout   = 10 * time.Second
	DefaultStatusURL       = "http://localhost:4600"
	HealthCheckPath        = "/health-check"
)
