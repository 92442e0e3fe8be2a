package dataupgrader

import (
	"context"
	"time"

	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/metrics"
	"github.com/loykin/dataupgrader/internal/retry"
	"github.com/loykin/dataupgrader/internal/store"
	"github.com/loykin/dataupgrader/internal/upgrade"
	"github.com/loykin/dataupgrader/pkg/status"
)

// Re-export commonly used types for public API

// Row is one record of a managed table.
type Row = upgrade.Row

// Updates is a partial set of field changes for a row.
type Updates = upgrade.Updates

// Upgrade is a named, idempotent row transformation.
type Upgrade[S any] = upgrade.Upgrade[S]

// Table lists the upgrades and cleanups for one managed table.
type Table[S any] = upgrade.Table[S]

type Querier = upgrade.Querier

type Executor = upgrade.Executor

type Runner[S any] = upgrade.Runner[S]

type Option = upgrade.Option

type State = upgrade.State

type Snapshot = upgrade.Snapshot

type CurrentUpgrade = upgrade.CurrentUpgrade

type Phase = upgrade.Phase

// Effective is a row with sync upgrades applied at read time.
type Effective[S any] = upgrade.Effective[S]

const (
	PhaseUpgrading  = upgrade.PhaseUpgrading
	PhaseCleaningUp = upgrade.PhaseCleaningUp
	PhaseDone       = upgrade.PhaseDone
	PhasePaused     = upgrade.PhasePaused

	IDField              = upgrade.IDField
	AppliedUpgradesField = upgrade.AppliedUpgradesField
)

// NewRunner builds a runner over tables. Nothing touches the store until Run.
func NewRunner[S any](tables []Table[S], opts ...Option) *Runner[S] {
	return upgrade.NewRunner(tables, opts...)
}

// NewEffective starts a read-time view of row.
func NewEffective[S any](row Row) *Effective[S] {
	return upgrade.NewEffective[S](row)
}

// NextTimeout is the sleep the runner picks after a batch ran from start to end.
func NextTimeout(start, end time.Time, previous time.Duration, enabled bool) time.Duration {
	return upgrade.NextTimeout(start, end, previous, enabled)
}

func WithEnabled(fn func() bool) Option {
	return upgrade.WithEnabled(fn)
}

func WithBatchSize(n int) Option {
	return upgrade.WithBatchSize(n)
}

func WithCleanupBatchSize(n int) Option {
	return upgrade.WithCleanupBatchSize(n)
}

func WithBatchSizeOverrides(m map[string]int) Option {
	return upgrade.WithBatchSizeOverrides(m)
}

func WithInitialTimeout(d time.Duration) Option {
	return upgrade.WithInitialTimeout(d)
}

func WithLogger(l *Logger) Option {
	return upgrade.WithLogger(l)
}

func WithMetrics(m *Metrics) Option {
	return upgrade.WithMetrics(m)
}

func WithRetryConfig(cfg *RetryConfig) Option {
	return upgrade.WithRetryConfig(cfg)
}

func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return upgrade.WithSleep(fn)
}

// Store

// Connector is a store that can back a runner.
type Connector = store.Connector

type StoreConfig = store.Config

type SqliteConfig = store.SqliteConfig

type PostgresConfig = store.PostgresConfig

const (
	DriverSqlite     = store.DriverSqlite
	DriverPostgresql = store.DriverPostgresql
)

var (
	ErrUnsupportedDriver = store.ErrUnsupportedDriver
	ErrNotFound          = store.ErrNotFound
	ErrInvalidIdentifier = store.ErrInvalidIdentifier
)

// OpenStore connects the store described by cfg.
func OpenStore(ctx context.Context, cfg StoreConfig) (Connector, error) {
	return store.Open(ctx, cfg)
}

// MigrateStore applies the embedded article schema.
func MigrateStore(ctx context.Context, c Connector) error {
	return store.Migrate(ctx, c)
}

// Logging and metrics

type Logger = common.Logger

type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

func NewLogger(level LogLevel) *Logger {
	return common.NewLogger(level)
}

func NewJSONLogger(level LogLevel) *Logger {
	return common.NewJSONLogger(level)
}

func SetDefaultLogger(l *Logger) {
	common.SetDefaultLogger(l)
}

type Metrics = metrics.Collector

// NewMetrics creates a collector on its own Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return metrics.New(namespace)
}

type RetryConfig = retry.Config

func DefaultRetryConfig() *RetryConfig {
	return retry.DefaultRetryConfig()
}

// Status

type StatusInfo = status.Info

// StatusOf summarizes the runner's current state.
func StatusOf(s *State, uptime time.Duration) StatusInfo {
	return status.FromSnapshot(s.Snapshot(), uptime)
}
