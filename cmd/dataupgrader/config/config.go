package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/dataupgrader/internal/article"
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/constants"
	"github.com/loykin/dataupgrader/internal/httpc"
	"github.com/loykin/dataupgrader/internal/metrics"
	"github.com/loykin/dataupgrader/internal/retry"
	"github.com/loykin/dataupgrader/internal/server"
	"github.com/loykin/dataupgrader/internal/store"
	"github.com/loykin/dataupgrader/internal/store/postgresql"
	"github.com/loykin/dataupgrader/internal/store/sqlite"
	"github.com/loykin/dataupgrader/internal/upgrade"
	"github.com/loykin/dataupgrader/internal/util"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DATAUPGRADER_STORE_TYPE.
const EnvPrefix = "DATAUPGRADER"

var envKeyReplacer = strings.NewReplacer(".", "_")

// BindEnv makes v read DATAUPGRADER_* variables for dotted config keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

type StoreConfig struct {
	Type     string            `mapstructure:"type" yaml:"type"`
	SQLite   sqlite.Config     `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres postgresql.Config `mapstructure:"postgres" yaml:"postgres"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
}

// ClientConfig configures CLI commands that talk to a running server.
type ClientConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	Timeout       string `mapstructure:"timeout" yaml:"timeout"`
	Insecure      bool   `mapstructure:"insecure" yaml:"insecure"`
	MinTLSVersion string `mapstructure:"min_tls_version" yaml:"min_tls_version"`
	MaxTLSVersion string `mapstructure:"max_tls_version" yaml:"max_tls_version"`
}

type UpgradesConfig struct {
	Enabled            *bool               `mapstructure:"enabled" yaml:"enabled"`
	BatchSize          int                 `mapstructure:"batch_size" yaml:"batch_size"`
	CleanupBatchSize   int                 `mapstructure:"cleanup_batch_size" yaml:"cleanup_batch_size"`
	InitialSleep       string              `mapstructure:"initial_sleep" yaml:"initial_sleep"`
	BatchSizeOverrides map[string]int      `mapstructure:"batch_size_overrides" yaml:"batch_size_overrides"`
	Cleanups           map[string][]string `mapstructure:"cleanups" yaml:"cleanups"`
	Retry              retry.Config        `mapstructure:"retry" yaml:"retry"`
}

type ConfigDoc struct {
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Client   ClientConfig   `mapstructure:"client" yaml:"client"`
	Upgrades UpgradesConfig `mapstructure:"upgrades" yaml:"upgrades"`
}

func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode %s: %w", clean, err)
	}
	return nil
}

// LoadOptional loads path when it exists. A missing file leaves defaults in place.
func (c *ConfigDoc) LoadOptional(path string) error {
	p, ok := util.TrimEmptyCheck(path)
	if !ok {
		return nil
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil
	}
	return c.Load(p)
}

// ApplyOverrides copies values set through flags or DATAUPGRADER_* env vars.
func (c *ConfigDoc) ApplyOverrides(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	str("logging.level", &c.Logging.Level)
	str("logging.format", &c.Logging.Format)
	str("store.type", &c.Store.Type)
	str("store.sqlite.path", &c.Store.SQLite.Path)
	str("store.postgres.dsn", &c.Store.Postgres.DSN)
	str("server.addr", &c.Server.Addr)
	str("server.jwt_secret", &c.Server.JWTSecret)
	str("client.url", &c.Client.URL)
	str("upgrades.initial_sleep", &c.Upgrades.InitialSleep)
	if v.IsSet("upgrades.enabled") {
		enabled := v.GetBool("upgrades.enabled")
		c.Upgrades.Enabled = &enabled
	}
	if v.IsSet("upgrades.batch_size") {
		c.Upgrades.BatchSize = v.GetInt("upgrades.batch_size")
	}
	if v.IsSet("upgrades.cleanup_batch_size") {
		c.Upgrades.CleanupBatchSize = v.GetInt("upgrades.cleanup_batch_size")
	}
}

func (c *ConfigDoc) Validate() error {
	if _, err := store.NewConnector(c.Store.Type); err != nil {
		return err
	}
	if c.Upgrades.BatchSize < 0 || c.Upgrades.CleanupBatchSize < 0 {
		return fmt.Errorf("batch sizes must not be negative")
	}
	for name, n := range c.Upgrades.BatchSizeOverrides {
		if n <= 0 {
			return fmt.Errorf("batch_size_overrides.%s must be positive", name)
		}
	}
	if _, err := c.initialSleep(); err != nil {
		return err
	}
	if _, err := c.parseLogLevel(); err != nil {
		return err
	}
	return nil
}

// StoreConfig maps the store section onto the driver config.
func (c *ConfigDoc) StoreConfig() store.Config {
	switch util.TrimAndLower(c.Store.Type) {
	case "postgres", "postgresql", "pg":
		pg := c.Store.Postgres
		return store.Config{Driver: store.DriverPostgresql, DriverConfig: &pg}
	default:
		lite := c.Store.SQLite
		return store.Config{Driver: store.DriverSqlite, DriverConfig: &lite}
	}
}

// UpgradesEnabled reads the run-data-upgrades toggle. Defaults to true.
func (c *ConfigDoc) UpgradesEnabled() bool {
	if c.Upgrades.Enabled == nil {
		return true
	}
	return *c.Upgrades.Enabled
}

// Cleanups returns the cleanup names configured for table.
func (c *ConfigDoc) Cleanups(table string) []string {
	return c.Upgrades.Cleanups[table]
}

func (c *ConfigDoc) initialSleep() (time.Duration, error) {
	s, ok := util.TrimEmptyCheck(c.Upgrades.InitialSleep)
	if !ok {
		return upgrade.DefaultInitialTimeout, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid upgrades.initial_sleep %q: %w", s, err)
	}
	return d, nil
}

// Used when the config names no overrides.
var defaultBatchSizeOverrides = map[string]int{article.FixBadStatuses.Name: 5}

// RunnerOptions builds runner options from the upgrades section.
func (c *ConfigDoc) RunnerOptions(enabled func() bool, m *metrics.Collector) ([]upgrade.Option, error) {
	initial, err := c.initialSleep()
	if err != nil {
		return nil, err
	}
	overrides := c.Upgrades.BatchSizeOverrides
	if len(overrides) == 0 {
		overrides = defaultBatchSizeOverrides
	}
	rc := c.Upgrades.Retry
	return []upgrade.Option{
		upgrade.WithEnabled(enabled),
		upgrade.WithBatchSize(c.Upgrades.BatchSize),
		upgrade.WithCleanupBatchSize(c.Upgrades.CleanupBatchSize),
		upgrade.WithBatchSizeOverrides(overrides),
		upgrade.WithInitialTimeout(initial),
		upgrade.WithRetryConfig(&rc),
		upgrade.WithMetrics(m),
		upgrade.WithLogger(common.GetLogger()),
	}, nil
}

// ListenAddr returns the configured HTTP address.
func (c *ConfigDoc) ListenAddr() string {
	return util.TrimWithDefault(c.Server.Addr, constants.DefaultListenAddr)
}

func (c *ConfigDoc) AuthConfig() server.AuthConfig {
	return server.AuthConfig{
		Secret:    []byte(strings.TrimSpace(c.Server.JWTSecret)),
		Issuer:    c.Server.JWTIssuer,
		Audience:  c.Server.JWTAudience,
		ClockSkew: 30 * time.Second,
	}
}

// parseTLSVersion converts a TLS version string to the corresponding crypto/tls constant.
// Supports various formats: "1.2", "12", "tls1.2", "tls12".
// Returns 0 if the version string is not recognized.
func parseTLSVersion(version string) uint16 {
	switch util.TrimAndLower(version) {
	case "1.2", "12", "tls1.2", "tls12":
		return tls.VersionTLS12
	case "1.3", "13", "tls1.3", "tls13":
		return tls.VersionTLS13
	default:
		return 0
	}
}

// HTTPClient describes a client for the configured server, authenticated with token.
func (c *ConfigDoc) HTTPClient(token string) (*httpc.Httpc, error) {
	timeout := constants.DefaultStatusTimeout
	if s, ok := util.TrimEmptyCheck(c.Client.Timeout); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid client.timeout %q: %w", s, err)
		}
		timeout = d
	}
	h := &httpc.Httpc{
		BaseURL: util.TrimWithDefault(c.Client.URL, constants.DefaultStatusURL),
		Token:   token,
		Timeout: timeout,
	}
	if c.Client.Insecure || c.Client.MinTLSVersion != "" || c.Client.MaxTLSVersion != "" {
		// #nosec G402 -- insecure mode is an explicit opt-in for self-signed dev servers
		h.TlsConfig = &tls.Config{
			InsecureSkipVerify: c.Client.Insecure,
			MinVersion:         parseTLSVersion(c.Client.MinTLSVersion),
			MaxVersion:         parseTLSVersion(c.Client.MaxTLSVersion),
		}
	}
	return h, nil
}

func (c *ConfigDoc) parseLogLevel() (common.LogLevel, error) {
	level := util.TrimAndLower(c.Logging.Level)
	switch level {
	case "error":
		return common.LogLevelError, nil
	case "warn", "warning":
		return common.LogLevelWarn, nil
	case "info", "":
		return common.LogLevelInfo, nil
	case "debug":
		return common.LogLevelDebug, nil
	default:
		return common.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging configures the global logger based on config settings
func (c *ConfigDoc) SetupLogging() error {
	level, err := c.parseLogLevel()
	if err != nil {
		return err
	}

	var logger *common.Logger
	format := util.TrimAndLower(c.Logging.Format)

	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	switch format {
	case "json":
		logger = common.NewJSONLogger(level)
	case "color", "colour":
		logger = common.NewColorLogger(level)
	case "text", "":
		if useColor {
			logger = common.NewColorLogger(level)
		} else {
			logger = common.NewLogger(level)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	common.SetDefaultLogger(logger)
	common.EnableMasking(maskingEnabled)

	logger.Debug("logging configured",
		"level", util.TrimWithDefault(util.TrimAndLower(c.Logging.Level), "info"),
		"format", format,
		"color", useColor,
		"mask_sensitive", maskingEnabled)
	return nil
}
