package main

import (
	"github.com/loykin/dataupgrader/cmd/dataupgrader/config"
	"github.com/loykin/dataupgrader/internal/article"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "dataupgrader",
	Short:         "Upgrade the contents of existing rows in small batches, in the background",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Defaults
	v := viper.GetViper()
	v.SetDefault("config", "./config.yaml")
	v.SetDefault("rows", article.DefaultSeedRows)
	v.SetDefault("seed", 0)
	v.SetDefault("wait_timeout", DefaultWaitTimeout)
	v.SetDefault("wait_interval", DefaultWaitInterval)
	v.SetDefault("subject", "admin")
	v.SetDefault("ttl", DefaultTokenTTL)

	// Environment variables support: DATAUPGRADER_CONFIG, DATAUPGRADER_STORE_TYPE, ...
	config.BindEnv(v)

	pf := rootCmd.PersistentFlags()
	pf.String("config", v.GetString("config"), "path to a config yaml (missing file = built-in defaults)")
	pf.String("log-level", "", "log level: error, warn, info, debug")
	pf.String("log-format", "", "log format: text, json, color")
	pf.String("store", "", "store type: sqlite or postgres")
	pf.String("sqlite-path", "", "sqlite database file")
	pf.String("postgres-dsn", "", "postgres connection string")
	pf.String("url", "", "base URL of a running server (status, pause, resume)")

	serveCmd.Flags().String("addr", "", "HTTP listen address")
	serveCmd.Flags().Bool("enabled", true, "start with data upgrades running")
	pf.Int("batch-size", 0, "rows per upgrade batch (serve, run; 0 = default)")
	pf.String("initial-sleep", "", "initial sleep between batches, e.g. 10s (serve, run)")
	seedCmd.Flags().Int("rows", v.GetInt("rows"), "number of articles to insert")
	seedCmd.Flags().Uint64("seed", 0, "random seed (0 = time based)")
	statusCmd.Flags().Bool("tables", false, "list remaining and completed upgrades per table")
	statusCmd.Flags().Bool("wait", false, "poll until every upgrade and cleanup is done")
	statusCmd.Flags().Duration("timeout", v.GetDuration("wait_timeout"), "how long --wait polls")
	statusCmd.Flags().Duration("interval", v.GetDuration("wait_interval"), "poll interval for --wait")
	tokenCmd.Flags().String("subject", v.GetString("subject"), "token subject")
	tokenCmd.Flags().Duration("ttl", v.GetDuration("ttl"), "token lifetime")
	for _, c := range []*cobra.Command{pauseCmd, resumeCmd} {
		c.Flags().String("token", "", "bearer token (default: minted from server.jwt_secret)")
	}

	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = v.BindPFlag("store.type", pf.Lookup("store"))
	_ = v.BindPFlag("store.sqlite.path", pf.Lookup("sqlite-path"))
	_ = v.BindPFlag("store.postgres.dsn", pf.Lookup("postgres-dsn"))
	_ = v.BindPFlag("client.url", pf.Lookup("url"))
	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("upgrades.enabled", serveCmd.Flags().Lookup("enabled"))
	_ = v.BindPFlag("upgrades.batch_size", pf.Lookup("batch-size"))
	_ = v.BindPFlag("upgrades.initial_sleep", pf.Lookup("initial-sleep"))
	_ = v.BindPFlag("rows", seedCmd.Flags().Lookup("rows"))
	_ = v.BindPFlag("seed", seedCmd.Flags().Lookup("seed"))
	_ = v.BindPFlag("tables", statusCmd.Flags().Lookup("tables"))
	_ = v.BindPFlag("wait", statusCmd.Flags().Lookup("wait"))
	_ = v.BindPFlag("wait_timeout", statusCmd.Flags().Lookup("timeout"))
	_ = v.BindPFlag("wait_interval", statusCmd.Flags().Lookup("interval"))
	_ = v.BindPFlag("subject", tokenCmd.Flags().Lookup("subject"))
	_ = v.BindPFlag("ttl", tokenCmd.Flags().Lookup("ttl"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
