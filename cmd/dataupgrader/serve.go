package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/loykin/dataupgrader/cmd/dataupgrader/config"
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/metrics"
	"github.com/loykin/dataupgrader/internal/server"
	"github.com/loykin/dataupgrader/internal/upgrade"
	"github.com/loykin/dataupgrader/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run data upgrades in the background and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		v := viper.GetViper()
		doc, err := loadConfig(v)
		if err != nil {
			return err
		}
		return serve(ctx, doc, v.GetString("config"))
	},
}

// serve runs the upgrade runner next to the HTTP server until ctx is done.
// The runner finishing does not stop the server.
func serve(ctx context.Context, doc *config.ConfigDoc, configPath string) error {
	logger := common.GetLogger().WithComponent("serve")

	st, err := openStore(ctx, doc)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	toggle := server.NewToggle(doc.UpgradesEnabled())
	watchToggle(configPath, toggle)

	m := metrics.New(metrics.DefaultNamespace)
	runner, err := newRunner(doc, toggle.Enabled, m)
	if err != nil {
		return err
	}
	svc := services()
	srv := server.New(server.Options{
		State:    runner.State(),
		Store:    st,
		Toggle:   toggle,
		Metrics:  m,
		Auth:     doc.AuthConfig(),
		Services: svc,
		Logger:   common.GetLogger(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := runner.Run(gctx, func() upgrade.Executor { return st }, svc)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return srv.Serve(gctx, doc.ListenAddr())
	})

	logger.Info("serving", "addr", doc.ListenAddr(), "store", st.DriverName(), "upgrades_enabled", toggle.Enabled())
	return g.Wait()
}

// watchToggle keeps toggle in sync with upgrades.enabled in the config file.
func watchToggle(path string, toggle *server.Toggle) {
	p, ok := util.TrimEmptyCheck(path)
	if !ok {
		return
	}
	if _, err := os.Stat(p); err != nil {
		return
	}
	logger := common.GetLogger().WithComponent("config")

	w := viper.New()
	w.SetConfigFile(p)
	if err := w.ReadInConfig(); err != nil {
		logger.Warn("config watch disabled", "path", p, "error", err)
		return
	}
	w.OnConfigChange(func(fsnotify.Event) {
		reloadToggle(p, toggle)
	})
	w.WatchConfig()
}

func reloadToggle(path string, toggle *server.Toggle) {
	logger := common.GetLogger().WithComponent("config")
	var doc config.ConfigDoc
	if err := doc.Load(path); err != nil {
		logger.Warn("ignoring unreadable config change", "path", path, "error", err)
		return
	}
	enabled := doc.UpgradesEnabled()
	if enabled != toggle.Enabled() {
		logger.Info("run-data-upgrades toggled", "enabled", enabled)
	}
	toggle.Set(enabled)
}
