package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/dataupgrader/cmd/dataupgrader/config"
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/store"
	"github.com/loykin/dataupgrader/internal/upgrade"
	"github.com/loykin/dataupgrader/pkg/status"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every pending data upgrade and cleanup once, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		doc, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		return runOnce(ctx, doc, cmd.OutOrStdout())
	},
}

// runOnce drives the runner to completion and prints the final state.
func runOnce(ctx context.Context, doc *config.ConfigDoc, out io.Writer, extra ...upgrade.Option) error {
	logger := common.GetLogger().WithComponent("run")
	if !doc.UpgradesEnabled() {
		logger.Warn("data upgrades are disabled; nothing to do")
		return nil
	}

	st, err := openStore(ctx, doc)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	runner, err := newRunner(doc, nil, nil, extra...)
	if err != nil {
		return err
	}
	started := time.Now()
	if err := runner.Run(ctx, func() upgrade.Executor { return st }, services()); err != nil {
		return err
	}
	info := status.FromSnapshot(runner.State().Snapshot(), time.Since(started))
	_, err = fmt.Fprint(out, info.FormatHuman(true))
	return err
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations to the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		return migrate(cmd.Context(), doc, cmd.OutOrStdout())
	},
}

func migrate(ctx context.Context, doc *config.ConfigDoc, out io.Writer) error {
	st, err := openStore(ctx, doc)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	version, err := store.SchemaVersion(ctx, st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "schema version: %d (%s)\n", version, st.DriverName())
	return err
}
