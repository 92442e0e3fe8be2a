package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/dataupgrader/pkg/status"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DefaultWaitTimeout  = 10 * time.Minute
	DefaultWaitInterval = 2 * time.Second
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the data-upgrade progress of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		doc, err := loadConfig(v)
		if err != nil {
			return err
		}
		h, err := doc.HTTPClient("")
		if err != nil {
			return err
		}
		opts := statusOptions{
			tables:   v.GetBool("tables"),
			wait:     v.GetBool("wait"),
			timeout:  v.GetDuration("wait_timeout"),
			interval: v.GetDuration("wait_interval"),
		}
		return showStatus(cmd.Context(), h.New(), opts, cmd.OutOrStdout())
	},
}

type statusOptions struct {
	tables   bool
	wait     bool
	timeout  time.Duration
	interval time.Duration
}

// showStatus prints the server's status. With wait set it polls until the
// runner reports done or the timeout passes.
func showStatus(ctx context.Context, client *resty.Client, opts statusOptions, out io.Writer) error {
	if !opts.wait {
		info, err := status.Fetch(ctx, client)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, info.FormatHuman(opts.tables))
		return err
	}

	if opts.timeout <= 0 {
		opts.timeout = DefaultWaitTimeout
	}
	if opts.interval <= 0 {
		opts.interval = DefaultWaitInterval
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var last status.Info
	var lastErr error
	for {
		info, err := status.Fetch(ctx, client)
		if err == nil {
			last, lastErr = info, nil
			if info.Done() {
				_, err = fmt.Fprint(out, info.FormatHuman(opts.tables))
				return err
			}
		} else if ctx.Err() == nil {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("timeout waiting for data upgrades: %w", lastErr)
			}
			_, _ = fmt.Fprint(out, last.FormatHuman(opts.tables))
			return errors.New("timeout waiting for data upgrades to finish")
		case <-time.After(opts.interval):
		}
	}
}
