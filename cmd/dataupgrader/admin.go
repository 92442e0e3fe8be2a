package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/loykin/dataupgrader/cmd/dataupgrader/config"
	"github.com/loykin/dataupgrader/internal/server"
	"github.com/loykin/dataupgrader/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const DefaultTokenTTL = 15 * time.Minute

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for the admin endpoints, signed with server.jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		doc, err := loadConfig(v)
		if err != nil {
			return err
		}
		tok, err := server.IssueToken(doc.AuthConfig(), v.GetString("subject"), v.GetDuration("ttl"))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
		return err
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause data upgrades on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleRemote(cmd, "pause")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume data upgrades on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleRemote(cmd, "resume")
	},
}

func toggleRemote(cmd *cobra.Command, action string) error {
	v := viper.GetViper()
	doc, err := loadConfig(v)
	if err != nil {
		return err
	}
	token, _ := cmd.Flags().GetString("token")
	return postAdmin(cmd.Context(), doc, action, token, cmd.OutOrStdout())
}

// postAdmin calls /admin/upgrades/<action>. Without an explicit token one is
// minted from the local jwt secret.
func postAdmin(ctx context.Context, doc *config.ConfigDoc, action, token string, out io.Writer) error {
	tok, ok := util.TrimEmptyCheck(token)
	if !ok {
		var err error
		tok, err = server.IssueToken(doc.AuthConfig(), "cli", time.Minute)
		if err != nil {
			return fmt.Errorf("no --token given: %w", err)
		}
	}
	h, err := doc.HTTPClient(tok)
	if err != nil {
		return err
	}
	resp, err := h.New().R().SetContext(ctx).Post("/admin/upgrades/" + action)
	if err != nil {
		return fmt.Errorf("%s request: %w", action, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s returned %d: %s", action, resp.StatusCode(), resp.String())
	}
	_, err = fmt.Fprintln(out, resp.String())
	return err
}
