package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmined/livesync/internal/authtoken"
)

func init() {
	rootCmd.AddCommand(newTokenCmd())
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for an agent started with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := currentConfig()
			if err != nil {
				return err
			}
			if cfg.AgentSecret == "" {
				return errors.New("no agent secret configured, set --agent-secret or LIVESYNC_AGENT_SECRET")
			}

			ttl, _ := cmd.Flags().GetDuration("ttl")
			subject, _ := cmd.Flags().GetString("subject")
			if subject == "" {
				subject = hostSubject()
			}

			token, err := authtoken.Issue(cfg.AgentSecret, subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().Duration("ttl", authtoken.DefaultTokenTTL, "token lifetime")
	cmd.Flags().String("subject", "", "token subject, defaults to an id of this machine")
	return cmd
}
