package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmined/livesync/internal/agent"
)

func init() {
	rootCmd.AddCommand(newAgentCmd())
}

func newAgentCmd() *cobra.Command {
	var cfg agent.Config

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a device agent that stores synced files in a local directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Secret == "" {
				cfg.Secret = viper.GetString("agent_secret")
			}

			srv, err := agent.New(&cfg)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			defer slog.Info("Bye!")
			return exitOnCancel(srv.Start(cmd.Context()))
		},
	}

	cmd.Flags().StringVarP(&cfg.Addr, "bind", "b", agent.DefaultAddr, "address to bind the agent")
	cmd.Flags().StringVarP(&cfg.Root, "root", "r", "", "directory standing in for the device file system")
	cmd.Flags().DurationVar(&cfg.ApplyDelay, "apply-delay", 0, "time the app takes to apply a sync")
	cmd.Flags().StringVar(&cfg.RateLimit, "rate-limit", agent.DefaultRateLimit, `request rate such as "200-S", "-" turns it off`)
	_ = cmd.MarkFlagRequired("root")
	return cmd
}
