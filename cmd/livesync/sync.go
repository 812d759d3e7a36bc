package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [project-dir]",
		Short: "Run one full sync of the project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := currentConfig()
			if err != nil {
				return err
			}
			project, err := loadProject(cmd, args)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")

			cmd.SilenceUsage = true
			p, err := newPipeline(cmd.Context(), cfg, project)
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := p.fullSync(cmd.Context(), force)
			if err != nil {
				printError(cmd.ErrOrStderr(), err)
				return err
			}
			printCycle(cmd.OutOrStdout(), p, result)
			return nil
		},
	}
	addProjectFlags(cmd)
	cmd.Flags().BoolP("force", "f", false, "push every file even when the device has them")
	return cmd
}
