package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmined/livesync/internal/config"
	"github.com/openmined/livesync/internal/utils"
)

func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("app-id", "a", "", "application id, overrides "+config.ProjectFileName)
	cmd.Flags().StringP("platform", "p", "", "android or ios, overrides "+config.ProjectFileName)
	cmd.Flags().String("files-dir", "", "directory mirrored to the device, relative to the project")
}

// loadProject reads the project settings from the directory in args (or the
// working directory) and applies the flag overrides
func loadProject(cmd *cobra.Command, args []string) (*config.Project, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	root, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("project directory %s does not exist", root)
	}

	project, err := config.LoadProject(root)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("app-id"); v != "" {
		project.AppID = v
	}
	if v, _ := flags.GetString("platform"); v != "" {
		project.Platform = v
	}
	if v, _ := flags.GetString("files-dir"); v != "" {
		project.FilesDir = v
	}

	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("project %s: %w", root, err)
	}
	if !utils.DirExists(project.FilesPath()) {
		return nil, errors.New("files dir " + project.FilesPath() + " does not exist")
	}
	return project, nil
}
