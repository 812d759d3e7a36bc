package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmined/livesync/internal/livesync"
	"github.com/openmined/livesync/internal/projectfiles"
)

const operationRetention = 10 * time.Minute

func init() {
	rootCmd.AddCommand(newWatchCmd())
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [project-dir]",
		Short: "Sync the project, then keep syncing every change",
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
			quiet, _ := cmd.Flags().GetDuration("quiet-period")

			cmd.SilenceUsage = true
			p, err := newPipeline(cmd.Context(), cfg, project)
			if err != nil {
				return err
			}
			defer p.Close()

			return exitOnCancel(watch(cmd, p, quiet))
		},
	}
	addProjectFlags(cmd)
	cmd.Flags().Duration("quiet-period", projectfiles.DefaultQuietPeriod, "wait this long after the last change before syncing")
	return cmd
}

func watch(cmd *cobra.Command, p *pipeline, quiet time.Duration) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	result, err := p.fullSync(ctx, false)
	if err != nil {
		return err
	}
	printCycle(out, p, result)

	watcher := projectfiles.NewWatcher(p.files)
	watcher.SetQuietPeriod(quiet)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	go logOperations(ctx, p)

	slog.Info("watching for changes", "dir", p.files.Root(), "appId", p.project.AppID)
	for batch := range watcher.Batches() {
		result, err := syncBatch(ctx, p, batch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// keep watching, the next change retries
			printError(cmd.ErrOrStderr(), err)
			continue
		}
		if result != nil {
			printCycle(out, p, result)
		}
		p.status.Cleanup(operationRetention)
	}
	return ctx.Err()
}

// syncBatch pushes the changed files of a batch. Deletions need the hash
// ledger to find what to remove, so a batch with any removed path runs a full
// sync instead.
func syncBatch(ctx context.Context, p *pipeline, batch projectfiles.Batch) (*livesync.CycleResult, error) {
	paths := make([]string, 0, len(batch.Paths))
	for _, rel := range batch.Paths {
		local := filepath.Join(p.files.Root(), filepath.FromSlash(rel))
		info, err := os.Stat(local)
		if err != nil {
			slog.Debug("change includes removed path, running full sync", "path", rel)
			return p.fullSync(ctx, false)
		}
		if info.IsDir() {
			continue
		}
		paths = append(paths, local)
	}

	files, err := p.files.Files(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return p.run(ctx, p.request(files, false, false))
}

func logOperations(ctx context.Context, p *pipeline) {
	events := p.status.Subscribe()
	defer p.status.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			slog.Debug("operation", "id", ev.OperationID, "state", ev.Info.State, "heartbeats", ev.Info.Heartbeats)
		}
	}
}
