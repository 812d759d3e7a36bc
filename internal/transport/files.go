package transport

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/livesync/internal/lsproto"
	"github.com/openmined/livesync/internal/utils"
	"golang.org/x/sync/errgroup"
)

// SendFiles pushes every file, keeping at most sendWorkers requests in flight
func (c *Client) SendFiles(ctx context.Context, localPaths []string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if len(localPaths) == 0 {
		return nil
	}

	start := time.Now()
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.sendWorkers)
	for _, localPath := range localPaths {
		g.Go(func() error {
			n, err := s.sendFile(gctx, localPath)
			if err != nil {
				return err
			}
			total.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("files synced",
		"appId", s.opts.AppID,
		"count", len(localPaths),
		"size", humanize.Bytes(uint64(total.Load())),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// SendDirectory pushes every file below localDir that is not ignored
func (c *Client) SendDirectory(ctx context.Context, localDir string) error {
	var paths []string
	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == localDir {
			return nil
		}

		rel, ok := utils.RelDevicePath(localDir, path)
		if !ok {
			return nil
		}
		if c.ignore != nil && c.ignore(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", localDir, err)
	}

	slog.Debug("sending directory", "dir", localDir, "files", len(paths))
	return c.SendFiles(ctx, paths)
}

// RemoveFiles deletes the device copies of local files, one request at a time
func (c *Client) RemoveFiles(ctx context.Context, localPaths []string) error {
	s, err := c.current()
	if err != nil {
		return err
	}

	for _, localPath := range localPaths {
		rel, err := s.devicePath(localPath)
		if err != nil {
			return err
		}
		if _, err := s.request(ctx, lsproto.NewFileDelete(rel)); err != nil {
			return fmt.Errorf("delete %s: %w", rel, err)
		}
	}

	slog.Info("files removed", "appId", s.opts.AppID, "count", len(localPaths))
	return nil
}

func (s *session) sendFile(ctx context.Context, localPath string) (int64, error) {
	rel, err := s.devicePath(localPath)
	if err != nil {
		return 0, err
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", localPath, err)
	}
	if len(content) > lsproto.MaxMessageSize-1024 {
		return 0, fmt.Errorf("%s is %s, larger than the frame limit", localPath, humanize.Bytes(uint64(len(content))))
	}

	if _, err := s.request(ctx, lsproto.NewFileWrite(rel, utils.ContentHash(content), content)); err != nil {
		return 0, fmt.Errorf("write %s: %w", rel, err)
	}
	return int64(len(content)), nil
}

func (s *session) devicePath(localPath string) (string, error) {
	rel, ok := utils.RelDevicePath(s.opts.ProjectFilesPath, localPath)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideProject, localPath)
	}
	return rel, nil
}
