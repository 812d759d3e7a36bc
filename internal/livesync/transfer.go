package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// TransferFiles pushes the request's files. Full syncs are diffed against the
// device hash ledger and may remove files; incremental syncs push every file.
func (s *SocketSyncService) TransferFiles(ctx context.Context, req *SyncRequest) ([]TransferredFile, error) {
	if req.IsFullSync {
		return s.transferDirectory(ctx, req)
	}
	return s.transferFiles(ctx, req.ModifiedFiles)
}

// RemoveFiles deletes files from the device
func (s *SocketSyncService) RemoveFiles(ctx context.Context, files []LocalFile) error {
	if len(files) == 0 {
		return nil
	}
	if err := s.transport.RemoveFiles(ctx, LocalPaths(files)); err != nil {
		return &TransportError{Op: "remove files", Err: err}
	}
	return nil
}

func (s *SocketSyncService) transferFiles(ctx context.Context, files []LocalFile) ([]TransferredFile, error) {
	slog.Debug("transferring files", "count", len(files))
	if err := s.transport.SendFiles(ctx, LocalPaths(files)); err != nil {
		return nil, &TransportError{Op: "send files", Err: err}
	}
	return tagFiles(files, ActionTransferred), nil
}

func (s *SocketSyncService) transferDirectory(ctx context.Context, req *SyncRequest) ([]TransferredFile, error) {
	hashes := s.hashes(req.AppID)

	oldShasums, err := hashes.GetShasumsFromDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("read device hashes: %w", err)
	}

	if req.Force || oldShasums == nil {
		slog.Debug("transferring directory", "appId", req.AppID, "dir", req.ProjectFilesPath, "force", req.Force)
		if err := s.transport.SendDirectory(ctx, req.ProjectFilesPath); err != nil {
			return nil, &TransportError{Op: "send directory", Err: err}
		}
		return tagFiles(req.ModifiedFiles, ActionTransferred), nil
	}

	currentShasums, err := hashes.GenerateHashesFromLocalToDevicePaths(ctx, req.ModifiedFiles)
	if err != nil {
		return nil, fmt.Errorf("hash local files: %w", err)
	}
	changedShasums := hashes.GetChangedShasums(oldShasums, currentShasums)
	missingShasums := hashes.GetMissingShasums(oldShasums, currentShasums)

	removed := s.resolveMissing(req, missingShasums)
	if err := s.RemoveFiles(ctx, removed); err != nil {
		return nil, err
	}

	var changed []LocalFile
	for _, file := range req.ModifiedFiles {
		if _, ok := changedShasums[file.RemotePath]; ok {
			changed = append(changed, file)
		}
	}

	slog.Debug("transferring changed files", "appId", req.AppID, "changed", len(changed), "removed", len(removed))
	if len(changed) > 0 {
		if err := s.transport.SendFiles(ctx, LocalPaths(changed)); err != nil {
			return nil, &TransportError{Op: "send files", Err: err}
		}
	}

	return append(tagFiles(changed, ActionTransferred), tagFiles(removed, ActionRemoved)...), nil
}

// resolveMissing maps device paths without a local counterpart back to local
// files, in sorted order. Paths that cannot be resolved are skipped.
func (s *SocketSyncService) resolveMissing(req *SyncRequest, missing HashSnapshot) []LocalFile {
	remotePaths := make([]string, 0, len(missing))
	for remotePath := range missing {
		remotePaths = append(remotePaths, remotePath)
	}
	slices.Sort(remotePaths)

	files := make([]LocalFile, 0, len(remotePaths))
	for _, remotePath := range remotePaths {
		file, err := s.projectFiles.ResolveLocalToDevicePath(req.ProjectFilesPath, remotePath)
		if err != nil {
			slog.Warn("skipping removal of unresolvable device path", "appId", req.AppID, "path", remotePath, "error", err)
			continue
		}
		files = append(files, file)
	}
	return files
}
