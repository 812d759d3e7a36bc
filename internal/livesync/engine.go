package livesync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/openmined/livesync/internal/utils"
)

const (
	// DefaultStatusUpdateInterval is how often an in-flight operation is reported
	DefaultStatusUpdateInterval = 10 * time.Second

	markerSuffix = "-livesync-in-progress"
)

// Dependencies are the already-resolved collaborators of a sync service
type Dependencies struct {
	Device       Device
	Transport    Transport
	Hashes       HashStoreFactory
	ProjectFiles ProjectFilesManager
	FastSync     FastSyncPredicate
	Process      ProcessService
	Status       *OperationStatus // optional
}

func (d Dependencies) validate() error {
	switch {
	case d.Device == nil:
		return fmt.Errorf("%w: device", ErrMissingDependency)
	case d.Transport == nil:
		return fmt.Errorf("%w: transport", ErrMissingDependency)
	case d.Hashes == nil:
		return fmt.Errorf("%w: hash store", ErrMissingDependency)
	case d.ProjectFiles == nil:
		return fmt.Errorf("%w: project files", ErrMissingDependency)
	case d.FastSync == nil:
		return fmt.Errorf("%w: fast sync predicate", ErrMissingDependency)
	case d.Process == nil:
		return fmt.Errorf("%w: process service", ErrMissingDependency)
	}
	return nil
}

type Option func(*SocketSyncService)

// WithStatusUpdateInterval overrides DefaultStatusUpdateInterval
func WithStatusUpdateInterval(d time.Duration) Option {
	return func(s *SocketSyncService) {
		if d > 0 {
			s.statusInterval = d
		}
	}
}

// WithDoSyncOptions sets the options passed along with every sync operation
func WithDoSyncOptions(opts *DoSyncOptions) Option {
	return func(s *SocketSyncService) {
		s.doSyncOpts = opts
	}
}

// SocketSyncService syncs an application through a Transport session.
//
// Callers must not run two cycles for the same device and app at once: the
// operation and the marker file are keyed by app id only.
type SocketSyncService struct {
	profile        PlatformProfile
	device         Device
	transport      Transport
	hashes         HashStoreFactory
	projectFiles   ProjectFilesManager
	fastSync       FastSyncPredicate
	process        ProcessService
	status         *OperationStatus
	statusInterval time.Duration
	doSyncOpts     *DoSyncOptions
}

func NewSocketSyncService(profile PlatformProfile, deps Dependencies, opts ...Option) (*SocketSyncService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	status := deps.Status
	if status == nil {
		status = NewOperationStatus()
	}

	s := &SocketSyncService{
		profile:        profile,
		device:         deps.Device,
		transport:      deps.Transport,
		hashes:         deps.Hashes,
		projectFiles:   deps.ProjectFiles,
		fastSync:       deps.FastSync,
		process:        deps.Process,
		status:         status,
		statusInterval: DefaultStatusUpdateInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MarkerPath is where the sync-in-progress marker of appID lives on the device
func (s *SocketSyncService) MarkerPath(appID string) string {
	return path.Join(s.profile.MarkerDir, appID+markerSuffix)
}

// BeforeSync pushes the marker file, starts the application and opens the
// transport session. If a later step fails the marker is removed again.
func (s *SocketSyncService) BeforeSync(ctx context.Context, req *SyncRequest) error {
	placeholder, err := utils.WriteTempFile("livesync", nil)
	if err != nil {
		return fmt.Errorf("create marker placeholder: %w", err)
	}
	defer os.Remove(placeholder)

	markerPath := s.MarkerPath(req.AppID)
	if err := s.device.FileSystem().PutFile(ctx, placeholder, markerPath, req.AppID); err != nil {
		return &TransferError{Path: markerPath, Err: err}
	}

	app := AppIdentifier{AppID: req.AppID, ProjectName: req.ProjectName}
	if err := s.device.ApplicationManager().StartApplication(ctx, app); err != nil {
		return errors.Join(fmt.Errorf("start application %s: %w", req.AppID, err), s.deleteMarker(ctx, req.AppID))
	}

	err = s.transport.Connect(ctx, ConnectOptions{
		AppID:            req.AppID,
		DeviceID:         s.device.Info().Identifier,
		ProjectFilesPath: req.ProjectFilesPath,
	})
	if err != nil {
		return errors.Join(&TransportError{Op: "connect", Err: err}, s.deleteMarker(ctx, req.AppID))
	}

	slog.Debug("livesync ready", "appId", req.AppID, "device", s.device.Info().Identifier, "marker", markerPath)
	return nil
}

// FinalizeSync runs the sync operation and always ends the transport session
func (s *SocketSyncService) FinalizeSync(ctx context.Context, req *SyncRequest) (*SyncResult, error) {
	defer s.transport.End()
	return s.Sync(ctx, req)
}

type doSyncOutcome struct {
	result *OperationResult
	err    error
}

// Sync asks the application to apply the files already transferred and waits
// for it to finish. The marker file is removed on every exit path.
func (s *SocketSyncService) Sync(ctx context.Context, req *SyncRequest) (*SyncResult, error) {
	if len(req.ModifiedFiles) == 0 {
		if err := s.deleteMarker(ctx, req.AppID); err != nil {
			return nil, err
		}
		return &SyncResult{DidRefresh: true, TransferredFiles: []TransferredFile{}}, nil
	}

	operationID := s.transport.GenerateOperationID()
	canFastSync := s.CanExecuteFastSync(req)
	logger := slog.With("appId", req.AppID, "operationId", operationID, "fastSync", canFastSync)

	s.status.SetSyncing(operationID, req.AppID, canFastSync)

	settled := make(chan doSyncOutcome, 1)
	go func() {
		result, err := s.transport.SendDoSyncOperation(ctx, canFastSync, s.doSyncOpts, operationID)
		settled <- doSyncOutcome{result: result, err: err}
	}()

	hb := startHeartbeat(s.statusInterval, func() {
		if s.transport.IsOperationInProgress(operationID) {
			logger.Info("sync operation in progress...")
			s.status.Heartbeat(operationID)
		}
	})

	cleanup := NewCleanupAction(func(ctx context.Context) error {
		hb.Stop()
		return s.deleteMarker(ctx, req.AppID)
	})
	detach := s.process.AttachToProcessExitSignals(func() {
		if err := cleanup.Run(ctx); err != nil {
			logger.Warn("cleanup on exit failed", "error", err)
		}
	})
	defer detach()
	defer cleanup.Run(ctx)

	outcome := <-settled
	cleanupErr := cleanup.Run(ctx)

	if outcome.err != nil {
		s.status.SetError(operationID, outcome.err)
		return nil, errors.Join(&TransportError{Op: "do sync", Err: outcome.err}, cleanupErr)
	}
	if cleanupErr != nil {
		s.status.SetError(operationID, cleanupErr)
		return nil, cleanupErr
	}

	if err := s.hashes(req.AppID).UpdateHashes(ctx, req.ModifiedFiles, true); err != nil {
		s.status.SetError(operationID, err)
		return nil, fmt.Errorf("update device hashes: %w", err)
	}

	s.status.SetCompleted(operationID)
	logger.Debug("sync operation done", "didRefresh", outcome.result.DidRefresh, "files", len(req.ModifiedFiles))

	resultID := outcome.result.OperationID
	if resultID == "" {
		resultID = operationID
	}
	return &SyncResult{
		OperationID:      resultID,
		DidRefresh:       outcome.result.DidRefresh,
		TransferredFiles: tagFiles(req.ModifiedFiles, ActionTransferred),
	}, nil
}

// CanExecuteFastSync is false for full syncs and whenever one of the files
// cannot be applied without restarting the application
func (s *SocketSyncService) CanExecuteFastSync(req *SyncRequest) bool {
	if req.IsFullSync {
		return false
	}
	for _, file := range req.ModifiedFiles {
		if !s.fastSync(s.profile.Platform, file) {
			return false
		}
	}
	return true
}

// Status exposes the operations started by this service
func (s *SocketSyncService) Status() *OperationStatus {
	return s.status
}

// deleteMarker runs detached from ctx cancellation so an interrupted cycle
// still removes the marker
func (s *SocketSyncService) deleteMarker(ctx context.Context, appID string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultCleanupTimeout)
	defer cancel()

	markerPath := s.MarkerPath(appID)
	err := s.device.FileSystem().DeleteFile(ctx, markerPath, appID)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete marker %s: %w", markerPath, err)
	}
	return nil
}
