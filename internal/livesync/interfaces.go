package livesync

import (
	"context"
	"time"
)

type ConnectOptions struct {
	AppID            string
	DeviceID         string
	ProjectFilesPath string // local root; files are addressed relative to it on the device
}

type DoSyncOptions struct {
	// Timeout bounds the wait for the device to finish the operation. Zero waits forever.
	Timeout time.Duration
}

// OperationResult is what the device reports when a sync operation completes
type OperationResult struct {
	OperationID string
	DidRefresh  bool
}

// Transport is a stateful session with the livesync server running inside the app
type Transport interface {
	Connect(ctx context.Context, opts ConnectOptions) error
	GenerateOperationID() string
	SendDoSyncOperation(ctx context.Context, fastSync bool, opts *DoSyncOptions, operationID string) (*OperationResult, error)
	// IsOperationInProgress must not block; it is polled from the heartbeat
	IsOperationInProgress(operationID string) bool
	SendDirectory(ctx context.Context, localDir string) error
	SendFiles(ctx context.Context, localPaths []string) error
	RemoveFiles(ctx context.Context, localPaths []string) error
	// End closes the session. Safe to call more than once.
	End()
}

// HashStore is the per-app ledger of content hashes last pushed to the device
type HashStore interface {
	// GetShasumsFromDevice returns nil, nil when the device has no ledger yet
	GetShasumsFromDevice(ctx context.Context) (HashSnapshot, error)
	GenerateHashesFromLocalToDevicePaths(ctx context.Context, files []LocalFile) (HashSnapshot, error)
	GetChangedShasums(oldHashes, newHashes HashSnapshot) HashSnapshot
	GetMissingShasums(oldHashes, newHashes HashSnapshot) HashSnapshot
	UpdateHashes(ctx context.Context, files []LocalFile, fullRewrite bool) error
}

// HashStoreFactory returns the hash ledger of one application
type HashStoreFactory func(appID string) HashStore

type DeviceFileSystem interface {
	PutFile(ctx context.Context, localPath, remotePath, appID string) error
	// DeleteFile of a missing file may fail with an error matching fs.ErrNotExist
	DeleteFile(ctx context.Context, remotePath, appID string) error
}

type ApplicationManager interface {
	StartApplication(ctx context.Context, app AppIdentifier) error
	RestartApplication(ctx context.Context, app AppIdentifier) error
}

type DeviceInfo struct {
	Identifier string
	Platform   Platform
}

type Device interface {
	Info() DeviceInfo
	FileSystem() DeviceFileSystem
	ApplicationManager() ApplicationManager
}

// ProjectFilesManager maps device paths back to local project files
type ProjectFilesManager interface {
	ResolveLocalToDevicePath(projectFilesPath, remotePath string) (LocalFile, error)
}

// FastSyncPredicate reports whether a change to file can be applied without a
// restart of the application
type FastSyncPredicate func(platform Platform, file LocalFile) bool
