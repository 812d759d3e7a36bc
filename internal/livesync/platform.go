package livesync

import (
	"context"
	"fmt"
)

// DeviceSyncService is what a platform needs to implement to take part in a sync cycle
type DeviceSyncService interface {
	BeforeSync(ctx context.Context, req *SyncRequest) error
	TransferFiles(ctx context.Context, req *SyncRequest) ([]TransferredFile, error)
	RemoveFiles(ctx context.Context, files []LocalFile) error
	Sync(ctx context.Context, req *SyncRequest) (*SyncResult, error)
	FinalizeSync(ctx context.Context, req *SyncRequest) (*SyncResult, error)
	RefreshApplication(ctx context.Context, req *SyncRequest, result *SyncResult) (RefreshAction, error)
}

// PlatformProfile holds what differs between platforms for the socket engine
type PlatformProfile struct {
	Platform Platform
	// MarkerDir is the device directory that holds the sync-in-progress marker
	MarkerDir string
}

type serviceConstructor func(profile PlatformProfile, deps Dependencies, opts ...Option) (DeviceSyncService, error)

func newSocketService(profile PlatformProfile, deps Dependencies, opts ...Option) (DeviceSyncService, error) {
	return NewSocketSyncService(profile, deps, opts...)
}

var platforms = map[Platform]struct {
	profile PlatformProfile
	build   serviceConstructor
}{
	PlatformAndroid: {
		profile: PlatformProfile{Platform: PlatformAndroid, MarkerDir: "/data/local/tmp"},
		build:   newSocketService,
	},
	PlatformIOS: {
		profile: PlatformProfile{Platform: PlatformIOS, MarkerDir: "/Library/Application Support/LiveSync"},
		build:   newSocketService,
	},
}

// ProfileFor returns the built-in profile of a platform
func ProfileFor(platform Platform) (PlatformProfile, error) {
	entry, ok := platforms[platform]
	if !ok {
		return PlatformProfile{}, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}
	return entry.profile, nil
}

// NewDeviceSyncService builds the sync service registered for platform
func NewDeviceSyncService(platform Platform, deps Dependencies, opts ...Option) (DeviceSyncService, error) {
	entry, ok := platforms[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}
	return entry.build(entry.profile, deps, opts...)
}
