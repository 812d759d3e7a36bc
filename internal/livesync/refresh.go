package livesync

import (
	"context"
	"fmt"
	"log/slog"
)

// RefreshAction is how the application picks up synced code
type RefreshAction int

const (
	// SoftRefresh means the application already reloaded the new code in place
	SoftRefresh RefreshAction = iota
	Restart
)

func (a RefreshAction) String() string {
	switch a {
	case SoftRefresh:
		return "soft-refresh"
	case Restart:
		return "restart"
	default:
		return fmt.Sprintf("RefreshAction(%d)", int(a))
	}
}

// DecideRefresh restarts unless every change was fast-syncable and the
// application reported that it refreshed itself
func DecideRefresh(canFastSync, didRefresh bool) RefreshAction {
	if canFastSync && didRefresh {
		return SoftRefresh
	}
	return Restart
}

// RefreshApplication restarts the application when a soft refresh is not enough
func (s *SocketSyncService) RefreshApplication(ctx context.Context, req *SyncRequest, result *SyncResult) (RefreshAction, error) {
	action := DecideRefresh(s.CanExecuteFastSync(req), result.DidRefresh)
	slog.Debug("refresh decided", "appId", req.AppID, "action", action)

	if action == Restart {
		app := AppIdentifier{AppID: req.AppID, ProjectName: req.ProjectName}
		if err := s.device.ApplicationManager().RestartApplication(ctx, app); err != nil {
			return action, fmt.Errorf("restart application %s: %w", req.AppID, err)
		}
	}
	return action, nil
}
