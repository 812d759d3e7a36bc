package livesync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideRefresh(t *testing.T) {
	tests := []struct {
		canFastSync bool
		didRefresh  bool
		want        RefreshAction
	}{
		{canFastSync: true, didRefresh: true, want: SoftRefresh},
		{canFastSync: true, didRefresh: false, want: Restart},
		{canFastSync: false, didRefresh: true, want: Restart},
		{canFastSync: false, didRefresh: false, want: Restart},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DecideRefresh(tt.canFastSync, tt.didRefresh), "canFastSync=%t didRefresh=%t", tt.canFastSync, tt.didRefresh)
	}
}

func TestRefreshAction_String(t *testing.T) {
	assert.Equal(t, "soft-refresh", SoftRefresh.String())
	assert.Equal(t, "restart", Restart.String())
	assert.Equal(t, "RefreshAction(7)", RefreshAction(7).String())
}

func TestRefreshApplication_FullSyncNeverSoftRefreshes(t *testing.T) {
	env := newTestEnv(t)

	action, err := env.svc.RefreshApplication(context.Background(), fullRequest(fileA), &SyncResult{DidRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, Restart, action)
	assert.Equal(t, []AppIdentifier{{AppID: "com.app.x", ProjectName: "app"}}, env.device.apps.restarted)
}

func TestRefreshApplication_SoftRefresh(t *testing.T) {
	env := newTestEnv(t)

	action, err := env.svc.RefreshApplication(context.Background(), testRequest(fileA), &SyncResult{DidRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, SoftRefresh, action)
	assert.Empty(t, env.device.apps.restarted)
}
