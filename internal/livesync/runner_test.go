package livesync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_IncrementalScenario(t *testing.T) {
	env := newTestEnv(t)
	file := LocalFile{LocalPath: "/p/a.js", RemotePath: "a.js"}

	result, err := NewRunner(env.svc).Run(context.Background(), testRequest(file))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"/p/a.js"}}, env.transport.sentFiles)
	assert.Empty(t, env.transport.dirs)
	assert.Equal(t, []TransferredFile{{LocalFile: file, Action: ActionTransferred}}, result.TransferredFiles)
	assert.Equal(t, SoftRefresh, result.Refresh)
	assert.Empty(t, env.device.apps.restarted)
	assert.False(t, env.device.fs.has(testMarker))
	assert.Equal(t, 1, env.transport.ended)
}

func TestRunner_FullSyncWithRemovals(t *testing.T) {
	env := newTestEnv(t)
	env.hashes.device = HashSnapshot{"a.js": "1", "gone.js": "8"}
	env.hashes.local = HashSnapshot{"a.js": "2"}

	result, err := NewRunner(env.svc).Run(context.Background(), fullRequest(fileA))
	require.NoError(t, err)

	gone := LocalFile{LocalPath: "/p/gone.js", RemotePath: "gone.js"}
	assert.Equal(t, []TransferredFile{
		{LocalFile: fileA, Action: ActionTransferred},
		{LocalFile: gone, Action: ActionRemoved},
	}, result.TransferredFiles)
	assert.Equal(t, []LocalFile{gone}, result.Removed())
	assert.Equal(t, []bool{false}, env.transport.fastSync)
	assert.Equal(t, Restart, result.Refresh)
	assert.Equal(t, [][]LocalFile{{fileA, gone}}, env.hashes.updates)
	assert.False(t, env.device.fs.has(testMarker))
}

func TestRunner_TransferFailureFinalizes(t *testing.T) {
	env := newTestEnv(t)
	env.transport.sendErr = errors.New("broken pipe")

	_, err := NewRunner(env.svc).Run(context.Background(), testRequest(fileA))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.False(t, env.device.fs.has(testMarker))
	assert.Equal(t, 1, env.transport.ended)
	assert.Zero(t, env.transport.doSyncCalls)
}

func TestRunner_BeforeSyncFailure(t *testing.T) {
	env := newTestEnv(t)
	env.device.apps.startErr = errors.New("no such package")

	_, err := NewRunner(env.svc).Run(context.Background(), testRequest(fileA))
	require.Error(t, err)
	assert.False(t, env.device.fs.has(testMarker))
	assert.Empty(t, env.transport.sentFiles)
}

func TestRunner_CancelledDuringTransferRemovesMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.transport.onSend = cancel

	_, err := NewRunner(env.svc).Run(ctx, testRequest(fileA))
	require.ErrorIs(t, err, context.Canceled)

	assert.False(t, env.device.fs.has(testMarker))
	assert.Equal(t, 1, env.transport.ended)
	assert.Zero(t, env.transport.doSyncCalls)
}

func TestRunner_CancelledDuringConnectRemovesMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.transport.onConnect = cancel

	_, err := NewRunner(env.svc).Run(ctx, testRequest(fileA))
	require.ErrorIs(t, err, context.Canceled)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.False(t, env.device.fs.has(testMarker))
	assert.Empty(t, env.transport.sentFiles)
}
