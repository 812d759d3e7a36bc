package device

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/openmined/livesync/internal/livesync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCall struct {
	result *Result
	err    error
}

// scriptedRunner replies to adb invocations by their joined arguments
type scriptedRunner struct {
	replies map[string]scriptedCall
	calls   []string
}

func (r *scriptedRunner) Run(_ context.Context, args ...string) (*Result, error) {
	cmd := strings.Join(args, " ")
	r.calls = append(r.calls, cmd)
	if reply, ok := r.replies[cmd]; ok {
		return reply.result, reply.err
	}
	return &Result{}, nil
}

func TestADBDevice_PutFile(t *testing.T) {
	r := &scriptedRunner{}
	d := NewADBDevice("emulator-5554", r)

	err := d.PutFile(context.Background(), "/tmp/marker", "/data/local/tmp/com.app.x-livesync-in-progress", "com.app.x")
	require.NoError(t, err)
	assert.Equal(t, []string{"-s emulator-5554 push /tmp/marker /data/local/tmp/com.app.x-livesync-in-progress"}, r.calls)
}

func TestADBDevice_DeleteMissingFile(t *testing.T) {
	r := &scriptedRunner{replies: map[string]scriptedCall{
		"-s emu shell rm /data/local/tmp/gone": {
			result: &Result{Stderr: "rm: /data/local/tmp/gone: No such file or directory", ExitCode: 1},
			err:    ErrCommand,
		},
		"-s emu shell rm /data/local/tmp/old": {
			result: &Result{Stdout: []byte("rm: /data/local/tmp/old: No such file or directory\n")},
		},
	}}
	d := NewADBDevice("emu", r)

	assert.ErrorIs(t, d.DeleteFile(context.Background(), "/data/local/tmp/gone", "com.app.x"), fs.ErrNotExist)
	assert.ErrorIs(t, d.DeleteFile(context.Background(), "/data/local/tmp/old", "com.app.x"), fs.ErrNotExist)
	assert.NoError(t, d.DeleteFile(context.Background(), "/data/local/tmp/here", "com.app.x"))
}

func TestADBDevice_GetFile(t *testing.T) {
	r := &scriptedRunner{replies: map[string]scriptedCall{
		"-s emu exec-out cat /ledger.json": {result: &Result{Stdout: []byte(`{"a.js":"1"}`)}},
		"-s emu exec-out cat /missing": {
			result: &Result{Stdout: []byte("cat: /missing: No such file or directory")},
		},
	}}
	d := NewADBDevice("emu", r)

	data, err := d.GetFile(context.Background(), "/ledger.json", "com.app.x")
	require.NoError(t, err)
	assert.Equal(t, `{"a.js":"1"}`, string(data))

	_, err = d.GetFile(context.Background(), "/missing", "com.app.x")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestADBDevice_Applications(t *testing.T) {
	r := &scriptedRunner{replies: map[string]scriptedCall{
		"-s emu shell monkey -p com.missing -c android.intent.category.LAUNCHER 1": {
			result: &Result{Stdout: []byte("** No activities found to run, monkey aborted.")},
		},
	}}
	d := NewADBDevice("emu", r)
	ctx := context.Background()

	require.NoError(t, d.RestartApplication(ctx, livesync.AppIdentifier{AppID: "com.app.x"}))
	assert.Equal(t, []string{
		"-s emu shell am force-stop com.app.x",
		"-s emu shell monkey -p com.app.x -c android.intent.category.LAUNCHER 1",
	}, r.calls)

	err := d.StartApplication(ctx, livesync.AppIdentifier{AppID: "com.missing"})
	assert.ErrorIs(t, err, ErrCommand)
}

func TestADBDevice_Forward(t *testing.T) {
	r := &scriptedRunner{replies: map[string]scriptedCall{
		"-s emu forward tcp:0 tcp:7878": {result: &Result{Stdout: []byte("41234\n")}},
	}}
	d := NewADBDevice("emu", r)

	port, err := d.Forward(context.Background(), 0, 7878)
	require.NoError(t, err)
	assert.Equal(t, 41234, port)

	port, err = d.Forward(context.Background(), 9000, 7878)
	require.NoError(t, err)
	assert.Equal(t, 9000, port)
}

func TestDefaultADBDevice(t *testing.T) {
	devices := func(out string) *scriptedRunner {
		return &scriptedRunner{replies: map[string]scriptedCall{
			"devices": {result: &Result{Stdout: []byte(out)}},
		}}
	}
	ctx := context.Background()

	d, err := DefaultADBDevice(ctx, "", devices("List of devices attached\nemulator-5554\tdevice\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", d.Info().Identifier)
	assert.Equal(t, livesync.PlatformAndroid, d.Info().Platform)

	_, err = DefaultADBDevice(ctx, "", devices("List of devices attached\nemulator-5554\toffline\n"))
	assert.ErrorIs(t, err, ErrNoDevice)

	two := "List of devices attached\nemulator-5554\tdevice\nR58M\tdevice\n"
	_, err = DefaultADBDevice(ctx, "", devices(two))
	assert.Error(t, err)

	d, err = DefaultADBDevice(ctx, "R58M", devices(two))
	require.NoError(t, err)
	assert.Equal(t, "R58M", d.Info().Identifier)

	_, err = DefaultADBDevice(ctx, "other", devices(two))
	assert.ErrorIs(t, err, ErrNoDevice)
}
