package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/livesync/internal/livesync"
)

func TestLoadProject_Defaults(t *testing.T) {
	root := filepath.Join(t.TempDir(), "hello")
	require.NoError(t, os.Mkdir(root, 0o755))

	p, err := LoadProject(root)
	require.NoError(t, err)
	assert.Equal(t, "hello", p.ProjectName)
	assert.Equal(t, livesync.PlatformAndroid, p.PlatformName())
	assert.Equal(t, root, p.FilesPath())

	assert.Error(t, p.Validate(), "app id is required")
}

func TestLoadProject_File(t *testing.T) {
	root := t.TempDir()
	settings := "appId: com.app.x\nprojectName: demo\nplatform: ios\nfilesDir: app\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFileName), []byte(settings), 0o644))

	p, err := LoadProject(root)
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.Equal(t, "com.app.x", p.AppID)
	assert.Equal(t, "demo", p.ProjectName)
	assert.Equal(t, livesync.PlatformIOS, p.PlatformName())
	assert.Equal(t, filepath.Join(root, "app"), p.FilesPath())
}

func TestProject_SaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	p := &Project{Root: root, AppID: "com.app.y", Platform: "android", FilesDir: "src"}
	require.NoError(t, p.Save())

	loaded, err := LoadProject(root)
	require.NoError(t, err)
	assert.Equal(t, "com.app.y", loaded.AppID)
	assert.Equal(t, "src", loaded.FilesDir)
}

func TestProject_Validate(t *testing.T) {
	p := &Project{AppID: "com.app.x", Platform: "windows", FilesDir: "."}
	assert.Error(t, p.Validate())

	p = &Project{AppID: "com.app.x", Platform: "android", FilesDir: "/abs"}
	assert.Error(t, p.Validate())
}

func TestLoadProject_Malformed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFileName), []byte("appId: [unclosed"), 0o644))

	_, err := LoadProject(root)
	assert.Error(t, err)
}
