package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/openmined/livesync/internal/livesync"
)

const ProjectFileName = "livesync.yaml"

// Project is the per-project settings file kept next to the sources
type Project struct {
	AppID       string `yaml:"appId"`
	ProjectName string `yaml:"projectName,omitempty"`
	Platform    string `yaml:"platform,omitempty"`
	// FilesDir is the directory mirrored to the device, relative to the project root
	FilesDir string `yaml:"filesDir,omitempty"`

	// Root is the directory holding the settings file
	Root string `yaml:"-"`
}

// LoadProject reads livesync.yaml from root. Without the file the defaults
// are returned and AppID stays empty.
func LoadProject(root string) (*Project, error) {
	p := &Project{}

	data, err := os.ReadFile(filepath.Join(root, ProjectFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("%s: %w", ProjectFileName, err)
		}
	}

	p.Root = root
	if p.ProjectName == "" {
		p.ProjectName = filepath.Base(root)
	}
	if p.Platform == "" {
		p.Platform = string(livesync.PlatformAndroid)
	}
	if p.FilesDir == "" {
		p.FilesDir = "."
	}
	return p, nil
}

func (p *Project) Validate() error {
	if p.AppID == "" {
		return errors.New("app id is required")
	}
	if _, err := livesync.ParsePlatform(p.Platform); err != nil {
		return err
	}
	if filepath.IsAbs(p.FilesDir) {
		return fmt.Errorf("files dir %q must be relative to the project", p.FilesDir)
	}
	return nil
}

func (p *Project) PlatformName() livesync.Platform {
	platform, _ := livesync.ParsePlatform(p.Platform)
	return platform
}

// FilesPath is the absolute local directory mirrored to the device
func (p *Project) FilesPath() string {
	return filepath.Join(p.Root, p.FilesDir)
}

func (p *Project) Save() error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.Root, ProjectFileName), data, 0o644)
}
