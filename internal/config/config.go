package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/openmined/livesync/internal/lsproto"
	"github.com/openmined/livesync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, ".livesync")
	DefaultConfigPath = filepath.Join(DefaultDataDir, "config.json")
)

const (
	EnvPrefix = "LIVESYNC"

	DefaultDevicePort     = 7878
	DefaultEncoding       = "msgpack"
	DefaultStatusInterval = 10 * time.Second
)

// Config is the CLI configuration. Values come from the config file, flags
// and LIVESYNC_* environment variables, in increasing precedence.
type Config struct {
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
	// AgentURL talks to a livesync agent directly instead of going through adb
	AgentURL    string `json:"agent_url,omitempty" mapstructure:"agent_url"`
	AgentSecret string `json:"agent_secret,omitempty" mapstructure:"agent_secret"`
	ADBPath     string `json:"adb_path,omitempty" mapstructure:"adb_path"`
	Device      string `json:"device,omitempty" mapstructure:"device"`
	// DevicePort is where the agent listens on the device, forwarded over adb
	DevicePort     int           `json:"device_port" mapstructure:"device_port"`
	Encoding       string        `json:"encoding" mapstructure:"encoding"`
	StatusInterval time.Duration `json:"status_interval" mapstructure:"status_interval"`
	SyncTimeout    time.Duration `json:"sync_timeout,omitempty" mapstructure:"sync_timeout"`
	Path           string        `json:"-" mapstructure:"-"`
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data dir is required")
	}
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	c.DataDir = dataDir

	if c.DevicePort <= 0 || c.DevicePort > 65535 {
		return fmt.Errorf("invalid device port %d", c.DevicePort)
	}
	if c.Encoding != lsproto.EncodingJSON.String() && c.Encoding != lsproto.EncodingMsgPack.String() {
		return fmt.Errorf("invalid encoding %q, expected json or msgpack", c.Encoding)
	}
	if c.StatusInterval <= 0 {
		return errors.New("status interval must be positive")
	}
	if c.SyncTimeout < 0 {
		return errors.New("sync timeout must not be negative")
	}
	return nil
}

func (c *Config) WireEncoding() lsproto.Encoding {
	return lsproto.PreferredEncoding(c.Encoding)
}

func (c *Config) LogFilePath() string {
	return filepath.Join(c.DataDir, "logs", "livesync.log")
}

func (c *Config) HashCachePath() string {
	return filepath.Join(c.DataDir, "hashes.db")
}

// LockPath is the cross-process lock of one (device, app) pair
func (c *Config) LockPath(deviceID, appID string) string {
	return filepath.Join(c.DataDir, "locks", utils.SafeFileName(deviceID)+"-"+utils.SafeFileName(appID)+".lock")
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// SetDefaults registers the default of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("device_port", DefaultDevicePort)
	v.SetDefault("encoding", DefaultEncoding)
	v.SetDefault("status_interval", DefaultStatusInterval)
	v.SetDefault("sync_timeout", time.Duration(0))
	for _, key := range []string{"agent_url", "agent_secret", "adb_path", "device"} {
		v.SetDefault(key, "")
	}
}

// Read loads the config file into v. A missing file is not an error.
func Read(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDataDir)
		v.AddConfigPath(filepath.Join(home, ".config", "livesync"))
		v.SetConfigName("config")
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return nil
}

// FromViper builds the config from the resolved viper values
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()
	return cfg, nil
}
