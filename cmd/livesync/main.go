package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/openmined/livesync/internal/config"
	"github.com/openmined/livesync/internal/utils"
	"github.com/openmined/livesync/internal/version"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "livesync",
	Short:   "Push local project changes to a running app",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.SortFlags = false
	pf.StringP("config", "c", config.DefaultConfigPath, "livesync config file")
	pf.StringP("datadir", "d", config.DefaultDataDir, "livesync data directory")
	pf.String("device", "", "adb serial of the target device")
	pf.String("agent-url", "", "talk to a livesync agent at this URL instead of adb")
	pf.String("agent-secret", "", "secret shared with the agent")
	pf.String("adb", "", "path to the adb binary")
	pf.String("encoding", config.DefaultEncoding, "wire encoding, json or msgpack")
}

func main() {
	// .env next to the project is optional
	_ = godotenv.Load()

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.DefaultDataDir, "logs", "livesync.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}
	defer logFile.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel(),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(logFile)
	defer logInterceptor.Close()
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if os.Getenv("LIVESYNC_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func loadConfig(cmd *cobra.Command) error {
	v := viper.GetViper()
	config.SetDefaults(v)

	var configPath string
	if flag := cmd.Flag("config"); flag != nil && flag.Changed {
		configPath = flag.Value.String()
	}
	if err := config.Read(v, configPath); err != nil {
		return err
	}

	flags := cmd.Flags()
	for key, name := range map[string]string{
		"data_dir":     "datadir",
		"device":       "device",
		"agent_url":    "agent-url",
		"agent_secret": "agent-secret",
		"adb_path":     "adb",
		"encoding":     "encoding",
	} {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// currentConfig returns the validated config after loadConfig ran
func currentConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func exitOnCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
