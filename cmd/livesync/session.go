package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/dustin/go-humanize"

	"github.com/openmined/livesync/internal/authtoken"
	"github.com/openmined/livesync/internal/config"
	"github.com/openmined/livesync/internal/device"
	"github.com/openmined/livesync/internal/hashstore"
	"github.com/openmined/livesync/internal/livesync"
	"github.com/openmined/livesync/internal/projectfiles"
	"github.com/openmined/livesync/internal/synclock"
	"github.com/openmined/livesync/internal/transport"
)

// pipeline holds everything one project needs to run sync cycles against one device
type pipeline struct {
	project *config.Project
	files   *projectfiles.Project
	device  livesync.Device
	cache   *hashstore.HashCache
	process *livesync.SignalProcessService
	status  *livesync.OperationStatus
	runner  *livesync.Runner
	lock    *synclock.Lock
}

func newPipeline(ctx context.Context, cfg *config.Config, project *config.Project) (p *pipeline, err error) {
	files, err := projectfiles.Open(project.FilesPath())
	if err != nil {
		return nil, err
	}

	token, err := agentToken(cfg)
	if err != nil {
		return nil, err
	}

	dev, endpoint, err := connectDevice(ctx, cfg, project.PlatformName(), token)
	if err != nil {
		return nil, err
	}

	transportOpts := []transport.Option{
		transport.WithEncoding(cfg.WireEncoding()),
		transport.WithIgnore(files.Ignore().ShouldIgnore),
	}
	if token != "" {
		transportOpts = append(transportOpts, transport.WithAuthToken(token))
	}
	client := transport.New(endpoint, transportOpts...)

	fastSync, err := projectfiles.NewFastSyncPredicate(projectfiles.DefaultFastSyncRules)
	if err != nil {
		return nil, err
	}

	cache := hashstore.NewHashCache(cfg.HashCachePath())
	if err := cache.Open(); err != nil {
		return nil, err
	}
	process := livesync.NewSignalProcessService()
	defer func() {
		if err != nil {
			process.Close()
			cache.Close()
		}
	}()

	ledgerFS, ok := dev.FileSystem().(hashstore.LedgerFS)
	if !ok {
		return nil, fmt.Errorf("device %s cannot store a hash ledger", dev.Info().Identifier)
	}

	status := livesync.NewOperationStatus()
	svc, err := livesync.NewDeviceSyncService(project.PlatformName(), livesync.Dependencies{
		Device:       dev,
		Transport:    client,
		Hashes:       hashstore.Factory(ledgerFS, hashstore.WithHasher(cache)),
		ProjectFiles: files,
		FastSync:     fastSync,
		Process:      process,
		Status:       status,
	},
		livesync.WithStatusUpdateInterval(cfg.StatusInterval),
		livesync.WithDoSyncOptions(&livesync.DoSyncOptions{Timeout: cfg.SyncTimeout}),
	)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		project: project,
		files:   files,
		device:  dev,
		cache:   cache,
		process: process,
		status:  status,
		runner:  livesync.NewRunner(svc),
		lock:    synclock.New(cfg.LockPath(dev.Info().Identifier, project.AppID)),
	}, nil
}

// connectDevice picks the agent when an agent URL is configured, adb otherwise
func connectDevice(ctx context.Context, cfg *config.Config, platform livesync.Platform, token string) (livesync.Device, transport.EndpointResolver, error) {
	if cfg.AgentURL != "" {
		var opts []device.AgentOption
		if token != "" {
			opts = append(opts, device.WithToken(token))
		}
		dev := device.NewAgentDevice(cfg.AgentURL, livesync.DeviceInfo{Platform: platform}, opts...)
		return dev, transport.StaticEndpoint(cfg.AgentURL), nil
	}

	if platform != livesync.PlatformAndroid {
		return nil, nil, fmt.Errorf("%s devices need --agent-url", platform)
	}

	dev, err := device.DefaultADBDevice(ctx, cfg.Device, device.ExecRunner{Path: cfg.ADBPath})
	if err != nil {
		return nil, nil, err
	}

	endpoint := func(ctx context.Context, _ livesync.ConnectOptions) (string, error) {
		port, err := dev.Forward(ctx, 0, cfg.DevicePort)
		if err != nil {
			return "", err
		}
		return "http://127.0.0.1:" + strconv.Itoa(port), nil
	}
	return dev, endpoint, nil
}

// agentToken issues a token for this host when an agent secret is configured
func agentToken(cfg *config.Config) (string, error) {
	if cfg.AgentSecret == "" {
		return "", nil
	}
	return authtoken.Issue(cfg.AgentSecret, hostSubject(), authtoken.DefaultTokenTTL)
}

func hostSubject() string {
	if id, err := machineid.ProtectedID("livesync"); err == nil {
		return id
	}
	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}
	return "unknown"
}

func (p *pipeline) Close() {
	p.process.Close()
	p.status.Close()
	if err := p.cache.Close(); err != nil {
		slog.Warn("close hash cache", "error", err)
	}
}

func (p *pipeline) request(files []livesync.LocalFile, full, force bool) *livesync.SyncRequest {
	return &livesync.SyncRequest{
		AppID:            p.project.AppID,
		ProjectName:      p.project.ProjectName,
		ProjectFilesPath: p.files.Root(),
		ModifiedFiles:    files,
		IsFullSync:       full,
		Force:            force,
		Platform:         p.project.PlatformName(),
	}
}

// fullSync pushes every project file the device does not have yet and
// removes the ones deleted locally
func (p *pipeline) fullSync(ctx context.Context, force bool) (*livesync.CycleResult, error) {
	files, err := p.files.Enumerate()
	if err != nil {
		return nil, err
	}
	return p.run(ctx, p.request(files, true, force))
}

// run holds the (device, app) lock for the whole cycle
func (p *pipeline) run(ctx context.Context, req *livesync.SyncRequest) (*livesync.CycleResult, error) {
	if err := p.lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := p.lock.Unlock(); err != nil {
			slog.Warn("release sync lock", "error", err)
		}
	}()

	start := time.Now()
	result, err := p.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	slog.Debug("sync cycle done", "appId", req.AppID, "files", len(result.TransferredFiles), "took", time.Since(start))
	return result, nil
}

func printCycle(w io.Writer, p *pipeline, result *livesync.CycleResult) {
	removed := len(result.Removed())
	pushed := len(result.TransferredFiles) - removed
	if pushed == 0 && removed == 0 {
		fmt.Fprintf(w, "%s %s is up to date on %s\n", green("✓"), p.project.AppID, cyan(p.device.Info().Identifier))
		return
	}

	var bytes uint64
	for _, f := range result.TransferredFiles {
		if f.Action != livesync.ActionTransferred {
			continue
		}
		if info, err := os.Stat(f.LocalPath); err == nil {
			bytes += uint64(info.Size())
		}
	}
	fmt.Fprintf(w, "%s synced %d files (%s), removed %d, %s on %s\n",
		green("✓"), pushed, humanize.Bytes(bytes), removed, result.Refresh, cyan(p.device.Info().Identifier))
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s sync failed: %v\n", red("✗"), err)
}
