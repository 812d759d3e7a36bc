package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/openmined/livesync/internal/hashstore"
	"github.com/openmined/livesync/internal/livesync"
)

// Result holds the output of one adb invocation
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// Runner executes adb. It returns a non-nil Result even when the command fails.
type Runner interface {
	Run(ctx context.Context, args ...string) (*Result, error)
}

// ExecRunner runs the adb binary found at Path
type ExecRunner struct {
	Path string
}

func (r ExecRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	program := r.Path
	if program == "" {
		program = "adb"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	if err != nil {
		return result, fmt.Errorf("%w: adb %s: %w (stderr: %s)", ErrCommand, strings.Join(args, " "), err, strings.TrimSpace(result.Stderr))
	}
	return result, nil
}

// ADBDevice drives an attached Android device or emulator through adb
type ADBDevice struct {
	serial string
	runner Runner
}

var (
	_ livesync.Device             = (*ADBDevice)(nil)
	_ livesync.DeviceFileSystem   = (*ADBDevice)(nil)
	_ livesync.ApplicationManager = (*ADBDevice)(nil)
	_ hashstore.LedgerFS          = (*ADBDevice)(nil)
)

func NewADBDevice(serial string, runner Runner) *ADBDevice {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &ADBDevice{serial: serial, runner: runner}
}

func (d *ADBDevice) adb(ctx context.Context, args ...string) (*Result, error) {
	return d.runner.Run(ctx, append([]string{"-s", d.serial}, args...)...)
}

// shell runs a command on the device. adb shell exits 0 on older devices even
// when the command fails, so callers also inspect the output.
func (d *ADBDevice) shell(ctx context.Context, args ...string) (string, error) {
	res, err := d.adb(ctx, append([]string{"shell"}, args...)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

func (d *ADBDevice) Info() livesync.DeviceInfo {
	return livesync.DeviceInfo{Identifier: d.serial, Platform: livesync.PlatformAndroid}
}

func (d *ADBDevice) FileSystem() livesync.DeviceFileSystem {
	return d
}

func (d *ADBDevice) ApplicationManager() livesync.ApplicationManager {
	return d
}

func (d *ADBDevice) PutFile(ctx context.Context, localPath, remotePath, appID string) error {
	if _, err := d.adb(ctx, "push", localPath, remotePath); err != nil {
		return fmt.Errorf("push %s: %w", remotePath, err)
	}
	slog.Debug("adb push", "device", d.serial, "appId", appID, "path", remotePath)
	return nil
}

func (d *ADBDevice) DeleteFile(ctx context.Context, remotePath, appID string) error {
	res, err := d.adb(ctx, "shell", "rm", remotePath)
	if err != nil {
		if res != nil && isMissing(res.Stderr+string(res.Stdout)) {
			return fmt.Errorf("delete %s: %w", remotePath, ErrFileNotFound)
		}
		return fmt.Errorf("delete %s: %w", remotePath, err)
	}
	if isMissing(string(res.Stdout)) {
		return fmt.Errorf("delete %s: %w", remotePath, ErrFileNotFound)
	}
	return nil
}

// GetFile reads a device file with exec-out, which keeps binary content intact
func (d *ADBDevice) GetFile(ctx context.Context, remotePath, appID string) ([]byte, error) {
	res, err := d.adb(ctx, "exec-out", "cat", remotePath)
	if err != nil {
		if res != nil && isMissing(res.Stderr+string(res.Stdout)) {
			return nil, fmt.Errorf("get %s: %w", remotePath, ErrFileNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", remotePath, err)
	}
	if isMissing(string(res.Stdout)) {
		return nil, fmt.Errorf("get %s: %w", remotePath, ErrFileNotFound)
	}
	return res.Stdout, nil
}

func (d *ADBDevice) StartApplication(ctx context.Context, app livesync.AppIdentifier) error {
	out, err := d.shell(ctx, "monkey", "-p", app.AppID, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return fmt.Errorf("start %s: %w", app.AppID, err)
	}
	if strings.Contains(out, "No activities found") || strings.Contains(out, "monkey aborted") {
		return fmt.Errorf("%w: start %s: %s", ErrCommand, app.AppID, out)
	}
	slog.Info("application start", "device", d.serial, "appId", app.AppID, "project", app.ProjectName)
	return nil
}

func (d *ADBDevice) RestartApplication(ctx context.Context, app livesync.AppIdentifier) error {
	if _, err := d.shell(ctx, "am", "force-stop", app.AppID); err != nil {
		return fmt.Errorf("stop %s: %w", app.AppID, err)
	}
	return d.StartApplication(ctx, app)
}

// Forward maps a local tcp port to a device port and returns the local port.
// A zero localPort lets adb pick a free one.
func (d *ADBDevice) Forward(ctx context.Context, localPort, devicePort int) (int, error) {
	res, err := d.adb(ctx, "forward", "tcp:"+strconv.Itoa(localPort), "tcp:"+strconv.Itoa(devicePort))
	if err != nil {
		return 0, fmt.Errorf("forward tcp:%d: %w", devicePort, err)
	}
	if localPort != 0 {
		return localPort, nil
	}

	port, err := strconv.Atoi(strings.TrimSpace(string(res.Stdout)))
	if err != nil {
		return 0, fmt.Errorf("forward tcp:%d: unexpected output %q", devicePort, res.Stdout)
	}
	return port, nil
}

// ListDevices returns the serials of devices in the "device" state
func ListDevices(ctx context.Context, runner Runner) ([]string, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	res, err := runner.Run(ctx, "devices")
	if err != nil {
		return nil, err
	}

	var serials []string
	scanner := bufio.NewScanner(bytes.NewReader(res.Stdout))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials, scanner.Err()
}

// DefaultADBDevice returns the only attached device, or the one matching serial
func DefaultADBDevice(ctx context.Context, serial string, runner Runner) (*ADBDevice, error) {
	serials, err := ListDevices(ctx, runner)
	if err != nil {
		return nil, err
	}

	switch {
	case serial != "":
		for _, s := range serials {
			if s == serial {
				return NewADBDevice(s, runner), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, serial)
	case len(serials) == 1:
		return NewADBDevice(serials[0], runner), nil
	case len(serials) == 0:
		return nil, ErrNoDevice
	default:
		return nil, fmt.Errorf("more than one device attached (%s), pick one", strings.Join(serials, ", "))
	}
}

func isMissing(out string) bool {
	return strings.Contains(out, "No such file or directory")
}
