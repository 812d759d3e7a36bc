package device

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/imroc/req/v3"

	"github.com/openmined/livesync/internal/agent"
	"github.com/openmined/livesync/internal/agent/api"
	"github.com/openmined/livesync/internal/hashstore"
	"github.com/openmined/livesync/internal/livesync"
	"github.com/openmined/livesync/internal/version"
)

const (
	v1FS   = "/api/v1/fs"
	v1Apps = "/api/v1/apps/{id}"
)

// AgentDevice talks to a livesync agent over its HTTP api
type AgentDevice struct {
	client *req.Client
	info   livesync.DeviceInfo
}

var (
	_ livesync.Device             = (*AgentDevice)(nil)
	_ livesync.DeviceFileSystem   = (*AgentDevice)(nil)
	_ livesync.ApplicationManager = (*AgentDevice)(nil)
	_ hashstore.LedgerFS          = (*AgentDevice)(nil)
)

type AgentOption func(*AgentDevice)

// WithToken authenticates every request with a bearer token
func WithToken(token string) AgentOption {
	return func(d *AgentDevice) {
		if token != "" {
			d.client.SetCommonBearerAuthToken(token)
		}
	}
}

func NewAgentDevice(baseURL string, info livesync.DeviceInfo, opts ...AgentOption) *AgentDevice {
	client := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(500*time.Millisecond).
		SetUserAgent(version.UserAgent()).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		SetCommonErrorResult(&api.APIError{})

	if info.Identifier == "" {
		info.Identifier = baseURL
	}
	d := &AgentDevice{client: client, info: info}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *AgentDevice) Info() livesync.DeviceInfo {
	return d.info
}

func (d *AgentDevice) FileSystem() livesync.DeviceFileSystem {
	return d
}

func (d *AgentDevice) ApplicationManager() livesync.ApplicationManager {
	return d
}

func (d *AgentDevice) PutFile(ctx context.Context, localPath, remotePath, appID string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("put %s: %w", remotePath, err)
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("path", remotePath).
		SetContentType("application/octet-stream").
		SetBody(data).
		Put(v1FS)
	if err := handleAPIError(resp, err, "put "+remotePath); err != nil {
		return err
	}

	slog.Debug("device put", "device", d.info.Identifier, "appId", appID, "path", remotePath, "size", len(data))
	return nil
}

func (d *AgentDevice) DeleteFile(ctx context.Context, remotePath, appID string) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("path", remotePath).
		Delete(v1FS)
	return handleAPIError(resp, err, "delete "+remotePath)
}

func (d *AgentDevice) GetFile(ctx context.Context, remotePath, appID string) ([]byte, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParam("path", remotePath).
		Get(v1FS)
	if err := handleAPIError(resp, err, "get "+remotePath); err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

func (d *AgentDevice) StartApplication(ctx context.Context, app livesync.AppIdentifier) error {
	return d.appAction(ctx, app, "start")
}

func (d *AgentDevice) RestartApplication(ctx context.Context, app livesync.AppIdentifier) error {
	return d.appAction(ctx, app, "restart")
}

func (d *AgentDevice) appAction(ctx context.Context, app livesync.AppIdentifier, action string) error {
	var state agent.AppState
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", app.AppID).
		SetSuccessResult(&state).
		Post(v1Apps + "/" + action)
	if err := handleAPIError(resp, err, action+" "+app.AppID); err != nil {
		return err
	}

	slog.Info("application "+action, "device", d.info.Identifier, "appId", app.AppID, "project", app.ProjectName, "running", state.Running)
	return nil
}

// App returns the agent's view of an application
func (d *AgentDevice) App(ctx context.Context, appID string) (*agent.AppState, error) {
	var state agent.AppState
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", appID).
		SetSuccessResult(&state).
		Get(v1Apps)
	if err := handleAPIError(resp, err, "app "+appID); err != nil {
		return nil, err
	}
	return &state, nil
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("device: %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		apiErr, ok := resp.ErrorResult().(*api.APIError)
		if resp.GetStatusCode() == http.StatusNotFound && (!ok || apiErr.Code == api.CodeFileNotFound) {
			return fmt.Errorf("%s: %w", operation, ErrFileNotFound)
		}
		if ok {
			return fmt.Errorf("device: %s: %w", operation, apiErr)
		}
		return fmt.Errorf("device: %s: unexpected status %s", operation, resp.Status)
	}

	return nil
}
