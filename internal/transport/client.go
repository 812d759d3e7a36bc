package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/openmined/livesync/internal/livesync"
	"github.com/openmined/livesync/internal/lsproto"
	"github.com/openmined/livesync/internal/version"
)

const (
	livesyncPath = "/api/v1/livesync"

	defaultConnectRetries = 5
	defaultAckTimeout     = 30 * time.Second
	defaultSendWorkers    = 4
)

var (
	ErrNotConnected       = errors.New("transport: not connected")
	ErrOperationFailed    = errors.New("transport: operation failed")
	ErrRequestRejected    = errors.New("transport: request rejected")
	ErrProtocolMismatch   = errors.New("transport: protocol version mismatch")
	ErrPathOutsideProject = errors.New("transport: path outside project")
	ErrUnauthorized       = errors.New("transport: unauthorized")
)

// EndpointResolver returns the base URL of the agent serving a connection,
// e.g. after setting up a port forward
type EndpointResolver func(ctx context.Context, opts livesync.ConnectOptions) (string, error)

// StaticEndpoint always resolves to baseURL
func StaticEndpoint(baseURL string) EndpointResolver {
	return func(context.Context, livesync.ConnectOptions) (string, error) {
		return baseURL, nil
	}
}

type Option func(*Client)

func WithEncoding(enc lsproto.Encoding) Option {
	return func(c *Client) { c.encoding = enc }
}

// WithConnectRetries sets how many times a failed dial is retried
func WithConnectRetries(n uint64) Option {
	return func(c *Client) { c.connectRetries = n }
}

// WithAckTimeout bounds the wait for an ACK of a single request
func WithAckTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.ackTimeout = d
		}
	}
}

// WithSendWorkers sets how many files are in flight at once
func WithSendWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.sendWorkers = n
		}
	}
}

// WithIgnore skips directory entries for which ignore returns true.
// relPath uses forward slashes.
func WithIgnore(ignore func(relPath string, isDir bool) bool) Option {
	return func(c *Client) { c.ignore = ignore }
}

// WithAuthToken sends token as a bearer token when opening a session
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// Client is a livesync.Transport speaking lsproto over a websocket
type Client struct {
	endpoint       EndpointResolver
	encoding       lsproto.Encoding
	connectRetries uint64
	ackTimeout     time.Duration
	sendWorkers    int
	ignore         func(relPath string, isDir bool) bool
	authToken      string

	mu      sync.RWMutex
	session *session
}

var _ livesync.Transport = (*Client)(nil)

func New(endpoint EndpointResolver, opts ...Option) *Client {
	c := &Client{
		endpoint:       endpoint,
		encoding:       lsproto.EncodingMsgPack,
		connectRetries: defaultConnectRetries,
		ackTimeout:     defaultAckTimeout,
		sendWorkers:    defaultSendWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens a session for one application. An open session is ended first.
func (c *Client) Connect(ctx context.Context, opts livesync.ConnectOptions) error {
	c.End()

	base, err := c.endpoint(ctx, opts)
	if err != nil {
		return fmt.Errorf("resolve endpoint: %w", err)
	}
	wsURL, err := sessionURL(base, opts)
	if err != nil {
		return err
	}

	var ws *websocket.Conn
	var resp *http.Response
	dial := func() error {
		header := http.Header{}
		header.Set(lsproto.HeaderEncodings, c.encoding.String())
		header.Set("User-Agent", version.UserAgent())
		if c.authToken != "" {
			header.Set("Authorization", "Bearer "+c.authToken)
		}

		var err error
		ws, resp, err = websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
		if err != nil {
			slog.Debug("livesync dial failed", "url", wsURL, "error", err)
			if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status))
			}
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.connectRetries), ctx)
	if err := backoff.Retry(dial, policy); err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	enc := c.encoding
	if picked := resp.Header.Get(lsproto.HeaderEncoding); picked != "" {
		enc = lsproto.PreferredEncoding(picked)
	}

	s := newSession(lsproto.NewConn(ws, enc), opts, c.ackTimeout)
	s.start()

	if err := s.hello(ctx, opts); err != nil {
		s.close()
		return err
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	slog.Info("livesync connected", "appId", opts.AppID, "device", opts.DeviceID, "encoding", enc)
	return nil
}

func (c *Client) GenerateOperationID() string {
	return uuid.NewString()
}

func (c *Client) SendDoSyncOperation(ctx context.Context, fastSync bool, opts *livesync.DoSyncOptions, operationID string) (*livesync.OperationResult, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}

	if opts != nil && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	return s.doSync(ctx, operationID, fastSync)
}

func (c *Client) IsOperationInProgress(operationID string) bool {
	s, err := c.current()
	if err != nil {
		return false
	}
	return s.inProgress(operationID)
}

// End closes the session. Operations still waiting fail with ErrNotConnected.
func (c *Client) End() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		s.close()
		slog.Debug("livesync session ended", "appId", s.opts.AppID)
	}
}

func (c *Client) current() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil || c.session.isClosed() {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

func sessionURL(base string, opts livesync.ConnectOptions) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + livesyncPath)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", base, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid endpoint scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("app", opts.AppID)
	if opts.DeviceID != "" {
		q.Set("device", opts.DeviceID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
