package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/openmined/livesync/internal/agent/api"
	"github.com/openmined/livesync/internal/lsproto"
	"github.com/openmined/livesync/internal/utils"
)

// sessionHub accepts livesync websocket sessions and keeps track of them for shutdown
type sessionHub struct {
	store      *Store
	apps       *AppRegistry
	metrics    *metrics
	applyDelay time.Duration

	mu       sync.Mutex
	sessions map[*lsproto.Conn]struct{}
	wg       sync.WaitGroup
}

func newSessionHub(store *Store, apps *AppRegistry, m *metrics, applyDelay time.Duration) *sessionHub {
	return &sessionHub{
		store:      store,
		apps:       apps,
		metrics:    m,
		applyDelay: applyDelay,
		sessions:   make(map[*lsproto.Conn]struct{}),
	}
}

// WebsocketHandler upgrades the request and serves one livesync session
func (h *sessionHub) WebsocketHandler(ctx *gin.Context) {
	appID := ctx.Query("app")
	if appID == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("app is required"))
		return
	}

	enc := lsproto.PreferredEncoding(ctx.GetHeader(lsproto.HeaderEncodings))
	ctx.Writer.Header().Set(lsproto.HeaderEncoding, strings.ToLower(enc.String()))
	ws, err := websocket.Accept(ctx.Writer, ctx.Request, nil)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("websocket accept failed: %w", err))
		return
	}

	conn := lsproto.NewConn(ws, enc)
	s := &session{
		hub:      h,
		conn:     conn,
		appID:    appID,
		deviceID: ctx.Query("device"),
		root:     AppFilesPath(appID),
	}

	h.mu.Lock()
	h.sessions[conn] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()
	h.metrics.activeSessions.Inc()

	slog.Info("livesync session open", "appId", appID, "device", s.deviceID, "encoding", enc)

	// the request context ends when the handler returns, so the session gets its own
	sessionCtx, cancel := context.WithCancel(context.Background())
	conn.Start(sessionCtx)
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.sessions, conn)
			h.mu.Unlock()
			h.metrics.activeSessions.Dec()
			h.wg.Done()
			slog.Info("livesync session closed", "appId", appID)
		}()
		s.serve(sessionCtx)
		cancel()
		s.ops.Wait()
	}()
}

// Count returns the number of open sessions
func (h *sessionHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every open session and waits for them to finish
func (h *sessionHub) Shutdown() {
	h.mu.Lock()
	conns := make([]*lsproto.Conn, 0, len(h.sessions))
	for conn := range h.sessions {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	h.wg.Wait()
}

type session struct {
	hub      *sessionHub
	conn     *lsproto.Conn
	appID    string
	deviceID string
	root     string // device directory files are written into
	ops      sync.WaitGroup
}

func (s *session) serve(ctx context.Context) {
	for msg := range s.conn.Rx() {
		switch msg.Type {
		case lsproto.MsgHello:
			s.onHello(ctx, msg)
		case lsproto.MsgFileWrite:
			s.reply(ctx, msg, s.onFileWrite(msg))
		case lsproto.MsgFileDelete:
			s.reply(ctx, msg, s.onFileDelete(msg))
		case lsproto.MsgDoSync:
			s.onDoSync(ctx, msg)
		default:
			s.reply(ctx, msg, fmt.Errorf("unsupported message %s", msg.Type))
		}
	}
}

func (s *session) reply(ctx context.Context, req *lsproto.Message, err error) {
	var resp *lsproto.Message
	if err != nil {
		slog.Warn("livesync request failed", "appId", s.appID, "msg", req, "error", err)
		resp = lsproto.NewNack(req.Id, err.Error())
	} else {
		resp = lsproto.NewAck(req.Id)
	}
	if err := s.conn.Send(ctx, resp); err != nil {
		slog.Debug("livesync reply dropped", "appId", s.appID, "error", err)
	}
}

func (s *session) onHello(ctx context.Context, msg *lsproto.Message) {
	hello, ok := lsproto.DataAs[lsproto.Hello](msg)
	if !ok || hello.AppID != s.appID {
		s.reply(ctx, msg, fmt.Errorf("hello for %q on a session of %q", hello.AppID, s.appID))
		return
	}

	resp := lsproto.NewHello(s.appID, s.deviceID)
	resp.Id = msg.Id
	if err := s.conn.Send(ctx, resp); err != nil {
		slog.Debug("livesync hello dropped", "appId", s.appID, "error", err)
	}
}

func (s *session) devicePath(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("path is required")
	}
	return utils.JoinDevicePath(s.root, rel), nil
}

func (s *session) onFileWrite(msg *lsproto.Message) error {
	fw, ok := lsproto.DataAs[lsproto.FileWrite](msg)
	if !ok {
		return errors.New("invalid file write payload")
	}
	if int64(len(fw.Content)) != fw.Length {
		return fmt.Errorf("%s: got %d bytes, expected %d", fw.Path, len(fw.Content), fw.Length)
	}
	if fw.Hash != "" && utils.ContentHash(fw.Content) != fw.Hash {
		return fmt.Errorf("%s: hash mismatch", fw.Path)
	}

	target, err := s.devicePath(fw.Path)
	if err != nil {
		return err
	}
	n, err := s.hub.store.Write(target, bytes.NewReader(fw.Content))
	if err != nil {
		return err
	}

	s.hub.metrics.filesWritten.Inc()
	s.hub.metrics.bytesWritten.Add(float64(n))
	slog.Debug("livesync file written", "appId", s.appID, "path", path.Clean(fw.Path), "size", n)
	return nil
}

func (s *session) onFileDelete(msg *lsproto.Message) error {
	fd, ok := lsproto.DataAs[lsproto.FileDelete](msg)
	if !ok {
		return errors.New("invalid file delete payload")
	}
	target, err := s.devicePath(fd.Path)
	if err != nil {
		return err
	}
	if err := s.hub.store.Delete(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	s.hub.metrics.filesDeleted.Inc()
	return nil
}

// onDoSync acknowledges the request right away and reports completion with
// SYNC_DONE once the app has applied the files
func (s *session) onDoSync(ctx context.Context, msg *lsproto.Message) {
	req, ok := lsproto.DataAs[lsproto.DoSync](msg)
	if !ok || req.OperationID == "" {
		s.reply(ctx, msg, errors.New("operation id is required"))
		return
	}
	s.reply(ctx, msg, nil)

	s.ops.Add(1)
	go func() {
		defer s.ops.Done()

		start := time.Now()
		result := "ok"
		errMsg := ""
		if err := s.apply(ctx); err != nil {
			result, errMsg = "error", err.Error()
		}

		s.hub.apps.RecordSync(s.appID, req.OperationID, req.FastSync)
		s.hub.metrics.operations.WithLabelValues(syncMode(req.FastSync), result).Inc()
		s.hub.metrics.applyDuration.Observe(time.Since(start).Seconds())

		done := lsproto.NewSyncDone(req.OperationID, req.FastSync && errMsg == "", errMsg)
		if err := s.conn.Send(ctx, done); err != nil {
			slog.Debug("livesync completion dropped", "appId", s.appID, "operationId", req.OperationID, "error", err)
		}
	}()
}

func (s *session) apply(ctx context.Context) error {
	if s.hub.applyDelay == 0 {
		return nil
	}
	timer := time.NewTimer(s.hub.applyDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
