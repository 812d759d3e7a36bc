package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openmined/livesync/internal/livesync"
	"github.com/openmined/livesync/internal/lsproto"
)

// session is one connection to the agent. Requests are matched to their
// ACK/NACK by message id; DO_SYNC additionally waits for SYNC_DONE.
type session struct {
	conn       *lsproto.Conn
	opts       livesync.ConnectOptions
	ackTimeout time.Duration

	mu      sync.Mutex
	pending map[string]chan *lsproto.Message // message id -> reply
	ops     map[string]chan lsproto.SyncDone // operation id -> completion

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *lsproto.Conn, opts livesync.ConnectOptions, ackTimeout time.Duration) *session {
	return &session{
		conn:       conn,
		opts:       opts,
		ackTimeout: ackTimeout,
		pending:    make(map[string]chan *lsproto.Message),
		ops:        make(map[string]chan lsproto.SyncDone),
		done:       make(chan struct{}),
	}
}

func (s *session) start() {
	s.conn.Start(context.Background())
	go s.dispatch()
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
	<-s.done
}

func (s *session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *session) dispatch() {
	defer close(s.done)

	for msg := range s.conn.Rx() {
		switch msg.Type {
		case lsproto.MsgAck:
			if ack, ok := lsproto.DataAs[lsproto.Ack](msg); ok {
				s.reply(ack.OriginalId, msg)
			}
		case lsproto.MsgNack:
			if nack, ok := lsproto.DataAs[lsproto.Nack](msg); ok {
				s.reply(nack.OriginalId, msg)
			}
		case lsproto.MsgHello:
			s.reply(msg.Id, msg)
		case lsproto.MsgSyncDone:
			if done, ok := lsproto.DataAs[lsproto.SyncDone](msg); ok {
				s.complete(done)
			}
		case lsproto.MsgError:
			e, _ := lsproto.DataAs[lsproto.Error](msg)
			slog.Warn("livesync agent error", "code", e.Code, "message", e.Message)
		default:
			slog.Debug("livesync unexpected message", "msg", msg)
		}
	}
}

func (s *session) reply(id string, msg *lsproto.Message) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()

	if !ok {
		slog.Debug("livesync reply without request", "id", id, "type", msg.Type)
		return
	}
	ch <- msg
}

func (s *session) complete(done lsproto.SyncDone) {
	s.mu.Lock()
	ch, ok := s.ops[done.OperationID]
	s.mu.Unlock()

	if !ok {
		slog.Debug("livesync completion for unknown operation", "operationId", done.OperationID)
		return
	}
	select {
	case ch <- done:
	default:
	}
}

// request sends msg and waits for the reply carrying its id
func (s *session) request(ctx context.Context, msg *lsproto.Message) (*lsproto.Message, error) {
	replyCh := make(chan *lsproto.Message, 1)
	s.mu.Lock()
	s.pending[msg.Id] = replyCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.Id)
		s.mu.Unlock()
	}()

	if err := s.conn.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		if nack, ok := lsproto.DataAs[lsproto.Nack](reply); ok && reply.Type == lsproto.MsgNack {
			return nil, fmt.Errorf("%w: %s %s", ErrRequestRejected, msg.Type, nack.Error)
		}
		return reply, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s %s: no reply within %s", msg.Type, msg.Id, s.ackTimeout)
	case <-s.done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *session) hello(ctx context.Context, opts livesync.ConnectOptions) error {
	reply, err := s.request(ctx, lsproto.NewHello(opts.AppID, opts.DeviceID))
	if err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	hello, ok := lsproto.DataAs[lsproto.Hello](reply)
	if !ok {
		return fmt.Errorf("hello: unexpected reply %s", reply.Type)
	}
	if hello.ProtocolVersion != lsproto.ProtocolVersion {
		return fmt.Errorf("%w: agent speaks %q", ErrProtocolMismatch, hello.ProtocolVersion)
	}
	return nil
}

func (s *session) inProgress(operationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ops[operationID]
	return ok
}

func (s *session) doSync(ctx context.Context, operationID string, fastSync bool) (*livesync.OperationResult, error) {
	doneCh := make(chan lsproto.SyncDone, 1)

	s.mu.Lock()
	if _, exists := s.ops[operationID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("operation %s already in progress", operationID)
	}
	s.ops[operationID] = doneCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.ops, operationID)
		s.mu.Unlock()
	}()

	if _, err := s.request(ctx, lsproto.NewDoSync(operationID, fastSync)); err != nil {
		return nil, err
	}

	select {
	case done := <-doneCh:
		if done.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrOperationFailed, operationID, done.Error)
		}
		return &livesync.OperationResult{OperationID: done.OperationID, DidRefresh: done.DidRefresh}, nil
	case <-s.done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
