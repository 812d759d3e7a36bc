package livesync

import (
	"fmt"
	"sync"
	"time"
)

const operationEventBufferSize = 16

// OperationState is the lifecycle state of a sync operation
type OperationState string

const (
	OperationPending   OperationState = "pending"
	OperationSyncing   OperationState = "syncing"
	OperationCompleted OperationState = "completed"
	OperationError     OperationState = "error"
)

// OperationInfo is a snapshot of one operation
type OperationInfo struct {
	ID          string
	AppID       string
	State       OperationState
	FastSync    bool
	Heartbeats  int
	Error       error
	StartedAt   time.Time
	LastUpdated time.Time
}

func (o OperationInfo) String() string {
	return fmt.Sprintf("Operation: %s, App: %s, State: %s, FastSync: %t, Heartbeats: %d, Error: %v", o.ID, o.AppID, o.State, o.FastSync, o.Heartbeats, o.Error)
}

type OperationEvent struct {
	OperationID string
	Info        OperationInfo
}

// OperationStatus tracks sync operations and broadcasts their state changes
type OperationStatus struct {
	ops map[string]*OperationInfo
	mu  sync.RWMutex

	subs  []chan *OperationEvent
	subMu sync.RWMutex
}

func NewOperationStatus() *OperationStatus {
	return &OperationStatus{
		ops: make(map[string]*OperationInfo),
	}
}

// Subscribe returns a channel of operation events. Slow subscribers miss events.
func (s *OperationStatus) Subscribe() <-chan *OperationEvent {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan *OperationEvent, operationEventBufferSize)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *OperationStatus) Unsubscribe(ch <-chan *OperationEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for i, sub := range s.subs {
		if sub == ch {
			close(sub)
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *OperationStatus) broadcast(info *OperationInfo) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	event := &OperationEvent{OperationID: info.ID, Info: *info}
	for _, sub := range s.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

func (s *OperationStatus) update(id string, fn func(info *OperationInfo)) {
	s.mu.Lock()
	info, ok := s.ops[id]
	if !ok {
		now := time.Now()
		info = &OperationInfo{ID: id, State: OperationPending, StartedAt: now}
		s.ops[id] = info
	}
	fn(info)
	info.LastUpdated = time.Now()
	snapshot := *info
	s.mu.Unlock()

	s.broadcast(&snapshot)
}

func (s *OperationStatus) SetSyncing(id, appID string, fastSync bool) {
	s.update(id, func(info *OperationInfo) {
		info.AppID = appID
		info.FastSync = fastSync
		info.State = OperationSyncing
		info.Error = nil
	})
}

// Heartbeat records that the device still reports the operation in progress
func (s *OperationStatus) Heartbeat(id string) {
	s.update(id, func(info *OperationInfo) {
		info.Heartbeats++
	})
}

func (s *OperationStatus) SetCompleted(id string) {
	s.update(id, func(info *OperationInfo) {
		info.State = OperationCompleted
		info.Error = nil
	})
}

func (s *OperationStatus) SetError(id string, err error) {
	s.update(id, func(info *OperationInfo) {
		info.State = OperationError
		info.Error = err
	})
}

func (s *OperationStatus) Get(id string) (OperationInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.ops[id]
	if !ok {
		return OperationInfo{}, false
	}
	return *info, true
}

// InProgressCount returns the number of operations currently syncing
func (s *OperationStatus) InProgressCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, info := range s.ops {
		if info.State == OperationSyncing {
			count++
		}
	}
	return count
}

// Cleanup forgets finished operations older than maxAge
func (s *OperationStatus) Cleanup(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, info := range s.ops {
		finished := info.State == OperationCompleted || info.State == OperationError
		if finished && info.LastUpdated.Before(cutoff) {
			delete(s.ops, id)
		}
	}
}

func (s *OperationStatus) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, sub := range s.subs {
		close(sub)
	}
	s.subs = nil
}
