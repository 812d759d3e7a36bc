package agent

import (
	"sync"
	"time"
)

// AppState is what the agent knows about one application
type AppState struct {
	AppID         string    `json:"appId"`
	Running       bool      `json:"running"`
	Starts        int       `json:"starts"`
	Restarts      int       `json:"restarts"`
	Syncs         int       `json:"syncs"`
	FastSyncs     int       `json:"fastSyncs"`
	LastOperation string    `json:"lastOperation,omitempty"`
	LastSync      time.Time `json:"lastSync,omitzero"`
}

type AppRegistry struct {
	mu   sync.RWMutex
	apps map[string]*AppState
}

func NewAppRegistry() *AppRegistry {
	return &AppRegistry{apps: make(map[string]*AppState)}
}

func (r *AppRegistry) update(appID string, fn func(*AppState)) AppState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.apps[appID]
	if !ok {
		state = &AppState{AppID: appID}
		r.apps[appID] = state
	}
	fn(state)
	return *state
}

// Start launches the app if it is not running
func (r *AppRegistry) Start(appID string) AppState {
	return r.update(appID, func(s *AppState) {
		if !s.Running {
			s.Running = true
			s.Starts++
		}
	})
}

func (r *AppRegistry) Restart(appID string) AppState {
	return r.update(appID, func(s *AppState) {
		s.Running = true
		s.Restarts++
	})
}

func (r *AppRegistry) RecordSync(appID, operationID string, fastSync bool) AppState {
	return r.update(appID, func(s *AppState) {
		s.Syncs++
		if fastSync {
			s.FastSyncs++
		}
		s.LastOperation = operationID
		s.LastSync = time.Now()
	})
}

func (r *AppRegistry) Get(appID string) (AppState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.apps[appID]
	if !ok {
		return AppState{}, false
	}
	return *state, true
}
