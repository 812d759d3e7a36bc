package livesync

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ProcessService runs registered actions when the process is asked to exit
type ProcessService interface {
	// AttachToProcessExitSignals registers action and returns a func that unregisters it
	AttachToProcessExitSignals(action func()) (detach func())
}

// SignalProcessService dispatches exit signals to attached actions. Actions are
// best effort: they run in the signal goroutine and nothing waits for in-flight
// work they might race with.
type SignalProcessService struct {
	mu      sync.Mutex
	actions map[uint64]func()
	nextID  uint64
	signals <-chan os.Signal
	stop    func()
	done    chan struct{}
	closed  sync.Once
}

// NewSignalProcessService listens for SIGINT and SIGTERM
func NewSignalProcessService() *SignalProcessService {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	p := newProcessService(ch)
	p.stop = func() { signal.Stop(ch) }
	return p
}

// NewProcessServiceWithChannel delivers whatever is sent on ch as an exit signal
func NewProcessServiceWithChannel(ch <-chan os.Signal) *SignalProcessService {
	return newProcessService(ch)
}

func newProcessService(ch <-chan os.Signal) *SignalProcessService {
	p := &SignalProcessService{
		actions: make(map[uint64]func()),
		signals: ch,
		stop:    func() {},
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *SignalProcessService) AttachToProcessExitSignals(action func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.actions[id] = action

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.actions, id)
	}
}

// Close stops listening. Actions still attached are not run.
func (p *SignalProcessService) Close() {
	p.closed.Do(func() {
		p.stop()
		close(p.done)
	})
}

func (p *SignalProcessService) loop() {
	for {
		select {
		case <-p.done:
			return
		case sig, ok := <-p.signals:
			if !ok {
				return
			}
			p.runActions(sig)
		}
	}
}

func (p *SignalProcessService) runActions(sig os.Signal) {
	p.mu.Lock()
	actions := make([]func(), 0, len(p.actions))
	for _, action := range p.actions {
		actions = append(actions, action)
	}
	p.mu.Unlock()

	slog.Info("exit signal received, running cleanup", "signal", sig, "actions", len(actions))
	for _, action := range actions {
		action()
	}
}
