package projectfiles

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/openmined/livesync/internal/utils"
)

const (
	eventBufferSize       = 256
	DefaultQuietPeriod    = 300 * time.Millisecond
	defaultBatchQueueSize = 8
)

// Batch is the set of project-relative paths touched during one quiet period
type Batch struct {
	Paths []string
}

// Watcher collects filesystem events below the project root and emits them in
// batches once no new event arrived for the quiet period
type Watcher struct {
	project     *Project
	watchDir    string
	quietPeriod time.Duration

	rawEvents chan notify.EventInfo
	batches   chan Batch
	quiet     chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

func NewWatcher(project *Project) *Watcher {
	watchDir := project.Root()
	// notify reports resolved paths, e.g. /private/var on macos
	if resolved, err := filepath.EvalSymlinks(watchDir); err == nil {
		watchDir = resolved
	}
	return &Watcher{
		project:     project,
		watchDir:    watchDir,
		quietPeriod: DefaultQuietPeriod,
		done:        make(chan struct{}),
		quiet:       make(chan struct{}, 1),
		pending:     make(map[string]struct{}),
	}
}

func (w *Watcher) SetQuietPeriod(d time.Duration) {
	if d > 0 {
		w.quietPeriod = d
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("project watcher start", "dir", w.watchDir)

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	w.batches = make(chan Batch, defaultBatchQueueSize)

	if err := notify.Watch(w.watchDir+"/...", w.rawEvents, notify.All); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.collect(ctx)
	return nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.rawEvents != nil {
			notify.Stop(w.rawEvents)
		}
		w.wg.Wait()
		slog.Info("project watcher stopped")
	})
}

// Batches is closed once the watcher stops
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

func (w *Watcher) collect(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		close(w.batches)
		w.wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			w.add(event.Path())
		case <-w.quiet:
			batch, ok := w.take()
			if !ok {
				continue
			}
			select {
			case w.batches <- batch:
				slog.Debug("project watcher batch", "paths", len(batch.Paths))
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
		}
	}
}

func (w *Watcher) add(eventPath string) {
	rel, ok := utils.RelDevicePath(w.watchDir, eventPath)
	if !ok || w.project.Ignore().ShouldIgnore(rel, utils.DirExists(eventPath)) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[rel] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.quietPeriod, func() {
		select {
		case w.quiet <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) take() (Batch, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return Batch{}, false
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil

	sort.Strings(paths)
	return Batch{Paths: paths}, true
}
