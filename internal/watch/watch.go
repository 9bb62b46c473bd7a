// Package watch monitors graph definition files and emits invalidation
// events on the bus when they change. Emission happens on the watcher
// goroutine; delivery stays at the frame-loop safe point, so nodes never see
// an event mid-frame.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
	"github.com/voxgraph/voxgraph/internal/events"
)

// KindFileChanged is emitted when a watched definition file is written or
// created; the payload is the file path.
const KindFileChanged events.Kind = "file_changed"

// Watcher debounces filesystem events into bus events.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	bus       *events.Bus
	debounce  time.Duration
	done      chan struct{}
}

// New creates a watcher publishing onto the given bus.
func New(bus *events.Bus, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsw,
		bus:       bus,
		debounce:  debounce,
		done:      make(chan struct{}),
	}, nil
}

// Start watches the directories containing the given paths and launches the
// event loop. Watching directories rather than files survives the
// rename-and-replace pattern editors use when saving.
func (w *Watcher) Start(ctx context.Context, paths ...string) error {
	dirs := make(map[string]bool)
	for _, p := range paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	go w.loop(ctx)
	return nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	var (
		timer    *time.Timer
		lastPath string
	)

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C
		}

		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			lastPath = event.Name
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			logger.Debug("Definition file changed, emitting invalidation.", "path", lastPath)
			w.bus.Emit(events.Event{Kind: KindFileChanged, Payload: lastPath})
			timer = nil

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error.", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return strings.HasSuffix(event.Name, ".hcl")
}
