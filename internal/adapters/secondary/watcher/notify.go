package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// fileState is the last observed state of a watched file
type fileState struct {
	exists   bool
	size     int64
	modTime  time.Time
	checksum string
}

// NotifyWatcher reports deck file changes from filesystem notifications.
// It watches parent directories so files replaced by rename are still seen,
// and compares content hashes so touches and chmods are ignored.
type NotifyWatcher struct {
	debounce time.Duration
	states   map[string]fileState
	notify   *fsnotify.Watcher
	events   chan ports.FileChangeEvent
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopped  bool
	stopCh   chan struct{}
	now      func() time.Time
	logger   *slog.Logger
}

// NewNotifyWatcher creates a watcher that reports a change once no further
// change has arrived for debounce
func NewNotifyWatcher(debounce time.Duration, logger *slog.Logger) *NotifyWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyWatcher{
		debounce: debounce,
		states:   make(map[string]fileState),
		events:   make(chan ports.FileChangeEvent, 10),
		stopCh:   make(chan struct{}),
		now:      time.Now,
		logger:   logger.With("component", "watcher"),
	}
}

// Watch records the current state of every path and starts listening on
// their directories. The first path must exist; later ones (such as an
// optional texdeck.toml) may appear later.
func (w *NotifyWatcher) Watch(ctx context.Context, paths ...string) (<-chan ports.FileChangeEvent, error) {
	if len(paths) == 0 {
		return nil, errors.New("no paths to watch")
	}

	absPaths := make([]string, 0, len(paths))
	for i, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}

		state, err := scan(absPath)
		if err != nil {
			return nil, fmt.Errorf("initial scan: %w", err)
		}
		if i == 0 && !state.exists {
			return nil, fmt.Errorf("initial scan: %s does not exist", path)
		}

		w.store(absPath, state)
		absPaths = append(absPaths, absPath)
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	added := make(map[string]bool)
	for i, path := range absPaths {
		dir := filepath.Dir(path)
		if added[dir] {
			continue
		}
		if err := notify.Add(dir); err != nil {
			if i == 0 {
				_ = notify.Close()
				return nil, fmt.Errorf("watching %s: %w", dir, err)
			}
			w.logger.Warn("Cannot watch directory", slog.String("dir", dir), slog.String("error", err.Error()))
			continue
		}
		added[dir] = true
	}

	w.mu.Lock()
	w.notify = notify
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx, notify, absPaths)
	}()

	return w.events, nil
}

// Stop stops watching and closes the event channel
func (w *NotifyWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	notify := w.notify
	w.mu.Unlock()

	w.wg.Wait()
	close(w.events)

	if notify != nil {
		return notify.Close()
	}
	return nil
}

func (w *NotifyWatcher) loop(ctx context.Context, notify *fsnotify.Watcher, paths []string) {
	targets := make(map[string]bool, len(paths))
	for _, p := range paths {
		targets[p] = true
	}

	pending := make(map[string]ports.ChangeType)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-notify.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)
			if !targets[path] {
				continue
			}

			change, changed, err := w.check(path)
			if err != nil {
				w.logger.Warn("Watch error", slog.String("path", path), slog.String("error", err.Error()))
				continue
			}
			if !changed {
				continue
			}
			pending[path] = change

			if w.debounce <= 0 {
				if !w.flush(ctx, paths, pending) {
					return
				}
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if !w.flush(ctx, paths, pending) {
				return
			}

		case err, ok := <-notify.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watch error", slog.String("error", err.Error()))
		}
	}
}

// flush emits the latest pending change per path in watch order. It reports
// false when the watcher is shutting down.
func (w *NotifyWatcher) flush(ctx context.Context, paths []string, pending map[string]ports.ChangeType) bool {
	for _, path := range paths {
		change, ok := pending[path]
		if !ok {
			continue
		}
		delete(pending, path)

		select {
		case w.events <- ports.FileChangeEvent{Path: path, Type: change, Timestamp: w.now()}:
		case <-ctx.Done():
			return false
		case <-w.stopCh:
			return false
		}
	}
	return true
}

// check compares the file against its last state. The content hash is only
// computed when size or mtime moved.
func (w *NotifyWatcher) check(path string) (ports.ChangeType, bool, error) {
	w.mu.Lock()
	old := w.states[path]
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return 0, false, fmt.Errorf("stat file: %w", err)
		}
		if !old.exists {
			return 0, false, nil
		}
		w.store(path, fileState{})
		return ports.Deleted, true, nil
	}

	if old.exists && old.size == info.Size() && old.modTime.Equal(info.ModTime()) {
		return 0, false, nil
	}

	checksum, err := checksumFile(path)
	if err != nil {
		return 0, false, fmt.Errorf("calculate checksum: %w", err)
	}

	state := fileState{exists: true, size: info.Size(), modTime: info.ModTime(), checksum: checksum}
	w.store(path, state)

	switch {
	case !old.exists:
		return ports.Created, true, nil
	case old.checksum != checksum:
		return ports.Modified, true, nil
	default:
		// Touched without a content change
		return 0, false, nil
	}
}

func (w *NotifyWatcher) store(path string, state fileState) {
	w.mu.Lock()
	w.states[path] = state
	w.mu.Unlock()
}

func scan(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileState{}, nil
		}
		return fileState{}, fmt.Errorf("stat file: %w", err)
	}

	checksum, err := checksumFile(path)
	if err != nil {
		return fileState{}, fmt.Errorf("calculate checksum: %w", err)
	}
	return fileState{exists: true, size: info.Size(), modTime: info.ModTime(), checksum: checksum}, nil
}

func checksumFile(path string) (string, error) {
	file, err := os.Open(path) // #nosec G304 - path comes from the build command arguments
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

var _ ports.FileWatcher = (*NotifyWatcher)(nil)
