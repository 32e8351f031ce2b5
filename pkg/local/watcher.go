package local

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/tierfs/internal/logger"
)

// WriteTracker records the last write time observed for every path
// under the tier root, so the migration scheduler can skip files still
// being written. It watches the tree recursively with fsnotify; when an
// event was missed (watch added after the write, overflow), the file's
// mtime serves as the fallback signal.
type WriteTracker struct {
	root    string
	watcher *fsnotify.Watcher

	mu     sync.Mutex
	writes map[string]time.Time

	done chan struct{}
}

// NewWriteTracker starts watching the tier rooted at root.
func NewWriteTracker(root string) (*WriteTracker, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	t := &WriteTracker{
		root:    root,
		watcher: watcher,
		writes:  make(map[string]time.Time),
		done:    make(chan struct{}),
	}

	if err := t.watchTree(root); err != nil {
		watcher.Close()
		return nil, err
	}

	go t.loop()
	return t, nil
}

// watchTree adds watches for root and every directory below it.
func (t *WriteTracker) watchTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return t.watcher.Add(p)
		}
		return nil
	})
}

func (t *WriteTracker) loop() {
	defer close(t.done)

	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handle(event)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Write tracker error", logger.Err(err))
		}
	}
}

func (t *WriteTracker) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(t.root, event.Name)
	if err != nil {
		return
	}
	path := filepath.ToSlash(rel)

	switch {
	case event.Has(fsnotify.Create):
		// New directories need their own watch to see writes below them.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := t.watcher.Add(event.Name); err != nil {
				logger.Warn("Failed to watch new directory",
					logger.Path(path),
					logger.Err(err))
			}
			return
		}
		t.record(path)
	case event.Has(fsnotify.Write):
		t.record(path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		t.mu.Lock()
		delete(t.writes, path)
		t.mu.Unlock()
	}
}

func (t *WriteTracker) record(path string) {
	t.mu.Lock()
	t.writes[path] = time.Now()
	t.mu.Unlock()
}

// LastWrite returns the most recent write observed for path, or the
// zero time when none was seen.
func (t *WriteTracker) LastWrite(path string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes[strings.Trim(path, "/")]
}

// Quiescent reports whether path has gone at least window without a
// write as of now. Files never seen by the watcher fall back to their
// on-disk mtime.
func (t *WriteTracker) Quiescent(path string, modTime time.Time, window time.Duration, now time.Time) bool {
	last := t.LastWrite(path)
	if modTime.After(last) {
		last = modTime
	}
	return now.Sub(last) >= window
}

// Forget drops the tracked write time for path. Called after a file
// leaves the local tier.
func (t *WriteTracker) Forget(path string) {
	t.mu.Lock()
	delete(t.writes, strings.Trim(path, "/"))
	t.mu.Unlock()
}

// Close stops the tracker.
func (t *WriteTracker) Close() error {
	err := t.watcher.Close()
	<-t.done
	return err
}
