package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDelay = 100 * time.Millisecond

// Watch streams the stored preferences every time another process rewrites
// them, until ctx is cancelled. Bursts of writes are coalesced. The channel
// is closed when the watcher stops.
func (s *Disk) Watch(ctx context.Context) (<-chan Preferences, error) {
	if s.basePath == "" {
		return nil, errors.New("prefs: base path unknown")
	}
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return nil, fmt.Errorf("prefs: ensure base path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("prefs: create watcher: %w", err)
	}
	if err := watcher.Add(s.basePath); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("prefs: watch %s: %w", s.basePath, err)
	}

	out := make(chan Preferences, 1)
	target := filepath.Join(filepath.Clean(s.basePath), Key)
	t := &throttle{delay: watchDelay}

	go func() {
		defer close(out)
		defer func() {
			if err := watcher.Close(); err != nil {
				s.logger.Debug("prefs: watcher close", "err", err)
			}
		}()
		defer t.stop()

		send := func() {
			p := s.reload()
			select {
			case out <- p:
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Debug("prefs: watcher error", "err", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != target {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				t.enqueue(send)
			}
		}
	}()
	return out, nil
}

// throttle runs the last enqueued func once per delay window.
type throttle struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
}

func (t *throttle) enqueue(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.timer = nil
		t.mu.Unlock()
		fn()
	})
}

func (t *throttle) stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
