package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ServicesWatcher monitors the service registry file and invokes the supplied
// callback whenever the routes change. Stop must be called to release
// filesystem resources.
type ServicesWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *ServicesWatcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// WatchServices wires fsnotify around the configured registry file and
// republishes the routes on any relevant change. The callback also fires once
// with the file's current content before the watcher starts.
func WatchServices(ctx context.Context, path string, onChange func(map[string]string), onError func(error)) (*ServicesWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("config: watch services requires a change callback")
	}
	if path == "" {
		return nil, fmt.Errorf("config: no services file configured for watching")
	}

	resolved := path
	if abs, err := filepath.Abs(path); err == nil {
		resolved = abs
	}
	target := filepath.Clean(resolved)

	services, err := LoadServices(target)
	if err != nil {
		return nil, err
	}
	onChange(services)

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("config: watch services: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and a
	// direct file watch goes stale after the rename.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		cancel()
		return nil, fmt.Errorf("config: watch services add: %w", err)
	}

	done := make(chan struct{})
	w := &ServicesWatcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil && onError != nil {
				onError(fmt.Errorf("config: watch services close: %w", err))
			}
		}()

		reload := func() {
			services, err := LoadServices(target)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onChange(services)
		}

		const debounce = 25 * time.Millisecond
		var reloadTimer *time.Timer
		var reloadSignal <-chan time.Time
		scheduleReload := func() {
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(debounce)
			} else {
				if !reloadTimer.Stop() {
					select {
					case <-reloadTimer.C:
					default:
					}
				}
				reloadTimer.Reset(debounce)
			}
			reloadSignal = reloadTimer.C
		}

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-reloadSignal:
				reloadSignal = nil
				reload()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					scheduleReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(fmt.Errorf("config: watch services: %w", err))
				}
			}
		}
	}()

	return w, nil
}
