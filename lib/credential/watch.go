// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bureau-foundation/tasklist/lib/clock"
)

// DefaultWatchDebounce coalesces the burst of events an atomic write
// produces (create tmp, write, rename) into one callback.
const DefaultWatchDebounce = 100 * time.Millisecond

// WatchConfig configures [Watch].
type WatchConfig struct {
	// Path is the credential file to watch. The file need not exist.
	Path string

	// OnChange runs once per burst of changes to Path, on a timer
	// goroutine. It must not block for long.
	OnChange func()

	// Debounce defaults to DefaultWatchDebounce.
	Debounce time.Duration

	// Clock drives the debounce timer. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watch watches the credential file until ctx is cancelled. The parent
// directory is watched rather than the file, because atomic writes
// replace the file's inode and removal must be observed too.
//
// Returns nil when ctx is cancelled, or an error if the watch could
// not be established or the watcher failed.
func Watch(ctx context.Context, cfg WatchConfig) error {
	if cfg.Path == "" || cfg.OnChange == nil {
		return fmt.Errorf("credential: watch requires a path and a callback")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultWatchDebounce
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	target := filepath.Clean(cfg.Path)
	directory := filepath.Dir(target)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("credential: creating %s: %w", directory, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("credential: creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(directory); err != nil {
		return fmt.Errorf("credential: watching %s: %w", directory, err)
	}
	cfg.Logger.Debug("watching credential file", "path", target)

	var (
		timerMu sync.Mutex
		timer   *clock.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = cfg.Clock.AfterFunc(cfg.Debounce, cfg.OnChange)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				cfg.Logger.Debug("credential file changed", "path", target, "op", event.Op.String())
				schedule()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("credential: watcher: %w", err)
		}
	}
}
