// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change event
// before reloading. Editors often write a file in several steps.
const DefaultDebounce = 250 * time.Millisecond

// =============================================================================
// FILE WATCHER
// =============================================================================

// Watch reloads the catalog at path into store whenever the file changes,
// until ctx is done. A document that fails to parse is logged and the
// previous snapshot stays in place.
//
// The parent directory is watched rather than the file itself so that
// atomic saves (write temp, rename over) are seen.
func Watch(ctx context.Context, path string, store *Store) error {
	return WatchWithDebounce(ctx, path, store, DefaultDebounce)
}

// WatchWithDebounce is Watch with a custom debounce interval.
func WatchWithDebounce(ctx context.Context, path string, store *Store, debounce time.Duration) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	log.Printf("CATALOG_WATCH | path=%s", absPath)

	// A nil channel blocks forever, so the timer case is inert until armed.
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			reload(absPath, store)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("CATALOG_WATCH_ERROR | error=%v", err)
		}
	}
}

// reload swaps in the file's contents if they parse.
func reload(path string, store *Store) {
	c, err := Load(path)
	if err != nil {
		log.Printf("CATALOG_RELOAD_FAILED | path=%s error=%v", path, err)
		return
	}
	store.Set(c)
	log.Printf("CATALOG_RELOADED | path=%s company=%q services=%d", path, c.Company, len(c.Services))
}
