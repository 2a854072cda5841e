// Package scaninbox watches the directory where the office scanner drops
// incoming letter scans and announces each settled file.
package scaninbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet before it is announced.
// Scanners write large TIFFs in bursts, so a single Create is not enough.
const settleDelay = 200 * time.Millisecond

// EventCallback is called once per settled scan file.
type EventCallback func(name string, size int64)

var scanExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".tif":  true,
}

// IsScanFile reports whether name has a recognised scan extension.
func IsScanFile(name string) bool {
	return scanExtensions[strings.ToLower(filepath.Ext(name))]
}

// Watch starts an fsnotify watcher on dir and processes file events until
// ctx is cancelled. Create and Write events for the same file are debounced
// per file, and cb (if non-nil) fires only after the file has settled.
//
// The inbox directory is created if it does not exist yet.
func Watch(ctx context.Context, dir string, logger *slog.Logger, cb EventCallback) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("scaninbox: started", slog.String("dir", dir))

	// One timer per in-flight file, replaced on every further write. The
	// generation number guards against a timer that fired while its settle
	// message was still queued: such a stale message carries an old
	// generation and is dropped instead of announcing the file twice.
	type settleMsg struct {
		path string
		gen  int
	}
	timers := make(map[string]*time.Timer)
	gens := make(map[string]int)
	settled := make(chan settleMsg)

	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(path string) {
		gen := gens[path] + 1
		gens[path] = gen
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(settleDelay, func() {
			select {
			case settled <- settleMsg{path: path, gen: gen}:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("scaninbox: stopped")
			return nil

		case msg := <-settled:
			if gens[msg.path] != msg.gen {
				// Superseded by a later write; a fresh timer is pending.
				continue
			}
			path := msg.path
			delete(timers, path)
			delete(gens, path)
			info, statErr := os.Stat(path)
			if statErr != nil {
				// Removed before it settled.
				continue
			}
			name := filepath.Base(path)
			logger.Info("scaninbox: scan received",
				slog.String("file", name),
				slog.Int64("size", info.Size()))
			if cb != nil {
				cb(name, info.Size())
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !IsScanFile(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if t, exists := timers[ev.Name]; exists {
					t.Stop()
					delete(timers, ev.Name)
					delete(gens, ev.Name)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("scaninbox: error", slog.String("error", watchErr.Error()))
		}
	}
}
