// Package source feeds configuration payloads from the filesystem into the
// engine.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// File reads a payload from Path and hands it to Apply.
type File struct {
	Path   string
	Apply  func(data []byte) error
	Logger *slog.Logger
}

func (f *File) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Load reads the file and applies it once.
func (f *File) Load() error {
	if f.Path == "" {
		return errors.New("no file path set")
	}
	if f.Apply == nil {
		return errors.New("no apply function set")
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return f.Apply(data)
}

// Watch re-applies the file whenever it is written or created in
// place, until ctx is cancelled. The directory is watched rather than the
// file so editors that replace the file atomically are seen. A failed apply
// is logged and the previous configuration stays in effect.
func (f *File) Watch(ctx context.Context) error {
	return f.watch(ctx, nil)
}

// watch closes ready, if non-nil, once the watcher is registered.
func (f *File) watch(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(f.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", f.Path, err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	if ready != nil {
		close(ready)
	}

	log := f.logger().With("path", f.Path)
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
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := f.Load(); err != nil {
				log.Warn("configuration file rejected, keeping last known good", "error", err)
				continue
			}
			log.Info("configuration file applied", "op", event.Op.String())

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("file watcher error", "error", err)
		}
	}
}
