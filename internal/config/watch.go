package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Config each time the file is saved. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that
// write a temporary file and rename it over path are seen as well as
// in-place writes. If a reload fails (e.g., invalid YAML), the error is
// logged and onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := Load(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				// A rename away from path leaves nothing to read until the
				// replacement lands, which arrives as its own Create.
				slog.Warn("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
