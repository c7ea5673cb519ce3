package fluid

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the event bursts editors produce on save.
var watchDebounce = 200 * time.Millisecond

// WatchParams reloads the parameter file at path whenever it changes and
// calls fn with every valid snapshot. Invalid files are logged and skipped.
// The file's directory is watched so that editors replacing the file by
// rename keep being observed.
//
// WatchParams blocks until ctx is done and then returns nil. It returns an
// error only if the watch cannot be established.
//
// Example:
//
//	go fluid.WatchParams(ctx, "fluid.yaml", func(p fluid.Params) { _ = sim.SetParams(p) })
func WatchParams(ctx context.Context, path string, fn func(Params)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("fluid: watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fluid: watch %s: %w", path, err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("fluid: watch %s: %w", path, err)
	}

	log := Logger().With(slog.String("path", abs))
	log.Debug("fluid: watching parameter file")

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(watchDebounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("fluid: watcher error", slog.String("err", err.Error()))

		case <-debounce.C:
			p, err := LoadParams(abs)
			if err != nil {
				log.Warn("fluid: parameter file skipped", slog.String("err", err.Error()))
				continue
			}
			log.Info("fluid: parameters reloaded")
			fn(p)

		case <-ctx.Done():
			return nil
		}
	}
}
