package quacksql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// watchDebounce is how long Watch waits after the last event on a file
// before reloading it.
const watchDebounce = 100 * time.Millisecond

// Watch loads dir like Module and keeps it in sync until ctx is done:
// created or modified .sql files are (re)loaded, removed or renamed ones
// are dropped from the registry. Events come from the OS filesystem, so
// Watch is only meaningful with the default afero.OsFs.
// It blocks; run it in its own goroutine.
func (m *Manager) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("quacksql: failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("quacksql: failed to watch %s: %w", dir, err)
	}
	// Subscribe before the initial load so no change slips in between.
	if _, err := m.Module(dir); err != nil {
		return err
	}
	m.logger.Debug("watching module", "dir", dir)

	pending := make(map[string]struct{})
	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != sqlExt {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
				m.forget(queryName(ev.Name))
				m.logger.Debug("query removed", "name", queryName(ev.Name))
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = struct{}{}
				timer.Reset(watchDebounce)
			}

		case <-timer.C:
			for path := range pending {
				m.reloadFile(path)
			}
			clear(pending)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watch error", "dir", dir, "err", err)
		}
	}
}

// reloadFile reads a single query file into the registry. A file that
// vanished in the meantime is dropped.
func (m *Manager) reloadFile(path string) {
	name := queryName(path)
	b, err := afero.ReadFile(m.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		m.forget(name)
		return
	}
	if err != nil {
		m.logger.Warn("reloading query", "path", path, "err", err)
		return
	}
	m.mu.Lock()
	m.queries[name] = string(b)
	m.mu.Unlock()
	m.logger.Debug("query reloaded", "name", name)
}
