package memory

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// reloadDebounce groups the burst of events editors emit for one save.
const reloadDebounce = 100 * time.Millisecond

// fixtureWatcher reloads fixture files when they change on disk.
type fixtureWatcher struct {
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// WatchFixtures reloads files whenever one of them is written or
// recreated. A reload replaces every resource the files define and
// notifies watchers with a remove for each old record and a create for
// each new one. Records created through the adapter in those resources
// are lost on reload.
func (a *Adapter) WatchFixtures(files []string) error {
	if len(files) == 0 {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start fixture watcher: %w", err)
	}

	// Directories are watched so files replaced by rename are still seen.
	targets := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = w.Close()
			return err
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	fw := &fixtureWatcher{watcher: w, cancel: cancel, done: make(chan struct{})}

	a.watchMu.Lock()
	prev := a.fixtures
	a.fixtures = fw
	a.watchMu.Unlock()
	if prev != nil {
		prev.stop()
	}

	go a.watchLoop(ctx, fw, targets, files)
	return nil
}

func (a *Adapter) watchLoop(ctx context.Context, fw *fixtureWatcher, targets map[string]bool, files []string) {
	defer close(fw.done)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !targets[name] {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				a.logger.Debug("fixture changed, reloading", slog.String("file", name))
				if err := a.reload(files); err != nil {
					a.logger.Error("fixture reload failed", slog.String("error", err.Error()))
				}
			})
			mu.Unlock()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			a.logger.Error("fixture watcher error", slog.String("error", err.Error()))
		}
	}
}

// reload re-reads files and swaps the resources they define.
// A file that fails to parse leaves the current records untouched.
func (a *Adapter) reload(files []string) error {
	merged := make(fixtureSet)
	for _, f := range files {
		set, err := readFixtureFile(f)
		if err != nil {
			return err
		}
		for res, records := range set {
			merged[res] = append(merged[res], records...)
		}
	}

	var changes []adapter.Change
	a.mu.Lock()
	for _, res := range merged.resources() {
		for _, old := range a.tables[res] {
			changes = append(changes, adapter.Change{Kind: adapter.ChangeRemove, Resource: res, Record: old})
		}
		fresh := make([]criteria.Record, len(merged[res]))
		for i, rec := range merged[res] {
			fresh[i] = rec.Clone()
			changes = append(changes, adapter.Change{Kind: adapter.ChangeCreate, Resource: res, Record: rec.Clone()})
		}
		a.tables[res] = fresh
	}
	a.mu.Unlock()

	for _, c := range changes {
		a.notify(c)
	}
	return nil
}

func (fw *fixtureWatcher) stop() {
	fw.cancel()
	_ = fw.watcher.Close()
	<-fw.done
}

// Close stops the fixture watcher, if any.
func (a *Adapter) Close() error {
	a.watchMu.Lock()
	fw := a.fixtures
	a.fixtures = nil
	a.watchMu.Unlock()
	if fw != nil {
		fw.stop()
	}
	return nil
}
