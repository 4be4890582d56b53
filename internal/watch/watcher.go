package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the quiet period between the last file event and the
// re-apply it triggers.
const DefaultDebounce = 500 * time.Millisecond

// Runner watches a set of files and re-applies when any of them changes.
// Applies are single-flight: changes arriving mid-apply coalesce into one
// follow-up run.
type Runner struct {
	paths    []string
	apply    func(context.Context) error
	debounce time.Duration
}

// New creates a runner for the given files. Parent directories are watched
// rather than the files themselves, since editors replace files by rename.
func New(paths []string, apply func(context.Context) error) *Runner {
	return &Runner{paths: paths, apply: apply, debounce: DefaultDebounce}
}

// Run blocks until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range r.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logrus.Debugf("Watching %s", dir)
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	applying := false
	dirty := false
	done := make(chan error, 1)

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(r.debounce)
		timerCh = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if applying {
				<-done
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if !watched[abs] {
				continue
			}
			if !event.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove) {
				continue
			}
			logrus.Debugf("Change detected: %s", event.Name)
			if applying {
				dirty = true
				continue
			}
			schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.Warnf("Watch error: %v", err)

		case <-timerCh:
			timerCh = nil
			applying = true
			go func() {
				logrus.Info("Re-applying after change")
				done <- r.apply(ctx)
			}()

		case err := <-done:
			applying = false
			if err != nil && ctx.Err() == nil {
				logrus.Errorf("Re-apply failed: %v", err)
			}
			if dirty {
				dirty = false
				schedule()
			}
		}
	}
}

// SetDebounce overrides the quiet period. Used by tests.
func (r *Runner) SetDebounce(d time.Duration) {
	r.debounce = d
}
