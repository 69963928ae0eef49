// Package watcher observes a service's declared source paths and emits a
// single debounced "changed" signal per burst of filesystem activity. It
// has no knowledge of processes: the supervisor decides what a changed
// signal means for a given service.
//
// fsnotify is the same library the teacher's koanf file provider uses
// under the hood for live config reload, promoted here from a transitive
// dependency to a direct, first-class one since the watcher is a primary
// component rather than a config-reload nicety. Ignore-pattern matching
// adds doublestar glob support (pulled into the dependency pack by
// cuemby-warren's asset bundler) on top of the plain path-prefix matching
// spec'd for ignore entries.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/a3s-lab/dev/internal/logging"
)

// DefaultDebounce is the quiet period used when a WatchSpec does not
// override it.
const DefaultDebounce = 300 * time.Millisecond

// Watcher observes the union of a service's watched path subtrees and
// emits one Changed() signal per debounced burst of events. A Watcher is
// single-use: construct with New, then call Run on its own goroutine.
type Watcher struct {
	service  string
	paths    []string
	ignore   []string
	debounce time.Duration

	changed chan struct{}
}

// New constructs a Watcher for service. paths is the set of root
// directories to observe recursively; ignore entries containing any of
// `*?[` are matched as doublestar globs, everything else as a path
// prefix. debounce <= 0 uses DefaultDebounce.
func New(service string, paths, ignore []string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		service:  service,
		paths:    paths,
		ignore:   ignore,
		debounce: debounce,
		changed:  make(chan struct{}, 1),
	}
}

// Changed delivers one signal per debounced burst. The channel is
// buffered to size 1: a pending unconsumed signal coalesces with the
// next burst rather than queueing.
func (w *Watcher) Changed() <-chan struct{} { return w.changed }

// Run watches every declared path until ctx is cancelled. It returns the
// error early if the underlying fsnotify watcher cannot be created; a root
// path that cannot be added is logged and skipped, and the remaining paths
// are still watched.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, root := range w.paths {
		if err := w.addRecursive(fsw, root); err != nil {
			logging.Warn().Str("service", w.service).Str("path", root).Err(err).
				Msg("watcher failed to add path")
		}
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.shouldIgnore(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if isDir(ev.Name) {
					_ = w.addRecursive(fsw, ev.Name)
				}
			}
			resetTimer()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn().Str("service", w.service).Err(err).Msg("watcher event stream error")

		case <-timerC:
			timerC = nil
			w.emit()
		}
	}
}

func (w *Watcher) emit() {
	select {
	case w.changed <- struct{}{}:
	default:
		// a signal is already pending; this burst coalesces into it.
	}
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return walkDirs(root, func(dir string) error {
		if w.shouldIgnore(dir) {
			return nil
		}
		return fsw.Add(dir)
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	for _, pattern := range w.ignore {
		if strings.ContainsAny(pattern, "*?[") {
			if ok, _ := doublestar.Match(pattern, path); ok {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, pattern) {
			return true
		}
	}
	return false
}

func walkDirs(root string, fn func(dir string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fn(path)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
