// Package reload re-assembles the API when its document or route modules
// change on disk.
package reload

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
)

// DefaultDebounce coalesces the burst of events an editor or a checkout
// produces into one rebuild.
const DefaultDebounce = 200 * time.Millisecond

// Handler serves the most recently stored router. Each request is routed
// from scratch so the stored router may be a chi mux mounted behind another.
type Handler struct {
	current atomic.Pointer[http.Handler]
}

// Store replaces the router used by subsequent requests.
func (h *Handler) Store(next http.Handler) {
	h.current.Store(&next)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	next := h.current.Load()
	if next == nil {
		http.Error(w, "api not assembled", http.StatusServiceUnavailable)
		return
	}
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, nil))
	(*next).ServeHTTP(w, r)
}

// Watcher reports changes to a set of files and directory trees.
type Watcher struct {
	paths    []string
	logger   *slog.Logger
	Debounce time.Duration
}

// NewWatcher watches each path; directories are watched recursively.
func NewWatcher(logger *slog.Logger, paths ...string) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{paths: paths, logger: logger, Debounce: DefaultDebounce}
}

// Watch starts watching and calls onChange once per burst of changes until
// ctx is cancelled. Errors setting up the watch are returned; later errors
// are logged.
func (w *Watcher) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	var set watchSet
	for _, path := range w.paths {
		if err := set.add(watcher, path); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}

	w.logger.Info("watching api for changes", slog.Any("paths", w.paths))

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				w.logger.Debug("api watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod || !set.contains(event.Name) {
					continue
				}
				// New directories under a watched tree need their own watch
				if event.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := addTree(watcher, event.Name); err != nil {
							w.logger.Error("failed to watch new directory",
								slog.String("path", event.Name),
								slog.String("error", err.Error()))
						}
					}
				}
				w.logger.Debug("api file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
				if timer == nil {
					timer = time.NewTimer(w.Debounce)
				} else {
					timer.Reset(w.Debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				onChange()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("api watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// watchSet tracks what a Watcher reports on. Files are watched through
// their parent directory so a save that renames a new file over the old
// one keeps being seen.
type watchSet struct {
	files map[string]bool
	trees []string
}

func (s *watchSet) add(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	path = filepath.Clean(path)
	if info.IsDir() {
		s.trees = append(s.trees, path)
		return addTree(watcher, path)
	}
	if s.files == nil {
		s.files = make(map[string]bool)
	}
	s.files[path] = true
	return watcher.Add(filepath.Dir(path))
}

func (s *watchSet) contains(name string) bool {
	name = filepath.Clean(name)
	if s.files[name] {
		return true
	}
	for _, root := range s.trees {
		if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
