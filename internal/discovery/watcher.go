// SPDX-License-Identifier: MPL-2.0
//
// Derived from invowk internal/watch/watcher.go (MPL-2.0).

package discovery

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/vk/merlin/internal/ctxlog"
)

// defaultDebounce is the quiet period after the last event before a batch is
// delivered. Editors that write-then-rename produce several events per save.
const defaultDebounce = 100 * time.Millisecond

var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// WatchConfig holds the parameters for a Watcher.
type WatchConfig struct {
	Roots      []string
	Extensions []string
	// Ignore are extra doublestar patterns, matched against paths relative to
	// the root that contains them.
	Ignore   []string
	Debounce time.Duration
	// OnChange receives each batch of changed absolute paths, sorted. A batch
	// is delivered only after Debounce has passed without further events.
	OnChange func(ctx context.Context, changed []string)
}

// Watcher delivers debounced batches of source file changes. Run must be
// called exactly once.
type Watcher struct {
	cfg      WatchConfig
	fsw      *fsnotify.Watcher
	roots    []string
	patterns []string
	ignores  []string
	debounce time.Duration
	started  atomic.Bool
}

// NewWatcher creates a Watcher and registers every non-ignored directory
// under the configured roots.
func NewWatcher(cfg WatchConfig) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, fmt.Errorf("watch: at least one root is required")
	}
	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve root %q: %w", r, err)
		}
		roots = append(roots, abs)
	}

	patterns := make([]string, 0, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		patterns = append(patterns, "**/*."+strings.TrimPrefix(ext, "."))
	}
	ignores := append(slices.Clone(defaultIgnores), cfg.Ignore...)
	for _, pat := range append(slices.Clone(patterns), ignores...) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		roots:    roots,
		patterns: patterns,
		ignores:  ignores,
		debounce: debounce,
	}
	for _, root := range roots {
		if err := w.addDirectories(root); err != nil {
			fsw.Close() //nolint:errcheck // best-effort cleanup
			return nil, err
		}
	}
	return w, nil
}

// Run blocks until ctx is cancelled, coalescing filesystem events into
// batches. It returns nil on cancellation and an error if the underlying
// watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}
	logger := ctxlog.FromContext(ctx)

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		logger.Debug("Delivering change batch.", "count", len(changed))
		if w.cfg.OnChange != nil {
			w.cfg.OnChange(ctx, changed)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			logger.Warn("Closing file watcher failed.", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(ctx, evt.Name)
			}
			if !w.relevant(evt.Name) {
				continue
			}

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			if watchErrorIsFatal(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			logger.Warn("File watcher error.", "error", err)
		}
	}
}

// relevant reports whether an absolute path is a watched source file.
func (w *Watcher) relevant(path string) bool {
	rel, ok := w.relative(path)
	if !ok || w.isIgnored(rel) {
		return false
	}
	for _, pat := range w.patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// relative returns path relative to the first root containing it, in slash form.
func (w *Watcher) relative(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

func (w *Watcher) isIgnored(rel string) bool {
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirectories(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip inaccessible paths
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := w.relative(path)
		if rel != "." && (w.isIgnored(rel) || w.isIgnored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", root, err)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup.
func (w *Watcher) maybeAddDir(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, ok := w.relative(path)
	if !ok || w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		ctxlog.FromContext(ctx).Warn("Watching new directory failed.", "path", path, "error", err)
	}
}
