// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depviz

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/DependViz/services/depviz/symbols"
)

// ErrWatcherStopped indicates Start was called on a stopped watcher.
var ErrWatcherStopped = errors.New("watcher stopped")

// FileOp is the kind of a file system change.
type FileOp int

const (
	// FileOpCreate indicates a file was created.
	FileOpCreate FileOp = iota

	// FileOpWrite indicates a file was modified.
	FileOpWrite

	// FileOpRemove indicates a file was deleted.
	FileOpRemove

	// FileOpRename indicates a file was renamed away.
	FileOpRename
)

// String returns the lower-case name of the operation.
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "create"
	case FileOpWrite:
		return "write"
	case FileOpRemove:
		return "remove"
	case FileOpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileChange is one debounced change to a Java file.
type FileChange struct {
	// Path is the absolute path of the changed file.
	Path string

	// Op is the last operation seen for Path in the debounce window.
	Op FileOp

	// Time is when the change was observed.
	Time time.Time
}

// FileChangeHandler receives debounced changes one at a time from a single
// goroutine.
type FileChangeHandler func(ctx context.Context, change FileChange)

// WatcherOptions configures a FileWatcher.
type WatcherOptions struct {
	// Debounce is how long the watcher waits for quiet before dispatching.
	// Default: 200ms
	Debounce time.Duration

	// MaxEventsPerSecond bounds how fast changes are dispatched.
	// Default: 20
	MaxEventsPerSecond float64

	// IgnorePatterns are gitignore-style patterns relative to the root.
	// Hidden directories are always ignored.
	IgnorePatterns []string

	// BufferSize is the capacity of the raw change buffer. Events arriving
	// while it is full are dropped.
	// Default: 1024
	BufferSize int
}

// DefaultWatcherOptions returns the default options.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce:           200 * time.Millisecond,
		MaxEventsPerSecond: 20,
		IgnorePatterns:     []string{"target/", "build/", "out/"},
		BufferSize:         1024,
	}
}

// FileWatcher watches a source tree for Java file changes.
//
// Description:
//
//	Raw fsnotify events for .java files are collected until the debounce
//	window passes without new events. The batch is then deduplicated per
//	path, keeping the last operation, and dispatched to the handler at no
//	more than MaxEventsPerSecond. New directories are watched as they
//	appear.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler is called from one goroutine.
type FileWatcher struct {
	root     string
	watcher  *fsnotify.Watcher
	handler  FileChangeHandler
	debounce time.Duration
	limiter  *rate.Limiter
	ignored  *ignore.GitIgnore

	changes  chan FileChange
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
	stopped  bool
}

// NewFileWatcher creates a watcher for root. Call Start to begin.
//
// Outputs:
//   - *FileWatcher: The watcher.
//   - error: Non-nil if fsnotify could not be initialized.
func NewFileWatcher(root string, handler FileChangeHandler, opts WatcherOptions) (*FileWatcher, error) {
	defaults := DefaultWatcherOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.MaxEventsPerSecond <= 0 {
		opts.MaxEventsPerSecond = defaults.MaxEventsPerSecond
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaults.BufferSize
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	burst := int(opts.MaxEventsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &FileWatcher{
		root:     abs,
		watcher:  w,
		handler:  handler,
		debounce: opts.Debounce,
		limiter:  rate.NewLimiter(rate.Limit(opts.MaxEventsPerSecond), burst),
		ignored:  ignore.CompileIgnoreLines(opts.IgnorePatterns...),
		changes:  make(chan FileChange, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Root returns the watched directory.
func (w *FileWatcher) Root() string {
	return w.root
}

// Start watches root and every non-ignored directory below it.
//
// Both worker goroutines exit when ctx is canceled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrWatcherStopped
	}
	if w.watching {
		return nil
	}

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.watching = true

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	slog.Info("file watcher started",
		slog.String("root", w.root),
		slog.Duration("debounce", w.debounce))
	return nil
}

// Stop stops watching and waits for the worker goroutines to exit.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.stopped = true
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is running.
func (w *FileWatcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// addRecursive adds dir and its non-ignored subdirectories.
func (w *FileWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.shouldIgnore(path, true) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// shouldIgnore reports whether path is hidden or matches an ignore pattern.
func (w *FileWatcher) shouldIgnore(path string, dir bool) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	if dir {
		rel += "/"
	}
	return w.ignored.MatchesPath(rel)
}

// processEvents turns fsnotify events into FileChanges.
func (w *FileWatcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent filters one raw event and queues it.
func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.shouldIgnore(event.Name, true) {
				if err := w.addRecursive(event.Name); err != nil {
					slog.Warn("watching new directory failed",
						slog.String("dir", event.Name),
						slog.String("error", err.Error()))
				}
			}
			return
		}
	}
	if !symbols.IsJavaFile(event.Name) || w.shouldIgnore(event.Name, false) {
		return
	}
	op, ok := convertOp(event.Op)
	if !ok {
		return
	}

	select {
	case w.changes <- FileChange{Path: event.Name, Op: op, Time: time.Now()}:
	default:
		watcherDroppedTotal.Inc()
		slog.Debug("file change dropped, buffer full", slog.String("file", event.Name))
	}
}

// convertOp maps an fsnotify operation; chmod-only events are dropped.
func convertOp(op fsnotify.Op) (FileOp, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return FileOpRemove, true
	case op.Has(fsnotify.Rename):
		return FileOpRename, true
	case op.Has(fsnotify.Create):
		return FileOpCreate, true
	case op.Has(fsnotify.Write):
		return FileOpWrite, true
	default:
		return 0, false
	}
}

// debounceLoop batches changes and dispatches them after a quiet period.
func (w *FileWatcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var (
		batch  []FileChange
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func() {
		for _, change := range dedupe(batch) {
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			watcherEventsTotal.WithLabelValues(change.Op.String()).Inc()
			if w.handler != nil {
				w.handler(ctx, change)
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			flush()
		}
	}
}

// dedupe keeps the last change per path, in order of first appearance.
func dedupe(changes []FileChange) []FileChange {
	seen := make(map[string]int, len(changes))
	out := make([]FileChange, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}

// Watch starts a watcher on the engine's source root that keeps the cache
// and the source index current.
//
// Description:
//
//	A created or written file is re-indexed and re-analyzed through
//	Change. A removed or renamed file is closed and forgotten by the
//	index. Failures are logged; the watcher keeps running.
//
// Outputs:
//   - *FileWatcher: The running watcher. Call Stop when done.
//   - error: Watcher creation or start failure.
func (s *Service) Watch(ctx context.Context, opts WatcherOptions) (*FileWatcher, error) {
	w, err := NewFileWatcher(s.engine.SourceRoot(), s.applyChange, opts)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

// applyChange is the watcher's change handler.
func (s *Service) applyChange(ctx context.Context, change FileChange) {
	logger := slog.With(slog.String("file", change.Path), slog.String("op", change.Op.String()))

	switch change.Op {
	case FileOpCreate, FileOpWrite:
		if _, err := s.engine.Reindex(ctx, change.Path); err != nil {
			logger.Warn("reindex failed", slog.String("error", err.Error()))
		}
		if _, err := s.Change(ctx, change.Path, nil); err != nil {
			logger.Debug("re-analysis after change failed", slog.String("error", err.Error()))
		}
	case FileOpRemove, FileOpRename:
		s.engine.Forget(change.Path)
		s.forgetFile(change.Path)
		if err := s.Close(change.Path); err != nil {
			logger.Warn("evict after removal failed", slog.String("error", err.Error()))
		}
	}
}
