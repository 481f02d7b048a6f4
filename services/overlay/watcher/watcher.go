// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watcher turns fsnotify notifications for a project tree into
// batches of model.ChangeEvent.
//
// Raw notifications are collected for a short burst window. When the window
// passes without new notifications the burst is converted: a rename
// notification followed by a create in the same burst becomes a single
// Renamed (same parent) or Moved (different parent) event, and repeated
// notifications for one path collapse into one event.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/internal/ignore"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// ErrCreateWatcher is returned when the OS watcher cannot be created.
var ErrCreateWatcher = errors.New("cannot create file watcher")

// Handler receives one converted burst. It is called from a single
// goroutine.
type Handler func(batch []model.ChangeEvent)

// rawOp is the kind of one fsnotify notification.
type rawOp int

const (
	opCreate rawOp = iota
	opWrite
	opRemove
	opRename
)

// rawChange is one fsnotify notification.
type rawChange struct {
	path string
	op   rawOp
}

// Options configures a Watcher.
type Options struct {
	// BurstWindow is how long to wait for further notifications before a
	// burst is converted. Default: 50ms
	BurstWindow time.Duration

	// Ignore excludes paths relative to the root. Default: ignore.Must()
	Ignore *ignore.Matcher

	// BufferSize is the size of the notification channel. Default: 1000
	BufferSize int

	// Logger receives watcher errors. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		BurstWindow: 50 * time.Millisecond,
		Ignore:      ignore.Must(),
		BufferSize:  1000,
		Logger:      slog.Default(),
	}
}

// Watcher watches a directory tree.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	handler Handler
	window  time.Duration
	ignore  *ignore.Matcher
	logger  *slog.Logger

	// errLog throttles error logging during notification storms.
	errLog rate.Sometimes

	changes  chan rawChange
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.RWMutex
	watching bool
	dirs     map[string]bool
	dropped  int
}

// New creates a watcher for root. Call Start to begin watching.
func New(root string, handler Handler, opts *Options) (*Watcher, error) {
	o := DefaultOptions()
	if opts != nil {
		if opts.BurstWindow > 0 {
			o.BurstWindow = opts.BurstWindow
		}
		if opts.Ignore != nil {
			o.Ignore = opts.Ignore
		}
		if opts.BufferSize > 0 {
			o.BufferSize = opts.BufferSize
		}
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateWatcher, err)
	}

	return &Watcher{
		root:    model.NormalizePath(root),
		fsw:     fsw,
		handler: handler,
		window:  o.BurstWindow,
		ignore:  o.Ignore,
		logger:  o.Logger,
		errLog:  rate.Sometimes{First: 3, Interval: 10 * time.Second},
		changes: make(chan rawChange, o.BufferSize),
		done:    make(chan struct{}),
		dirs:    make(map[string]bool),
	}, nil
}

// Start watches root and every non-ignored subdirectory. It returns once
// the watches are in place.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root, nil); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.burstLoop(ctx)
	return nil
}

// Stop stops watching and waits for the goroutines to exit. A pending burst
// is delivered before Stop returns.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Dropped returns the number of notifications lost to a full buffer.
func (w *Watcher) Dropped() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dropped
}

// addRecursive watches dir and its subdirectories. When files is non-nil,
// every regular file found is appended to it.
func (w *Watcher) addRecursive(dir string, files *[]string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if p != w.root && w.ignore.MatchAbs(w.root, p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if files != nil {
				*files = append(*files, p)
			}
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			w.logError("add watch", p, err)
			return nil
		}
		w.mu.Lock()
		w.dirs[model.NormalizePath(p)] = true
		w.mu.Unlock()
		return nil
	})
}

// processEvents forwards fsnotify notifications to the burst loop.
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			op, keep := convertOp(event.Op)
			if !keep || w.ignore.MatchAbs(w.root, event.Name) {
				continue
			}

			select {
			case w.changes <- rawChange{path: model.NormalizePath(event.Name), op: op}:
			default:
				w.mu.Lock()
				w.dropped++
				w.mu.Unlock()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logError("watch error", w.root, err)
		}
	}
}

// convertOp maps an fsnotify op. Chmod-only notifications are dropped.
func convertOp(op fsnotify.Op) (rawOp, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return opCreate, true
	case op.Has(fsnotify.Write):
		return opWrite, true
	case op.Has(fsnotify.Remove):
		return opRemove, true
	case op.Has(fsnotify.Rename):
		return opRename, true
	default:
		return 0, false
	}
}

// burstLoop batches notifications and calls the handler once a burst ends.
func (w *Watcher) burstLoop(ctx context.Context) {
	defer w.wg.Done()

	var burst []rawChange
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(burst) > 0 {
			events := w.convert(burst)
			if len(events) > 0 && w.handler != nil {
				w.handler(events)
			}
			burst = burst[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			burst = append(burst, change)
			if timer == nil {
				timer = time.NewTimer(w.window)
				timerC = timer.C
			} else {
				timer.Reset(w.window)
			}
		case <-timerC:
			flush()
		}
	}
}

// convert turns a burst into change events.
func (w *Watcher) convert(burst []rawChange) []model.ChangeEvent {
	var events []model.ChangeEvent
	paired := make(map[int]bool)

	for i, rc := range burst {
		if paired[i] {
			continue
		}
		switch rc.op {
		case opWrite:
			events = append(events, model.ContentChanged(model.NewFile(rc.path)))

		case opCreate:
			events = append(events, w.created(rc.path)...)

		case opRemove:
			events = append(events, w.removed(rc.path))

		case opRename:
			j := pairRename(burst, i, paired)
			if j < 0 {
				events = append(events, w.removed(rc.path))
				continue
			}
			paired[j] = true
			target := burst[j].path
			if isDir(target) {
				w.forgetDir(rc.path)
				events = append(events, model.DeletedDir(model.GoneFile(rc.path)))
				events = append(events, w.created(target)...)
				continue
			}
			f := model.NewFile(target)
			if f.Parent() == model.GoneFile(rc.path).Parent() {
				events = append(events, model.Renamed(f, filepath.Base(rc.path)))
			} else {
				events = append(events, model.Moved(f, rc.path))
			}
		}
	}
	return Coalesce(events)
}

// pairRename finds the create that completes the rename at index i: the
// first unpaired create after it with the same parent or the same base
// name. It returns -1 when there is none.
func pairRename(burst []rawChange, i int, paired map[int]bool) int {
	old := burst[i].path
	for j := i + 1; j < len(burst); j++ {
		if paired[j] || burst[j].op != opCreate {
			continue
		}
		p := burst[j].path
		if filepath.Dir(p) == filepath.Dir(old) || filepath.Base(p) == filepath.Base(old) {
			return j
		}
	}
	return -1
}

// created handles a create notification. A new directory is watched and
// every file already inside it is reported.
func (w *Watcher) created(p string) []model.ChangeEvent {
	if !isDir(p) {
		return []model.ChangeEvent{model.Created(model.NewFile(p))}
	}
	var files []string
	if err := w.addRecursive(p, &files); err != nil {
		w.logError("watch new directory", p, err)
		return nil
	}
	events := make([]model.ChangeEvent, 0, len(files))
	for _, f := range files {
		events = append(events, model.Created(model.NewFile(f)))
	}
	return events
}

// removed reports a deletion, as a directory deletion when p was watched.
func (w *Watcher) removed(p string) model.ChangeEvent {
	if w.forgetDir(p) {
		return model.DeletedDir(model.GoneFile(p))
	}
	return model.Deleted(model.GoneFile(p))
}

// forgetDir drops p and its subdirectories from the watched set. It
// reports whether p was watched.
func (w *Watcher) forgetDir(p string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	was := w.dirs[p]
	for dir := range w.dirs {
		if model.HasPathPrefix(dir, p) {
			delete(w.dirs, dir)
		}
	}
	return was
}

func (w *Watcher) logError(msg, path string, err error) {
	w.errLog.Do(func() {
		w.logger.Warn(msg, slog.String("path", path), slog.String("error", err.Error()))
	})
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Coalesce merges events for the same path, keeping the first position.
// A later event replaces an earlier one, except that a content change
// after a creation stays a creation, a deletion cancels a path whose first
// event in the batch was a creation, and a directory deletion absorbs later
// plain deletions of the same path.
func Coalesce(events []model.ChangeEvent) []model.ChangeEvent {
	index := make(map[string]int, len(events))
	out := make([]model.ChangeEvent, 0, len(events))
	// first holds the type of the event that opened each slot.
	first := make([]model.EventType, 0, len(events))
	cancelled := make(map[int]bool)

	for _, e := range events {
		key := e.File.Path
		at, seen := index[key]
		if !seen || cancelled[at] {
			index[key] = len(out)
			out = append(out, e)
			first = append(first, e.Type)
			continue
		}
		prev := out[at]
		switch {
		case prev.Type == model.EventCreated && e.Type == model.EventContentChanged:
			out[at].File = e.File
		case prev.Type == model.EventCreated && e.Type == model.EventDeleted && !e.Dir:
			if first[at] == model.EventCreated {
				cancelled[at] = true
			} else {
				// The path existed before the batch.
				out[at] = e
			}
		case prev.Dir && e.Type == model.EventDeleted:
			// Already reported with its contents.
		default:
			out[at] = e
		}
	}

	if len(cancelled) == 0 {
		return out
	}
	kept := out[:0]
	for i, e := range out {
		if !cancelled[i] {
			kept = append(kept, e)
		}
	}
	return kept
}
