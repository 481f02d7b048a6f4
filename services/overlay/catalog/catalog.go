// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog indexes the implementation files found under a context's
// root directories.
//
// For every kind the catalog maps a logical name to its candidates, best
// first: descending root priority, and for equal priority the candidate
// discovered first. The effective file of a name is the head of its list.
//
// # Lifecycle
//
//  1. Create with New(ctxID)
//  2. Build with the context's effective RootPathSet (full walk)
//  3. Mutate incrementally with Add, Remove and RemoveUnder
//  4. Build again whenever the context's roots change
//
// # Thread Safety
//
// Catalog is safe for concurrent use. Build walks outside the lock and
// swaps the new index in atomically.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/internal/ignore"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// DefaultExtension is the implementation file extension.
const DefaultExtension = ".html"

// defaultWalkers bounds the number of concurrent root walks.
const defaultWalkers = 4

// Option configures a Catalog.
type Option func(*Catalog)

// WithExtension sets the implementation file extension (".html").
func WithExtension(ext string) Option {
	return func(c *Catalog) {
		if ext != "" {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			c.ext = strings.ToLower(ext)
		}
	}
}

// WithIgnore excludes files matching matcher, relative to projectRoot.
func WithIgnore(matcher *ignore.Matcher, projectRoot string) Option {
	return func(c *Catalog) {
		c.ignore = matcher
		c.projectRoot = model.NormalizePath(projectRoot)
	}
}

// WithWalkers sets the number of roots walked concurrently during Build.
func WithWalkers(n int) Option {
	return func(c *Catalog) {
		if n > 0 {
			c.walkers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// index is the per-kind name to candidates map.
type index map[model.Kind]map[model.LogicalName][]model.Candidate

// Catalog is the overlay index of one context.
type Catalog struct {
	ctxID       model.ContextID
	ext         string
	ignore      *ignore.Matcher
	projectRoot string
	walkers     int
	logger      *slog.Logger

	mu       sync.RWMutex
	roots    model.RootPathSet
	entries  index
	builtAt  time.Time
	buildDur time.Duration
}

// New creates an empty catalog for ctxID.
func New(ctxID model.ContextID, opts ...Option) *Catalog {
	c := &Catalog{
		ctxID:   ctxID,
		ext:     DefaultExtension,
		walkers: defaultWalkers,
		logger:  slog.Default(),
		entries: make(index),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("context", string(ctxID)))
	return c
}

// Context returns the context this catalog serves.
func (c *Catalog) Context() model.ContextID {
	return c.ctxID
}

// walkJob is one root to enumerate.
type walkJob struct {
	kind     model.Kind
	priority int
	root     string
}

// Build replaces the catalog with a full scan of roots. Roots are walked
// concurrently; candidates are inserted in (kind, priority) order so the
// result does not depend on scheduling. Missing or unreadable roots are
// skipped.
func (c *Catalog) Build(ctx context.Context, roots model.RootPathSet) error {
	start := time.Now()

	var jobs []walkJob
	for _, kind := range model.AllKinds {
		for priority, root := range roots.Paths(kind) {
			jobs = append(jobs, walkJob{kind: kind, priority: priority, root: root})
		}
	}

	found := make([][]model.File, len(jobs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.walkers)
	for i, job := range jobs {
		g.Go(func() error {
			files, err := c.walk(gCtx, job.root)
			if err != nil {
				return err
			}
			found[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	next := make(index, len(model.AllKinds))
	for i, job := range jobs {
		for _, f := range found[i] {
			name := logicalName(job.root, f.Path, c.ext)
			insert(next, job.kind, model.Candidate{Name: name, File: f, Priority: job.priority})
		}
	}

	c.mu.Lock()
	c.roots = roots
	c.entries = next
	c.builtAt = time.Now()
	c.buildDur = time.Since(start)
	c.mu.Unlock()

	c.logger.Info("catalog built",
		slog.Int("roots", len(jobs)),
		slog.Int("names", countNames(next)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// walk lists the implementation files under root in lexical order.
func (c *Catalog) walk(ctx context.Context, root string) ([]model.File, error) {
	var files []model.File
	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrBuildCancelled, ctxErr)
		}
		if err != nil {
			if p == root {
				if errors.Is(err, fs.ErrNotExist) {
					c.logger.Debug("root does not exist", slog.String("root", root))
				} else {
					c.logger.Warn("root unreadable", slog.String("root", root), slog.String("error", err.Error()))
				}
				return filepath.SkipDir
			}
			c.logger.Warn("skipping unreadable path", slog.String("path", p), slog.String("error", err.Error()))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p != root && c.ignored(p) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), c.ext) {
			files = append(files, model.NewFile(p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Catalog) ignored(p string) bool {
	if c.ignore == nil || c.projectRoot == "" {
		return false
	}
	return c.ignore.MatchAbs(c.projectRoot, p)
}

// Add inserts f into every kind for which it lies under a configured root.
// Within a kind the longest matching root decides the priority. A candidate
// elsewhere with the same inode is the old location of an unreported move
// and is dropped. It reports whether anything changed.
func (c *Catalog) Add(f model.File) bool {
	if f.Ext() != c.ext || c.ignored(f.Path) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := c.removeLocked(func(cand model.Candidate) bool {
		return cand.File.Path != f.Path && cand.File.SameFile(f)
	})
	if changed {
		c.logger.Debug("dropped stale location of moved file", slog.String("path", f.Path))
	}

	for _, kind := range model.AllKinds {
		priority, root, ok := longestRoot(c.roots.Paths(kind), f.Path)
		if !ok {
			continue
		}
		name := logicalName(root, f.Path, c.ext)
		cands := c.entries[kind][name]
		if i := slices.IndexFunc(cands, func(cand model.Candidate) bool {
			return cand.File.Path == f.Path && cand.Priority == priority
		}); i >= 0 {
			// Replaced in place (editor save); keep the identity current.
			cands[i].File = f
			continue
		}
		insert(c.entries, kind, model.Candidate{Name: name, File: f, Priority: priority})
		changed = true
	}
	return changed
}

// Remove deletes every candidate, of any kind, that refers to f by path or
// identity. Names left without candidates are pruned. It reports whether
// anything changed.
func (c *Catalog) Remove(f model.File) bool {
	return c.removeWhere(func(cand model.Candidate) bool {
		return cand.File.SameFile(f)
	})
}

// RemoveUnder deletes every candidate located in dir or below it.
func (c *Catalog) RemoveUnder(dir string) bool {
	normalized := model.NormalizePath(dir)
	return c.removeWhere(func(cand model.Candidate) bool {
		return model.HasPathPrefix(cand.File.Path, normalized)
	})
}

func (c *Catalog) removeWhere(match func(model.Candidate) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(match)
}

// removeLocked prunes matching candidates. Caller holds c.mu.
func (c *Catalog) removeLocked(match func(model.Candidate) bool) bool {
	changed := false
	for _, names := range c.entries {
		for name, cands := range names {
			kept := slices.DeleteFunc(slices.Clone(cands), match)
			if len(kept) == len(cands) {
				continue
			}
			changed = true
			if len(kept) == 0 {
				delete(names, name)
			} else {
				names[name] = kept
			}
		}
	}
	return changed
}

// Effective returns the head candidate's file for (kind, name).
func (c *Catalog) Effective(kind model.Kind, name model.LogicalName) (model.File, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cands := c.entries[kind][name]
	if len(cands) == 0 {
		return model.File{}, false
	}
	return cands[0].File, true
}

// Candidates returns a copy of the candidate list for (kind, name), best
// first.
func (c *Catalog) Candidates(kind model.Kind, name model.LogicalName) []model.Candidate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.entries[kind][name])
}

// LogicalNames returns the names known for kind, sorted.
func (c *Catalog) LogicalNames(kind model.Kind) []model.LogicalName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.entries[kind]))
}

// Heads snapshots the effective file of every key.
func (c *Catalog) Heads() map[model.ResolutionKey]model.File {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[model.ResolutionKey]model.File, countNames(c.entries))
	for kind, names := range c.entries {
		for name, cands := range names {
			if len(cands) > 0 {
				out[model.ResolutionKey{Context: c.ctxID, Kind: kind, Name: name}] = cands[0].File
			}
		}
	}
	return out
}

// Roots returns the root set of the last Build.
func (c *Catalog) Roots() model.RootPathSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roots
}

// Stats summarizes the catalog.
type Stats struct {
	Context       model.ContextID    `json:"context"`
	Names         map[model.Kind]int `json:"names"`
	Candidates    int                `json:"candidates"`
	Overridden    int                `json:"overridden"`
	BuiltAt       time.Time          `json:"built_at"`
	BuildDuration time.Duration      `json:"build_duration_ns"`
}

// Stats returns counts for the current index. Overridden counts names with
// more than one candidate.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Context:       c.ctxID,
		Names:         make(map[model.Kind]int, len(model.AllKinds)),
		BuiltAt:       c.builtAt,
		BuildDuration: c.buildDur,
	}
	for _, kind := range model.AllKinds {
		names := c.entries[kind]
		s.Names[kind] = len(names)
		for _, cands := range names {
			s.Candidates += len(cands)
			if len(cands) > 1 {
				s.Overridden++
			}
		}
	}
	return s
}

// insert places cand after every candidate of equal or higher priority.
func insert(idx index, kind model.Kind, cand model.Candidate) {
	names, ok := idx[kind]
	if !ok {
		names = make(map[model.LogicalName][]model.Candidate)
		idx[kind] = names
	}
	list := names[cand.Name]
	pos := len(list)
	for i, existing := range list {
		if existing.Priority < cand.Priority {
			pos = i
			break
		}
	}
	names[cand.Name] = slices.Insert(list, pos, cand)
}

// longestRoot returns the priority and path of the longest root containing
// p.
func longestRoot(roots []string, p string) (priority int, root string, ok bool) {
	for i, r := range roots {
		if model.HasPathPrefix(p, r) && len(r) > len(root) {
			priority, root, ok = i, r, true
		}
	}
	return priority, root, ok
}

// logicalName strips root and the extension from p.
func logicalName(root, p, ext string) model.LogicalName {
	rel := strings.TrimPrefix(strings.TrimPrefix(p, model.NormalizePath(root)), "/")
	if len(rel) >= len(ext) && strings.EqualFold(rel[len(rel)-len(ext):], ext) {
		rel = rel[:len(rel)-len(ext)]
	}
	return model.LogicalName(rel)
}

func countNames(idx index) int {
	n := 0
	for _, names := range idx {
		n += len(names)
	}
	return n
}
