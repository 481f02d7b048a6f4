// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contexts turns per-file configuration contributions into the
// effective root path set of each resolution context.
//
// # Merge rule
//
// Contributions of one context are merged in lexical path order. Per kind,
// each file's list is appended, skipping roots already present, so the
// first declaration of a root fixes its priority. An empty merged set falls
// back to the auto-detected default.
//
// # Thread Safety
//
// Manager is safe for concurrent use. ContextChanged subscribers run
// synchronously on the goroutine that caused the change, after the new
// state is visible to Effective.
package contexts

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/classify"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/contribution"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/internal/ignore"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/internal/pubsub"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// ContextResolver attributes a configuration file to a context.
type ContextResolver func(configPath string) model.ContextID

// DefaultResolver attributes every file to model.DefaultContext.
func DefaultResolver(string) model.ContextID { return model.DefaultContext }

// Source is one configuration file and the roots it contributes.
type Source struct {
	Path    string            `json:"path"`
	Context model.ContextID   `json:"context"`
	Roots   model.RootPathSet `json:"roots"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithResolver sets the context attribution function.
func WithResolver(r ContextResolver) Option {
	return func(m *Manager) {
		if r != nil {
			m.resolver = r
		}
	}
}

// WithDefaultRoots sets the fallback used when a context has no declared
// roots. The function is called on every recomputation.
func WithDefaultRoots(fn func() model.RootPathSet) Option {
	return func(m *Manager) {
		if fn != nil {
			m.defaults = fn
		}
	}
}

// WithIgnore sets the matcher used during discovery.
func WithIgnore(matcher *ignore.Matcher) Option {
	return func(m *Manager) {
		m.ignore = matcher
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns the contribution map and the effective root sets.
type Manager struct {
	projectRoot string
	resolver    ContextResolver
	defaults    func() model.RootPathSet
	ignore      *ignore.Matcher
	logger      *slog.Logger

	mu            sync.Mutex
	contributions map[string]Source
	effective     map[model.ContextID]model.RootPathSet

	changed *pubsub.Topic[model.ContextDiff]
}

// New creates a manager for the project rooted at projectRoot. Until the
// first FullRescan no context has an effective set.
func New(projectRoot string, opts ...Option) *Manager {
	root := model.NormalizePath(projectRoot)
	m := &Manager{
		projectRoot:   root,
		resolver:      DefaultResolver,
		ignore:        ignore.Must(),
		logger:        slog.Default(),
		contributions: make(map[string]Source),
		effective:     make(map[model.ContextID]model.RootPathSet),
		changed:       pubsub.NewTopic[model.ContextDiff]("context_changed"),
	}
	m.defaults = func() model.RootPathSet { return AutoDetect(root) }

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProjectRoot returns the normalized project root.
func (m *Manager) ProjectRoot() string {
	return m.projectRoot
}

// Subscribe registers fn for ContextChanged notifications.
func (m *Manager) Subscribe(fn func(model.ContextDiff)) string {
	return m.changed.Subscribe(fn)
}

// Unsubscribe removes a ContextChanged subscription.
func (m *Manager) Unsubscribe(id string) bool {
	return m.changed.Unsubscribe(id)
}

// FullRescan discovers and parses every configuration file, replaces the
// contribution map and recomputes all contexts. The returned diff holds the
// contexts whose effective set changed; it is also published when
// non-empty.
func (m *Manager) FullRescan(ctx context.Context) (model.ContextDiff, error) {
	d := &Discoverer{Root: m.projectRoot, Ignore: m.ignore, Logger: m.logger}
	paths, err := d.Discover(ctx)
	if err != nil {
		return nil, err
	}

	fresh := make(map[string]Source, len(paths))
	for _, p := range paths {
		if src, ok := m.parse(p); ok {
			fresh[p] = src
		}
	}

	m.mu.Lock()
	m.contributions = fresh
	diff := m.recomputeLocked()
	m.mu.Unlock()

	m.logger.Info("configuration rescanned",
		slog.Int("files", len(fresh)),
		slog.Int("changed_contexts", len(diff)),
	)
	m.publish(diff)
	return diff, nil
}

// ApplyChanges re-parses only the given configuration paths. A path that
// can no longer be read, or that is no longer a configuration file, drops
// its contribution. A path naming a deleted directory drops every
// contribution beneath it. Effective sets are recomputed only when at least
// one contribution differs from its previous value.
func (m *Manager) ApplyChanges(ctx context.Context, paths []string) model.ContextDiff {
	m.mu.Lock()
	targets := m.expandLocked(paths)
	m.mu.Unlock()

	type update struct {
		path    string
		src     Source
		present bool
	}
	updates := make([]update, 0, len(targets))
	for _, p := range targets {
		if ctx.Err() != nil {
			m.logger.Warn("apply changes interrupted", slog.Int("remaining", len(targets)-len(updates)))
			break
		}
		src, ok := m.parse(p)
		updates = append(updates, update{path: p, src: src, present: ok})
	}

	m.mu.Lock()
	dirty := false
	for _, u := range updates {
		prev, had := m.contributions[u.path]
		switch {
		case u.present:
			if !had || prev.Context != u.src.Context || !prev.Roots.Equal(u.src.Roots) {
				dirty = dirty || !(prev.Roots.IsEmpty() && u.src.Roots.IsEmpty())
			}
			m.contributions[u.path] = u.src
		case had:
			delete(m.contributions, u.path)
			dirty = dirty || !prev.Roots.IsEmpty()
		}
	}
	var diff model.ContextDiff
	if dirty {
		diff = m.recomputeLocked()
	}
	m.mu.Unlock()

	if dirty {
		m.logger.Debug("configuration changes applied",
			slog.Int("files", len(updates)),
			slog.Int("changed_contexts", len(diff)),
		)
	}
	m.publish(diff)
	return diff
}

// Effective returns the effective root set of ctxID.
func (m *Manager) Effective(ctxID model.ContextID) (model.RootPathSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roots, ok := m.effective[ctxID]
	return roots, ok
}

// Contexts returns the known contexts in sorted order.
func (m *Manager) Contexts() []model.ContextID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.effective))
}

// Sources returns the contributing files of ctxID in merge order.
func (m *Manager) Sources(ctxID model.ContextID) []Source {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Source
	for _, p := range slices.Sorted(maps.Keys(m.contributions)) {
		if src := m.contributions[p]; src.Context == ctxID {
			out = append(out, src)
		}
	}
	return out
}

// parse reads and parses one configuration file. ok is false when the file
// is not a readable configuration file.
func (m *Manager) parse(p string) (Source, bool) {
	dialect, isConfig := classify.Classify(p).Dialect()
	if !isConfig {
		return Source{}, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("configuration file unreadable", slog.String("path", p), slog.String("error", err.Error()))
		}
		return Source{}, false
	}

	raw := contribution.Parse(dialect, string(data))
	return Source{
		Path:    p,
		Context: m.resolver(p),
		Roots:   contribution.ResolveContribution(raw, m.projectRoot),
	}, true
}

// expandLocked normalizes paths and adds every known contribution beneath a
// path that is a directory prefix of it. Must hold m.mu.
func (m *Manager) expandLocked(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, raw := range paths {
		p := model.NormalizePath(raw)
		if p == "" {
			continue
		}
		add(p)
		for known := range m.contributions {
			if known != p && model.HasPathPrefix(known, p) {
				add(known)
			}
		}
	}
	slices.Sort(out)
	return out
}

// recomputeLocked rebuilds every effective set and returns the contexts
// whose set changed. Must hold m.mu.
func (m *Manager) recomputeLocked() model.ContextDiff {
	byContext := map[model.ContextID][]Source{model.DefaultContext: nil}
	for _, p := range slices.Sorted(maps.Keys(m.contributions)) {
		src := m.contributions[p]
		byContext[src.Context] = append(byContext[src.Context], src)
	}

	next := make(map[model.ContextID]model.RootPathSet, len(byContext))
	for ctxID, sources := range byContext {
		var merged model.RootPathSet
		for _, src := range sources {
			merged = merged.Merge(src.Roots)
		}
		if merged.IsEmpty() {
			merged = m.defaults()
		}
		next[ctxID] = merged
	}

	diff := make(model.ContextDiff)
	for ctxID, roots := range next {
		if prev, ok := m.effective[ctxID]; !ok || !prev.Equal(roots) {
			diff[ctxID] = roots
		}
	}
	for ctxID := range m.effective {
		if _, ok := next[ctxID]; !ok {
			diff[ctxID] = model.RootPathSet{}
		}
	}
	m.effective = next
	return diff
}

func (m *Manager) publish(diff model.ContextDiff) {
	if len(diff) == 0 {
		return
	}
	for ctxID, roots := range diff {
		m.logger.Info("context roots changed",
			slog.String("context", string(ctxID)),
			slog.String("roots", roots.String()),
		)
	}
	m.changed.Publish(diff)
}

// String renders a source for logs.
func (s Source) String() string {
	var b strings.Builder
	b.WriteString(s.Path)
	b.WriteString(" -> ")
	b.WriteString(s.Roots.String())
	return b.String()
}
