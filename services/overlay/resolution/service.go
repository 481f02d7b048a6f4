// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolution publishes the effective file of every resolution key
// and the diffs between successive snapshots.
package resolution

import (
	"log/slog"
	"maps"
	"sync"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/internal/pubsub"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// Source supplies the current head of every key of one context. It is
// implemented by *catalog.Catalog.
type Source interface {
	Heads() map[model.ResolutionKey]model.File
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service holds the last published snapshot per context.
//
// Thread Safety: Service is safe for concurrent use. Queries never wait on
// pending work; they return the last published value. ResolutionChanged
// subscribers run synchronously inside Recompute, after the snapshot has
// been stored.
type Service struct {
	logger *slog.Logger

	mu        sync.RWMutex
	published map[model.ContextID]map[model.ResolutionKey]model.File

	changed *pubsub.Topic[model.ResolutionDiff]
}

// New creates a service with empty snapshots.
func New(opts ...Option) *Service {
	s := &Service{
		logger:    slog.Default(),
		published: make(map[model.ContextID]map[model.ResolutionKey]model.File),
		changed:   pubsub.NewTopic[model.ResolutionDiff]("resolution_changed"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for ResolutionChanged notifications.
func (s *Service) Subscribe(fn func(model.ResolutionDiff)) string {
	return s.changed.Subscribe(fn)
}

// Unsubscribe removes a ResolutionChanged subscription.
func (s *Service) Unsubscribe(id string) bool {
	return s.changed.Unsubscribe(id)
}

// Recompute compares the heads of source with the last snapshot of ctxID,
// stores the new snapshot, and publishes the differences. Keys present
// only in the old snapshot are reported as removed. A nil source counts as
// empty. The returned diff is sorted and empty when nothing changed.
func (s *Service) Recompute(ctxID model.ContextID, source Source) model.ResolutionDiff {
	next := make(map[model.ResolutionKey]model.File)
	if source != nil {
		for key, file := range source.Heads() {
			key.Context = ctxID
			next[key] = file
		}
	}

	s.mu.Lock()
	prev := s.published[ctxID]
	var diff model.ResolutionDiff
	for key, cur := range next {
		old, had := prev[key]
		switch {
		case !had:
			diff = append(diff, model.ResolutionChange{Key: key, Current: ptr(cur)})
		case old.Path != cur.Path:
			diff = append(diff, model.ResolutionChange{Key: key, Previous: ptr(old), Current: ptr(cur)})
		}
	}
	for key, old := range prev {
		if _, ok := next[key]; !ok {
			diff = append(diff, model.ResolutionChange{Key: key, Previous: ptr(old)})
		}
	}
	if len(next) == 0 {
		delete(s.published, ctxID)
	} else {
		s.published[ctxID] = next
	}
	s.mu.Unlock()

	if len(diff) == 0 {
		return nil
	}
	diff.Sort()
	s.logger.Info("resolution changed",
		slog.String("context", string(ctxID)),
		slog.Int("changes", len(diff)),
	)
	for _, change := range diff {
		s.logger.Debug("resolution change",
			slog.String("key", change.Key.String()),
			slog.String("type", change.Type().String()),
		)
	}
	s.changed.Publish(diff)
	return diff
}

// Effective returns the last published file for key.
func (s *Service) Effective(key model.ResolutionKey) (model.File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.published[key.Context][key]
	return f, ok
}

// Snapshot returns a copy of the last published snapshot of ctxID.
func (s *Service) Snapshot(ctxID model.ContextID) map[model.ResolutionKey]model.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.published[ctxID])
}

// Size returns the number of published keys of ctxID.
func (s *Service) Size(ctxID model.ContextID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.published[ctxID])
}

func ptr(f model.File) *model.File { return &f }
