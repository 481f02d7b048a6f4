// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// Registry holds one catalog per context. Catalogs are created on first
// use with the registry's options.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	opts []Option

	mu       sync.RWMutex
	catalogs map[model.ContextID]*Catalog
}

// NewRegistry creates an empty registry. opts apply to every catalog it
// creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:     opts,
		catalogs: make(map[model.ContextID]*Catalog),
	}
}

// Get returns the catalog of ctxID, if any.
func (r *Registry) Get(ctxID model.ContextID) (*Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.catalogs[ctxID]
	return c, ok
}

// Ensure returns the catalog of ctxID, creating an empty one if needed.
func (r *Registry) Ensure(ctxID model.ContextID) *Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.catalogs[ctxID]
	if !ok {
		c = New(ctxID, r.opts...)
		r.catalogs[ctxID] = c
	}
	return c
}

// Rebuild performs a full build of ctxID's catalog over roots. An empty
// root set drops the catalog.
func (r *Registry) Rebuild(ctx context.Context, ctxID model.ContextID, roots model.RootPathSet) error {
	if roots.IsEmpty() {
		r.Drop(ctxID)
		return nil
	}
	return r.Ensure(ctxID).Build(ctx, roots)
}

// Drop removes ctxID's catalog.
func (r *Registry) Drop(ctxID model.ContextID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.catalogs, ctxID)
}

// Contexts returns the contexts with a catalog, sorted.
func (r *Registry) Contexts() []model.ContextID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.catalogs))
}
