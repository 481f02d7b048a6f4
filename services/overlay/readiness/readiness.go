// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package readiness models the host's ready / not-ready condition.
//
// While the host is not ready (bulk indexing, a full rescan) change
// processing is stashed; subscribers are told about each edge so that
// stashed work can be flushed on the transition back to ready.
package readiness

import (
	"sync"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/internal/pubsub"
)

// Gate is an observable boolean condition.
//
// Thread Safety: Gate is safe for concurrent use. Subscribers are invoked
// on the goroutine that caused the edge, after the new state is visible to
// IsReady, and see edges in the order the state changed. A subscriber must
// not call Set or Hold.
type Gate struct {
	// publishMu orders state changes together with their edge delivery.
	publishMu sync.Mutex

	mu    sync.Mutex
	ready bool

	// holds counts nested Hold calls; the gate is not ready while > 0.
	holds int

	edges *pubsub.Topic[bool]
}

// NewGate creates a gate in the given initial state.
func NewGate(ready bool) *Gate {
	return &Gate{
		ready: ready,
		edges: pubsub.NewTopic[bool]("readiness"),
	}
}

// IsReady reports the current state.
func (g *Gate) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready && g.holds == 0
}

// Set changes the host-reported state. Subscribers are notified only when
// the effective state changes.
func (g *Gate) Set(ready bool) {
	g.update(func() { g.ready = ready })
}

// Hold marks the gate not ready until the returned release function is
// called. Holds nest; release is idempotent.
func (g *Gate) Hold() (release func()) {
	g.update(func() { g.holds++ })

	var once sync.Once
	return func() {
		once.Do(func() {
			g.update(func() { g.holds-- })
		})
	}
}

// Subscribe registers fn for every edge. It returns an ID for Unsubscribe.
func (g *Gate) Subscribe(fn func(ready bool)) string {
	return g.edges.Subscribe(fn)
}

// Unsubscribe removes an edge subscription.
func (g *Gate) Unsubscribe(id string) bool {
	return g.edges.Unsubscribe(id)
}

func (g *Gate) update(mutate func()) {
	g.publishMu.Lock()
	defer g.publishMu.Unlock()

	g.mu.Lock()
	before := g.ready && g.holds == 0
	mutate()
	after := g.ready && g.holds == 0
	g.mu.Unlock()

	if before != after {
		g.edges.Publish(after)
	}
}
