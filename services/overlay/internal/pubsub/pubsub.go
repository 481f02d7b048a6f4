// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pubsub provides the synchronous topics used to publish context
// and resolution changes.
package pubsub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler receives one published value.
type Handler[T any] func(T)

type subscription[T any] struct {
	id      string
	handler Handler[T]
}

// Topic delivers values to its subscribers in subscription order, on the
// publishing goroutine.
//
// Thread Safety: Topic is safe for concurrent use. Handlers may subscribe
// or unsubscribe from within a delivery; the change applies to the next
// Publish.
type Topic[T any] struct {
	name string

	mu   sync.RWMutex
	subs []subscription[T]
}

// NewTopic creates a topic. name appears in logs only.
func NewTopic[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

// Subscribe registers handler and returns its subscription ID.
func (t *Topic[T]) Subscribe(handler Handler[T]) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.subs = append(t.subs, subscription[T]{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription. It reports whether id was found.
func (t *Topic[T]) Unsubscribe(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, sub := range t.subs {
		if sub.id == id {
			t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Publish delivers v to every subscriber. A panicking handler is logged and
// does not prevent delivery to the others.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	subs := make([]subscription[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.RUnlock()

	for _, sub := range subs {
		t.safeInvoke(sub, v)
	}
}

func (t *Topic[T]) safeInvoke(sub subscription[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("subscriber panicked",
				"topic", t.name,
				"subscription_id", sub.id,
				"panic", r,
			)
		}
	}()
	sub.handler(v)
}
