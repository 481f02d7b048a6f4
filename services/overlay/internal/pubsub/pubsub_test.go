// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopic_DeliversInOrder(t *testing.T) {
	topic := NewTopic[int]("test")
	var got []string

	topic.Subscribe(func(v int) { got = append(got, "a") })
	topic.Subscribe(func(v int) { got = append(got, "b") })
	topic.Publish(1)

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, topic.Len())
}

func TestTopic_Unsubscribe(t *testing.T) {
	topic := NewTopic[string]("test")
	calls := 0
	id := topic.Subscribe(func(string) { calls++ })

	assert.True(t, topic.Unsubscribe(id))
	assert.False(t, topic.Unsubscribe(id))

	topic.Publish("x")
	assert.Zero(t, calls)
}

func TestTopic_PanicIsolated(t *testing.T) {
	topic := NewTopic[int]("test")
	var delivered int

	topic.Subscribe(func(int) { panic("boom") })
	topic.Subscribe(func(v int) { delivered = v })

	assert.NotPanics(t, func() { topic.Publish(7) })
	assert.Equal(t, 7, delivered)
}
