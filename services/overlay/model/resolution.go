// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// ResolutionKey identifies one resolution slot.
type ResolutionKey struct {
	Context ContextID   `json:"context"`
	Kind    Kind        `json:"kind"`
	Name    LogicalName `json:"name"`
}

// String renders the key as context/kind:name.
func (k ResolutionKey) String() string {
	return fmt.Sprintf("%s/%s:%s", k.Context, k.Kind, k.Name)
}

// Compare orders keys by context, kind, then name.
func (k ResolutionKey) Compare(other ResolutionKey) int {
	return cmp.Or(
		cmp.Compare(k.Context, other.Context),
		cmp.Compare(k.Kind, other.Kind),
		cmp.Compare(k.Name, other.Name),
	)
}

// ChangeType classifies a ResolutionChange.
type ChangeType int

const (
	// ChangeIntroduced means a key gained its first effective file.
	ChangeIntroduced ChangeType = iota

	// ChangeRemoved means a key lost its effective file.
	ChangeRemoved

	// ChangeChanged means a different file now wins.
	ChangeChanged
)

// String returns the change type name.
func (t ChangeType) String() string {
	switch t {
	case ChangeIntroduced:
		return "introduced"
	case ChangeRemoved:
		return "removed"
	case ChangeChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type as its name.
func (t ChangeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ResolutionChange records how one key's effective file moved.
type ResolutionChange struct {
	Key      ResolutionKey `json:"key"`
	Previous *File         `json:"previous,omitempty"`
	Current  *File         `json:"current,omitempty"`
}

// Type classifies the change.
func (c ResolutionChange) Type() ChangeType {
	switch {
	case c.Previous == nil:
		return ChangeIntroduced
	case c.Current == nil:
		return ChangeRemoved
	default:
		return ChangeChanged
	}
}

// ResolutionDiff is the set of changes produced by one recomputation,
// ordered by key.
type ResolutionDiff []ResolutionChange

// Sort orders the diff by key.
func (d ResolutionDiff) Sort() {
	slices.SortFunc(d, func(a, b ResolutionChange) int {
		return a.Key.Compare(b.Key)
	})
}

// Find returns the change for key, if present.
func (d ResolutionDiff) Find(key ResolutionKey) (ResolutionChange, bool) {
	for _, c := range d {
		if c.Key == key {
			return c, true
		}
	}
	return ResolutionChange{}, false
}

// MarshalJSON adds the derived change type to the encoded form.
func (c ResolutionChange) MarshalJSON() ([]byte, error) {
	type plain ResolutionChange
	return json.Marshal(struct {
		plain
		Type ChangeType `json:"type"`
	}{plain(c), c.Type()})
}
