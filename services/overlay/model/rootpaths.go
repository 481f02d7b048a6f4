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
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// RootPathSet holds, per kind, the ordered list of root directories. A
// later position means a higher priority. The zero value is an empty set.
//
// RootPathSet is immutable: NewRootPathSet copies its input and Paths
// returns a copy.
type RootPathSet struct {
	paths [kindCount][]string
}

// NewRootPathSet builds a set from per-kind lists. Blank entries are dropped
// and duplicates within a kind are removed, keeping the first occurrence's
// position.
func NewRootPathSet(paths map[Kind][]string) RootPathSet {
	var s RootPathSet
	for k, list := range paths {
		if !k.Valid() {
			continue
		}
		s.paths[k] = appendUnique(nil, list)
	}
	return s
}

// Paths returns a copy of the ordered roots for kind.
func (s RootPathSet) Paths(kind Kind) []string {
	if !kind.Valid() {
		return nil
	}
	return slices.Clone(s.paths[kind])
}

// Len returns the number of roots configured for kind.
func (s RootPathSet) Len(kind Kind) int {
	if !kind.Valid() {
		return 0
	}
	return len(s.paths[kind])
}

// IsEmpty reports whether no kind has any root.
func (s RootPathSet) IsEmpty() bool {
	for _, list := range s.paths {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

// Equal compares two sets by content and order.
func (s RootPathSet) Equal(other RootPathSet) bool {
	for k := range s.paths {
		if !slices.Equal(s.paths[k], other.paths[k]) {
			return false
		}
	}
	return true
}

// Merge appends other's roots after s's roots, skipping any path already
// present for that kind. The first file to mention a path keeps its position.
func (s RootPathSet) Merge(other RootPathSet) RootPathSet {
	var out RootPathSet
	for k := range s.paths {
		out.paths[k] = appendUnique(slices.Clone(s.paths[k]), other.paths[k])
	}
	return out
}

// String renders the set for logs.
func (s RootPathSet) String() string {
	parts := make([]string, 0, len(AllKinds))
	for _, k := range AllKinds {
		parts = append(parts, fmt.Sprintf("%s=[%s]", k, strings.Join(s.paths[k], ", ")))
	}
	return strings.Join(parts, " ")
}

// MarshalJSON encodes the set as an object keyed by kind name.
func (s RootPathSet) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(AllKinds))
	for _, k := range AllKinds {
		list := s.paths[k]
		if list == nil {
			list = []string{}
		}
		out[k.String()] = list
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the object produced by MarshalJSON.
func (s *RootPathSet) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	paths := make(map[Kind][]string, len(raw))
	for name, list := range raw {
		k, err := ParseKind(name)
		if err != nil {
			return err
		}
		paths[k] = list
	}
	*s = NewRootPathSet(paths)
	return nil
}

// appendUnique appends every non-blank entry of src not yet in dst.
func appendUnique(dst, src []string) []string {
	for _, p := range src {
		if strings.TrimSpace(p) == "" || slices.Contains(dst, p) {
			continue
		}
		dst = append(dst, p)
	}
	return dst
}

// ContextDiff maps each context whose effective configuration changed to its
// new root path set.
type ContextDiff map[ContextID]RootPathSet
