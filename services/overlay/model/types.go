// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the value types shared by the overlay resolution
// engine: contexts, implementation kinds, root path sets, logical names,
// files, candidates, change events, and the diffs published to subscribers.
//
// All types in this package are values. Constructors copy their inputs and
// accessors return copies, so a value handed to a subscriber can never be
// mutated by the component that published it.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when a string does not name an implementation kind.
var ErrUnknownKind = errors.New("unknown implementation kind")

// ContextID identifies a resolution scope.
type ContextID string

// DefaultContext is the scope every contribution belongs to unless a
// ContextResolver says otherwise.
const DefaultContext ContextID = "default"

// Kind is the implementation kind a root path serves.
type Kind int

const (
	// KindTemplate is a Fluid template root (templateRootPaths).
	KindTemplate Kind = iota

	// KindLayout is a Fluid layout root (layoutRootPaths).
	KindLayout

	// KindPartial is a Fluid partial root (partialRootPaths).
	KindPartial

	kindCount
)

// AllKinds lists every kind in declaration order.
var AllKinds = []Kind{KindTemplate, KindLayout, KindPartial}

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindLayout:
		return "layout"
	case KindPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// ConfigKey returns the plural configuration key declaring roots of this kind.
func (k Kind) ConfigKey() string {
	switch k {
	case KindTemplate:
		return "templateRootPaths"
	case KindLayout:
		return "layoutRootPaths"
	case KindPartial:
		return "partialRootPaths"
	default:
		return ""
	}
}

// SingularConfigKey returns the single-path convenience key for this kind.
func (k Kind) SingularConfigKey() string {
	if key := k.ConfigKey(); key != "" {
		return strings.TrimSuffix(key, "s")
	}
	return ""
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindTemplate && k < kindCount
}

// MarshalText encodes the kind as its name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind accepts the kind name in any case, singular or plural, or the
// configuration key ("partialRootPaths").
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds {
		switch normalized {
		case k.String(), k.String() + "s", strings.ToLower(k.ConfigKey()), strings.ToLower(k.SingularConfigKey()):
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// KindForConfigKey maps a configuration key to its kind. The second result
// reports whether the key is the singular convenience form.
func KindForConfigKey(key string) (kind Kind, singular bool, ok bool) {
	for _, k := range AllKinds {
		switch key {
		case k.ConfigKey():
			return k, false, true
		case k.SingularConfigKey():
			return k, true, true
		}
	}
	return 0, false, false
}

// LogicalName is a root-relative, extension-stripped, forward-slash path
// such as "Navigation/Breadcrumb".
type LogicalName string

// Candidate is one file able to implement a logical name, tagged with the
// priority index of the root it was found under.
type Candidate struct {
	Name     LogicalName `json:"name"`
	File     File        `json:"file"`
	Priority int         `json:"priority"`
}
