// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contribution parses project configuration files into the root
// path lists they contribute.
//
// Two dialects are understood:
//
//   - TypoScript: flat assignments (view.templateRootPaths.10 = ...) and
//     block form (templateRootPaths { 20 = ... }), freely mixed.
//   - Site settings YAML: numeric-keyed mappings, inline or block lists, and
//     the singular convenience keys (templateRootPath: ...).
//
// Parsing is pure and never fails. Text that cannot be understood simply
// contributes nothing. Only the subset needed to extract root path
// declarations is recognised; everything else is skipped.
package contribution

import (
	"slices"
	"strconv"
	"strings"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// Dialect selects the configuration syntax.
type Dialect int

const (
	// DialectTypoScript is TypoScript setup or TSconfig.
	DialectTypoScript Dialect = iota

	// DialectSiteSettings is a YAML site configuration or settings file.
	DialectSiteSettings
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectTypoScript:
		return "typoscript"
	case DialectSiteSettings:
		return "site_settings"
	default:
		return "unknown"
	}
}

// Contribution is the raw, unresolved per-kind root list one file declares,
// already ordered by ascending index.
type Contribution map[model.Kind][]string

// IsEmpty reports whether nothing was declared.
func (c Contribution) IsEmpty() bool {
	for _, list := range c {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

// Parse dispatches to the parser for dialect.
func Parse(dialect Dialect, text string) Contribution {
	switch dialect {
	case DialectSiteSettings:
		return ParseSiteSettings(text)
	default:
		return ParseTypoScript(text)
	}
}

// indexedValue is one (index, value) pair found for a kind.
type indexedValue struct {
	index int
	value string
}

// accumulator collects indexed values per kind. A repeated index overwrites
// the earlier value, mirroring how a later assignment wins.
type accumulator struct {
	values map[model.Kind]map[int]string
}

func newAccumulator() *accumulator {
	return &accumulator{values: make(map[model.Kind]map[int]string)}
}

func (a *accumulator) add(kind model.Kind, index int, raw string) {
	value := cleanValue(raw)
	if value == "" {
		return
	}
	byIndex, ok := a.values[kind]
	if !ok {
		byIndex = make(map[int]string)
		a.values[kind] = byIndex
	}
	byIndex[index] = value
}

func (a *accumulator) result() Contribution {
	out := make(Contribution, len(a.values))
	for kind, byIndex := range a.values {
		pairs := make([]indexedValue, 0, len(byIndex))
		for idx, v := range byIndex {
			pairs = append(pairs, indexedValue{index: idx, value: v})
		}
		slices.SortFunc(pairs, func(x, y indexedValue) int { return x.index - y.index })
		list := make([]string, 0, len(pairs))
		for _, p := range pairs {
			list = append(list, p.value)
		}
		out[kind] = list
	}
	return out
}

// cleanValue trims whitespace and one level of matching quotes.
func cleanValue(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			v = strings.TrimSpace(v[1 : len(v)-1])
		}
	}
	return v
}

// parseIndex accepts a (possibly signed) integer key.
func parseIndex(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}
