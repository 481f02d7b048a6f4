// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ignore matches project-relative paths against doublestar globs.
package ignore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is returned for a malformed glob.
var ErrInvalidPattern = errors.New("invalid ignore pattern")

// defaultPatterns exclude VCS metadata, dependency caches, TYPO3 runtime
// directories and editor noise.
var defaultPatterns = []string{
	"**/.git",
	"**/.git/**",
	"**/node_modules",
	"**/node_modules/**",
	"**/.idea",
	"**/.idea/**",
	"var",
	"var/**",
	"public/typo3temp",
	"public/typo3temp/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Defaults returns a copy of the built-in patterns.
func Defaults() []string {
	out := make([]string, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}

// Matcher holds a validated pattern list. The zero value matches nothing.
type Matcher struct {
	patterns []string
}

// New validates extra and returns a matcher for the defaults plus extra.
func New(extra ...string) (*Matcher, error) {
	if err := Validate(extra); err != nil {
		return nil, err
	}
	patterns := make([]string, 0, len(defaultPatterns)+len(extra))
	patterns = append(patterns, defaultPatterns...)
	patterns = append(patterns, extra...)
	return &Matcher{patterns: patterns}, nil
}

// Must is New for patterns known to be valid. It panics otherwise.
func Must(extra ...string) *Matcher {
	m, err := New(extra...)
	if err != nil {
		panic(err)
	}
	return m
}

// Validate checks every pattern.
func Validate(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, pat)
		}
	}
	return nil
}

// Patterns returns a copy of the active patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Match reports whether rel, a path relative to the project root, is
// ignored.
func (m *Matcher) Match(rel string) bool {
	if m == nil || rel == "" || rel == "." {
		return false
	}
	normalized := strings.TrimPrefix(filepath.ToSlash(rel), "./")
	for _, pat := range m.patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// MatchAbs is Match for an absolute path under root. Paths outside root are
// never ignored.
func (m *Matcher) MatchAbs(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return m.Match(rel)
}
