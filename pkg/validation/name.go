// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-supplied identifiers before they reach
// the catalog.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidName is returned for logical names that cannot address a file
// under a root.
var ErrInvalidName = errors.New("invalid logical name")

// segmentPattern allows the characters TYPO3 extension paths use.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]{0,127}$`)

// maxNameLength bounds the whole name.
const maxNameLength = 1024

// ValidateLogicalName checks a normalized name such as "Navigation/Breadcrumb".
func ValidateLogicalName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidName, maxNameLength)
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: %q has an empty or relative segment", ErrInvalidName, name)
		}
		if !segmentPattern.MatchString(segment) {
			return fmt.Errorf("%w: %q contains unsupported characters", ErrInvalidName, name)
		}
	}
	return nil
}

// SanitizeLogicalName converts backslashes, trims surrounding whitespace and
// slashes, then validates the result.
func SanitizeLogicalName(raw string) (string, error) {
	normalized := strings.Trim(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"), "/")
	if err := ValidateLogicalName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
