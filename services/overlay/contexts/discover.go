// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contexts

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/classify"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/internal/ignore"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// Discoverer finds configuration files under a project root.
type Discoverer struct {
	// Root is the project root directory.
	Root string

	// Ignore excludes directories and files from the walk. Nil ignores
	// nothing.
	Ignore *ignore.Matcher

	// Logger receives unreadable-directory warnings.
	Logger *slog.Logger
}

// Discover walks Root and returns every configuration file in lexical
// order. Unreadable directories are skipped.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	if d.Root == "" {
		return nil, ErrNoProjectRoot
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var found []string
	err := filepath.WalkDir(d.Root, func(p string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrRescanCancelled, ctxErr)
		}
		if err != nil {
			logger.Warn("skipping unreadable path", slog.String("path", p), slog.String("error", err.Error()))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Ignore.MatchAbs(d.Root, p) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if classify.Classify(p).IsConfig() {
			found = append(found, model.NormalizePath(p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(found)
	return found, nil
}
