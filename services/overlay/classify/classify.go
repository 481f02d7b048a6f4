// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify decides which file-system changes matter to overlay
// resolution.
//
// A path is either an implementation file (a template), a configuration
// file in one of the two supported dialects, or irrelevant. The checks are
// pure and look only at the path.
package classify

import (
	"path"
	"strings"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/contribution"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// Class is the category of a single path.
type Class int

const (
	// Irrelevant paths are ignored by the pipeline.
	Irrelevant Class = iota

	// Implementation is a template, layout or partial file.
	Implementation

	// TypoScript is TypoScript setup or TSconfig.
	TypoScript

	// SiteSettings is a YAML site configuration.
	SiteSettings

	// Directory is a deleted directory that may have held files of any
	// other class.
	Directory
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case Implementation:
		return "implementation"
	case TypoScript:
		return "typoscript"
	case SiteSettings:
		return "site_settings"
	case Directory:
		return "directory"
	default:
		return "irrelevant"
	}
}

// IsConfig reports whether the class is one of the configuration dialects.
func (c Class) IsConfig() bool {
	return c == TypoScript || c == SiteSettings
}

// Dialect maps a configuration class to its parser dialect. ok is false for
// non-configuration classes.
func (c Class) Dialect() (contribution.Dialect, bool) {
	switch c {
	case TypoScript:
		return contribution.DialectTypoScript, true
	case SiteSettings:
		return contribution.DialectSiteSettings, true
	default:
		return 0, false
	}
}

// ImplementationExt is the default extension of implementation files.
const ImplementationExt = ".html"

// Classifier classifies paths for one implementation file extension.
// The zero value uses ImplementationExt.
type Classifier struct {
	ext string
}

// New returns a classifier treating files with ext as implementations.
// The leading dot is optional; an empty ext selects ImplementationExt.
func New(ext string) Classifier {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return Classifier{ext: ext}
}

// Ext returns the implementation extension.
func (c Classifier) Ext() string {
	if c.ext == "" {
		return ImplementationExt
	}
	return c.ext
}

// defaultClassifier backs the package-level functions.
var defaultClassifier = Classifier{}

// ambiguousTypoScriptFragments qualify .ts and .txt files, whose extensions
// are shared with TypeScript and plain text.
var ambiguousTypoScriptFragments = []string{
	"/Configuration/TypoScript/",
	"/Configuration/TsConfig/",
	"/Configuration/TSconfig/",
}

const siteConfigFragment = "/config/sites/"

// Classify returns the class of p under the default extension.
func Classify(p string) Class {
	return defaultClassifier.Classify(p)
}

// Classify returns the class of p. The implementation extension wins over
// the configuration rules.
func (c Classifier) Classify(p string) Class {
	normalized := model.NormalizePath(strings.ReplaceAll(p, `\`, "/"))
	ext := strings.ToLower(path.Ext(normalized))
	if ext == c.Ext() {
		return Implementation
	}
	switch ext {
	case ".typoscript", ".tsconfig":
		return TypoScript
	case ".ts", ".txt":
		for _, fragment := range ambiguousTypoScriptFragments {
			if strings.Contains(normalized, fragment) {
				return TypoScript
			}
		}
	case ".yaml", ".yml":
		if strings.Contains(normalized, siteConfigFragment) {
			return SiteSettings
		}
	}
	return Irrelevant
}

// RenameClass summarizes a rename by both of its endpoints.
type RenameClass struct {
	Old Class
	New Class
}

// Relevant reports whether either endpoint is relevant.
func (r RenameClass) Relevant() bool {
	return r.Old != Irrelevant || r.New != Irrelevant
}

// IsImplementation reports whether the rename must be handled as an
// implementation change. An implementation endpoint wins over a
// configuration endpoint.
func (r RenameClass) IsImplementation() bool {
	return r.Old == Implementation || r.New == Implementation
}

// IsConfig reports whether the rename touches configuration only.
func (r RenameClass) IsConfig() bool {
	return r.Relevant() && !r.IsImplementation() && !r.IsDirectory()
}

// IsDirectory reports a directory deletion.
func (r RenameClass) IsDirectory() bool {
	return r.Old == Directory
}

// ClassifyRename classifies a rename of oldName to newName inside parent.
func ClassifyRename(parent, oldName, newName string) RenameClass {
	return defaultClassifier.ClassifyRename(parent, oldName, newName)
}

// ClassifyRename classifies a rename of oldName to newName inside parent.
func (c Classifier) ClassifyRename(parent, oldName, newName string) RenameClass {
	return RenameClass{
		Old: c.Classify(path.Join(parent, oldName)),
		New: c.Classify(path.Join(parent, newName)),
	}
}

// ClassifyMove classifies a move from oldPath to newPath.
func ClassifyMove(oldPath, newPath string) RenameClass {
	return defaultClassifier.ClassifyMove(oldPath, newPath)
}

// ClassifyMove classifies a move from oldPath to newPath.
func (c Classifier) ClassifyMove(oldPath, newPath string) RenameClass {
	return RenameClass{Old: c.Classify(oldPath), New: c.Classify(newPath)}
}

// ClassifyEvent classifies both endpoints of e under the default extension.
func ClassifyEvent(e model.ChangeEvent) RenameClass {
	return defaultClassifier.ClassifyEvent(e)
}

// ClassifyEvent classifies both endpoints of e. For events without an old
// path the Old class equals the New class.
func (c Classifier) ClassifyEvent(e model.ChangeEvent) RenameClass {
	if e.Dir {
		return RenameClass{Old: Directory, New: Directory}
	}
	switch e.Type {
	case model.EventRenamed:
		return c.ClassifyRename(e.File.Parent(), e.OldName(), e.NewName())
	case model.EventMoved:
		return c.ClassifyMove(e.OldPath, e.File.Path)
	default:
		class := c.Classify(e.File.Path)
		return RenameClass{Old: class, New: class}
	}
}

// IsRelevant reports whether e can affect resolution.
func IsRelevant(e model.ChangeEvent) bool {
	return defaultClassifier.IsRelevant(e)
}

// IsRelevant reports whether e can affect resolution.
func (c Classifier) IsRelevant(e model.ChangeEvent) bool {
	return c.ClassifyEvent(e).Relevant()
}

// Filter returns the relevant events of batch, preserving order.
func Filter(batch []model.ChangeEvent) []model.ChangeEvent {
	return defaultClassifier.Filter(batch)
}

// Filter returns the relevant events of batch, preserving order.
func (c Classifier) Filter(batch []model.ChangeEvent) []model.ChangeEvent {
	var out []model.ChangeEvent
	for _, e := range batch {
		if c.IsRelevant(e) {
			out = append(out, e)
		}
	}
	return out
}
