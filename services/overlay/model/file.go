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
	"path"
	"path/filepath"
	"strings"
)

// FileID is an identity for a file that survives rename and move where the
// platform allows it. On Unix it is derived from device and inode; elsewhere,
// and for files that no longer exist, it falls back to the path.
type FileID string

// File is a handle on a file reported by the change feed or found during a
// catalog scan.
type File struct {
	// Path is the absolute, forward-slash normalized path.
	Path string `json:"path"`

	// ID is the stable identity, see FileID.
	ID FileID `json:"id"`

	// Valid reports whether the file existed when the handle was taken.
	Valid bool `json:"valid"`
}

// NewFile normalizes p and captures its identity. A path that cannot be
// stat'ed produces a handle with a path-based ID and Valid=false.
func NewFile(p string) File {
	normalized := NormalizePath(p)
	if id, ok := statIdentity(normalized); ok {
		return File{Path: normalized, ID: id, Valid: true}
	}
	return File{Path: normalized, ID: pathIdentity(normalized)}
}

// GoneFile builds a handle for a path known to be deleted.
func GoneFile(p string) File {
	normalized := NormalizePath(p)
	return File{Path: normalized, ID: pathIdentity(normalized)}
}

// Name returns the base name.
func (f File) Name() string {
	return path.Base(f.Path)
}

// Parent returns the containing directory.
func (f File) Parent() string {
	return path.Dir(f.Path)
}

// Ext returns the lower-cased extension including the dot.
func (f File) Ext() string {
	return strings.ToLower(path.Ext(f.Path))
}

// SameFile reports whether two handles refer to the same file. Path equality
// always matches; inode identity matches across rename when both sides have it.
func (f File) SameFile(other File) bool {
	if f.Path == other.Path {
		return true
	}
	return f.ID != "" && f.ID == other.ID && !f.ID.pathBased()
}

func (id FileID) pathBased() bool {
	return strings.HasPrefix(string(id), "path:")
}

func pathIdentity(p string) FileID {
	return FileID("path:" + p)
}

// NormalizePath converts p to forward slashes, cleans it, and strips any
// trailing slash (except for the filesystem root).
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean(filepath.ToSlash(p))
	if len(cleaned) > 1 {
		cleaned = strings.TrimSuffix(cleaned, "/")
	}
	return cleaned
}

// HasPathPrefix reports whether p is dir itself or lies beneath it. Both
// arguments must already be normalized.
func HasPathPrefix(p, dir string) bool {
	if dir == "" {
		return false
	}
	if p == dir {
		return true
	}
	if dir == "/" {
		return strings.HasPrefix(p, "/")
	}
	return strings.HasPrefix(p, dir+"/")
}
