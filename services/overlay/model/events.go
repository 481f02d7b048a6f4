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

import "path"

// EventType is the kind of change reported by the change feed.
type EventType int

const (
	// EventCreated reports a new file.
	EventCreated EventType = iota

	// EventDeleted reports a removed file or directory.
	EventDeleted

	// EventMoved reports a file moved to a different parent directory.
	EventMoved

	// EventRenamed reports a file renamed within the same parent directory.
	EventRenamed

	// EventContentChanged reports modified file contents.
	EventContentChanged
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDeleted:
		return "deleted"
	case EventMoved:
		return "moved"
	case EventRenamed:
		return "renamed"
	case EventContentChanged:
		return "content_changed"
	default:
		return "unknown"
	}
}

// ChangeEvent is one entry of a change batch.
type ChangeEvent struct {
	Type EventType `json:"type"`

	// File is the file at its current location. For deletions it is the
	// location that disappeared.
	File File `json:"file"`

	// OldPath is the previous absolute path for EventMoved and EventRenamed.
	OldPath string `json:"old_path,omitempty"`

	// Dir marks an EventDeleted for a whole directory.
	Dir bool `json:"dir,omitempty"`
}

// Created builds a creation event.
func Created(f File) ChangeEvent { return ChangeEvent{Type: EventCreated, File: f} }

// Deleted builds a deletion event.
func Deleted(f File) ChangeEvent { return ChangeEvent{Type: EventDeleted, File: f} }

// DeletedDir builds a deletion event for a directory and everything in it.
func DeletedDir(f File) ChangeEvent { return ChangeEvent{Type: EventDeleted, File: f, Dir: true} }

// ContentChanged builds a modification event.
func ContentChanged(f File) ChangeEvent { return ChangeEvent{Type: EventContentChanged, File: f} }

// Moved builds a move event from oldPath to f's location.
func Moved(f File, oldPath string) ChangeEvent {
	return ChangeEvent{Type: EventMoved, File: f, OldPath: NormalizePath(oldPath)}
}

// Renamed builds a rename event; oldName is resolved against f's parent.
func Renamed(f File, oldName string) ChangeEvent {
	return ChangeEvent{Type: EventRenamed, File: f, OldPath: path.Join(f.Parent(), oldName)}
}

// OldName returns the base name before a rename or move.
func (e ChangeEvent) OldName() string {
	if e.OldPath == "" {
		return ""
	}
	return path.Base(e.OldPath)
}

// NewName returns the current base name.
func (e ChangeEvent) NewName() string {
	return e.File.Name()
}

// OldFile returns a handle on the previous location, carrying the current
// identity so catalog removal can match by either.
func (e ChangeEvent) OldFile() File {
	return File{Path: e.OldPath, ID: e.File.ID}
}
