// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package overlay

import "errors"

var (
	// ErrConfig is returned by New for unusable settings.
	ErrConfig = errors.New("overlay: invalid engine configuration")

	// ErrStart is returned when the initial scan or watcher setup fails.
	ErrStart = errors.New("overlay: engine start failed")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("overlay: engine already started")

	// ErrNotStarted is returned by operations that need a started engine.
	ErrNotStarted = errors.New("overlay: engine not started")
)
