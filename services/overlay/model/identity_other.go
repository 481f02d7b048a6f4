// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build !unix

package model

import "os"

// statIdentity has no inode to work with here, so existing files get a
// path-based identity. Rename pairing then relies on the change feed's old
// path.
func statIdentity(p string) (FileID, bool) {
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return pathIdentity(p), true
}
