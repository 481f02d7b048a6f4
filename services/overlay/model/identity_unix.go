// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package model

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// statIdentity derives a rename-stable identity from device and inode.
func statIdentity(p string) (FileID, bool) {
	var st unix.Stat_t
	if err := unix.Stat(p, &st); err != nil {
		return "", false
	}
	return FileID(fmt.Sprintf("ino:%d:%d", uint64(st.Dev), uint64(st.Ino))), true
}
