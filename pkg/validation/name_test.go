// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLogicalName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"single segment", "Default", false},
		{"nested", "Navigation/Breadcrumb", false},
		{"dotted and dashed", "Page/Show.list-item_2", false},

		{"empty", "", true},
		{"leading slash", "/Page", true},
		{"double slash", "Page//Show", true},
		{"parent segment", "Page/../Secret", true},
		{"current segment", "./Page", true},
		{"backslash", `Page\Show`, true},
		{"space", "Page/Sh ow", true},
		{"newline", "Page\nShow", true},
		{"leading dot segment", "Page/.hidden", true},
		{"too long", strings.Repeat("a/", 600) + "a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogicalName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeLogicalName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"passthrough", "Page/Show", "Page/Show", false},
		{"backslashes", `Page\Show`, "Page/Show", false},
		{"surrounding slashes", "/Page/Show/", "Page/Show", false},
		{"whitespace", "  Default ", "Default", false},
		{"slashes only", "/", "", true},
		{"traversal", `..\..\etc`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeLogicalName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
