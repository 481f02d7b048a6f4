// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contribution

import (
	"path"
	"strings"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// extPrefix marks an extension-relative path alias.
const extPrefix = "EXT:"

// ResolvePath turns a raw configured root into an absolute, forward-slash
// path:
//
//	EXT:site/Resources/Private/Templates -> <projectRoot>/site/Resources/Private/Templates
//	/var/www/templates                   -> /var/www/templates
//	templates/custom/                    -> <projectRoot>/templates/custom
//
// An empty raw value resolves to "".
func ResolvePath(raw, projectRoot string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, `\`, "/")
	root := model.NormalizePath(projectRoot)

	if rest, ok := cutPrefixFold(value, extPrefix); ok {
		rest = strings.TrimLeft(rest, "/")
		if rest == "" {
			return ""
		}
		return model.NormalizePath(path.Join(root, rest))
	}
	if isAbsolute(value) || root == "" {
		return model.NormalizePath(value)
	}
	return model.NormalizePath(path.Join(root, value))
}

// ResolveContribution resolves every raw value of c against projectRoot and
// returns the resulting set. Duplicates after resolution collapse onto the
// first occurrence.
func ResolveContribution(c Contribution, projectRoot string) model.RootPathSet {
	resolved := make(map[model.Kind][]string, len(c))
	for kind, raws := range c {
		for _, raw := range raws {
			if p := ResolvePath(raw, projectRoot); p != "" {
				resolved[kind] = append(resolved[kind], p)
			}
		}
	}
	return model.NewRootPathSet(resolved)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

// isAbsolute accepts Unix paths and Windows drive paths.
func isAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	if len(p) >= 3 && p[1] == ':' && p[2] == '/' {
		c := p[0] | 0x20
		return c >= 'a' && c <= 'z'
	}
	return false
}
