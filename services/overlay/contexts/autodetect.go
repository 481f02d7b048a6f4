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
	"io/fs"
	"os"
	"path"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// autoDetectDirs names the conventional per-kind directory inside an
// extension's private resources.
var autoDetectDirs = map[model.Kind]string{
	model.KindTemplate: "Templates",
	model.KindLayout:   "Layouts",
	model.KindPartial:  "Partials",
}

// AutoDetect returns the roots found by extension layout convention:
// every <projectRoot>/*/Resources/Private/{Templates,Layouts,Partials}
// directory, in lexical order. It is the fallback when no configuration
// declares any root.
func AutoDetect(projectRoot string) model.RootPathSet {
	root := model.NormalizePath(projectRoot)
	if root == "" {
		return model.RootPathSet{}
	}
	fsys := os.DirFS(root)

	found := make(map[model.Kind][]string, len(autoDetectDirs))
	for kind, dir := range autoDetectDirs {
		dirs, err := doublestar.Glob(fsys, "*/Resources/Private/"+dir)
		if err != nil {
			continue
		}
		for _, rel := range dirs {
			if info, statErr := fs.Stat(fsys, rel); statErr == nil && info.IsDir() {
				found[kind] = append(found[kind], path.Join(root, rel))
			}
		}
		slices.Sort(found[kind])
	}
	return model.NewRootPathSet(found)
}
