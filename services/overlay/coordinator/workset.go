// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"slices"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/classify"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// workset is the partitioned input of one run: configuration paths to
// re-parse and implementation events keyed by path. Both sides are
// deduplicated; the backlog is a workset too.
type workset struct {
	classifier classify.Classifier

	config      map[string]struct{}
	configOrder []string

	impl      map[string]model.ChangeEvent
	implOrder []string
}

func newWorkset(classifier classify.Classifier) *workset {
	return &workset{
		classifier: classifier,
		config:     make(map[string]struct{}),
		impl:       make(map[string]model.ChangeEvent),
	}
}

// add routes e by both of its endpoints. A rename touching configuration
// on either side re-parses both paths. A directory deletion goes to both
// sides.
func (w *workset) add(e model.ChangeEvent) {
	rc := w.classifier.ClassifyEvent(e)
	if rc.IsDirectory() {
		w.addConfig(e.File.Path)
		w.addImpl(e)
		return
	}
	if rc.IsImplementation() {
		w.addImpl(e)
	}
	if rc.Old.IsConfig() || rc.New.IsConfig() {
		w.addConfig(e.File.Path)
		if e.OldPath != "" {
			w.addConfig(e.OldPath)
		}
	}
}

func (w *workset) addAll(events []model.ChangeEvent) {
	for _, e := range events {
		w.add(e)
	}
}

func (w *workset) addConfig(p string) {
	if _, ok := w.config[p]; ok {
		return
	}
	w.config[p] = struct{}{}
	w.configOrder = append(w.configOrder, p)
}

// addImpl keeps the latest event per key, moved to the end of the order.
// A replaced move or rename leaves a deletion of its old path behind so the
// stale candidate is still removed.
func (w *workset) addImpl(e model.ChangeEvent) {
	key := e.File.Path
	if e.Dir {
		key += "/"
	}
	if prev, ok := w.impl[key]; ok {
		if prev.OldPath != "" && prev.OldPath != e.OldPath {
			if _, taken := w.impl[prev.OldPath]; !taken {
				w.impl[prev.OldPath] = model.Deleted(model.GoneFile(prev.OldPath))
				w.implOrder = append(w.implOrder, prev.OldPath)
			}
		}
		w.implOrder = slices.DeleteFunc(w.implOrder, func(k string) bool { return k == key })
	}
	w.impl[key] = e
	w.implOrder = append(w.implOrder, key)
}

func (w *workset) configPaths() []string {
	return slices.Clone(w.configOrder)
}

func (w *workset) implEvents() []model.ChangeEvent {
	out := make([]model.ChangeEvent, 0, len(w.implOrder))
	for _, k := range w.implOrder {
		out = append(out, w.impl[k])
	}
	return out
}

func (w *workset) len() int {
	return len(w.configOrder) + len(w.implOrder)
}

func (w *workset) empty() bool {
	return w.len() == 0
}

// merge appends other's entries after w's.
func (w *workset) merge(other *workset) {
	for _, p := range other.configOrder {
		w.addConfig(p)
	}
	for _, e := range other.implEvents() {
		w.addImpl(e)
	}
}
