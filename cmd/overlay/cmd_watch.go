// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/pkg/ux"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer e.Stop()

	p := printer(cmd)
	diffs := make(chan model.ResolutionDiff, 16)
	id := e.Subscribe(func(d model.ResolutionDiff) {
		select {
		case diffs <- d:
		case <-ctx.Done():
		}
	})
	defer e.Unsubscribe(id)

	if !p.IsJSON() {
		p.Muted(fmt.Sprintf("watching %s, press Ctrl+C to stop", cfg.ProjectRoot))
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-diffs:
			if err := p.Emit(d, func(p *ux.Printer) { renderDiff(p, d) }); err != nil {
				return err
			}
		}
	}
}

// renderDiff prints one line per changed key.
func renderDiff(p *ux.Printer, d model.ResolutionDiff) {
	for _, ch := range d {
		label := fmt.Sprintf("%s %s", ch.Key.Kind, ux.Styles.Bold.Render(string(ch.Key.Name)))
		switch ch.Type() {
		case model.ChangeIntroduced:
			p.Item(ux.IconAdded, fmt.Sprintf("%s  %s", label, relative(ch.Current.Path)))
		case model.ChangeRemoved:
			p.Item(ux.IconRemoved, fmt.Sprintf("%s  %s", label, ux.Styles.Muted.Render(relative(ch.Previous.Path))))
		default:
			p.Item(ux.IconChanged, fmt.Sprintf("%s  %s %s %s", label,
				ux.Styles.Muted.Render(relative(ch.Previous.Path)), ux.IconArrow.Render(), relative(ch.Current.Path)))
		}
	}
}
