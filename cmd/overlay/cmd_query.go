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
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/pkg/ux"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/pkg/validation"
	overlay "github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// openEngine builds and starts an engine from the loaded settings. The
// caller must Stop it.
func openEngine(ctx context.Context, watch bool) (*overlay.Engine, error) {
	e, err := overlay.New(cfg, overlay.WithLogger(logger.Slog()), overlay.WithWatch(watch))
	if err != nil {
		return nil, err
	}
	if err := e.Start(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func lookupArgs(args []string) (model.Kind, model.LogicalName, error) {
	kind, err := model.ParseKind(args[0])
	if err != nil {
		return 0, "", err
	}
	name, err := validation.SanitizeLogicalName(args[1])
	if err != nil {
		return 0, "", err
	}
	return kind, model.LogicalName(name), nil
}

// relative shortens p for display when it lies in the project.
func relative(p string) string {
	root := model.NormalizePath(cfg.ProjectRoot)
	if model.HasPathPrefix(p, root) && p != root {
		return strings.TrimPrefix(p, root+"/")
	}
	return p
}

func runResolve(cmd *cobra.Command, args []string) error {
	kind, name, err := lookupArgs(args)
	if err != nil {
		return err
	}
	e, err := openEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Stop()

	ctxID := model.ContextID(contextName)
	f, ok := e.Resolve(ctxID, kind, name)
	if !ok {
		return fmt.Errorf("no effective %s for %q", kind, name)
	}
	return printer(cmd).Emit(f, func(p *ux.Printer) {
		p.Line("%s", f.Path)
	})
}

func runCandidates(cmd *cobra.Command, args []string) error {
	kind, name, err := lookupArgs(args)
	if err != nil {
		return err
	}
	e, err := openEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Stop()

	cands := e.Candidates(model.ContextID(contextName), kind, name)
	if len(cands) == 0 {
		return fmt.Errorf("no candidates for %s %q", kind, name)
	}
	return printer(cmd).Emit(cands, func(p *ux.Printer) {
		p.Title(fmt.Sprintf("%s %s", kind, name))
		for i, c := range cands {
			icon := ux.IconArrow
			if i == 0 {
				icon = ux.IconSuccess
			}
			p.Item(icon, fmt.Sprintf("%s %s", relative(c.File.Path), ux.Styles.Muted.Render(fmt.Sprintf("(priority %d)", c.Priority))))
		}
	})
}

func runNames(cmd *cobra.Command, args []string) error {
	kind, err := model.ParseKind(args[0])
	if err != nil {
		return err
	}
	e, err := openEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Stop()

	names := e.Names(model.ContextID(contextName), kind)
	if names == nil {
		names = []model.LogicalName{}
	}
	return printer(cmd).Emit(names, func(p *ux.Printer) {
		for _, n := range names {
			p.Line("%s", n)
		}
	})
}

func runRoots(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Stop()

	ctxID := model.ContextID(contextName)
	roots, _ := e.Roots(ctxID)
	sources := e.Sources(ctxID)

	out := struct {
		Context model.ContextID   `json:"context"`
		Roots   model.RootPathSet `json:"roots"`
		Sources []string          `json:"sources"`
	}{Context: e.Context(), Roots: roots}
	if ctxID != "" {
		out.Context = ctxID
	}
	for _, s := range sources {
		out.Sources = append(out.Sources, s.Path)
	}

	return printer(cmd).Emit(out, func(p *ux.Printer) {
		p.Title("Context " + string(out.Context))
		for _, kind := range model.AllKinds {
			paths := roots.Paths(kind)
			if len(paths) == 0 {
				p.KeyValue(kind.String(), ux.Styles.Muted.Render("none"))
				continue
			}
			// Highest priority first, the order lookups try them in.
			for i := len(paths) - 1; i >= 0; i-- {
				p.KeyValue(kind.String(), relative(paths[i]))
			}
		}
		if len(out.Sources) == 0 {
			p.Muted("no configuration declares roots; using extension layout")
			return
		}
		p.Title("Declared in")
		for _, s := range out.Sources {
			p.Item(ux.IconArrow, relative(s))
		}
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := openEngine(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Stop()

	stats := e.Stats()
	return printer(cmd).Emit(stats, func(p *ux.Printer) {
		for _, s := range stats {
			lines := make([]string, 0, len(model.AllKinds)+3)
			for _, kind := range model.AllKinds {
				lines = append(lines, fmt.Sprintf("%-9s %d names", kind.String()+":", s.Names[kind]))
			}
			lines = append(lines,
				fmt.Sprintf("%-9s %d", "files:", s.Candidates),
				fmt.Sprintf("%-9s %d", "overrides:", s.Overridden),
				fmt.Sprintf("%-9s %s", "built in:", s.BuildDuration),
			)
			p.Box("Context "+string(s.Context), lines)
		}
	})
}
