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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/pkg/ux"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/classify"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/contribution"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

type classification struct {
	Path     string `json:"path"`
	Class    string `json:"class"`
	Relevant bool   `json:"relevant"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	classifier := classify.New(cfg.Extension)
	out := make([]classification, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		p := model.NormalizePath(abs)
		class := classifier.Classify(p)
		out = append(out, classification{Path: p, Class: class.String(), Relevant: class != classify.Irrelevant})
	}

	return printer(cmd).Emit(out, func(p *ux.Printer) {
		for _, c := range out {
			icon := ux.IconSuccess
			if !c.Relevant {
				icon = ux.IconError
			}
			p.Item(icon, fmt.Sprintf("%s %s", relative(c.Path), ux.Styles.Muted.Render(c.Class)))
		}
	})
}

type parsed struct {
	Path     string              `json:"path"`
	Dialect  string              `json:"dialect"`
	Declared map[string][]string `json:"declared"`
	Resolved model.RootPathSet   `json:"resolved"`
}

func runParse(cmd *cobra.Command, args []string) error {
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	dialect, err := parseDialect(abs)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return err
	}

	c := contribution.Parse(dialect, string(data))
	out := parsed{
		Path:     model.NormalizePath(abs),
		Dialect:  dialect.String(),
		Declared: make(map[string][]string, len(c)),
		Resolved: contribution.ResolveContribution(c, cfg.ProjectRoot),
	}
	for kind, list := range c {
		out.Declared[kind.String()] = list
	}

	return printer(cmd).Emit(out, func(p *ux.Printer) {
		p.Title(fmt.Sprintf("%s (%s)", relative(out.Path), out.Dialect))
		if c.IsEmpty() {
			p.Muted("declares no root paths")
			return
		}
		for _, kind := range model.AllKinds {
			resolved := out.Resolved.Paths(kind)
			for i, raw := range c[kind] {
				target := ""
				if i < len(resolved) {
					target = relative(resolved[i])
				}
				p.KeyValue(kind.String(), fmt.Sprintf("%s %s %s", raw, ux.IconArrow.Render(), target))
			}
		}
	})
}

// parseDialect honours --dialect, otherwise classifies the file name.
func parseDialect(p string) (contribution.Dialect, error) {
	switch dialectName {
	case "typoscript":
		return contribution.DialectTypoScript, nil
	case "site_settings", "yaml":
		return contribution.DialectSiteSettings, nil
	case "":
	default:
		return 0, fmt.Errorf("unknown dialect %q", dialectName)
	}
	if d, ok := classify.Classify(p).Dialect(); ok {
		return d, nil
	}
	return 0, fmt.Errorf("%s is not a configuration file, pass --dialect", p)
}
