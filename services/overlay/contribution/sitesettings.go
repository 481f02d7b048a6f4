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
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// ParseSiteSettings extracts root path declarations from a YAML site
// configuration. Declarations are recognised at any depth:
//
//	templateRootPaths:
//	  10: EXT:site/Resources/Private/Templates
//	  20: EXT:theme/Resources/Private/Templates
//	layoutRootPaths: [EXT:site/Layouts, EXT:theme/Layouts]
//	partialRootPath: EXT:site/Resources/Private/Partials
//
// Text that is not valid YAML is handed to an indentation-based scanner
// that understands the same shapes line by line.
func ParseSiteSettings(text string) Contribution {
	if strings.TrimSpace(text) == "" {
		return Contribution{}
	}

	acc := newAccumulator()
	dec := yaml.NewDecoder(strings.NewReader(text))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return scanSiteSettings(text)
		}
		walkYAML(&doc, acc)
	}
	return acc.result()
}

// walkYAML visits every mapping in the tree looking for root path keys.
func walkYAML(node *yaml.Node, acc *accumulator) {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			walkYAML(child, acc)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if kind, singular, ok := model.KindForConfigKey(key.Value); ok {
				collectYAML(kind, singular, value, acc)
				continue
			}
			walkYAML(value, acc)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			walkYAML(node.Alias, acc)
		}
	}
}

// collectYAML reads the value of one root path key.
func collectYAML(kind model.Kind, singular bool, value *yaml.Node, acc *accumulator) {
	if value.Kind == yaml.AliasNode && value.Alias != nil {
		value = value.Alias
	}
	switch value.Kind {
	case yaml.ScalarNode:
		acc.add(kind, 0, value.Value)
	case yaml.SequenceNode:
		if singular {
			return
		}
		for i, item := range value.Content {
			if item.Kind == yaml.ScalarNode {
				acc.add(kind, i, item.Value)
			}
		}
	case yaml.MappingNode:
		if singular {
			return
		}
		for i := 0; i+1 < len(value.Content); i += 2 {
			k, v := value.Content[i], value.Content[i+1]
			idx, ok := parseIndex(k.Value)
			if !ok || v.Kind != yaml.ScalarNode {
				continue
			}
			acc.add(kind, idx, v.Value)
		}
	}
}

// scanSiteSettings is the line-based fallback for malformed YAML. A root
// path key's block extends over every following line indented deeper than
// the key itself.
func scanSiteSettings(text string) Contribution {
	acc := newAccumulator()
	lines := strings.Split(text, "\n")

	for i := 0; i < len(lines); i++ {
		indent, content := splitIndent(lines[i])
		key, rest, ok := strings.Cut(content, ":")
		if !ok {
			continue
		}
		kind, singular, ok := model.KindForConfigKey(strings.Trim(strings.TrimSpace(key), `"'`))
		if !ok {
			continue
		}
		rest = stripYAMLComment(rest)

		switch {
		case strings.HasPrefix(rest, "["):
			if !singular {
				for idx, item := range splitFlow(rest, '[', ']') {
					acc.add(kind, idx, item)
				}
			}
		case strings.HasPrefix(rest, "{"):
			if !singular {
				for _, item := range splitFlow(rest, '{', '}') {
					k, v, found := strings.Cut(item, ":")
					if idx, isIndex := parseIndex(k); found && isIndex {
						acc.add(kind, idx, v)
					}
				}
			}
		case rest != "":
			acc.add(kind, 0, rest)
		default:
			if singular {
				continue
			}
			i = scanBlock(lines, i, indent, kind, acc)
		}
	}
	return acc.result()
}

// scanBlock consumes the children of the key on line start and returns the
// index of the last line belonging to the block.
func scanBlock(lines []string, start, keyIndent int, kind model.Kind, acc *accumulator) int {
	position := 0
	last := start
	for j := start + 1; j < len(lines); j++ {
		indent, content := splitIndent(lines[j])
		if content == "" || strings.HasPrefix(content, "#") {
			continue
		}
		if indent <= keyIndent {
			break
		}
		last = j

		if item, ok := strings.CutPrefix(content, "-"); ok {
			acc.add(kind, position, stripYAMLComment(item))
			position++
			continue
		}
		k, v, ok := strings.Cut(content, ":")
		if !ok {
			continue
		}
		if idx, isIndex := parseIndex(strings.Trim(k, `"'`)); isIndex {
			acc.add(kind, idx, stripYAMLComment(v))
		}
	}
	return last
}

func splitIndent(line string) (int, string) {
	trimmed := strings.TrimLeft(line, " \t")
	return len(line) - len(trimmed), strings.TrimRight(trimmed, " \t\r")
}

// stripYAMLComment removes a trailing " #" comment and surrounding space.
func stripYAMLComment(s string) string {
	if i := strings.Index(s, " #"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// splitFlow splits an inline [a, b] or {k: v} collection into its items.
func splitFlow(s string, open, close byte) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, string(open))
	if i := strings.LastIndexByte(s, close); i >= 0 {
		s = s[:i]
	}
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
