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
	"strings"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// ParseTypoScript extracts root path declarations from TypoScript text.
//
// Flat assignments and block entries are collected together, so
//
//	templateRootPaths.10 = A
//	templateRootPaths { 40 = B; 50 = C }
//
// yields [A, B, C] for templates. Blocks may nest and headers may be
// dotted. Comments, conditions, imports, copies (<), unsets (>) and
// multi-line values are skipped. The singular key templateRootPath
// contributes at index 0.
func ParseTypoScript(text string) Contribution {
	p := &tsParser{acc: newAccumulator()}
	for _, line := range strings.Split(text, "\n") {
		p.line(line)
	}
	return p.acc.result()
}

type tsParser struct {
	acc *accumulator

	// stack holds the key segments of every open block.
	stack [][]string

	inComment   bool
	inMultiline bool
}

func (p *tsParser) line(raw string) {
	line := strings.TrimSpace(raw)

	switch {
	case p.inComment:
		if end := strings.Index(line, "*/"); end >= 0 {
			p.inComment = false
			p.statements(strings.TrimSpace(line[end+2:]))
		}
		return
	case p.inMultiline:
		if strings.HasPrefix(line, ")") {
			p.inMultiline = false
		}
		return
	case line == "",
		strings.HasPrefix(line, "#"),
		strings.HasPrefix(line, "//"),
		strings.HasPrefix(line, "["),
		strings.HasPrefix(line, "@import"),
		strings.HasPrefix(line, "<INCLUDE_TYPOSCRIPT"):
		return
	case strings.HasPrefix(line, "/*"):
		if end := strings.Index(line[2:], "*/"); end >= 0 {
			p.statements(strings.TrimSpace(line[2+end+2:]))
			return
		}
		p.inComment = true
		return
	}

	p.statements(line)
}

// statements consumes one physical line, which may hold several statements
// when blocks open and close inline.
func (p *tsParser) statements(line string) {
	for line != "" {
		line = strings.TrimSpace(p.statement(line))
	}
}

// statement consumes a single statement from the front of line and returns
// what is left.
func (p *tsParser) statement(line string) string {
	if line[0] == '}' {
		if len(p.stack) > 0 {
			p.stack = p.stack[:len(p.stack)-1]
		}
		return line[1:]
	}
	if line[0] == ';' {
		return line[1:]
	}

	op := strings.IndexAny(line, "={<>(:")
	if op < 0 {
		return ""
	}
	key := strings.TrimSpace(line[:op])

	switch line[op] {
	case '{':
		p.stack = append(p.stack, splitKey(key))
		return line[op+1:]
	case '(':
		p.inMultiline = !strings.Contains(line[op:], ")")
		return ""
	case '=':
		rest := line[op+1:]
		if strings.HasPrefix(rest, "<") {
			// Reference (=<), not a value.
			return ""
		}
		value, remainder := splitValue(rest)
		p.assign(key, value)
		return remainder
	default:
		// Copy (<), unset (>), and modifiers (:=) carry no root paths.
		return ""
	}
}

// assign records key = value if the full key path names a root path entry.
func (p *tsParser) assign(key, value string) {
	var segments []string
	for _, s := range p.stack {
		segments = append(segments, s...)
	}
	segments = append(segments, splitKey(key)...)
	if len(segments) == 0 {
		return
	}

	last := len(segments) - 1
	if kind, singular, ok := model.KindForConfigKey(segments[last]); ok && singular {
		p.acc.add(kind, 0, value)
		return
	}
	if last == 0 {
		return
	}
	kind, singular, ok := model.KindForConfigKey(segments[last-1])
	if !ok || singular {
		return
	}
	if idx, ok := parseIndex(segments[last]); ok {
		p.acc.add(kind, idx, value)
	}
}

// splitValue separates an assignment value from whatever follows it on the
// line. The value ends at ';' or at a '}' that closes an enclosing block;
// braces opened inside the value (constants such as {$path}) are kept.
func splitValue(s string) (value, rest string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return s[:i], s[i:]
			}
			depth--
		case ';':
			if depth == 0 {
				return s[:i], s[i+1:]
			}
		}
	}
	return s, ""
}

func splitKey(key string) []string {
	var out []string
	for _, seg := range strings.Split(key, ".") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
