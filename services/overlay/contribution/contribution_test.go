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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// =============================================================================
// TypoScript
// =============================================================================

func TestParseTypoScript_FlatAndBlockMerge(t *testing.T) {
	text := `
plugin.tx_site.view.templateRootPaths.10 = A
templateRootPaths{40=B;50=C}
`
	got := ParseTypoScript(text)
	assert.Equal(t, []string{"A", "B", "C"}, got[model.KindTemplate])
}

func TestParseTypoScript_NestedBlocks(t *testing.T) {
	text := `
plugin.tx_site {
    view {
        templateRootPaths {
            20 = EXT:site/Resources/Private/Templates/
            10 = EXT:vendor/Resources/Private/Templates/
        }
        layoutRootPaths.0 = EXT:vendor/Resources/Private/Layouts
        partialRootPaths {
            5 = "EXT:site/Resources/Private/Partials"
        }
    }
}
`
	got := ParseTypoScript(text)
	assert.Equal(t, []string{
		"EXT:vendor/Resources/Private/Templates/",
		"EXT:site/Resources/Private/Templates/",
	}, got[model.KindTemplate])
	assert.Equal(t, []string{"EXT:vendor/Resources/Private/Layouts"}, got[model.KindLayout])
	assert.Equal(t, []string{"EXT:site/Resources/Private/Partials"}, got[model.KindPartial])
}

func TestParseTypoScript_DottedBlockHeader(t *testing.T) {
	text := `
plugin.tx_site.view {
    templateRootPaths.30 = X
}
page.10.templateRootPaths {
    1 = Y
}
`
	got := ParseTypoScript(text)
	assert.Equal(t, []string{"Y", "X"}, got[model.KindTemplate])
}

func TestParseTypoScript_CommentsAndConditions(t *testing.T) {
	text := `
# templateRootPaths.1 = hash
// templateRootPaths.2 = slashes
/*
templateRootPaths.3 = block comment
*/
/* inline */ templateRootPaths.4 = kept
[applicationContext == "Development"]
templateRootPaths.5 = conditional
[END]
@import 'EXT:site/Configuration/TypoScript/other.typoscript'
`
	got := ParseTypoScript(text)
	assert.Equal(t, []string{"kept", "conditional"}, got[model.KindTemplate])
}

func TestParseTypoScript_SkipsNonAssignments(t *testing.T) {
	text := `
templateRootPaths.10 < lib.other.templateRootPaths.10
templateRootPaths.20 =< lib.ref
templateRootPaths.30 >
templateRootPaths.40 := addToList(x)
templateRootPaths.50 (
  multi
  templateRootPaths.60 = inside
)
templateRootPaths.70 =
templateRootPaths.80 = Z
`
	got := ParseTypoScript(text)
	assert.Equal(t, []string{"Z"}, got[model.KindTemplate])
}

func TestParseTypoScript_SingularKeyAndDuplicateIndex(t *testing.T) {
	text := `
view.templateRootPath = single
view.templateRootPaths.10 = first
view.templateRootPaths.10 = second
view.layoutRootPaths.x = not-an-index
`
	got := ParseTypoScript(text)
	assert.Equal(t, []string{"single", "second"}, got[model.KindTemplate])
	assert.Empty(t, got[model.KindLayout])
}

func TestParseTypoScript_ConstantsKept(t *testing.T) {
	got := ParseTypoScript("templateRootPaths { 10 = {$plugin.tx_site.templates} }")
	assert.Equal(t, []string{"{$plugin.tx_site.templates}"}, got[model.KindTemplate])
}

func TestParseTypoScript_Empty(t *testing.T) {
	assert.True(t, ParseTypoScript("").IsEmpty())
	assert.True(t, ParseTypoScript("page = PAGE\npage.10 = TEXT").IsEmpty())
}

// =============================================================================
// Site settings
// =============================================================================

func TestParseSiteSettings_MappingAndInlineList(t *testing.T) {
	text := `
templateRootPaths: {10: A, 20: B}
layoutRootPaths: [C, D]
`
	got := ParseSiteSettings(text)
	assert.Equal(t, []string{"A", "B"}, got[model.KindTemplate])
	assert.Equal(t, []string{"C", "D"}, got[model.KindLayout])
}

func TestParseSiteSettings_NestedBlockForms(t *testing.T) {
	text := `
base: 'https://example.org/'
settings:
  plugin:
    view:
      templateRootPaths:
        20: EXT:site/Resources/Private/Templates
        10: EXT:vendor/Resources/Private/Templates
      partialRootPaths:
        - EXT:vendor/Partials
        - EXT:site/Partials
      layoutRootPath: EXT:site/Layouts
`
	got := ParseSiteSettings(text)
	assert.Equal(t, []string{
		"EXT:vendor/Resources/Private/Templates",
		"EXT:site/Resources/Private/Templates",
	}, got[model.KindTemplate])
	assert.Equal(t, []string{"EXT:vendor/Partials", "EXT:site/Partials"}, got[model.KindPartial])
	assert.Equal(t, []string{"EXT:site/Layouts"}, got[model.KindLayout])
}

func TestParseSiteSettings_MalformedFallsBack(t *testing.T) {
	// The tab and the unclosed quote make this invalid YAML.
	text := "base: 'https://example.org\n" +
		"templateRootPaths:\n" +
		"  10: A # vendor\n" +
		"\t20: B\n" +
		"layoutRootPaths: [L1, L2]\n" +
		"partialRootPaths:\n" +
		"  - P1\n" +
		"  - P2\n" +
		"other: value\n"
	got := ParseSiteSettings(text)
	assert.Equal(t, []string{"A", "B"}, got[model.KindTemplate])
	assert.Equal(t, []string{"L1", "L2"}, got[model.KindLayout])
	assert.Equal(t, []string{"P1", "P2"}, got[model.KindPartial])
}

func TestParseSiteSettings_Empty(t *testing.T) {
	assert.True(t, ParseSiteSettings("").IsEmpty())
	assert.True(t, ParseSiteSettings("rootPageId: 1\nbase: /\n").IsEmpty())
}

// =============================================================================
// Shared behaviour
// =============================================================================

func TestParse_Idempotent(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		text    string
	}{
		{"typoscript", DialectTypoScript, "templateRootPaths.10 = A\ntemplateRootPaths { 5 = B }"},
		{"site settings", DialectSiteSettings, "templateRootPaths:\n  10: A\n  5: B\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Parse(tt.dialect, tt.text)
			second := Parse(tt.dialect, tt.text)
			assert.Equal(t, first, second)
			assert.Equal(t, []string{"B", "A"}, first[model.KindTemplate])
		})
	}
}

func TestDialect_String(t *testing.T) {
	assert.Equal(t, "typoscript", DialectTypoScript.String())
	assert.Equal(t, "site_settings", DialectSiteSettings.String())
}

// =============================================================================
// Path resolution
// =============================================================================

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"extension alias", "EXT:site/Resources/Private/Templates/", "/project/site/Resources/Private/Templates"},
		{"absolute", "/srv/templates/", "/srv/templates"},
		{"relative", "templates/custom", "/project/templates/custom"},
		{"backslashes", `templates\custom\`, "/project/templates/custom"},
		{"blank", "   ", ""},
		{"bare alias", "EXT:", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePath(tt.raw, "/project/"))
		})
	}
}

func TestResolveContribution_Dedup(t *testing.T) {
	c := Contribution{
		model.KindTemplate: {"EXT:a/T", "/project/a/T/", "EXT:b/T"},
	}
	set := ResolveContribution(c, "/project")
	require.False(t, set.IsEmpty())
	assert.Equal(t, []string{"/project/a/T", "/project/b/T"}, set.Paths(model.KindTemplate))
	assert.Equal(t, 0, set.Len(model.KindLayout))
}
