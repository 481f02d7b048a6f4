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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/settings"
)

const setupTS = `page.10 = FLUIDTEMPLATE
page.10 {
  templateRootPaths {
    10 = EXT:vendor_ext/Resources/Private/Templates/
    20 = EXT:site/Resources/Private/Templates/
  }
}
`

func writeFile(t *testing.T, p, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return model.NormalizePath(p)
}

func newProject(t *testing.T) string {
	t.Helper()
	root := model.NormalizePath(t.TempDir())
	writeFile(t, root+"/site/Configuration/TypoScript/setup.typoscript", setupTS)
	writeFile(t, root+"/vendor_ext/Resources/Private/Templates/Page/Show.html", "vendor")
	writeFile(t, root+"/vendor_ext/Resources/Private/Templates/Page/List.html", "vendor")
	writeFile(t, root+"/site/Resources/Private/Templates/Page/Show.html", "site")
	return root
}

// execute runs the root command with fresh flag values and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	projectRoot, configPath, logLevel, contextName, dialectName = ".", "", "", "", ""
	jsonOutput, forceInit = false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "--root", dir, "--json", "classify",
		filepath.Join(dir, "Page.html"),
		filepath.Join(dir, "setup.typoscript"),
		filepath.Join(dir, "README.md"))
	require.NoError(t, err)

	var got []classification
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "implementation", got[0].Class)
	assert.True(t, got[0].Relevant)
	assert.Equal(t, "typoscript", got[1].Class)
	assert.Equal(t, "irrelevant", got[2].Class)
	assert.False(t, got[2].Relevant)
}

func TestParseCommand(t *testing.T) {
	root := newProject(t)
	out, err := execute(t, "--root", root, "--json", "parse",
		root+"/site/Configuration/TypoScript/setup.typoscript")
	require.NoError(t, err)

	var got parsed
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "typoscript", got.Dialect)
	assert.Equal(t, []string{
		"EXT:vendor_ext/Resources/Private/Templates/",
		"EXT:site/Resources/Private/Templates/",
	}, got.Declared["template"])
	assert.Equal(t, []string{
		root + "/vendor_ext/Resources/Private/Templates",
		root + "/site/Resources/Private/Templates",
	}, got.Resolved.Paths(model.KindTemplate))
}

func TestParseCommand_Dialect(t *testing.T) {
	root := t.TempDir()
	p := writeFile(t, filepath.Join(root, "notes.md"), "templateRootPaths:\n  - EXT:site/Templates\n")

	_, err := execute(t, "--root", root, "parse", p)
	assert.Error(t, err)

	out, err := execute(t, "--root", root, "--json", "parse", "--dialect", "site_settings", p)
	require.NoError(t, err)
	var got parsed
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "site_settings", got.Dialect)

	_, err = execute(t, "--root", root, "parse", "--dialect", "xml", p)
	assert.Error(t, err)
}

func TestResolveCommand(t *testing.T) {
	root := newProject(t)

	out, err := execute(t, "--root", root, "--json", "resolve", "template", "Page/Show")
	require.NoError(t, err)
	var f model.File
	require.NoError(t, json.Unmarshal([]byte(out), &f))
	assert.Equal(t, root+"/site/Resources/Private/Templates/Page/Show.html", f.Path)

	_, err = execute(t, "--root", root, "resolve", "template", "Page/Missing")
	assert.Error(t, err)

	_, err = execute(t, "--root", root, "resolve", "widget", "Page/Show")
	assert.ErrorIs(t, err, model.ErrUnknownKind)
}

func TestCandidatesAndNamesCommands(t *testing.T) {
	root := newProject(t)

	out, err := execute(t, "--root", root, "--json", "candidates", "template", "Page/Show")
	require.NoError(t, err)
	var cands []model.Candidate
	require.NoError(t, json.Unmarshal([]byte(out), &cands))
	require.Len(t, cands, 2)
	assert.Equal(t, root+"/site/Resources/Private/Templates/Page/Show.html", cands[0].File.Path)

	out, err = execute(t, "--root", root, "--json", "names", "template")
	require.NoError(t, err)
	var names []model.LogicalName
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []model.LogicalName{"Page/List", "Page/Show"}, names)
}

func TestInitCommand(t *testing.T) {
	root := t.TempDir()

	_, err := execute(t, "--root", root, "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, settings.FileName))

	_, err = execute(t, "--root", root, "init")
	assert.Error(t, err)

	_, err = execute(t, "--root", root, "init", "--force")
	assert.NoError(t, err)
}
