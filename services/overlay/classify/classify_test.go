// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/contribution"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Class
	}{
		{"/p/site/Resources/Private/Templates/Page.html", Implementation},
		{"/p/site/Resources/Private/Templates/Page.HTML", Implementation},
		{"/p/site/Configuration/TypoScript/setup.typoscript", TypoScript},
		{"/p/site/Configuration/page.tsconfig", TypoScript},
		{"/p/site/Configuration/TypoScript/setup.ts", TypoScript},
		{"/p/site/Configuration/TsConfig/Page/config.txt", TypoScript},
		{"/p/site/Configuration/TSconfig/page.ts", TypoScript},
		{"/p/frontend/src/main.ts", Irrelevant},
		{"/p/README.txt", Irrelevant},
		{"/p/config/sites/main/config.yaml", SiteSettings},
		{"/p/config/sites/main/settings.yml", SiteSettings},
		{"/p/.github/workflows/ci.yaml", Irrelevant},
		{"/p/composer.json", Irrelevant},
		{"/p/site/Resources", Irrelevant},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestClassify_WindowsSeparators(t *testing.T) {
	assert.Equal(t, TypoScript, Classify(`C:\p\site\Configuration\TypoScript\setup.txt`))
}

func TestClassifier_ConfiguredExtension(t *testing.T) {
	c := New("FLUID")
	assert.Equal(t, ".fluid", c.Ext())
	assert.Equal(t, Implementation, c.Classify("/p/site/Templates/Page.fluid"))
	assert.Equal(t, Irrelevant, c.Classify("/p/site/Templates/Page.html"))
	assert.Equal(t, TypoScript, c.Classify("/p/site/Configuration/TypoScript/setup.typoscript"))
	assert.True(t, c.IsRelevant(model.Created(model.GoneFile("/p/site/Templates/Page.fluid"))))
	assert.False(t, c.IsRelevant(model.Created(model.GoneFile("/p/site/Templates/Page.html"))))

	assert.Equal(t, ImplementationExt, New("").Ext())
	assert.Equal(t, ".htm", New(".htm").Ext())
}

func TestClass_Dialect(t *testing.T) {
	d, ok := TypoScript.Dialect()
	assert.True(t, ok)
	assert.Equal(t, contribution.DialectTypoScript, d)

	d, ok = SiteSettings.Dialect()
	assert.True(t, ok)
	assert.Equal(t, contribution.DialectSiteSettings, d)

	_, ok = Implementation.Dialect()
	assert.False(t, ok)
}

func TestClassifyRename(t *testing.T) {
	parent := "/p/site/Resources/Private/Templates"

	t.Run("irrelevant to implementation", func(t *testing.T) {
		rc := ClassifyRename(parent, "Foo.bak", "Foo.html")
		assert.True(t, rc.Relevant())
		assert.True(t, rc.IsImplementation())
		assert.False(t, rc.IsConfig())
	})

	t.Run("implementation to irrelevant", func(t *testing.T) {
		rc := ClassifyRename(parent, "Foo.html", "Foo.html.orig")
		assert.True(t, rc.Relevant())
		assert.True(t, rc.IsImplementation())
	})

	t.Run("both irrelevant", func(t *testing.T) {
		rc := ClassifyRename(parent, "a.bak", "b.bak")
		assert.False(t, rc.Relevant())
	})

	t.Run("configuration", func(t *testing.T) {
		rc := ClassifyRename("/p/site/Configuration", "setup.old", "setup.typoscript")
		assert.True(t, rc.IsConfig())
		assert.False(t, rc.IsImplementation())
	})

	t.Run("implementation wins over configuration", func(t *testing.T) {
		rc := ClassifyRename("/p/site/Configuration/TypoScript", "x.ts", "x.html")
		assert.Equal(t, TypoScript, rc.Old)
		assert.True(t, rc.IsImplementation())
		assert.False(t, rc.IsConfig())
	})
}

func TestIsRelevant(t *testing.T) {
	tmpl := model.GoneFile("/p/T/Foo.html")
	bak := model.GoneFile("/p/T/Foo.bak")

	assert.True(t, IsRelevant(model.Created(tmpl)))
	assert.False(t, IsRelevant(model.ContentChanged(bak)))
	assert.True(t, IsRelevant(model.Renamed(bak, "Foo.html")))
	assert.True(t, IsRelevant(model.Moved(bak, "/p/other/Foo.html")))
	assert.False(t, IsRelevant(model.Moved(bak, "/p/other/Foo.bak")))
	assert.True(t, IsRelevant(model.DeletedDir(model.GoneFile("/p/T"))))
}

func TestFilter(t *testing.T) {
	batch := []model.ChangeEvent{
		model.ContentChanged(model.GoneFile("/p/a.js")),
		model.ContentChanged(model.GoneFile("/p/T/A.html")),
		model.Created(model.GoneFile("/p/b.css")),
		model.Deleted(model.GoneFile("/p/config/sites/main/config.yaml")),
	}
	got := Filter(batch)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "/p/T/A.html", got[0].File.Path)
		assert.Equal(t, "/p/config/sites/main/config.yaml", got[1].File.Path)
	}
	assert.Empty(t, Filter(nil))
}

func TestClassifyEvent_Directory(t *testing.T) {
	rc := ClassifyEvent(model.DeletedDir(model.GoneFile("/p/site")))
	assert.True(t, rc.IsDirectory())
	assert.False(t, rc.IsConfig())
	assert.False(t, rc.IsImplementation())
}
