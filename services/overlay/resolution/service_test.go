// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// heads is a fixed Source.
type heads map[model.ResolutionKey]model.File

func (h heads) Heads() map[model.ResolutionKey]model.File { return h }

func key(name string) model.ResolutionKey {
	return model.ResolutionKey{Context: model.DefaultContext, Kind: model.KindTemplate, Name: model.LogicalName(name)}
}

func TestService_IntroducedThenChanged(t *testing.T) {
	s := New()
	var published []model.ResolutionDiff
	s.Subscribe(func(d model.ResolutionDiff) { published = append(published, d) })

	vendor := model.GoneFile("/p/vendor/Templates/Page/Show.html")
	site := model.GoneFile("/p/site/Templates/Page/Show.html")

	diff := s.Recompute(model.DefaultContext, heads{key("Page/Show"): vendor})
	require.Len(t, diff, 1)
	assert.Equal(t, model.ChangeIntroduced, diff[0].Type())

	diff = s.Recompute(model.DefaultContext, heads{key("Page/Show"): site})
	require.Len(t, diff, 1)
	change := diff[0]
	assert.Equal(t, model.ChangeChanged, change.Type())
	assert.Equal(t, vendor.Path, change.Previous.Path)
	assert.Equal(t, site.Path, change.Current.Path)

	assert.Len(t, published, 2)
	eff, ok := s.Effective(key("Page/Show"))
	require.True(t, ok)
	assert.Equal(t, site.Path, eff.Path)
}

func TestService_NoChangeNoPublish(t *testing.T) {
	s := New()
	src := heads{key("A"): model.GoneFile("/p/A.html")}
	s.Recompute(model.DefaultContext, src)

	calls := 0
	s.Subscribe(func(model.ResolutionDiff) { calls++ })

	// Same path, refreshed identity.
	diff := s.Recompute(model.DefaultContext, heads{key("A"): {Path: "/p/A.html", ID: "ino:1:2", Valid: true}})
	assert.Empty(t, diff)
	assert.Zero(t, calls)
}

func TestService_RemovedKeys(t *testing.T) {
	s := New()
	s.Recompute(model.DefaultContext, heads{
		key("A"): model.GoneFile("/p/A.html"),
		key("B"): model.GoneFile("/p/B.html"),
	})

	diff := s.Recompute(model.DefaultContext, heads{key("B"): model.GoneFile("/p/B.html")})
	require.Len(t, diff, 1)
	assert.Equal(t, model.ChangeRemoved, diff[0].Type())
	assert.Equal(t, key("A"), diff[0].Key)
	assert.Nil(t, diff[0].Current)

	_, ok := s.Effective(key("A"))
	assert.False(t, ok)
	assert.Equal(t, 1, s.Size(model.DefaultContext))

	diff = s.Recompute(model.DefaultContext, nil)
	require.Len(t, diff, 1)
	assert.Equal(t, 0, s.Size(model.DefaultContext))
}

func TestService_DiffIsSorted(t *testing.T) {
	s := New()
	diff := s.Recompute(model.DefaultContext, heads{
		key("C"): model.GoneFile("/p/C.html"),
		key("A"): model.GoneFile("/p/A.html"),
		{Context: model.DefaultContext, Kind: model.KindLayout, Name: "A"}: model.GoneFile("/p/L/A.html"),
	})
	require.Len(t, diff, 3)
	assert.Equal(t, key("A"), diff[0].Key)
	assert.Equal(t, key("C"), diff[1].Key)
	assert.Equal(t, model.KindLayout, diff[2].Key.Kind)
}

func TestService_ContextsAreSeparate(t *testing.T) {
	s := New()
	s.Recompute(model.DefaultContext, heads{key("A"): model.GoneFile("/p/A.html")})
	s.Recompute("shop", heads{key("A"): model.GoneFile("/p/shop/A.html")})

	shopKey := key("A")
	shopKey.Context = "shop"
	eff, ok := s.Effective(shopKey)
	require.True(t, ok)
	assert.Equal(t, "/p/shop/A.html", eff.Path)

	snap := s.Snapshot(model.DefaultContext)
	require.Len(t, snap, 1)
	delete(snap, key("A"))
	assert.Equal(t, 1, s.Size(model.DefaultContext), "snapshot is a copy")
}
