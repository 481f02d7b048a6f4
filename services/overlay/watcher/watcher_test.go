// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// =============================================================================
// Burst conversion
// =============================================================================

func newBare() *Watcher {
	return &Watcher{dirs: make(map[string]bool)}
}

func TestConvert_RenameSameParent(t *testing.T) {
	w := newBare()
	events := w.convert([]rawChange{
		{path: "/p/T/Old.html", op: opRename},
		{path: "/p/T/New.html", op: opCreate},
	})
	require.Len(t, events, 1)
	assert.Equal(t, model.EventRenamed, events[0].Type)
	assert.Equal(t, "Old.html", events[0].OldName())
	assert.Equal(t, "New.html", events[0].NewName())
}

func TestConvert_MoveAcrossParents(t *testing.T) {
	w := newBare()
	events := w.convert([]rawChange{
		{path: "/p/vendor/T/Page.html", op: opRename},
		{path: "/p/site/T/Page.html", op: opCreate},
	})
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMoved, events[0].Type)
	assert.Equal(t, "/p/vendor/T/Page.html", events[0].OldPath)
	assert.Equal(t, "/p/site/T/Page.html", events[0].File.Path)
}

func TestConvert_UnpairedRenameIsDeletion(t *testing.T) {
	w := newBare()
	events := w.convert([]rawChange{
		{path: "/p/T/Gone.html", op: opRename},
		{path: "/p/other/Unrelated.html", op: opCreate},
	})
	require.Len(t, events, 2)
	assert.Equal(t, model.EventDeleted, events[0].Type)
	assert.Equal(t, model.EventCreated, events[1].Type)
}

func TestConvert_RemoveWatchedDir(t *testing.T) {
	w := newBare()
	w.dirs["/p/T"] = true
	w.dirs["/p/T/Sub"] = true

	events := w.convert([]rawChange{{path: "/p/T", op: opRemove}})
	require.Len(t, events, 1)
	assert.True(t, events[0].Dir)
	assert.Empty(t, w.dirs)
}

func TestCoalesce(t *testing.T) {
	a := model.GoneFile("/p/A.html")
	b := model.GoneFile("/p/B.html")

	t.Run("writes collapse", func(t *testing.T) {
		got := Coalesce([]model.ChangeEvent{model.ContentChanged(a), model.ContentChanged(a), model.ContentChanged(b)})
		require.Len(t, got, 2)
		assert.Equal(t, a.Path, got[0].File.Path)
	})

	t.Run("create then write stays create", func(t *testing.T) {
		got := Coalesce([]model.ChangeEvent{model.Created(a), model.ContentChanged(a)})
		require.Len(t, got, 1)
		assert.Equal(t, model.EventCreated, got[0].Type)
	})

	t.Run("create then delete cancels", func(t *testing.T) {
		got := Coalesce([]model.ChangeEvent{model.Created(a), model.ContentChanged(b), model.Deleted(a)})
		require.Len(t, got, 1)
		assert.Equal(t, b.Path, got[0].File.Path)
	})

	t.Run("delete then create keeps create", func(t *testing.T) {
		got := Coalesce([]model.ChangeEvent{model.Deleted(a), model.Created(a)})
		require.Len(t, got, 1)
		assert.Equal(t, model.EventCreated, got[0].Type)
	})

	t.Run("delete create delete stays delete", func(t *testing.T) {
		got := Coalesce([]model.ChangeEvent{model.Deleted(a), model.Created(a), model.ContentChanged(a), model.Deleted(a)})
		require.Len(t, got, 1)
		assert.Equal(t, model.EventDeleted, got[0].Type)
		assert.Equal(t, a.Path, got[0].File.Path)
	})

	t.Run("create delete create keeps create", func(t *testing.T) {
		got := Coalesce([]model.ChangeEvent{model.Created(a), model.Deleted(a), model.Created(a)})
		require.Len(t, got, 1)
		assert.Equal(t, model.EventCreated, got[0].Type)
	})
}

// =============================================================================
// Live watching
// =============================================================================

type collector struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (c *collector) handle(batch []model.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, batch...)
}

func (c *collector) find(typ model.EventType, p string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Type == typ && e.File.Path == p {
			return true
		}
	}
	return false
}

func (c *collector) any(pred func(model.ChangeEvent) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if pred(e) {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, root string) *collector {
	t.Helper()
	c := &collector{}
	w, err := New(root, c.handle, &Options{BurstWindow: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	assert.True(t, w.IsWatching())
	return c
}

func TestWatcher_CreateAndWrite(t *testing.T) {
	root := model.NormalizePath(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "T"), 0o755))
	c := startWatcher(t, root)

	p := root + "/T/Page.html"
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return c.find(model.EventCreated, p) },
		2*time.Second, 10*time.Millisecond)
}

func TestWatcher_NewDirectoryContents(t *testing.T) {
	root := model.NormalizePath(t.TempDir())
	c := startWatcher(t, root)

	staging := model.NormalizePath(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "ext", "T"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "ext", "T", "A.html"), []byte("x"), 0o644))
	require.NoError(t, os.Rename(filepath.Join(staging, "ext"), filepath.Join(root, "ext")))

	want := root + "/ext/T/A.html"
	assert.Eventually(t, func() bool { return c.find(model.EventCreated, want) },
		2*time.Second, 10*time.Millisecond)
}

func TestWatcher_DeleteDirectory(t *testing.T) {
	root := model.NormalizePath(t.TempDir())
	dir := root + "/T"
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(dir+"/A.html", []byte("x"), 0o644))
	c := startWatcher(t, root)

	require.NoError(t, os.RemoveAll(dir))

	assert.Eventually(t, func() bool {
		return c.any(func(e model.ChangeEvent) bool { return e.Dir && e.File.Path == dir })
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoredPaths(t *testing.T) {
	root := model.NormalizePath(t.TempDir())
	require.NoError(t, os.MkdirAll(root+"/node_modules", 0o755))
	c := startWatcher(t, root)

	require.NoError(t, os.WriteFile(root+"/node_modules/x.html", []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(root+"/marker.html", []byte("x"), 0o644))

	require.Eventually(t, func() bool { return c.find(model.EventCreated, root+"/marker.html") },
		2*time.Second, 10*time.Millisecond)
	assert.False(t, c.any(func(e model.ChangeEvent) bool {
		return filepath.Base(filepath.Dir(e.File.Path)) == "node_modules"
	}))
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
}
