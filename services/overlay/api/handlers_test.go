// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	overlay "github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/settings"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Fixtures
// =============================================================================

type fixture struct {
	root   string
	engine *overlay.Engine
	router *gin.Engine
}

func write(t *testing.T, p, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return model.NormalizePath(p)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := model.NormalizePath(t.TempDir())
	write(t, root+"/site/Configuration/TypoScript/setup.typoscript",
		"templateRootPaths.10 = EXT:vendor_ext/Resources/Private/Templates/\n"+
			"templateRootPaths.20 = EXT:site/Resources/Private/Templates/\n")
	write(t, root+"/vendor_ext/Resources/Private/Templates/Page/Show.html", "vendor")
	write(t, root+"/site/Resources/Private/Templates/Page/Show.html", "site")

	s := settings.Default(root)
	s.Debounce = 30 * time.Second
	e, err := overlay.New(s, overlay.WithWatch(false))
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop() })

	return &fixture{root: root, engine: e, router: NewRouter(e, nil, "overlay-test")}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// =============================================================================
// Health
// =============================================================================

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v1/overlay/health")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestHandleReady(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/overlay/ready")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[overlay.Status](t, w).Ready)

	release := f.engine.Gate().Hold()
	defer release()
	w = f.do(t, http.MethodGet, "/v1/overlay/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.False(t, decode[overlay.Status](t, w).Ready)
}

// =============================================================================
// Queries
// =============================================================================

func TestHandleResolve(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/overlay/resolve?kind=template&name=Page/Show")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ResolveResponse](t, w)
	assert.Equal(t, model.DefaultContext, resp.Context)
	assert.Equal(t, model.KindTemplate, resp.Kind)
	assert.Equal(t, f.root+"/site/Resources/Private/Templates/Page/Show.html", resp.File.Path)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleResolve_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing name", "/v1/overlay/resolve?kind=template", http.StatusBadRequest, CodeInvalidRequest},
		{"unknown kind", "/v1/overlay/resolve?kind=widget&name=Page/Show", http.StatusBadRequest, CodeInvalidRequest},
		{"slashes only", "/v1/overlay/resolve?kind=template&name=/", http.StatusBadRequest, CodeInvalidRequest},
		{"unknown name", "/v1/overlay/resolve?kind=template&name=Nope", http.StatusNotFound, CodeNotFound},
		{"unknown context", "/v1/overlay/resolve?kind=template&name=Page/Show&context=other", http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandleCandidates(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/overlay/candidates?kind=templates&name=/Page/Show/")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CandidatesResponse](t, w)
	assert.Equal(t, model.LogicalName("Page/Show"), resp.Name)
	require.Len(t, resp.Candidates, 2)
	assert.Equal(t, f.root+"/site/Resources/Private/Templates/Page/Show.html", resp.Candidates[0].File.Path)
	assert.Equal(t, f.root+"/vendor_ext/Resources/Private/Templates/Page/Show.html", resp.Candidates[1].File.Path)

	w = f.do(t, http.MethodGet, "/v1/overlay/candidates?kind=layout&name=Default")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleNames(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/overlay/names?kind=template")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []model.LogicalName{"Page/Show"}, decode[NamesResponse](t, w).Names)

	w = f.do(t, http.MethodGet, "/v1/overlay/names?kind=partial")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `[]`, string(mustField(t, w, "names")))

	w = f.do(t, http.MethodGet, "/v1/overlay/names")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func mustField(t *testing.T, w *httptest.ResponseRecorder, field string) json.RawMessage {
	t.Helper()
	fields := decode[map[string]json.RawMessage](t, w)
	raw, ok := fields[field]
	require.True(t, ok)
	return raw
}

func TestHandleRoots(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/overlay/roots")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RootsResponse](t, w)
	assert.Equal(t, []string{
		f.root + "/vendor_ext/Resources/Private/Templates",
		f.root + "/site/Resources/Private/Templates",
	}, resp.Roots.Paths(model.KindTemplate))
	require.Len(t, resp.Sources, 1)
	assert.True(t, strings.HasSuffix(resp.Sources[0].Path, "setup.typoscript"))

	w = f.do(t, http.MethodGet, "/v1/overlay/roots?context=other")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/v1/overlay/roots?context="+strings.Repeat("x", 200))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, w).Code)
}

func TestHandleStats(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/overlay/stats")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[StatsResponse](t, w)
	require.Len(t, resp.Catalogs, 1)
	assert.Equal(t, 1, resp.Catalogs[0].Overridden)
	assert.Equal(t, "idle", resp.State)
	assert.Equal(t, `0`, string(mustField(t, w, "dropped_notifications")))
}

// =============================================================================
// Commands
// =============================================================================

func TestHandleFlush(t *testing.T) {
	f := newFixture(t)
	p := write(t, f.root+"/site/Resources/Private/Templates/Page/List.html", "site")
	f.engine.Submit([]model.ChangeEvent{model.Created(model.NewFile(p))})

	w := f.do(t, http.MethodPost, "/v1/overlay/flush")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[FlushResponse](t, w)
	assert.Equal(t, 1, resp.Runs)
	assert.True(t, resp.Relevant)

	w = f.do(t, http.MethodGet, "/v1/overlay/resolve?kind=template&name=Page/List")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleRescan(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/overlay/rescan")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[overlay.Status](t, w).Ready)

	require.NoError(t, f.engine.Stop())
	w = f.do(t, http.MethodPost, "/v1/overlay/rescan")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, CodeNotReady, decode[ErrorResponse](t, w).Code)
}

func TestNoRoute(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v2/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, w).Code)
}

// =============================================================================
// Events
// =============================================================================

func TestHandleEvents_StreamsDiffs(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/overlay/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	p := write(t, f.root+"/site/Resources/Private/Templates/Page/List.html", "site")
	f.engine.Submit([]model.ChangeEvent{model.Created(model.NewFile(p))})
	f.engine.Flush()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var diff []map[string]any
	require.NoError(t, conn.ReadJSON(&diff))
	require.Len(t, diff, 1)
	assert.Equal(t, "introduced", diff[0]["type"])
	key, ok := diff[0]["key"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Page/List", key["name"])
	assert.Equal(t, "template", key["kind"])
}
