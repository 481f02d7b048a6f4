// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	root := t.TempDir()

	s, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, root, s.ProjectRoot)
	assert.Equal(t, "default", s.Context)
	assert.Equal(t, ".html", s.Extension)
	assert.Equal(t, 300*time.Millisecond, s.Debounce)
	assert.Equal(t, "info", s.Log.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	content := `
debounce: 50ms
immediate: true
ignore:
  - "build/**"
log:
  level: debug
  json: true
server:
  address: "0.0.0.0:9000"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(content), 0o644))

	s, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, s.Debounce)
	assert.True(t, s.Immediate)
	assert.Equal(t, []string{"build/**"}, s.Ignore)
	assert.Equal(t, "debug", s.Log.Level)
	assert.True(t, s.Log.JSON)
	assert.Equal(t, "0.0.0.0:9000", s.Server.Address)
	assert.Equal(t, ".html", s.Extension, "unset fields keep defaults")
}

func TestLoad_RelativeProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("project_root: web\n"), 0o644))

	s, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "web"), s.ProjectRoot)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDebounce, "1s")
	t.Setenv(EnvLogLevel, "WARN")

	s, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.Debounce)
	assert.Equal(t, "warn", s.Log.Level)
}

func TestLoad_TelemetryEnvOverrides(t *testing.T) {
	t.Setenv(EnvEnvironment, "staging")
	t.Setenv(EnvTraces, "OTLP")
	t.Setenv(EnvMetrics, "none")
	t.Setenv(EnvOTLPEndpoint, "collector:4317")

	s, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "staging", s.Telemetry.Environment)
	assert.Equal(t, "otlp", s.Telemetry.Traces)
	assert.Equal(t, "none", s.Telemetry.Metrics)
	assert.Equal(t, "collector:4317", s.Telemetry.OTLPEndpoint)
}

func TestSettings_TelemetryConfig(t *testing.T) {
	s := Default("/srv/site")
	s.Context = "shop"
	s.Telemetry.Traces = "stdout"

	cfg := s.TelemetryConfig()
	assert.Equal(t, "overlay", cfg.ServiceName)
	assert.Equal(t, "stdout", cfg.Traces)
	assert.Equal(t, "prometheus", cfg.Metrics)
	assert.Equal(t, "/srv/site", cfg.ProjectRoot)
	assert.Equal(t, "shop", cfg.Context)
}

func TestLoad_BadEnvDuration(t *testing.T) {
	t.Setenv(EnvDebounce, "soon")

	_, err := Load(t.TempDir(), "")
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	root := t.TempDir()
	_, err := Load(root, filepath.Join(root, "nope.yaml"))
	assert.ErrorIs(t, err, ErrReadSettings)
}

func TestLoad_MalformedFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("debounce: [\n"), 0o644))

	_, err := Load(root, "")
	assert.ErrorIs(t, err, ErrReadSettings)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"bad extension", func(s *Settings) { s.Extension = "html" }},
		{"negative debounce", func(s *Settings) { s.Debounce = -time.Second }},
		{"huge debounce", func(s *Settings) { s.Debounce = time.Hour }},
		{"bad level", func(s *Settings) { s.Log.Level = "loud" }},
		{"bad address", func(s *Settings) { s.Server.Address = "nowhere" }},
		{"bad exporter", func(s *Settings) { s.Telemetry.Metrics = "graphite" }},
		{"jaeger traces", func(s *Settings) { s.Telemetry.Traces = "jaeger" }},
		{"otlp without endpoint", func(s *Settings) {
			s.Telemetry.Traces = "otlp"
			s.Telemetry.OTLPEndpoint = ""
		}},
		{"no context", func(s *Settings) { s.Context = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default("/project")
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
		})
	}

	assert.NoError(t, Default("/project").Validate())
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "nested", FileName)
	require.NoError(t, WriteDefault(root, path))

	s, err := Load(root, path)
	require.NoError(t, err)
	assert.Equal(t, Default(root).Debounce, s.Debounce)
}
