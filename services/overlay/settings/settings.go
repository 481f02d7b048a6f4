// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package settings loads the engine's application settings from a YAML
// file, applies environment overrides and validates the result.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/telemetry"
)

// FileName is the settings file looked up in the project root.
const FileName = ".overlay.yaml"

// Environment overrides.
const (
	EnvDebounce     = "OVERLAY_DEBOUNCE"
	EnvLogLevel     = "OVERLAY_LOG_LEVEL"
	EnvEnvironment  = "OVERLAY_ENV"
	EnvTraces       = "OTEL_TRACES_EXPORTER"
	EnvMetrics      = "OTEL_METRICS_EXPORTER"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

var (
	// ErrInvalidSettings is returned when validation fails.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrReadSettings is returned when the settings file exists but cannot
	// be read or parsed.
	ErrReadSettings = errors.New("cannot read settings")
)

// Settings is the full application configuration.
type Settings struct {
	// ProjectRoot is the directory scanned for configuration and templates.
	ProjectRoot string `yaml:"project_root" validate:"required"`

	// Context names the single resolution context served.
	Context string `yaml:"context" validate:"required"`

	// Extension is the implementation file extension.
	Extension string `yaml:"extension" validate:"required,startswith=."`

	// Debounce is the quiet period before a batch of changes is processed.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0,lte=1m"`

	// Immediate processes changes without debouncing.
	Immediate bool `yaml:"immediate"`

	// Ignore lists extra doublestar patterns, relative to the project root.
	Ignore []string `yaml:"ignore"`

	Log       LogSettings       `yaml:"log"`
	Telemetry TelemetrySettings `yaml:"telemetry"`
	Server    ServerSettings    `yaml:"server"`
}

// LogSettings configures pkg/logging.
type LogSettings struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// TelemetrySettings selects the OpenTelemetry exporters.
type TelemetrySettings struct {
	ServiceName  string `yaml:"service_name" validate:"required"`
	Environment  string `yaml:"environment"`
	Traces       string `yaml:"traces" validate:"oneof=otlp stdout none"`
	Metrics      string `yaml:"metrics" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Traces otlp"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Address string `yaml:"address" validate:"required,hostname_port"`
}

// Default returns settings for projectRoot with every default filled in.
func Default(projectRoot string) Settings {
	return Settings{
		ProjectRoot: projectRoot,
		Context:     "default",
		Extension:   ".html",
		Debounce:    300 * time.Millisecond,
		Log: LogSettings{
			Level: "info",
		},
		Telemetry: TelemetrySettings{
			ServiceName:  "overlay",
			Environment:  "development",
			Traces:       telemetry.ExporterNone,
			Metrics:      telemetry.ExporterPrometheus,
			OTLPEndpoint: "localhost:4317",
			OTLPInsecure: true,
		},
		Server: ServerSettings{
			Address: "127.0.0.1:8095",
		},
	}
}

// Load reads settings for projectRoot. path may be empty, in which case
// <projectRoot>/.overlay.yaml is used if it exists. Values missing from the
// file keep their defaults. Environment overrides are applied last.
func Load(projectRoot, path string) (Settings, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve project root: %w", err)
	}
	s := Default(abs)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(abs, FileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("%w: %s: %w", ErrReadSettings, path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return Settings{}, fmt.Errorf("%w: %w", ErrReadSettings, err)
	}

	if !filepath.IsAbs(s.ProjectRoot) {
		s.ProjectRoot = filepath.Join(abs, s.ProjectRoot)
	}
	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv() error {
	if v := os.Getenv(EnvDebounce); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidSettings, EnvDebounce, v, err)
		}
		s.Debounce = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		s.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		s.Telemetry.Environment = v
	}
	if v := os.Getenv(EnvTraces); v != "" {
		s.Telemetry.Traces = strings.ToLower(v)
	}
	if v := os.Getenv(EnvMetrics); v != "" {
		s.Telemetry.Metrics = strings.ToLower(v)
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		s.Telemetry.OTLPEndpoint = v
	}
	return nil
}

// TelemetryConfig returns the exporter configuration for this engine
// instance.
func (s Settings) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		ServiceName:  s.Telemetry.ServiceName,
		Environment:  s.Telemetry.Environment,
		Traces:       s.Telemetry.Traces,
		Metrics:      s.Telemetry.Metrics,
		OTLPEndpoint: s.Telemetry.OTLPEndpoint,
		OTLPInsecure: s.Telemetry.OTLPInsecure,
		ProjectRoot:  s.ProjectRoot,
		Context:      s.Context,
	}
}

// Validate checks struct constraints.
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

// WriteDefault writes the default settings for projectRoot to path,
// creating parent directories.
func WriteDefault(projectRoot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := yaml.Marshal(Default(projectRoot))
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
