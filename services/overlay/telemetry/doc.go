// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry-based observability for the
// overlay engine.
//
// Init configures the global TracerProvider and MeterProvider. Components
// use the OTel APIs directly through otel.Tracer and otel.Meter; the
// exporters are chosen by the telemetry section of the settings file.
//
// # Trace Backend (default: none)
//
// Traces go to an OTLP receiver or stdout. The CLI defaults to "none" so
// one-shot queries stay quiet.
//
// # Metrics Backend (default: Prometheus)
//
// Metrics are exposed through MetricsHandler for scraping at /metrics.
//
// # Resource
//
// Every span and metric carries the service name and environment plus the
// project root and context of the engine (overlay.project_root,
// overlay.context).
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
