// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	AttrRelevant   = "relevant"
	AttrClass      = "class"
	AttrStatus     = "status"
	AttrChangeType = "change_type"
	AttrComponent  = "component"
	AttrContext    = "context"
)

// Metrics contains the overlay engine's instruments. All metrics use the
// "overlay_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Coordinator ---

	// RunsTotal counts processing runs, by whether they held relevant changes.
	RunsTotal metric.Int64Counter

	// RunDuration records run duration in seconds.
	RunDuration metric.Float64Histogram

	// EventsTotal counts relevant events accepted, by class.
	EventsTotal metric.Int64Counter

	// StashedEventsTotal counts events moved to the backlog while not ready.
	StashedEventsTotal metric.Int64Counter

	// FlushesTotal counts backlog flushes.
	FlushesTotal metric.Int64Counter

	// BacklogSize reports the current backlog size.
	BacklogSize metric.Int64ObservableGauge

	// --- Catalog ---

	// CatalogBuildsTotal counts full catalog builds by status.
	CatalogBuildsTotal metric.Int64Counter

	// CatalogBuildDuration records catalog build duration in seconds.
	CatalogBuildDuration metric.Float64Histogram

	// --- Resolution ---

	// ResolutionChangesTotal counts published resolution changes by type.
	ResolutionChangesTotal metric.Int64Counter

	// --- Errors ---

	// ErrorsTotal counts errors by component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics registers all instruments with meter.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(otel.Meter("overlay"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.RunsTotal.Add(ctx, 1)
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RunsTotal, err = meter.Int64Counter(
		"overlay_runs_total",
		metric.WithDescription("Total update runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create runs_total: %w", err)
	}

	m.RunDuration, err = meter.Float64Histogram(
		"overlay_run_duration_seconds",
		metric.WithDescription("Update run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create run_duration: %w", err)
	}

	m.EventsTotal, err = meter.Int64Counter(
		"overlay_events_total",
		metric.WithDescription("Relevant change events accepted"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events_total: %w", err)
	}

	m.StashedEventsTotal, err = meter.Int64Counter(
		"overlay_stashed_events_total",
		metric.WithDescription("Change events stashed while the host was not ready"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stashed_events_total: %w", err)
	}

	m.FlushesTotal, err = meter.Int64Counter(
		"overlay_flushes_total",
		metric.WithDescription("Backlog flushes"),
		metric.WithUnit("{flush}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create flushes_total: %w", err)
	}

	m.CatalogBuildsTotal, err = meter.Int64Counter(
		"overlay_catalog_builds_total",
		metric.WithDescription("Full catalog builds"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create catalog_builds_total: %w", err)
	}

	m.CatalogBuildDuration, err = meter.Float64Histogram(
		"overlay_catalog_build_duration_seconds",
		metric.WithDescription("Catalog build duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create catalog_build_duration: %w", err)
	}

	m.ResolutionChangesTotal, err = meter.Int64Counter(
		"overlay_resolution_changes_total",
		metric.WithDescription("Published resolution changes"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create resolution_changes_total: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"overlay_errors_total",
		metric.WithDescription("Errors by component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// RegisterBacklogSize registers an observable gauge reporting sizeFunc on
// every collection.
func (m *Metrics) RegisterBacklogSize(meter metric.Meter, sizeFunc func() int64) (metric.Registration, error) {
	var err error
	m.BacklogSize, err = meter.Int64ObservableGauge(
		"overlay_backlog_size",
		metric.WithDescription("Change events waiting for the host to become ready"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create backlog_size: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.BacklogSize, sizeFunc())
		return nil
	}, m.BacklogSize)
}
