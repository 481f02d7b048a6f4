// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package overlay assembles the template overlay engine.
//
// An Engine owns one instance of every component: the context manager
// that turns configuration into root sets, one catalog per context, the
// resolution service that publishes effective files, and the coordinator
// that feeds file-system changes through them. Start starts the file
// watcher and performs the initial scan; queries read the last published
// state.
//
// # Thread Safety
//
// Engine is safe for concurrent use.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/catalog"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/contexts"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/coordinator"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/internal/ignore"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/readiness"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/resolution"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/settings"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/telemetry"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/watcher"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMeter sets the meter for engine metrics. Default: otel.Meter("overlay").
func WithMeter(meter metric.Meter) Option {
	return func(e *Engine) {
		if meter != nil {
			e.meter = meter
		}
	}
}

// WithWatch enables or disables the file watcher. Default: enabled.
func WithWatch(enabled bool) Option {
	return func(e *Engine) {
		e.watch = enabled
	}
}

// Status summarizes the engine for health endpoints.
type Status struct {
	Ready     bool              `json:"ready"`
	State     string            `json:"state"`
	Runs      int               `json:"runs"`
	Relevant  bool              `json:"last_run_relevant"`
	Backlog   int               `json:"backlog"`
	Contexts  []model.ContextID `json:"contexts"`
	Watching  bool              `json:"watching"`
	Dropped   int               `json:"dropped_notifications"`
	StartedAt time.Time         `json:"started_at"`
}

// Engine wires the overlay components together.
type Engine struct {
	settings settings.Settings
	context  model.ContextID
	logger   *slog.Logger
	meter    metric.Meter
	watch    bool

	ignore   *ignore.Matcher
	gate     *readiness.Gate
	contexts *contexts.Manager
	catalogs *catalog.Registry
	resolver *resolution.Service
	coord    *coordinator.Coordinator
	metrics  *telemetry.Metrics

	// lifecycle serializes Start, Rescan and Stop.
	lifecycle sync.Mutex
	backlog   metric.Registration

	mu        sync.RWMutex
	watcher   *watcher.Watcher
	started   bool
	stopped   bool
	startedAt time.Time

	// afterScan runs inside Start once the initial scan has been published,
	// before the gate is released.
	afterScan func()
}

// New validates s and builds every component. Nothing touches the file
// system until Start.
func New(s settings.Settings, opts ...Option) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	matcher, err := ignore.New(s.Ignore...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	e := &Engine{
		settings: s,
		context:  model.ContextID(s.Context),
		logger:   slog.Default(),
		meter:    otel.Meter("overlay"),
		watch:    true,
		ignore:   matcher,
		gate:     readiness.NewGate(true),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.metrics, err = telemetry.NewMetrics(e.meter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	root := model.NormalizePath(s.ProjectRoot)
	ctxID := e.context
	e.contexts = contexts.New(root,
		contexts.WithResolver(func(string) model.ContextID { return ctxID }),
		contexts.WithIgnore(matcher),
		contexts.WithLogger(e.logger),
	)
	e.catalogs = catalog.NewRegistry(
		catalog.WithExtension(s.Extension),
		catalog.WithIgnore(matcher, root),
		catalog.WithLogger(e.logger),
	)
	e.resolver = resolution.New(resolution.WithLogger(e.logger))

	e.coord, err = coordinator.New(coordinator.Config{
		Contexts:  e.contexts,
		Catalogs:  e.catalogs,
		Resolver:  e.resolver,
		Gate:      e.gate,
		Debounce:  s.Debounce,
		Immediate: s.Immediate,
		Extension: s.Extension,
		Metrics:   e.metrics,
		Logger:    e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return e, nil
}

// Start starts the watcher, performs the initial scan and publishes the
// initial resolution. The readiness gate is held for the whole startup, so
// changes the watcher sees while the scan runs are stashed and flushed once
// it is released.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.isStarted() {
		return ErrAlreadyStarted
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerEngine, "Engine.Start",
		trace.WithAttributes(attribute.String("project_root", e.settings.ProjectRoot)),
	)
	defer span.End()

	release := e.gate.Hold()
	defer release()

	start := time.Now()
	if e.watch {
		w, err := watcher.New(e.settings.ProjectRoot, e.coord.Submit, &watcher.Options{
			Ignore: e.ignore,
			Logger: e.logger,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("%w: %w", ErrStart, err)
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			telemetry.RecordError(span, err)
			return fmt.Errorf("%w: %w", ErrStart, err)
		}
		e.mu.Lock()
		e.watcher = w
		e.mu.Unlock()
	}

	if err := e.reindex(ctx); err != nil {
		e.stopWatcher()
		telemetry.RecordError(span, err)
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	if e.afterScan != nil {
		e.afterScan()
	}

	reg, err := e.metrics.RegisterBacklogSize(e.meter, func() int64 { return int64(e.coord.BacklogSize()) })
	if err != nil {
		e.logger.Warn("backlog gauge not registered", slog.String("error", err.Error()))
	}
	e.backlog = reg

	e.mu.Lock()
	e.started = true
	e.startedAt = time.Now()
	e.mu.Unlock()

	telemetry.SetSpanOK(span)
	e.logger.Info("overlay engine started",
		slog.String("project_root", e.settings.ProjectRoot),
		slog.String("context", string(e.context)),
		slog.Bool("watching", e.watch),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Rescan re-reads all configuration and rebuilds every catalog. The gate
// is held meanwhile, as during Start.
func (e *Engine) Rescan(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if !e.isRunning() {
		return ErrNotStarted
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerEngine, "Engine.Rescan")
	defer span.End()

	release := e.gate.Hold()
	defer release()

	if err := e.reindex(ctx); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetSpanOK(span)
	return nil
}

// reindex rescans configuration and bootstraps every known context.
// Caller holds e.lifecycle.
func (e *Engine) reindex(ctx context.Context) error {
	diff, err := e.contexts.FullRescan(ctx)
	if err != nil {
		return err
	}
	for _, ctxID := range e.contexts.Contexts() {
		if _, changed := diff[ctxID]; changed {
			continue
		}
		if roots, ok := e.contexts.Effective(ctxID); ok {
			diff[ctxID] = roots
		}
	}
	return e.coord.Bootstrap(ctx, diff)
}

// Stop stops the watcher and the coordinator. Pending changes are dropped.
// A stopped engine cannot be restarted.
func (e *Engine) Stop() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if !e.isRunning() {
		return nil
	}

	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.stopWatcher()
	e.coord.Close()

	var err error
	if e.backlog != nil {
		err = e.backlog.Unregister()
		e.backlog = nil
	}
	e.logger.Info("overlay engine stopped")
	return err
}

func (e *Engine) stopWatcher() {
	e.mu.Lock()
	w := e.watcher
	e.watcher = nil
	e.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

func (e *Engine) isStarted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

func (e *Engine) isRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started && !e.stopped
}

// Context returns the configured context.
func (e *Engine) Context() model.ContextID {
	return e.context
}

// Settings returns the settings the engine was built with.
func (e *Engine) Settings() settings.Settings {
	return e.settings
}

// Gate returns the readiness gate; hosts call Set to report indexing.
func (e *Engine) Gate() *readiness.Gate {
	return e.gate
}

// Coordinator returns the update coordinator.
func (e *Engine) Coordinator() *coordinator.Coordinator {
	return e.coord
}

// Submit feeds a change batch to the coordinator, as the watcher does.
func (e *Engine) Submit(batch []model.ChangeEvent) {
	e.coord.Submit(batch)
}

// Flush processes all pending and stashed changes now.
func (e *Engine) Flush() {
	e.coord.FlushNow()
}

// Resolve returns the effective file for (ctxID, kind, name). An empty
// ctxID selects the configured context.
func (e *Engine) Resolve(ctxID model.ContextID, kind model.Kind, name model.LogicalName) (model.File, bool) {
	return e.resolver.Effective(model.ResolutionKey{Context: e.orDefault(ctxID), Kind: kind, Name: name})
}

// Candidates returns every candidate for (ctxID, kind, name), best first.
func (e *Engine) Candidates(ctxID model.ContextID, kind model.Kind, name model.LogicalName) []model.Candidate {
	cat, ok := e.catalogs.Get(e.orDefault(ctxID))
	if !ok {
		return nil
	}
	return cat.Candidates(kind, name)
}

// Names returns the logical names known for kind, sorted.
func (e *Engine) Names(ctxID model.ContextID, kind model.Kind) []model.LogicalName {
	cat, ok := e.catalogs.Get(e.orDefault(ctxID))
	if !ok {
		return nil
	}
	return cat.LogicalNames(kind)
}

// Roots returns the effective root set of ctxID.
func (e *Engine) Roots(ctxID model.ContextID) (model.RootPathSet, bool) {
	return e.contexts.Effective(e.orDefault(ctxID))
}

// Sources returns the configuration files contributing to ctxID.
func (e *Engine) Sources(ctxID model.ContextID) []contexts.Source {
	return e.contexts.Sources(e.orDefault(ctxID))
}

// Stats returns catalog statistics for every context with a catalog.
func (e *Engine) Stats() []catalog.Stats {
	var out []catalog.Stats
	for _, ctxID := range e.catalogs.Contexts() {
		if cat, ok := e.catalogs.Get(ctxID); ok {
			out = append(out, cat.Stats())
		}
	}
	return out
}

// Status reports readiness and coordinator state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	var dropped int
	watching := e.watcher != nil && e.watcher.IsWatching()
	if e.watcher != nil {
		dropped = e.watcher.Dropped()
	}
	startedAt := e.startedAt
	e.mu.RUnlock()

	return Status{
		Ready:     e.gate.IsReady(),
		State:     e.coord.State().String(),
		Runs:      e.coord.RunCount(),
		Relevant:  e.coord.LastRunHadRelevantChanges(),
		Backlog:   e.coord.BacklogSize(),
		Contexts:  e.contexts.Contexts(),
		Watching:  watching,
		Dropped:   dropped,
		StartedAt: startedAt,
	}
}

// Subscribe registers fn for every published resolution diff.
func (e *Engine) Subscribe(fn func(model.ResolutionDiff)) string {
	return e.resolver.Subscribe(fn)
}

// Unsubscribe removes a resolution subscription.
func (e *Engine) Unsubscribe(id string) bool {
	return e.resolver.Unsubscribe(id)
}

func (e *Engine) orDefault(ctxID model.ContextID) model.ContextID {
	if ctxID == "" {
		return e.context
	}
	return ctxID
}
