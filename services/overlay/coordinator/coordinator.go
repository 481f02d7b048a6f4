// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinator turns change-event batches into ordered update runs.
//
// A run re-parses changed configuration, rebuilds the catalogs of contexts
// whose roots changed, applies implementation changes to the remaining
// catalogs, and finally recomputes resolution for every context. Batches
// are debounced, and held in a backlog while the host is not ready.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/catalog"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/classify"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/resolution"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/telemetry"
)

// DefaultDebounce is the debounce window used when Config.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// State is the coordinator's scheduling state.
type State int

const (
	// StateIdle means nothing is pending.
	StateIdle State = iota

	// StateBatching means events wait for the debounce window.
	StateBatching

	// StateStashed means events wait in the backlog for a ready signal.
	StateStashed

	// StateFlushing means a run is in progress.
	StateFlushing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBatching:
		return "batching"
	case StateStashed:
		return "stashed"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// ContextSource applies configuration changes. It is implemented by
// *contexts.Manager.
type ContextSource interface {
	ApplyChanges(ctx context.Context, paths []string) model.ContextDiff
}

// Resolver recomputes published resolution. It is implemented by
// *resolution.Service.
type Resolver interface {
	Recompute(ctxID model.ContextID, source resolution.Source) model.ResolutionDiff
}

// Readiness reports host readiness. It is implemented by *readiness.Gate.
type Readiness interface {
	IsReady() bool
	Subscribe(fn func(ready bool)) string
	Unsubscribe(id string) bool
}

// Config configures a Coordinator.
type Config struct {
	// Contexts is the context manager (required).
	Contexts ContextSource

	// Catalogs holds one catalog per context (required).
	Catalogs *catalog.Registry

	// Resolver is the resolution service (required).
	Resolver Resolver

	// Gate reports host readiness (required).
	Gate Readiness

	// Debounce is the quiet period before a batch is processed.
	// Default: DefaultDebounce.
	Debounce time.Duration

	// Immediate processes every relevant batch without debouncing.
	Immediate bool

	// Extension is the implementation file extension. Default: ".html".
	Extension string

	// Metrics records run metrics. Optional.
	Metrics *telemetry.Metrics

	// Logger for run logs. Default: slog.Default().
	Logger *slog.Logger
}

// Coordinator schedules update runs.
//
// Thread Safety: Coordinator is safe for concurrent use. Runs are totally
// ordered.
type Coordinator struct {
	contexts ContextSource
	catalogs *catalog.Registry
	resolver   Resolver
	gate       Readiness
	classifier classify.Classifier
	debounce   time.Duration
	metrics    *telemetry.Metrics
	logger     *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	gateSub string
	wg      sync.WaitGroup

	mu             sync.Mutex
	immediate      bool
	pending        []model.ChangeEvent
	timer          *time.Timer
	gen            uint64
	backlog        *workset
	flushScheduled bool
	running        bool
	closed         bool

	// runMu serializes runs; known is guarded by it.
	runMu sync.Mutex
	known map[model.ContextID]struct{}

	runs         atomic.Int64
	lastRelevant atomic.Bool
}

// New creates a coordinator and subscribes it to ready edges of cfg.Gate.
func New(cfg Config) (*Coordinator, error) {
	switch {
	case cfg.Contexts == nil:
		return nil, fmt.Errorf("%w: contexts", ErrMissingComponent)
	case cfg.Catalogs == nil:
		return nil, fmt.Errorf("%w: catalogs", ErrMissingComponent)
	case cfg.Resolver == nil:
		return nil, fmt.Errorf("%w: resolver", ErrMissingComponent)
	case cfg.Gate == nil:
		return nil, fmt.Errorf("%w: gate", ErrMissingComponent)
	case cfg.Debounce < 0:
		return nil, ErrInvalidDebounce
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	classifier := classify.New(cfg.Extension)
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		contexts:   cfg.Contexts,
		catalogs:   cfg.Catalogs,
		resolver:   cfg.Resolver,
		gate:       cfg.Gate,
		classifier: classifier,
		debounce:   cfg.Debounce,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With(slog.String("component", "coordinator")),
		ctx:        ctx,
		cancel:     cancel,
		immediate:  cfg.Immediate,
		backlog:    newWorkset(classifier),
		known:      make(map[model.ContextID]struct{}),
	}
	c.gateSub = cfg.Gate.Subscribe(func(ready bool) {
		if ready {
			c.OnReady()
		}
	})
	return c, nil
}

// Bootstrap builds the catalogs of every context in diff and publishes the
// initial resolution. It is not counted as a run.
func (c *Coordinator) Bootstrap(ctx context.Context, diff model.ContextDiff) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	for ctxID, roots := range diff {
		if err := c.rebuild(ctx, ctxID, roots); err != nil {
			return err
		}
	}
	c.recomputeAll()
	return nil
}

// Submit accepts one change batch. Irrelevant events are dropped; a batch
// with no relevant event has no effect. Otherwise the debounce window is
// restarted, or the batch is dispatched directly in immediate mode.
func (c *Coordinator) Submit(batch []model.ChangeEvent) {
	relevant := c.classifier.Filter(batch)
	if len(relevant) == 0 {
		return
	}
	c.countEvents(relevant)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.immediate {
		c.mu.Unlock()
		c.dispatch(relevant, "immediate")
		return
	}

	c.pending = append(c.pending, relevant...)
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.windowElapsed(gen) })
	c.mu.Unlock()
}

// windowElapsed runs when the debounce timer of generation gen fires. A
// timer superseded by a newer batch does nothing.
func (c *Coordinator) windowElapsed(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	events := c.pending
	c.pending = nil
	c.timer = nil
	c.mu.Unlock()

	c.dispatch(events, "debounce")
}

// dispatch processes events now if the host is ready, otherwise moves them
// to the backlog.
func (c *Coordinator) dispatch(events []model.ChangeEvent, trigger string) {
	if len(events) == 0 {
		return
	}
	w := newWorkset(c.classifier)
	w.addAll(events)
	if c.gate.IsReady() {
		c.run(c.ctx, w, trigger)
		return
	}

	c.mu.Lock()
	c.backlog.merge(w)
	size := c.backlog.len()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.StashedEventsTotal.Add(c.ctx, int64(len(events)))
	}
	c.logger.Debug("host not ready, events stashed",
		slog.Int("events", len(events)),
		slog.Int("backlog", size),
	)

	// The ready edge may have fired between the check and the stash.
	if c.gate.IsReady() {
		c.OnReady()
	}
}

// OnReady schedules one flush of the backlog. Further calls while a flush
// is scheduled are no-ops, as is a call with an empty backlog.
func (c *Coordinator) OnReady() {
	c.mu.Lock()
	if c.closed || c.flushScheduled || c.backlog.empty() {
		c.mu.Unlock()
		return
	}
	c.flushScheduled = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.flush()
	}()
}

func (c *Coordinator) flush() {
	c.mu.Lock()
	w := c.backlog
	c.backlog = newWorkset(c.classifier)
	c.flushScheduled = false
	c.mu.Unlock()

	if w.empty() {
		return
	}
	if c.metrics != nil {
		c.metrics.FlushesTotal.Add(c.ctx, 1)
	}
	c.run(c.ctx, w, "flush")
}

// FlushNow processes the backlog and any batch still in its debounce window
// synchronously, regardless of readiness. It always counts as a run.
func (c *Coordinator) FlushNow() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	w := c.backlog
	c.backlog = newWorkset(c.classifier)
	w.addAll(c.pending)
	c.pending = nil
	c.mu.Unlock()

	c.run(c.ctx, w, "manual")
}

// SetImmediate switches debouncing off or on. Switching it on does not
// affect a batch already waiting for its window.
func (c *Coordinator) SetImmediate(immediate bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.immediate = immediate
}

// RunCount returns the number of completed runs.
func (c *Coordinator) RunCount() int {
	return int(c.runs.Load())
}

// LastRunHadRelevantChanges reports whether the last run processed at
// least one change.
func (c *Coordinator) LastRunHadRelevantChanges() bool {
	return c.lastRelevant.Load()
}

// State returns the current scheduling state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.running:
		return StateFlushing
	case len(c.pending) > 0:
		return StateBatching
	case !c.backlog.empty():
		return StateStashed
	default:
		return StateIdle
	}
}

// BacklogSize returns the number of deduplicated backlog entries.
func (c *Coordinator) BacklogSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backlog.len()
}

// Close stops the debounce timer and waits for an in-flight run. Pending
// and stashed work is dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.backlog = newWorkset(c.classifier)
	c.mu.Unlock()

	c.gate.Unsubscribe(c.gateSub)
	c.wg.Wait()

	c.runMu.Lock()
	c.cancel()
	c.runMu.Unlock()
}

// run processes w in dependency order: contexts, catalogs, resolution.
func (c *Coordinator) run(ctx context.Context, w *workset, trigger string) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.setRunning(true)
	defer c.setRunning(false)

	runID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerCoordinator, "Coordinator.run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("trigger", trigger),
			attribute.Int("config_paths", len(w.configOrder)),
			attribute.Int("impl_events", len(w.implOrder)),
		),
	)
	defer span.End()

	logger := telemetry.LoggerWithTrace(ctx, c.logger).With(
		slog.String("run_id", runID),
		slog.String("trigger", trigger),
	)
	start := time.Now()

	rebuilt := make(map[model.ContextID]bool)
	if paths := w.configPaths(); len(paths) > 0 {
		diff := c.contexts.ApplyChanges(ctx, paths)
		for ctxID, roots := range diff {
			if err := c.rebuild(ctx, ctxID, roots); err != nil {
				logger.Warn("catalog rebuild failed",
					slog.String("context", string(ctxID)),
					slog.String("error", err.Error()),
				)
				telemetry.RecordError(span, err, attribute.String("context", string(ctxID)))
			}
			rebuilt[ctxID] = true
		}
	}

	applied := 0
	for _, e := range w.implEvents() {
		for _, ctxID := range c.catalogs.Contexts() {
			if rebuilt[ctxID] {
				continue
			}
			if cat, ok := c.catalogs.Get(ctxID); ok && c.applyEvent(cat, e) {
				applied++
			}
		}
	}

	changes := c.recomputeAll()

	relevant := !w.empty()
	c.lastRelevant.Store(relevant)
	c.runs.Add(1)

	elapsed := time.Since(start)
	if c.metrics != nil {
		attrs := metric.WithAttributes(attribute.Bool(telemetry.AttrRelevant, relevant))
		c.metrics.RunsTotal.Add(ctx, 1, attrs)
		c.metrics.RunDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
	span.SetAttributes(
		attribute.Int("rebuilt_contexts", len(rebuilt)),
		attribute.Int("catalog_updates", applied),
		attribute.Int("resolution_changes", changes),
	)
	telemetry.SetSpanOK(span)

	logger.Info("update run complete",
		slog.Bool("relevant", relevant),
		slog.Int("rebuilt_contexts", len(rebuilt)),
		slog.Int("catalog_updates", applied),
		slog.Int("resolution_changes", changes),
		slog.Duration("duration", elapsed),
	)
}

// rebuild performs a full catalog build for one context. Caller holds runMu.
func (c *Coordinator) rebuild(ctx context.Context, ctxID model.ContextID, roots model.RootPathSet) error {
	start := time.Now()
	err := c.catalogs.Rebuild(ctx, ctxID, roots)
	if c.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
			c.metrics.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(telemetry.AttrComponent, "catalog")))
		}
		attrs := metric.WithAttributes(
			attribute.String(telemetry.AttrStatus, status),
			attribute.String(telemetry.AttrContext, string(ctxID)),
		)
		c.metrics.CatalogBuildsTotal.Add(ctx, 1, attrs)
		c.metrics.CatalogBuildDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	return err
}

// recomputeAll recomputes every context that has a catalog, plus every
// context published before whose catalog is gone. Caller holds runMu.
func (c *Coordinator) recomputeAll() int {
	current := make(map[model.ContextID]struct{})
	changes := 0
	for _, ctxID := range c.catalogs.Contexts() {
		cat, ok := c.catalogs.Get(ctxID)
		if !ok {
			continue
		}
		current[ctxID] = struct{}{}
		changes += c.recordChanges(c.resolver.Recompute(ctxID, cat))
	}
	for ctxID := range c.known {
		if _, ok := current[ctxID]; !ok {
			changes += c.recordChanges(c.resolver.Recompute(ctxID, emptySource{}))
		}
	}
	c.known = current
	return changes
}

func (c *Coordinator) recordChanges(diff model.ResolutionDiff) int {
	if c.metrics != nil {
		for _, ch := range diff {
			c.metrics.ResolutionChangesTotal.Add(c.ctx, 1,
				metric.WithAttributes(attribute.String(telemetry.AttrChangeType, ch.Type().String())))
		}
	}
	return len(diff)
}

func (c *Coordinator) countEvents(events []model.ChangeEvent) {
	if c.metrics == nil {
		return
	}
	for _, e := range events {
		class := c.classifier.ClassifyEvent(e).New
		c.metrics.EventsTotal.Add(c.ctx, 1, metric.WithAttributes(attribute.String(telemetry.AttrClass, class.String())))
	}
}

func (c *Coordinator) setRunning(running bool) {
	c.mu.Lock()
	c.running = running
	c.mu.Unlock()
}

// applyEvent applies one implementation event to cat. A move or rename is
// a removal of the old location, matched by path or by the file's identity,
// followed by an addition of the new one.
func (c *Coordinator) applyEvent(cat *catalog.Catalog, e model.ChangeEvent) bool {
	switch {
	case e.Dir:
		return cat.RemoveUnder(e.File.Path)
	case e.Type == model.EventDeleted:
		return cat.Remove(e.File)
	case e.Type == model.EventMoved, e.Type == model.EventRenamed:
		removed := cat.Remove(e.OldFile())
		added := c.classifier.Classify(e.File.Path) == classify.Implementation && cat.Add(e.File)
		return removed || added
	default:
		return cat.Add(e.File)
	}
}

// emptySource stands in for a context whose catalog was dropped.
type emptySource struct{}

func (emptySource) Heads() map[model.ResolutionKey]model.File { return nil }
