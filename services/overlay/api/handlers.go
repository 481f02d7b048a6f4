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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/pkg/validation"
	overlay "github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/catalog"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/contexts"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// Service is the engine surface the handlers use. It is implemented by
// *overlay.Engine.
type Service interface {
	Context() model.ContextID
	Resolve(ctxID model.ContextID, kind model.Kind, name model.LogicalName) (model.File, bool)
	Candidates(ctxID model.ContextID, kind model.Kind, name model.LogicalName) []model.Candidate
	Names(ctxID model.ContextID, kind model.Kind) []model.LogicalName
	Roots(ctxID model.ContextID) (model.RootPathSet, bool)
	Sources(ctxID model.ContextID) []contexts.Source
	Stats() []catalog.Stats
	Status() overlay.Status
	Flush()
	Rescan(ctx context.Context) error
	Subscribe(fn func(model.ResolutionDiff)) string
	Unsubscribe(id string) bool
}

// eventBuffer bounds the per-connection queue of undelivered diffs.
const eventBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handlers serves the overlay HTTP API.
type Handlers struct {
	svc    Service
	logger *slog.Logger
}

// NewHandlers creates handlers for svc. A nil logger uses slog.Default().
func NewHandlers(svc Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// HandleHealth handles GET /v1/overlay/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleReady handles GET /v1/overlay/ready.
//
// Response:
//
//	200 OK: overlay.Status (Ready=true)
//	503 Service Unavailable: overlay.Status (Ready=false), e.g. during a rescan
func (h *Handlers) HandleReady(c *gin.Context) {
	status := h.svc.Status()
	if !status.Ready {
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// HandleResolve handles GET /v1/overlay/resolve.
//
// Response:
//
//	200 OK: ResolveResponse
//	400 Bad Request: missing or invalid kind/name
//	404 Not Found: no effective file
func (h *Handlers) HandleResolve(c *gin.Context) {
	logger := h.requestLogger(c, "HandleResolve")

	ctxID, kind, name, ok := h.bindLookup(c, logger)
	if !ok {
		return
	}
	f, found := h.svc.Resolve(ctxID, kind, name)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no effective file for " + kind.String() + " " + string(name),
			Code:  CodeNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, ResolveResponse{Context: ctxID, Kind: kind, Name: name, File: f})
}

// HandleCandidates handles GET /v1/overlay/candidates.
func (h *Handlers) HandleCandidates(c *gin.Context) {
	logger := h.requestLogger(c, "HandleCandidates")

	ctxID, kind, name, ok := h.bindLookup(c, logger)
	if !ok {
		return
	}
	cands := h.svc.Candidates(ctxID, kind, name)
	if len(cands) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no candidates for " + kind.String() + " " + string(name),
			Code:  CodeNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, CandidatesResponse{Context: ctxID, Kind: kind, Name: name, Candidates: cands})
}

// HandleNames handles GET /v1/overlay/names.
func (h *Handlers) HandleNames(c *gin.Context) {
	logger := h.requestLogger(c, "HandleNames")

	var req NamesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Warn("invalid query parameters", slog.String("error", err.Error()))
		badRequest(c, "kind is required")
		return
	}
	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	ctxID := h.contextOrDefault(req.Context)
	names := h.svc.Names(ctxID, kind)
	if names == nil {
		names = []model.LogicalName{}
	}
	c.JSON(http.StatusOK, NamesResponse{Context: ctxID, Kind: kind, Names: names})
}

// HandleRoots handles GET /v1/overlay/roots.
func (h *Handlers) HandleRoots(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRoots")

	var req RootsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Warn("invalid query parameters", slog.String("error", err.Error()))
		badRequest(c, "context is invalid")
		return
	}

	ctxID := h.contextOrDefault(req.Context)
	roots, ok := h.svc.Roots(ctxID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown context " + string(ctxID), Code: CodeNotFound})
		return
	}
	sources := h.svc.Sources(ctxID)
	if sources == nil {
		sources = []contexts.Source{}
	}
	c.JSON(http.StatusOK, RootsResponse{Context: ctxID, Roots: roots, Sources: sources})
}

// HandleStats handles GET /v1/overlay/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	status := h.svc.Status()
	stats := h.svc.Stats()
	if stats == nil {
		stats = []catalog.Stats{}
	}
	c.JSON(http.StatusOK, StatsResponse{
		Catalogs: stats,
		Runs:     status.Runs,
		Backlog:  status.Backlog,
		State:    status.State,
		Dropped:  status.Dropped,
	})
}

// HandleFlush handles POST /v1/overlay/flush. Pending and stashed changes
// are processed before the response is written.
func (h *Handlers) HandleFlush(c *gin.Context) {
	logger := h.requestLogger(c, "HandleFlush")

	start := time.Now()
	h.svc.Flush()
	status := h.svc.Status()

	logger.Info("manual flush", slog.Int("runs", status.Runs), slog.Bool("relevant", status.Relevant))
	c.JSON(http.StatusOK, FlushResponse{
		Runs:     status.Runs,
		Relevant: status.Relevant,
		Duration: time.Since(start),
	})
}

// HandleRescan handles POST /v1/overlay/rescan.
func (h *Handlers) HandleRescan(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRescan")

	if err := h.svc.Rescan(c.Request.Context()); err != nil {
		if errors.Is(err, overlay.ErrNotStarted) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: CodeNotReady})
			return
		}
		logger.Error("rescan failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal})
		return
	}
	c.JSON(http.StatusOK, h.svc.Status())
}

// HandleEvents handles GET /v1/overlay/events. The connection is upgraded
// to a websocket that receives every published ResolutionDiff as JSON.
// Diffs are dropped for a client that falls eventBuffer diffs behind.
func (h *Handlers) HandleEvents(c *gin.Context) {
	logger := h.requestLogger(c, "HandleEvents")

	diffs := make(chan model.ResolutionDiff, eventBuffer)
	subID := h.svc.Subscribe(func(d model.ResolutionDiff) {
		select {
		case diffs <- d:
		default:
			logger.Warn("event client too slow, diff dropped", slog.Int("changes", len(d)))
		}
	})
	defer h.svc.Unsubscribe(subID)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()
	logger.Info("event client connected")

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case d := <-diffs:
			if err := ws.WriteJSON(d); err != nil {
				logger.Info("event client write failed", slog.String("error", err.Error()))
				return
			}
		case <-closed:
			logger.Info("event client disconnected")
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// bindLookup parses a LookupRequest. It writes a 400 response and returns
// false on failure.
func (h *Handlers) bindLookup(c *gin.Context, logger *slog.Logger) (model.ContextID, model.Kind, model.LogicalName, bool) {
	var req LookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Warn("invalid query parameters", slog.String("error", err.Error()))
		badRequest(c, "kind and name are required")
		return "", 0, "", false
	}
	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		badRequest(c, err.Error())
		return "", 0, "", false
	}
	name, err := validation.SanitizeLogicalName(req.Name)
	if err != nil {
		badRequest(c, err.Error())
		return "", 0, "", false
	}
	return h.contextOrDefault(req.Context), kind, model.LogicalName(name), true
}

func (h *Handlers) contextOrDefault(ctx string) model.ContextID {
	if ctx == "" {
		return h.svc.Context()
	}
	return model.ContextID(ctx)
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler),
	)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidRequest})
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
