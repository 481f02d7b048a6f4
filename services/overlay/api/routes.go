// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the overlay engine over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/telemetry"
)

// RegisterRoutes registers the /overlay endpoints on rg.
//
// Endpoints:
//
//	GET  /v1/overlay/health     - Liveness
//	GET  /v1/overlay/ready      - Readiness, 503 while indexing
//	GET  /v1/overlay/resolve    - Effective file for kind+name
//	GET  /v1/overlay/candidates - All candidates, best first
//	GET  /v1/overlay/names      - Logical names of a kind
//	GET  /v1/overlay/roots      - Effective roots and contributing files
//	GET  /v1/overlay/stats      - Catalog and coordinator counters
//	POST /v1/overlay/flush      - Process pending changes now
//	POST /v1/overlay/rescan     - Full configuration rescan
//	GET  /v1/overlay/events     - Websocket stream of resolution diffs
//
// Example:
//
//	v1 := router.Group("/v1")
//	api.RegisterRoutes(v1, api.NewHandlers(engine, logger))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	overlay := rg.Group("/overlay")
	{
		overlay.GET("/health", handlers.HandleHealth)
		overlay.GET("/ready", handlers.HandleReady)

		overlay.GET("/resolve", handlers.HandleResolve)
		overlay.GET("/candidates", handlers.HandleCandidates)
		overlay.GET("/names", handlers.HandleNames)
		overlay.GET("/roots", handlers.HandleRoots)
		overlay.GET("/stats", handlers.HandleStats)

		overlay.POST("/flush", handlers.HandleFlush)
		overlay.POST("/rescan", handlers.HandleRescan)

		overlay.GET("/events", handlers.HandleEvents)
	}
}

// NewRouter builds a gin engine with tracing middleware, the overlay
// routes under /v1 and, when the Prometheus exporter is active, metrics
// at /metrics.
func NewRouter(svc Service, logger *slog.Logger, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc, logger))

	if metrics := telemetry.MetricsHandler(); metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no route " + c.Request.URL.Path, Code: CodeNotFound})
	})
	return router
}
