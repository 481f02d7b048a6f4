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
	"time"

	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/catalog"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/contexts"
	"github.com/CreateNothing/Typo3AccessLinter-sub003/services/overlay/model"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeNotReady       = "NOT_READY"
	CodeInternal       = "INTERNAL"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code"`
}

// HealthResponse is the response for GET /v1/overlay/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// LookupRequest selects one logical name.
type LookupRequest struct {
	// Kind is template, layout or partial. Required.
	Kind string `form:"kind" binding:"required"`

	// Name is the logical name, e.g. "Page/Show". Required.
	Name string `form:"name" binding:"required"`

	// Context defaults to the configured context.
	Context string `form:"context" binding:"omitempty,max=128"`
}

// ResolveResponse is the response for GET /v1/overlay/resolve.
type ResolveResponse struct {
	Context model.ContextID   `json:"context"`
	Kind    model.Kind        `json:"kind"`
	Name    model.LogicalName `json:"name"`
	File    model.File        `json:"file"`
}

// CandidatesResponse is the response for GET /v1/overlay/candidates.
type CandidatesResponse struct {
	Context    model.ContextID   `json:"context"`
	Kind       model.Kind        `json:"kind"`
	Name       model.LogicalName `json:"name"`
	Candidates []model.Candidate `json:"candidates"`
}

// NamesRequest is the query for GET /v1/overlay/names.
type NamesRequest struct {
	Kind    string `form:"kind" binding:"required"`
	Context string `form:"context" binding:"omitempty,max=128"`
}

// NamesResponse is the response for GET /v1/overlay/names.
type NamesResponse struct {
	Context model.ContextID     `json:"context"`
	Kind    model.Kind          `json:"kind"`
	Names   []model.LogicalName `json:"names"`
}

// RootsRequest is the query for GET /v1/overlay/roots.
type RootsRequest struct {
	Context string `form:"context" binding:"omitempty,max=128"`
}

// RootsResponse is the response for GET /v1/overlay/roots.
type RootsResponse struct {
	Context model.ContextID   `json:"context"`
	Roots   model.RootPathSet `json:"roots"`
	Sources []contexts.Source `json:"sources"`
}

// StatsResponse is the response for GET /v1/overlay/stats.
type StatsResponse struct {
	Catalogs []catalog.Stats `json:"catalogs"`
	Runs     int             `json:"runs"`
	Backlog  int             `json:"backlog"`
	State    string          `json:"state"`

	// Dropped counts watcher notifications lost to a full buffer.
	Dropped int `json:"dropped_notifications"`
}

// FlushResponse is the response for POST /v1/overlay/flush.
type FlushResponse struct {
	Runs     int           `json:"runs"`
	Relevant bool          `json:"relevant"`
	Duration time.Duration `json:"duration_ns"`
}
