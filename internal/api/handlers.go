/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Handlers groups the diagnostics endpoint implementations.
type Handlers struct {
	s *Server
}

// NewHandlers binds handlers to the server's state.
func NewHandlers(s *Server) *Handlers {
	return &Handlers{s: s}
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// GetHealth reports liveness; readiness is reported separately via Ready.
func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(h.s.startTime).String(),
	})
}

// StatusResponse is the response for GET /api/v1/status.
type StatusResponse struct {
	Ready              bool   `json:"ready"`
	FreezeEnabled      bool   `json:"freezeEnabled"`
	FailClosed         bool   `json:"failClosed"`
	MonitoredKinds     []string `json:"monitoredKinds"`
	SchedulesInstalled int    `json:"schedulesInstalled"`
	ExemptionsActive   int    `json:"exemptionsActive"`
	HistoryLength      int    `json:"historyLength"`
}

// GetStatus summarizes the evaluator's current in-memory state.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.s.Config.Load()
	kinds := make([]string, 0, len(cfg.MonitoredKinds))
	for k := range cfg.MonitoredKinds {
		kinds = append(kinds, k)
	}

	ready := true
	if h.s.Ready != nil {
		ready = h.s.Ready()
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Ready:              ready,
		FreezeEnabled:      cfg.FreezeEnabled,
		FailClosed:         cfg.FailClosed,
		MonitoredKinds:     kinds,
		SchedulesInstalled: h.s.Schedules.Count(),
		ExemptionsActive:   h.s.Exemptions.Count(time.Now()),
		HistoryLength:      h.s.History.Len(),
	})
}

// GetHistory returns the most recent history events, newest first.
// Accepts an optional ?limit= query parameter.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.s.History.List(limit))
}

// ListSchedules reports how many schedules are installed, whether any is
// active right now, and the names of the active ones. The schedule engine
// only exposes activation queries, so this endpoint reports no full
// schedule bodies (those live on the
// FreezeSchedule CRDs themselves, which kubectl already serves).
func (h *Handlers) ListSchedules(w http.ResponseWriter, r *http.Request) {
	active, _, matched := h.s.Schedules.IsActive(time.Now(), "", nil)
	writeJSON(w, http.StatusOK, struct {
		Count           int      `json:"count"`
		AnyActive       bool     `json:"anyActive"`
		ActiveSchedules []string `json:"activeSchedules"`
	}{
		Count:           h.s.Schedules.Count(),
		AnyActive:       active,
		ActiveSchedules: matched,
	})
}

// ListExemptions returns the currently live (non-expired) exemptions.
func (h *Handlers) ListExemptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.s.Exemptions.List(true))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
