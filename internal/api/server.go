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

// Package api is a read-only diagnostics HTTP surface, deliberately thin:
// it exposes what the evaluator's in-memory state currently looks like,
// with no create/update/delete semantics of its own (all mutation happens
// through the CRDs in internal/configwatcher).
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/freezeschedule"
	"github.com/kubefreezer/kubefreezer/internal/history"
	"github.com/kubefreezer/kubefreezer/internal/policyconfig"
)

// Version is the operator version (set at build time).
var Version = "dev"

var logger *zerolog.Logger

// SetLogger sets the zerolog logger used by the request-logging middleware.
func SetLogger(l *zerolog.Logger) {
	logger = l
}

// Server is the diagnostics REST API server, added to the manager as a
// Runnable so it starts and stops with the controller lifecycle.
type Server struct {
	Config     *policyconfig.Cache
	Schedules  *freezeschedule.Engine
	Exemptions *exemption.Store
	History    *history.Recorder
	Ready      func() bool

	startTime time.Time
	port      int
	server    *http.Server
}

// ServerOptions configures a new Server.
type ServerOptions struct {
	Config     *policyconfig.Cache
	Schedules  *freezeschedule.Engine
	Exemptions *exemption.Store
	History    *history.Recorder
	Ready      func() bool
	Port       int
}

// NewServer constructs a Server.
func NewServer(opts ServerOptions) *Server {
	if opts.Port == 0 {
		opts.Port = 8081
	}
	return &Server{
		Config:     opts.Config,
		Schedules:  opts.Schedules,
		Exemptions: opts.Exemptions,
		History:    opts.History,
		Ready:      opts.Ready,
		startTime:  time.Now(),
		port:       opts.Port,
	}
}

// Start implements manager.Runnable.
func (s *Server) Start(ctx context.Context) error {
	log := ctrl.Log.WithName("diagnostics-api")

	router := s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting diagnostics API server", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "diagnostics API server error")
		}
	}()

	<-ctx.Done()

	log.Info("shutting down diagnostics API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func zerologMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(zerologMiddleware)

	h := NewHandlers(s)

	r.Get("/healthz", h.GetHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/history", h.GetHistory)
		r.Get("/schedules", h.ListSchedules)
		r.Get("/exemptions", h.ListExemptions)
	})

	return r
}
