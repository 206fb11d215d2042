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
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/freezeschedule"
	"github.com/kubefreezer/kubefreezer/internal/history"
	"github.com/kubefreezer/kubefreezer/internal/policyconfig"
)

func TestServer_DefaultPort(t *testing.T) {
	s := newTestServer()
	assert.Equal(t, 8081, s.port)
}

func TestServer_WithOptions(t *testing.T) {
	cache := policyconfig.NewCache()
	s := NewServer(ServerOptions{
		Config:     cache,
		Schedules:  freezeschedule.NewEngine(),
		Exemptions: exemption.NewStore(nil),
		History:    history.NewRecorder(10),
		Port:       9999,
	})
	assert.Equal(t, 9999, s.port)
	assert.Same(t, cache, s.Config)
}

func TestServer_SetupRoutes(t *testing.T) {
	s := newTestServer()
	router := s.setupRoutes()

	paths := []string{
		"/healthz",
		"/api/v1/status",
		"/api/v1/history",
		"/api/v1/schedules",
		"/api/v1/exemptions",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "GET %s", path)
	}
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	s := newTestServer()
	router := s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	// Find an available port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	s := newTestServer()
	s.port = port

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start(ctx)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
	if assert.NoError(t, err) {
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestZerologMiddleware_NilLoggerPassesThrough(t *testing.T) {
	prev := logger
	logger = nil
	defer func() { logger = prev }()

	called := false
	handler := zerologMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
