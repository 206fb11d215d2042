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

// Package persistence is the optional crash-recovery cache for the history
// recorder and exemption store: disabled by default, it exists so a
// restarted operator doesn't start with an empty history and no memory of
// live exemptions, not to keep an unbounded audit trail.
package persistence

import (
	"context"
	"time"

	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/history"
)

// Store defines the storage interface for the bounded history/exemption
// crash-recovery cache.
type Store interface {
	// Init initializes the store (creates tables, connections, etc.)
	Init() error

	// Close closes the store and releases resources
	Close() error

	// AppendEvent persists one history event.
	AppendEvent(ctx context.Context, e history.Event) error

	// ListEvents returns the most recent persisted events, newest first,
	// bounded by limit.
	ListEvents(ctx context.Context, limit int) ([]history.Event, error)

	// SaveExemption upserts an exemption record by ID.
	SaveExemption(ctx context.Context, e exemption.Exemption) error

	// ListExemptions returns persisted exemptions not yet expired as of now.
	ListExemptions(ctx context.Context, now time.Time) ([]exemption.Exemption, error)

	// Health checks if the store is healthy
	Health(ctx context.Context) error
}
