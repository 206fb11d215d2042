// Package exemption holds time-bounded bypass authorizations, keyed by id
// with a secondary namespace index. Resource-specific exemptions are
// single-use; namespace-wide ones stay reusable until they expire.
package exemption

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidInput is returned by Create for a non-positive duration, an
// empty namespace, or a duration that would expire at or before creation.
var ErrInvalidInput = errors.New("exemption: invalid input")

// ErrNotFound is returned by Get for an unknown or already-expired id, and
// by Delete for an id that is unknown or has already been evicted.
var ErrNotFound = errors.New("exemption: not found")

// Exemption is a single time-bounded authorization to bypass an active
// freeze for one namespace, optionally scoped to one resource name.
type Exemption struct {
	ID              string
	Namespace       string
	ResourceName    string // empty means namespace-wide
	DurationMinutes int32
	Reason          string
	ApprovedBy      string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	Used            bool

	// Owner identifies the FreezeExemption CRD that created this entry
	// (its namespaced name), so a reconciler restarting after a crash can
	// re-adopt a rehydrated exemption instead of creating a duplicate.
	// Empty for exemptions created without a CRD owner.
	Owner string
}

// Store is safe for concurrent use. A single RWMutex guards both the
// primary map and the namespace index; Matches takes the write lock
// because it may flip Used.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*Exemption
	byNS    map[string]map[string]struct{}
	nowFunc func() time.Time

	// persistHook mirrors a created or newly-Used exemption to the optional
	// crash-recovery store, the same deliberately-decoupled hook shape as
	// history.Recorder.SetPersistHook (exemption cannot import persistence
	// either, since persistence already imports exemption for record
	// conversion).
	persistHook func(Exemption)
}

// SetPersistHook installs fn to be called with the current state of an
// exemption whenever Create adds one or Matches marks one Used. Passing nil
// disables mirroring.
func (s *Store) SetPersistHook(fn func(Exemption)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistHook = fn
}

// NewStore returns an empty exemption store. nowFunc defaults to time.Now
// when nil; tests may inject a fixed clock.
func NewStore(nowFunc func() time.Time) *Store {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Store{
		byID:    make(map[string]*Exemption),
		byNS:    make(map[string]map[string]struct{}),
		nowFunc: nowFunc,
	}
}

// Create validates and stores a new exemption, assigning it a fresh id.
func (s *Store) Create(namespace, resourceName string, durationMinutes int32, reason, approvedBy string) (*Exemption, error) {
	return s.CreateOwned(namespace, resourceName, durationMinutes, reason, approvedBy, "")
}

// CreateOwned is Create with an Owner tag attached, used by
// FreezeExemptionReconciler so a rehydrated entry can later be matched back
// to the CRD that owns it via FindByOwner.
func (s *Store) CreateOwned(namespace, resourceName string, durationMinutes int32, reason, approvedBy, owner string) (*Exemption, error) {
	if namespace == "" || durationMinutes <= 0 {
		return nil, ErrInvalidInput
	}
	now := s.nowFunc()
	expiresAt := now.Add(time.Duration(durationMinutes) * time.Minute)
	if !expiresAt.After(now) {
		return nil, ErrInvalidInput
	}

	e := &Exemption{
		ID:              uuid.NewString(),
		Namespace:       namespace,
		ResourceName:    resourceName,
		DurationMinutes: durationMinutes,
		Reason:          reason,
		ApprovedBy:      approvedBy,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
		Owner:           owner,
	}

	s.mu.Lock()
	s.byID[e.ID] = e
	if s.byNS[namespace] == nil {
		s.byNS[namespace] = make(map[string]struct{})
	}
	s.byNS[namespace][e.ID] = struct{}{}
	hook := s.persistHook
	cp := *e
	s.mu.Unlock()

	if hook != nil {
		hook(cp)
	}
	return &cp, nil
}

// FindByOwner returns the non-expired exemption tagged with owner, if any,
// so a reconciler can re-adopt an exemption restored from persistence
// before falling back to creating a new one.
func (s *Store) FindByOwner(owner string, now time.Time) *Exemption {
	if owner == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.byID {
		if e.Owner == owner && now.Before(e.ExpiresAt) {
			cp := *e
			return &cp
		}
	}
	return nil
}

// Get returns the exemption by id, evicting it first if expired.
func (s *Store) Get(id string) (*Exemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.nowFunc().Before(e.ExpiresAt) {
		s.evictLocked(e)
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// List returns all stored exemptions, evicting expired ones along the way.
// When activeOnly is true, used single-resource exemptions are omitted too.
func (s *Store) List(activeOnly bool) []*Exemption {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	out := make([]*Exemption, 0, len(s.byID))
	for id, e := range s.byID {
		if !now.Before(e.ExpiresAt) {
			s.evictLockedByID(id)
			continue
		}
		if activeOnly && e.Used && e.ResourceName != "" {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// Delete removes the exemption by id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.evictLocked(e)
	return nil
}

// Matches returns the first non-expired exemption covering namespace and,
// if resourceName is non-empty, either namespace-wide or matching it
// exactly. A matched specific-resource exemption is marked Used and will
// not be returned again (single-use); namespace-wide exemptions remain
// reusable until ExpiresAt.
func (s *Store) Matches(namespace, resourceName string, now time.Time) *Exemption {
	s.mu.Lock()

	ids := s.byNS[namespace]
	for id := range ids {
		e, ok := s.byID[id]
		if !ok {
			continue
		}
		if !now.Before(e.ExpiresAt) {
			s.evictLockedByID(id)
			continue
		}
		if e.ResourceName != "" {
			if e.ResourceName != resourceName || e.Used {
				continue
			}
			e.Used = true
			cp := *e
			hook := s.persistHook
			s.mu.Unlock()
			if hook != nil {
				hook(cp)
			}
			return &cp
		}
		cp := *e
		s.mu.Unlock()
		return &cp
	}
	s.mu.Unlock()
	return nil
}

// Restore reinserts an exemption loaded from persistence verbatim,
// preserving its original ID, CreatedAt and Used state. Callers must filter
// out already-expired exemptions before calling Restore; it does not
// validate ExpiresAt against now.
func (s *Store) Restore(e Exemption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := e
	s.byID[cp.ID] = &cp
	if s.byNS[cp.Namespace] == nil {
		s.byNS[cp.Namespace] = make(map[string]struct{})
	}
	s.byNS[cp.Namespace][cp.ID] = struct{}{}
}

// Sweep proactively evicts every exemption expired as of now, for periodic
// callers (the config watcher's reconcile ticker) that want bounded memory
// without waiting on query-time lazy eviction.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.byID {
		if !now.Before(e.ExpiresAt) {
			s.evictLockedByID(id)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of non-expired exemptions as of now.
func (s *Store) Count(now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.byID {
		if now.Before(e.ExpiresAt) {
			n++
		}
	}
	return n
}

func (s *Store) evictLocked(e *Exemption) {
	s.evictLockedByID(e.ID)
}

func (s *Store) evictLockedByID(id string) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if set, ok := s.byNS[e.Namespace]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.byNS, e.Namespace)
		}
	}
}
