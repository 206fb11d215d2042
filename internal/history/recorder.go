// Package history implements the bounded, append-only event FIFO: a
// single mutex around a fixed-capacity ring, with a monotonic sequence
// counter to break same-millisecond ties on list.
package history

import (
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// EventType classifies a history event.
type EventType string

const (
	FreezeEnabled             EventType = "FREEZE_ENABLED"
	FreezeDisabled            EventType = "FREEZE_DISABLED"
	RequestDenied             EventType = "REQUEST_DENIED"
	RequestBypassedAnnotation EventType = "REQUEST_BYPASSED_ANNOTATION"
	RequestBypassedUser       EventType = "REQUEST_BYPASSED_USER"
	RequestBypassedNamespace  EventType = "REQUEST_BYPASSED_NAMESPACE"
	RequestBypassedExemption  EventType = "REQUEST_BYPASSED_EXEMPTION"
	ExemptionCreated          EventType = "EXEMPTION_CREATED"
	ExemptionDeleted          EventType = "EXEMPTION_DELETED"
	ScheduleCreated           EventType = "SCHEDULE_CREATED"
	ScheduleDeleted           EventType = "SCHEDULE_DELETED"
	ConfigInvalid             EventType = "CONFIG_INVALID"
	EvaluatorError            EventType = "EVALUATOR_ERROR"
)

// Event is one append-only history record.
type Event struct {
	ID           string
	Timestamp    time.Time
	Seq          uint64
	Type         EventType
	Reason       string
	TriggeredBy  string
	Namespace    string
	ResourceName string
}

// Recorder is a fixed-capacity ring buffer of Events, safe for concurrent
// use. Append is O(1) amortized; List returns most-recent-first.
type Recorder struct {
	mu       sync.Mutex
	buf      []Event
	capacity int
	next     int // index to write next
	size     int // number of valid entries
	seq      uint64

	// logLimiter throttles the noisy log line that usually accompanies a
	// CONFIG_INVALID/EVALUATOR_ERROR append during sustained failure, the
	// same rate.Limiter pattern internal/alerting/dispatcher.go uses to cap
	// repeated alert dispatch attempts. It never throttles the Append
	// itself — every occurrence still lands in history.
	logLimiter *rate.Limiter

	// persistHook, when set, mirrors every appended event to the optional
	// crash-recovery store (internal/persistence). It is called outside the
	// lock and its error is the caller's concern, not Append's: a failed
	// mirror must never block or drop the in-memory event.
	persistHook func(Event)
}

// SetPersistHook installs fn to be called with every event Append records,
// after it has been assigned an id/seq/timestamp. Passing nil disables
// mirroring. Used to wire the optional persistence store without
// internal/history importing it directly (persistence already imports
// history for its record conversions, so the reverse import would cycle).
func (r *Recorder) SetPersistHook(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistHook = fn
}

// NewRecorder returns a Recorder bounded at capacity events. capacity <= 0
// falls back to the default of 1000.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Recorder{
		buf:        make([]Event, capacity),
		capacity:   capacity,
		logLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// LogThrottled logs msg via logger at most once per rate window, used by
// callers recording CONFIG_INVALID/EVALUATOR_ERROR events so a sustained
// failure doesn't flood logs while every occurrence still reaches history
// via Append.
func (r *Recorder) LogThrottled(logger logr.Logger, msg string, keysAndValues ...interface{}) {
	if r.logLimiter.Allow() {
		logger.Info(msg, keysAndValues...)
	}
}

// Append records a new event, assigning it an id, sequence number, and
// timestamp if one wasn't already set, evicting the oldest entry if the
// ring is full.
func (r *Recorder) Append(e Event) Event {
	r.mu.Lock()

	r.seq++
	e.Seq = r.seq
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	r.buf[r.next] = e
	r.next = (r.next + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
	hook := r.persistHook
	r.mu.Unlock()

	if hook != nil {
		hook(e)
	}
	return e
}

// List returns up to limit most-recent events, newest first. limit <= 0
// means unbounded (return everything stored).
func (r *Recorder) List(limit int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > r.size {
		limit = r.size
	}
	out := make([]Event, 0, limit)
	idx := r.next - 1
	for i := 0; i < limit; i++ {
		if idx < 0 {
			idx = r.capacity - 1
		}
		out = append(out, r.buf[idx])
		idx--
	}
	return out
}

// Len returns the number of events currently stored.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the ring's fixed capacity, used by callers rehydrating from
// persistence to bound how far back they need to read.
func (r *Recorder) Cap() int {
	return r.capacity
}
