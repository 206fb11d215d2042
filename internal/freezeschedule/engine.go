// Package freezeschedule owns the set of active freeze schedules and
// answers whether a freeze is in effect for a given instant and namespace,
// the schedule-engine half of the policy evaluator's dependency graph.
package freezeschedule

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kubefreezer/kubefreezer/internal/cronexpr"
)

// Kind distinguishes the three accepted activation-rule shapes for a
// Schedule, the tagged union called for in the redesign of the original
// ad-hoc start/end/cron field combination.
type Kind int

const (
	// Absolute schedules are active for a fixed [Start, End) instant range.
	Absolute Kind = iota
	// Recurring schedules are active whenever the cron expression fires.
	Recurring
	// Windowed schedules require both: active only inside [Start, End) and
	// only during the minute the cron expression fires.
	Windowed
)

func (k Kind) String() string {
	switch k {
	case Absolute:
		return "Absolute"
	case Recurring:
		return "Recurring"
	case Windowed:
		return "Windowed"
	default:
		return "Invalid"
	}
}

// Schedule is one named freeze window.
type Schedule struct {
	Name       string
	Message    string
	Namespaces map[string]struct{} // nil/empty means all namespaces
	Kind       Kind
	Start, End *time.Time
	Cron       string
	Timezone   string
}

// AppliesToNamespace reports whether the schedule covers ns.
func (s *Schedule) AppliesToNamespace(ns string) bool {
	if len(s.Namespaces) == 0 {
		return true
	}
	_, ok := s.Namespaces[ns]
	return ok
}

// NewSchedule validates and classifies a schedule from its raw fields,
// rejecting invalid combinations (neither start/end nor cron, malformed
// cron, end not after start) at construction time rather than at IsActive
// time.
func NewSchedule(name, message string, namespaces []string, start, end *time.Time, cronExpr, timezone string) (*Schedule, error) {
	if name == "" {
		return nil, fmt.Errorf("freezeschedule: name is required")
	}
	hasWindow := start != nil && end != nil
	hasCron := cronExpr != ""

	if !hasWindow && !hasCron {
		return nil, fmt.Errorf("freezeschedule %q: must set either start/end or cron", name)
	}
	if hasWindow && !end.After(*start) {
		return nil, fmt.Errorf("freezeschedule %q: end must be after start", name)
	}
	if hasCron {
		if err := cronexpr.Parse(cronExpr); err != nil {
			return nil, fmt.Errorf("freezeschedule %q: %w", name, err)
		}
	}
	if timezone == "" {
		timezone = "UTC"
	} else if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("freezeschedule %q: unknown timezone %q", name, timezone)
	}

	kind := Absolute
	switch {
	case hasWindow && hasCron:
		kind = Windowed
	case hasCron:
		kind = Recurring
	}

	var nsSet map[string]struct{}
	if len(namespaces) > 0 {
		nsSet = make(map[string]struct{}, len(namespaces))
		for _, ns := range namespaces {
			nsSet[ns] = struct{}{}
		}
	}

	return &Schedule{
		Name:       name,
		Message:    message,
		Namespaces: nsSet,
		Kind:       kind,
		Start:      start,
		End:        end,
		Cron:       cronExpr,
		Timezone:   timezone,
	}, nil
}

// isActive applies the activation rule for this schedule's Kind.
func (s *Schedule) isActive(now time.Time) (bool, error) {
	switch s.Kind {
	case Absolute:
		return !now.Before(*s.Start) && now.Before(*s.End), nil
	case Recurring:
		return cronexpr.Matches(s.Cron, now, s.Timezone)
	case Windowed:
		if now.Before(*s.Start) || !now.Before(*s.End) {
			return false, nil
		}
		return cronexpr.Matches(s.Cron, now, s.Timezone)
	default:
		return false, nil
	}
}

// Engine holds the current schedule set behind a read-copy-update pointer:
// Upsert/Remove copy-on-write a new map and swap the pointer atomically, so
// IsActive never blocks on a writer and always sees a coherent snapshot.
type Engine struct {
	schedules atomic.Pointer[map[string]*Schedule]
}

// NewEngine returns an Engine with an empty schedule set installed.
func NewEngine() *Engine {
	e := &Engine{}
	empty := make(map[string]*Schedule)
	e.schedules.Store(&empty)
	return e
}

// Upsert installs or replaces the schedule under its own name.
func (e *Engine) Upsert(s *Schedule) {
	for {
		old := e.schedules.Load()
		next := make(map[string]*Schedule, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[s.Name] = s
		if e.schedules.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Remove deletes the named schedule, if present.
func (e *Engine) Remove(name string) {
	for {
		old := e.schedules.Load()
		if _, ok := (*old)[name]; !ok {
			return
		}
		next := make(map[string]*Schedule, len(*old))
		for k, v := range *old {
			if k != name {
				next[k] = v
			}
		}
		if e.schedules.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Replace atomically swaps the whole schedule set, used by the config
// watcher to install a freshly parsed batch in one step.
func (e *Engine) Replace(schedules map[string]*Schedule) {
	snapshot := make(map[string]*Schedule, len(schedules))
	for k, v := range schedules {
		snapshot[k] = v
	}
	e.schedules.Store(&snapshot)
}

// Count returns the number of schedules currently installed.
func (e *Engine) Count() int {
	return len(*e.schedules.Load())
}

// Override is the synthetic schedule reported active when the config
// cache's manual FreezeEnabled flag is set.
type Override struct {
	Message string
	Until   *time.Time
}

// IsActive reports whether any schedule (or the manual override) is active
// at now for namespace, and which schedule names matched, in lexicographic
// order so message concatenation is deterministic.
func (e *Engine) IsActive(now time.Time, namespace string, override *Override) (active bool, message string, matched []string) {
	// activeMessages collects name -> message for every currently-active
	// schedule (including the synthetic "manual" override), so lexicographic
	// concatenation sorts the override alongside real schedules instead of
	// always leading.
	activeMessages := make(map[string]string)

	if override != nil {
		if override.Until == nil || now.Before(*override.Until) {
			active = true
			activeMessages["manual"] = override.Message
		}
	}

	snapshot := *e.schedules.Load()
	for name, s := range snapshot {
		if namespace != "" && !s.AppliesToNamespace(namespace) {
			continue
		}
		ok, err := s.isActive(now)
		if err != nil || !ok {
			continue
		}
		active = true
		activeMessages[name] = s.Message
	}

	names := make([]string, 0, len(activeMessages))
	for name := range activeMessages {
		names = append(names, name)
	}
	sort.Strings(names)

	var messages []string
	for _, name := range names {
		matched = append(matched, name)
		if msg := activeMessages[name]; msg != "" {
			messages = append(messages, msg)
		}
	}

	return active, strings.Join(messages, "; "), matched
}
