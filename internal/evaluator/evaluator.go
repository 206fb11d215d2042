// Package evaluator implements the policy evaluator, the heart of
// the admission gate: it maps an admission request plus current policy
// state to an allow/deny decision. It records a history event for every
// bypass, denial and internal error; the kind/operation filter and the
// default no-freeze allow record no event.
package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/kubefreezer/kubefreezer/internal/clock"
	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/freezeschedule"
	"github.com/kubefreezer/kubefreezer/internal/history"
	"github.com/kubefreezer/kubefreezer/internal/policyconfig"
)

// Category is the decision classification recorded alongside allow/deny.
type Category string

const (
	NotMonitored     Category = "NOT_MONITORED"
	BypassAnnotation Category = "BYPASS_ANNOTATION"
	BypassUser       Category = "BYPASS_USER"
	BypassNamespace  Category = "BYPASS_NAMESPACE"
	BypassExemption  Category = "BYPASS_EXEMPTION"
	Frozen           Category = "FROZEN"
	NoFreeze         Category = "NO_FREEZE"
	InternalError    Category = "INTERNAL_ERROR"
)

// Operation mirrors the admission operations the evaluator inspects.
type Operation string

const (
	Create  Operation = "CREATE"
	Update  Operation = "UPDATE"
	Delete  Operation = "DELETE"
	Connect Operation = "CONNECT"
)

// AdmissionRequest is the evaluator's platform-agnostic input, produced by
// the admission adapter from the platform-native payload.
type AdmissionRequest struct {
	Kind         string
	Namespace    string
	ResourceName string
	User         string
	Groups       []string
	Annotations  map[string]string
	Operation    Operation
}

// Decision is the evaluator's output.
type Decision struct {
	Allow    bool
	Reason   string
	Category Category
}

// ExemptionMatcher is the slice of the exemption store the evaluator
// consumes. *exemption.Store satisfies it; tests substitute failing
// implementations to exercise the fail-closed rule.
type ExemptionMatcher interface {
	Matches(namespace, resourceName string, now time.Time) *exemption.Exemption
}

// Evaluator wires together the config cache, schedule engine, exemption
// store and history recorder to implement the 8-step algorithm.
type Evaluator struct {
	Config     *policyconfig.Cache
	Schedules  *freezeschedule.Engine
	Exemptions ExemptionMatcher
	History    *history.Recorder
	Clock      clock.Clock
	Logger     logr.Logger
}

// New constructs an Evaluator from its dependencies.
func New(cfg *policyconfig.Cache, schedules *freezeschedule.Engine, exemptions ExemptionMatcher, hist *history.Recorder, ck clock.Clock) *Evaluator {
	if ck == nil {
		ck = clock.RealClock{}
	}
	return &Evaluator{Config: cfg, Schedules: schedules, Exemptions: exemptions, History: hist, Clock: ck, Logger: logr.Discard()}
}

// Evaluate runs the ordered decision algorithm. It honors ctx's deadline: a
// context already done on entry reports INTERNAL_ERROR and applies the
// fail-closed rule. A panicking collaborator (an unavailable store, a
// corrupt snapshot) is recovered and routed through the same rule rather
// than escaping to the caller.
func (e *Evaluator) Evaluate(ctx context.Context, req AdmissionRequest) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = e.internalError(req, fmt.Sprintf("internal error: %v", r))
		}
	}()

	select {
	case <-ctx.Done():
		return e.internalError(req, "evaluator deadline exceeded")
	default:
	}

	cfg := e.Config.Load()

	// 1. Kind filter.
	if !cfg.IsMonitoredKind(req.Kind) {
		return Decision{Allow: true, Category: NotMonitored, Reason: "kind not monitored"}
	}

	// 2. Operation filter.
	if req.Operation != Create && req.Operation != Update {
		return Decision{Allow: true, Category: NotMonitored, Reason: "operation not inspected"}
	}

	// 3. Annotation bypass.
	if truthy(req.Annotations[cfg.BypassAnnotationKey]) {
		reason := req.Annotations[cfg.BypassReasonAnnotationKey]
		if reason == "" {
			reason = "emergency bypass annotation present"
		}
		d := Decision{Allow: true, Category: BypassAnnotation, Reason: reason}
		e.record(history.RequestBypassedAnnotation, d.Reason, req)
		return d
	}

	// 4. User allowlist.
	if cfg.IsAllowedUser(req.User, req.Groups) {
		d := Decision{Allow: true, Category: BypassUser, Reason: "user allowlisted"}
		e.record(history.RequestBypassedUser, d.Reason, req)
		return d
	}

	// 5. Namespace exemption (unconditional).
	if cfg.IsExemptNamespace(req.Namespace) {
		d := Decision{Allow: true, Category: BypassNamespace, Reason: "namespace exempt"}
		e.record(history.RequestBypassedNamespace, d.Reason, req)
		return d
	}

	// 6. Temporary exemption.
	now := e.Clock.Now()
	if ex := e.Exemptions.Matches(req.Namespace, req.ResourceName, now); ex != nil {
		reason := ex.Reason
		if reason == "" {
			reason = fmt.Sprintf("exempted by %s", ex.ID)
		}
		d := Decision{Allow: true, Category: BypassExemption, Reason: reason}
		e.record(history.RequestBypassedExemption, d.Reason, req)
		return d
	}

	// 7. Active freeze check.
	var override *freezeschedule.Override
	if cfg.FreezeEnabled {
		override = &freezeschedule.Override{Message: cfg.FreezeMessage}
		if cfg.FreezeUntilUnixNano != 0 {
			until := time.Unix(0, cfg.FreezeUntilUnixNano)
			override.Until = &until
		}
	}
	if active, message, matched := e.Schedules.IsActive(now, req.Namespace, override); active {
		if message == "" {
			message = strings.Join(matched, ", ")
		}
		d := Decision{Allow: false, Category: Frozen, Reason: message}
		e.record(history.RequestDenied, message, req)
		return d
	}

	// 8. Default.
	return Decision{Allow: true, Category: NoFreeze, Reason: "no freeze active"}
}

func (e *Evaluator) internalError(req AdmissionRequest, reason string) Decision {
	cfg := e.Config.Load()
	e.record(history.EvaluatorError, reason, req)
	if e.History != nil {
		e.History.LogThrottled(e.Logger, "evaluator internal error", "reason", reason, "namespace", req.Namespace, "resourceName", req.ResourceName)
	}
	return Decision{Allow: !cfg.FailClosed, Category: InternalError, Reason: reason}
}

func (e *Evaluator) record(t history.EventType, reason string, req AdmissionRequest) {
	if e.History == nil {
		return
	}
	e.History.Append(history.Event{
		Type:         t,
		Reason:       reason,
		TriggeredBy:  req.User,
		Namespace:    req.Namespace,
		ResourceName: req.ResourceName,
	})
}

func truthy(v string) bool {
	return strings.EqualFold(v, "true")
}
