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

// Package configwatcher holds the three cluster-scoped reconcilers that
// parse FreezeConfig/FreezeSchedule/FreezeExemption objects and install
// them atomically into the policy cache, schedule engine and exemption
// store.
package configwatcher

import (
	"context"
	"strings"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	kubefreezerv1alpha1 "github.com/kubefreezer/kubefreezer/api/v1alpha1"
	"github.com/kubefreezer/kubefreezer/internal/admission"
	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/freezeschedule"
	"github.com/kubefreezer/kubefreezer/internal/history"
	"github.com/kubefreezer/kubefreezer/internal/metrics"
	"github.com/kubefreezer/kubefreezer/internal/policyconfig"
)

// defaultConfigName is the only FreezeConfig object name honored; other
// objects are ignored.
const defaultConfigName = "default"

// FreezeConfigReconciler reconciles the singleton FreezeConfig object into
// the policy cache.
type FreezeConfigReconciler struct {
	client.Client
	Scheme *runtime.Scheme
	Cache  *policyconfig.Cache
	// Engine and Exemptions are optional: when set, their live counts are
	// surfaced on FreezeConfigStatus so `kubectl get freezeconfig` reports
	// what the gate currently sees without a separate diagnostics call.
	Engine     *freezeschedule.Engine
	Exemptions *exemption.Store
	History    *history.Recorder
	Gate       *admission.Gate

	mu       sync.Mutex
	lastHash string
}

// +kubebuilder:rbac:groups=kubefreezer.io,resources=freezeconfigs,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=kubefreezer.io,resources=freezeconfigs/status,verbs=get;update;patch

// Reconcile installs the default FreezeConfig into the policy cache.
func (r *FreezeConfigReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	if req.Name != defaultConfigName {
		logger.V(1).Info("ignoring non-default FreezeConfig", "name", req.Name)
		return ctrl.Result{}, nil
	}

	fc := &kubefreezerv1alpha1.FreezeConfig{}
	if err := r.Get(ctx, req.NamespacedName, fc); err != nil {
		if client.IgnoreNotFound(err) == nil {
			r.install(policyconfig.Default(), "")
			r.Gate.Open()
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	cfg := fromSpec(&fc.Spec)
	hash := structuralHash(cfg)
	changed := r.install(cfg, hash)
	r.Gate.Open()
	metrics.RecordConfigReload("FreezeConfig")

	if changed {
		if cfg.FreezeEnabled {
			r.record(history.FreezeEnabled, "manual freeze enabled")
		} else {
			r.record(history.FreezeDisabled, "manual freeze disabled")
		}
	}

	active, reason := r.activeStatus(cfg)
	fc.Status.Active = active
	fc.Status.ActiveReason = reason
	metrics.SetFreezeActive(active)
	if r.Engine != nil {
		fc.Status.ObservedSchedules = int32(r.Engine.Count())
	}
	if r.Exemptions != nil {
		fc.Status.ObservedExemptions = int32(r.Exemptions.Count(time.Now()))
	}
	now := metav1.Now()
	fc.Status.LastReconcileTime = &now
	if err := r.Status().Update(ctx, fc); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{RequeueAfter: time.Minute}, nil
}

// activeStatus reports whether a freeze is in effect right now, mirroring
// the evaluator's step 7 (manual override, then schedule engine) so
// FreezeConfigStatus reflects the same truth an admission decision would,
// not just the manual-override flag. The engine is probed with an empty
// namespace, which skips per-schedule namespace scoping, so any active
// schedule (namespace-scoped ones included) flips this cluster-level summary.
func (r *FreezeConfigReconciler) activeStatus(cfg *policyconfig.Configuration) (bool, string) {
	var override *freezeschedule.Override
	if cfg.FreezeEnabled {
		override = &freezeschedule.Override{Message: cfg.FreezeMessage}
		if cfg.FreezeUntilUnixNano != 0 {
			until := time.Unix(0, cfg.FreezeUntilUnixNano)
			override.Until = &until
		}
	}
	if r.Engine == nil {
		if override == nil || (override.Until != nil && !time.Now().Before(*override.Until)) {
			return false, ""
		}
		return true, manualReason(cfg)
	}
	active, message, matched := r.Engine.IsActive(time.Now(), "", override)
	if !active {
		return false, ""
	}
	if message != "" {
		return true, message
	}
	if len(matched) > 0 {
		return true, strings.Join(matched, ", ")
	}
	return true, manualReason(cfg)
}

func manualReason(cfg *policyconfig.Configuration) string {
	if !cfg.FreezeEnabled {
		return ""
	}
	if cfg.FreezeMessage != "" {
		return cfg.FreezeMessage
	}
	return "manual"
}

// install swaps the cache if hash differs from the last installed hash,
// returning whether an actual change occurred.
func (r *FreezeConfigReconciler) install(cfg *policyconfig.Configuration, hash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hash != "" && hash == r.lastHash {
		return false
	}
	r.lastHash = hash
	r.Cache.Install(cfg)
	return true
}

func (r *FreezeConfigReconciler) record(t history.EventType, reason string) {
	if r.History == nil {
		return
	}
	r.History.Append(history.Event{Type: t, Reason: reason})
}

func fromSpec(spec *kubefreezerv1alpha1.FreezeConfigSpec) *policyconfig.Configuration {
	cfg := policyconfig.Default()
	cfg.FreezeEnabled = spec.FreezeEnabled
	if spec.FreezeUntil != nil {
		cfg.FreezeUntilUnixNano = spec.FreezeUntil.Time.UnixNano()
	}
	if spec.FreezeMessage != "" {
		cfg.FreezeMessage = spec.FreezeMessage
	}
	if spec.BypassAnnotationKey != "" {
		cfg.BypassAnnotationKey = spec.BypassAnnotationKey
	}
	if spec.BypassReasonAnnotationKey != "" {
		cfg.BypassReasonAnnotationKey = spec.BypassReasonAnnotationKey
	}
	if len(spec.BypassAllowedUsers) > 0 {
		cfg.BypassAllowedUsers = toSet(spec.BypassAllowedUsers)
	} else if spec.BypassAllowedUsersRaw != "" {
		cfg.BypassAllowedUsers = toSet(splitLines(spec.BypassAllowedUsersRaw))
	}
	if len(spec.BypassExemptNamespaces) > 0 {
		cfg.BypassExemptNamespaces = toSet(spec.BypassExemptNamespaces)
	} else if spec.BypassExemptNamespacesRaw != "" {
		cfg.BypassExemptNamespaces = toSet(splitLines(spec.BypassExemptNamespacesRaw))
	}
	if len(spec.MonitoredKinds) > 0 {
		cfg.MonitoredKinds = toSet(spec.MonitoredKinds)
	} else if spec.MonitoredKindsRaw != "" {
		cfg.MonitoredKinds = toSet(splitLines(spec.MonitoredKindsRaw))
	}
	if spec.FailClosed != nil {
		cfg.FailClosed = *spec.FailClosed
	}
	return cfg
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, i := range items {
		out[i] = struct{}{}
	}
	return out
}

// splitLines parses a newline-delimited escape-hatch string into a list,
// skipping blank lines so trailing newlines and blank-line padding don't
// produce empty entries.
func splitLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// SetupWithManager sets up the controller with the Manager.
func (r *FreezeConfigReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&kubefreezerv1alpha1.FreezeConfig{}).
		Named("freezeconfig").
		Complete(r)
}
