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

package configwatcher

import (
	"context"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	kubefreezerv1alpha1 "github.com/kubefreezer/kubefreezer/api/v1alpha1"
	"github.com/kubefreezer/kubefreezer/internal/freezeschedule"
	"github.com/kubefreezer/kubefreezer/internal/history"
	"github.com/kubefreezer/kubefreezer/internal/metrics"
)

// FreezeScheduleReconciler reconciles FreezeSchedule objects into the
// schedule engine.
type FreezeScheduleReconciler struct {
	client.Client
	Scheme  *runtime.Scheme
	Engine  *freezeschedule.Engine
	History *history.Recorder

	mu       sync.Mutex
	lastHash map[string]string // schedule name -> structural hash of last-installed Schedule
}

// +kubebuilder:rbac:groups=kubefreezer.io,resources=freezeschedules,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=kubefreezer.io,resources=freezeschedules/status,verbs=get;update;patch

// Reconcile upserts or removes one schedule by name.
func (r *FreezeScheduleReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	fs := &kubefreezerv1alpha1.FreezeSchedule{}
	if err := r.Get(ctx, req.NamespacedName, fs); err != nil {
		if client.IgnoreNotFound(err) == nil {
			r.Engine.Remove(req.Name)
			r.forgetHash(req.Name)
			r.record(history.ScheduleDeleted, req.Name)
			metrics.SetSchedulesActive(r.Engine.Count())
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	sched, err := freezeschedule.NewSchedule(
		req.Name,
		fs.Spec.Message,
		fs.Spec.Namespaces,
		timePtr(fs.Spec.Start),
		timePtr(fs.Spec.End),
		fs.Spec.Cron,
		fs.Spec.Timezone,
	)
	if err != nil {
		if r.History != nil {
			r.History.Append(history.Event{Type: history.ConfigInvalid, Reason: err.Error(), ResourceName: req.Name})
			r.History.LogThrottled(logger, "rejecting invalid FreezeSchedule", "name", req.Name, "error", err.Error())
		}
		fs.Status.Valid = false
		fs.Status.InvalidReason = err.Error()
		if uerr := r.Status().Update(ctx, fs); uerr != nil {
			return ctrl.Result{}, uerr
		}
		return ctrl.Result{}, nil
	}

	if r.install(req.Name, sched) {
		r.record(history.ScheduleCreated, req.Name)
		metrics.SetSchedulesActive(r.Engine.Count())
		metrics.RecordConfigReload("FreezeSchedule")
	}

	fs.Status.Valid = true
	fs.Status.InvalidReason = ""
	if err := r.Status().Update(ctx, fs); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{}, nil
}

// install upserts sched into the engine only if its structural hash differs
// from the last one installed under this name, the same idempotence guard
// FreezeConfigReconciler.install uses: controller-runtime re-triggers this
// Reconcile on the Status().Update call a few lines below, so without this
// check every reconcile of an unchanged, valid schedule would re-emit a
// SCHEDULE_CREATED history event and metric bump forever.
func (r *FreezeScheduleReconciler) install(name string, sched *freezeschedule.Schedule) bool {
	hash := structuralHash(scheduleHashInput(sched))

	r.mu.Lock()
	if r.lastHash == nil {
		r.lastHash = make(map[string]string)
	}
	if r.lastHash[name] == hash {
		r.mu.Unlock()
		return false
	}
	r.lastHash[name] = hash
	r.mu.Unlock()

	r.Engine.Upsert(sched)
	return true
}

// scheduleHashInput renders sched's content by value so structuralHash's
// %#v doesn't hash Start/End's pointer addresses (which differ on every
// parse of identical content and would make the hash never match).
func scheduleHashInput(sched *freezeschedule.Schedule) any {
	var start, end time.Time
	if sched.Start != nil {
		start = *sched.Start
	}
	if sched.End != nil {
		end = *sched.End
	}
	return struct {
		Name, Message, Cron, Timezone string
		Namespaces                    map[string]struct{}
		Kind                          freezeschedule.Kind
		Start, End                    time.Time
	}{sched.Name, sched.Message, sched.Cron, sched.Timezone, sched.Namespaces, sched.Kind, start, end}
}

func (r *FreezeScheduleReconciler) forgetHash(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastHash, name)
}

func (r *FreezeScheduleReconciler) record(t history.EventType, name string) {
	if r.History == nil {
		return
	}
	r.History.Append(history.Event{Type: t, Reason: name})
}

func timePtr(mt *metav1.Time) *time.Time {
	if mt == nil {
		return nil
	}
	t := mt.Time
	return &t
}

// SetupWithManager sets up the controller with the Manager.
func (r *FreezeScheduleReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&kubefreezerv1alpha1.FreezeSchedule{}).
		Named("freezeschedule").
		Complete(r)
}
