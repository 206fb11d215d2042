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

	kubefreezerv1alpha1 "github.com/kubefreezer/kubefreezer/api/v1alpha1"
	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/history"
	"github.com/kubefreezer/kubefreezer/internal/metrics"
)

// FreezeExemptionReconciler reconciles FreezeExemption objects into the
// exemption store. The store, not the CRD, is the authoritative
// record of Used/expiry state; the reconciler reads its own writes back to
// mirror that state onto status for operator visibility.
type FreezeExemptionReconciler struct {
	client.Client
	Scheme  *runtime.Scheme
	Store   *exemption.Store
	History *history.Recorder

	mu      sync.Mutex
	byOwner map[string]string // req.NamespacedName.String() -> exemption.ID
}

// +kubebuilder:rbac:groups=kubefreezer.io,resources=freezeexemptions,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=kubefreezer.io,resources=freezeexemptions/status,verbs=get;update;patch

// Reconcile creates the exemption in the store on first sight of the
// object and mirrors store state back onto status on every reconcile.
func (r *FreezeExemptionReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	r.mu.Lock()
	if r.byOwner == nil {
		r.byOwner = make(map[string]string)
	}
	r.mu.Unlock()

	r.Store.Sweep(time.Now())

	key := req.NamespacedName.String()

	fe := &kubefreezerv1alpha1.FreezeExemption{}
	if err := r.Get(ctx, req.NamespacedName, fe); err != nil {
		if client.IgnoreNotFound(err) == nil {
			r.mu.Lock()
			if id, ok := r.byOwner[key]; ok {
				_ = r.Store.Delete(id)
				delete(r.byOwner, key)
			}
			r.mu.Unlock()
			r.record(history.ExemptionDeleted, key)
			metrics.SetExemptionsActive(r.Store.Count(time.Now()))
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	r.mu.Lock()
	id, known := r.byOwner[key]
	r.mu.Unlock()

	var ex *exemption.Exemption
	if !known {
		if adopted := r.Store.FindByOwner(key, time.Now()); adopted != nil {
			// A restart repopulated the store from persistence before this
			// reconciler's in-memory byOwner map existed; re-adopt the
			// restored entry instead of creating a duplicate for the same
			// FreezeExemption object.
			r.mu.Lock()
			r.byOwner[key] = adopted.ID
			r.mu.Unlock()
			ex = adopted
		} else {
			created, err := r.Store.CreateOwned(fe.Spec.Namespace, fe.Spec.ResourceName, fe.Spec.DurationMinutes, fe.Spec.Reason, fe.Spec.ApprovedBy, key)
			if err != nil {
				return ctrl.Result{}, err
			}
			r.mu.Lock()
			r.byOwner[key] = created.ID
			r.mu.Unlock()
			ex = created
			r.record(history.ExemptionCreated, key)
			metrics.SetExemptionsActive(r.Store.Count(time.Now()))
			metrics.RecordConfigReload("FreezeExemption")
		}
	} else {
		got, err := r.Store.Get(id)
		if err != nil {
			// Expired/evicted since creation; reflect that once on status.
			if !fe.Status.Expired {
				fe.Status.Expired = true
				if uerr := r.Status().Update(ctx, fe); uerr != nil {
					return ctrl.Result{}, uerr
				}
			}
			return ctrl.Result{}, nil
		}
		ex = got
	}

	created := metav1.NewTime(ex.CreatedAt)
	expires := metav1.NewTime(ex.ExpiresAt)
	fe.Status.CreatedAt = &created
	fe.Status.ExpiresAt = &expires
	fe.Status.Used = ex.Used
	fe.Status.Expired = !time.Now().Before(ex.ExpiresAt)
	if err := r.Status().Update(ctx, fe); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{RequeueAfter: time.Minute}, nil
}

func (r *FreezeExemptionReconciler) record(t history.EventType, reason string) {
	if r.History == nil {
		return
	}
	r.History.Append(history.Event{Type: t, Reason: reason})
}

// SetupWithManager sets up the controller with the Manager.
func (r *FreezeExemptionReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&kubefreezerv1alpha1.FreezeExemption{}).
		Named("freezeexemption").
		Complete(r)
}
