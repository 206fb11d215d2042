package configwatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8stypes "k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	kubefreezerv1alpha1 "github.com/kubefreezer/kubefreezer/api/v1alpha1"
	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/history"
)

func newFreezeExemptionTestClient(objs ...client.Object) client.Client {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	_ = kubefreezerv1alpha1.AddToScheme(scheme)

	return fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...).
		WithStatusSubresource(&kubefreezerv1alpha1.FreezeExemption{}).
		Build()
}

func TestFreezeExemptionReconciler_CreatesOnFirstSight(t *testing.T) {
	fe := &kubefreezerv1alpha1.FreezeExemption{
		ObjectMeta: metav1.ObjectMeta{Name: "emergency-fix"},
		Spec: kubefreezerv1alpha1.FreezeExemptionSpec{
			Namespace:       "team-a",
			DurationMinutes: 30,
			Reason:          "hotfix",
			ApprovedBy:      "alice",
		},
	}
	fakeClient := newFreezeExemptionTestClient(fe)
	store := exemption.NewStore(nil)
	recorder := history.NewRecorder(10)

	r := &FreezeExemptionReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Store: store, History: recorder}

	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "emergency-fix"}}
	_, err := r.Reconcile(context.Background(), req)
	require.NoError(t, err)

	list := store.List(false)
	require.Len(t, list, 1)
	assert.Equal(t, "team-a", list[0].Namespace)

	var updated kubefreezerv1alpha1.FreezeExemption
	require.NoError(t, fakeClient.Get(context.Background(), req.NamespacedName, &updated))
	require.NotNil(t, updated.Status.CreatedAt)
	require.NotNil(t, updated.Status.ExpiresAt)
	assert.False(t, updated.Status.Used)
	assert.False(t, updated.Status.Expired)
}

func TestFreezeExemptionReconciler_ReconcileAgainDoesNotRecreate(t *testing.T) {
	fe := &kubefreezerv1alpha1.FreezeExemption{
		ObjectMeta: metav1.ObjectMeta{Name: "repeat"},
		Spec:       kubefreezerv1alpha1.FreezeExemptionSpec{Namespace: "team-a", DurationMinutes: 30},
	}
	fakeClient := newFreezeExemptionTestClient(fe)
	store := exemption.NewStore(nil)

	r := &FreezeExemptionReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Store: store}

	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "repeat"}}
	_, err := r.Reconcile(context.Background(), req)
	require.NoError(t, err)
	_, err = r.Reconcile(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, store.List(false), 1)
}

func TestFreezeExemptionReconciler_DeletesFromStoreOnRemoval(t *testing.T) {
	fakeClient := newFreezeExemptionTestClient()
	store := exemption.NewStore(nil)
	recorder := history.NewRecorder(10)

	r := &FreezeExemptionReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Store: store, History: recorder}
	r.byOwner = map[string]string{}

	created, err := store.Create("team-a", "", 30, "", "")
	require.NoError(t, err)
	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "vanished"}}
	r.byOwner[req.NamespacedName.String()] = created.ID

	_, err = r.Reconcile(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, store.List(false))
	events := recorder.List(0)
	require.Len(t, events, 1)
	assert.Equal(t, history.ExemptionDeleted, events[0].Type)
}

func TestFreezeExemptionReconciler_AdoptsRestoredExemptionInsteadOfDuplicating(t *testing.T) {
	fe := &kubefreezerv1alpha1.FreezeExemption{
		ObjectMeta: metav1.ObjectMeta{Name: "restored"},
		Spec:       kubefreezerv1alpha1.FreezeExemptionSpec{Namespace: "team-a", DurationMinutes: 30},
	}
	fakeClient := newFreezeExemptionTestClient(fe)
	store := exemption.NewStore(nil)
	recorder := history.NewRecorder(10)

	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "restored"}}

	// Simulate a restart: persistence rehydrated the store with this
	// exemption's owner tag set, but the reconciler's in-memory byOwner map
	// starts empty.
	restored, err := store.CreateOwned("team-a", "", 30, "pre-restart", "bob", req.NamespacedName.String())
	require.NoError(t, err)

	r := &FreezeExemptionReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Store: store, History: recorder}

	_, err = r.Reconcile(context.Background(), req)
	require.NoError(t, err)

	list := store.List(false)
	require.Len(t, list, 1, "reconcile must adopt the restored exemption, not create a second one")
	assert.Equal(t, restored.ID, list[0].ID)
	assert.Empty(t, recorder.List(0), "adopting a restored exemption is not a new creation")
}

func TestFreezeExemptionReconciler_SweepsExpiredOnEveryReconcile(t *testing.T) {
	fe := &kubefreezerv1alpha1.FreezeExemption{
		ObjectMeta: metav1.ObjectMeta{Name: "current"},
		Spec:       kubefreezerv1alpha1.FreezeExemptionSpec{Namespace: "team-b", DurationMinutes: 30},
	}
	fakeClient := newFreezeExemptionTestClient(fe)
	// The store's own clock runs two minutes behind the wall clock, so its
	// lazy eviction alone never drops the 1-minute exemption below; only
	// Reconcile's Sweep(time.Now()) can.
	past := time.Now().Add(-2 * time.Minute)
	store := exemption.NewStore(func() time.Time { return past })

	stale, err := store.Create("team-a", "", 1, "", "")
	require.NoError(t, err)

	r := &FreezeExemptionReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Store: store}

	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "current"}}
	_, err = r.Reconcile(context.Background(), req)
	require.NoError(t, err)

	_, err = store.Get(stale.ID)
	assert.ErrorIs(t, err, exemption.ErrNotFound, "reconcile must sweep the expired exemption")

	found := false
	for _, e := range store.List(false) {
		if e.Namespace == "team-b" {
			found = true
		}
	}
	assert.True(t, found)
}
