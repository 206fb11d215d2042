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
	"github.com/kubefreezer/kubefreezer/internal/freezeschedule"
	"github.com/kubefreezer/kubefreezer/internal/history"
)

func newFreezeScheduleTestClient(objs ...client.Object) client.Client {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	_ = kubefreezerv1alpha1.AddToScheme(scheme)

	return fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(objs...).
		WithStatusSubresource(&kubefreezerv1alpha1.FreezeSchedule{}).
		Build()
}

func TestFreezeScheduleReconciler_UpsertsValidSchedule(t *testing.T) {
	fs := &kubefreezerv1alpha1.FreezeSchedule{
		ObjectMeta: metav1.ObjectMeta{Name: "nightly"},
		Spec: kubefreezerv1alpha1.FreezeScheduleSpec{
			Cron:     "0 2 * * *",
			Timezone: "UTC",
			Message:  "nightly maintenance",
		},
	}
	fakeClient := newFreezeScheduleTestClient(fs)
	engine := freezeschedule.NewEngine()
	recorder := history.NewRecorder(10)

	r := &FreezeScheduleReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Engine: engine, History: recorder}

	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "nightly"}}
	_, err := r.Reconcile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.Count())

	var updated kubefreezerv1alpha1.FreezeSchedule
	require.NoError(t, fakeClient.Get(context.Background(), req.NamespacedName, &updated))
	assert.True(t, updated.Status.Valid)
	assert.Empty(t, updated.Status.InvalidReason)
}

func TestFreezeScheduleReconciler_RejectsInvalidCron(t *testing.T) {
	fs := &kubefreezerv1alpha1.FreezeSchedule{
		ObjectMeta: metav1.ObjectMeta{Name: "broken"},
		Spec:       kubefreezerv1alpha1.FreezeScheduleSpec{Cron: "not a cron"},
	}
	fakeClient := newFreezeScheduleTestClient(fs)
	engine := freezeschedule.NewEngine()
	recorder := history.NewRecorder(10)

	r := &FreezeScheduleReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Engine: engine, History: recorder}

	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "broken"}}
	_, err := r.Reconcile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, engine.Count())

	var updated kubefreezerv1alpha1.FreezeSchedule
	require.NoError(t, fakeClient.Get(context.Background(), req.NamespacedName, &updated))
	assert.False(t, updated.Status.Valid)
	assert.NotEmpty(t, updated.Status.InvalidReason)

	events := recorder.List(0)
	require.Len(t, events, 1)
	assert.Equal(t, history.ConfigInvalid, events[0].Type)
}

func TestFreezeScheduleReconciler_RemovesOnDelete(t *testing.T) {
	fakeClient := newFreezeScheduleTestClient()
	engine := freezeschedule.NewEngine()
	s, err := freezeschedule.NewSchedule("gone", "", nil, nil, nil, "0 0 * * *", "UTC")
	require.NoError(t, err)
	engine.Upsert(s)
	recorder := history.NewRecorder(10)

	r := &FreezeScheduleReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Engine: engine, History: recorder}

	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "gone"}}
	_, err = r.Reconcile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0, engine.Count())
	events := recorder.List(0)
	require.Len(t, events, 1)
	assert.Equal(t, history.ScheduleDeleted, events[0].Type)
}

func TestFreezeScheduleReconciler_WithWindow(t *testing.T) {
	start := metav1.NewTime(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	end := metav1.NewTime(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	fs := &kubefreezerv1alpha1.FreezeSchedule{
		ObjectMeta: metav1.ObjectMeta{Name: "march-maintenance"},
		Spec: kubefreezerv1alpha1.FreezeScheduleSpec{
			Start:    &start,
			End:      &end,
			Cron:     "0 2 * * *",
			Timezone: "UTC",
		},
	}
	fakeClient := newFreezeScheduleTestClient(fs)
	engine := freezeschedule.NewEngine()

	r := &FreezeScheduleReconciler{Client: fakeClient, Scheme: fakeClient.Scheme(), Engine: engine}

	req := ctrl.Request{NamespacedName: k8stypes.NamespacedName{Name: "march-maintenance"}}
	_, err := r.Reconcile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.Count())
}
