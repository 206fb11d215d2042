// Package admission implements the admission adapter: a stateless
// translation layer between the platform-native admission.Request and the
// policy evaluator's abstract AdmissionRequest/Decision types, following the
// decode/respond, fail-open-on-decode-error shape of a genuine admission
// webhook handler, adapted onto controller-runtime's admission.Handler
// interface instead of a raw net/http endpoint.
package admission

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/kubefreezer/kubefreezer/internal/evaluator"
	"github.com/kubefreezer/kubefreezer/internal/metrics"
)

// Gate gates traffic until the config watcher's first successful reconcile
// has fired, mirroring mgr.Elected()'s closed-channel pattern.
type Gate struct {
	ch chan struct{}
}

// NewGate returns a Gate that is not yet open.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Open marks the gate ready; safe to call more than once.
func (g *Gate) Open() {
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
}

// Ready reports whether the gate has been opened.
func (g *Gate) Ready() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// Handler adapts admission.Request/Response to the policy evaluator.
type Handler struct {
	Evaluator *evaluator.Evaluator
	Gate      *Gate

	// Deadline is the timeout put on each evaluation's context; the
	// evaluator checks it once, when Evaluate starts. It must stay well
	// under the platform's own admission webhook timeout.
	Deadline time.Duration
}

// NewHandler constructs a Handler. deadline <= 0 disables the per-call
// timeout and leaves only the incoming request context's deadline.
func NewHandler(eval *evaluator.Evaluator, gate *Gate, deadline time.Duration) *Handler {
	return &Handler{Evaluator: eval, Gate: gate, Deadline: deadline}
}

var _ admission.Handler = (*Handler)(nil)

// Handle implements admission.Handler. It never fails open on a malformed
// request body — controller-runtime has already decoded the envelope by
// the time Handle runs. Until the gate opens it denies every request
// outright, whatever config.fail_closed says, since an ungated freeze check
// would silently admit everything during startup; once open, an internal
// evaluator error is decided by config.fail_closed.
func (h *Handler) Handle(ctx context.Context, req admission.Request) admission.Response {
	if !h.Gate.Ready() {
		return admission.Denied("kubefreezer: initial policy load not yet complete")
	}

	if h.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Deadline)
		defer cancel()
	}

	ar := toAdmissionRequest(req)
	decision := h.Evaluator.Evaluate(ctx, ar)

	metrics.RecordDecision(string(decision.Category), decision.Allow)
	if decision.Category == evaluator.InternalError {
		metrics.RecordEvaluatorError()
	}

	if decision.Allow {
		return admission.Allowed(decision.Reason)
	}
	resp := admission.Denied(decision.Reason)
	resp.Result = &metav1.Status{
		Message: decision.Reason,
		Reason:  metav1.StatusReasonForbidden,
		Code:    http.StatusForbidden,
	}
	return resp
}

func toAdmissionRequest(req admission.Request) evaluator.AdmissionRequest {
	ar := evaluator.AdmissionRequest{
		Kind:         req.Kind.Kind,
		Namespace:    req.Namespace,
		ResourceName: req.Name,
		User:         req.UserInfo.Username,
		Groups:       req.UserInfo.Groups,
		Operation:    toOperation(req.Operation),
	}
	if obj := decodeAnnotations(req); obj != nil {
		ar.Annotations = obj
	}
	return ar
}

func toOperation(op admissionv1.Operation) evaluator.Operation {
	switch op {
	case admissionv1.Create:
		return evaluator.Create
	case admissionv1.Update:
		return evaluator.Update
	case admissionv1.Delete:
		return evaluator.Delete
	case admissionv1.Connect:
		return evaluator.Connect
	default:
		return evaluator.Operation(op)
	}
}

// decodeAnnotations pulls metadata.annotations out of the raw object without
// requiring a typed scheme-aware decoder, since the gate only ever inspects
// unstructured workload metadata.
func decodeAnnotations(req admission.Request) map[string]string {
	raw := req.Object.Raw
	if len(raw) == 0 {
		raw = req.OldObject.Raw
	}
	if len(raw) == 0 {
		return nil
	}
	var partial struct {
		Metadata struct {
			Annotations map[string]string `json:"annotations"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		return nil
	}
	return partial.Metadata.Annotations
}
