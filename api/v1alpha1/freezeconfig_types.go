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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// FreezeConfigSpec defines the desired state of FreezeConfig. Exactly one
// object named "default" is honored; others are ignored by the watcher.
type FreezeConfigSpec struct {
	// FreezeEnabled forces a freeze on regardless of any schedule (default: false)
	// +optional
	FreezeEnabled bool `json:"freezeEnabled,omitempty"`

	// FreezeUntil is the explicit end of a manual freeze started by FreezeEnabled.
	// Once past, the manual override self-clears.
	// +optional
	FreezeUntil *metav1.Time `json:"freezeUntil,omitempty"`

	// FreezeMessage is the default user-visible denial reason
	// +optional
	FreezeMessage string `json:"freezeMessage,omitempty"`

	// BypassAnnotationKey is the annotation whose truthy value bypasses the freeze
	// +optional
	// +kubebuilder:default="admission-controller.io/emergency-bypass"
	BypassAnnotationKey string `json:"bypassAnnotationKey,omitempty"`

	// BypassReasonAnnotationKey carries an operator-supplied bypass reason (not interpreted)
	// +optional
	// +kubebuilder:default="admission-controller.io/emergency-reason"
	BypassReasonAnnotationKey string `json:"bypassReasonAnnotationKey,omitempty"`

	// BypassAllowedUsers lists identities (users or groups) that always pass
	// +optional
	BypassAllowedUsers []string `json:"bypassAllowedUsers,omitempty"`

	// BypassAllowedUsersRaw is a newline-delimited escape hatch for
	// BypassAllowedUsers, for parity with the plain ConfigMap this CRD
	// replaces; ignored when BypassAllowedUsers is set.
	// +optional
	BypassAllowedUsersRaw string `json:"bypassAllowedUsersRaw,omitempty"`

	// BypassExemptNamespaces lists namespaces that are never frozen
	// +optional
	BypassExemptNamespaces []string `json:"bypassExemptNamespaces,omitempty"`

	// BypassExemptNamespacesRaw is a newline-delimited escape hatch for
	// BypassExemptNamespaces; ignored when BypassExemptNamespaces is set.
	// +optional
	BypassExemptNamespacesRaw string `json:"bypassExemptNamespacesRaw,omitempty"`

	// MonitoredKinds lists workload kinds the gate inspects; others pass untouched
	// +optional
	// +kubebuilder:default={"Deployment","StatefulSet","DaemonSet"}
	MonitoredKinds []string `json:"monitoredKinds,omitempty"`

	// MonitoredKindsRaw is a newline-delimited escape hatch for
	// MonitoredKinds; ignored when MonitoredKinds is set.
	// +optional
	MonitoredKindsRaw string `json:"monitoredKindsRaw,omitempty"`

	// FailClosed controls the behavior on evaluator internal error (default: true)
	// +optional
	// +kubebuilder:default=true
	FailClosed *bool `json:"failClosed,omitempty"`
}

// FreezeConfigStatus defines the observed state of FreezeConfig
type FreezeConfigStatus struct {
	// Active is whether a freeze is in effect as of the last reconcile
	// +optional
	Active bool `json:"active"`

	// ActiveReason explains why Active is true: the active schedules' messages
	// (their names when no message is set); for the manual override that is
	// FreezeMessage, or "manual" when FreezeMessage is empty
	// +optional
	ActiveReason string `json:"activeReason,omitempty"`

	// ObservedSchedules is the number of FreezeSchedule objects known to the engine
	ObservedSchedules int32 `json:"observedSchedules"`

	// ObservedExemptions is the number of live (non-expired) exemptions known to the store
	ObservedExemptions int32 `json:"observedExemptions"`

	// LastReconcileTime is when the watcher last installed this config
	// +optional
	LastReconcileTime *metav1.Time `json:"lastReconcileTime,omitempty"`

	// Conditions represent latest observations
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:printcolumn:name="Active",type=boolean,JSONPath=`.status.active`
// +kubebuilder:printcolumn:name="Reason",type=string,JSONPath=`.status.activeReason`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// FreezeConfig is the Schema for the freezeconfigs API.
type FreezeConfig struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   FreezeConfigSpec   `json:"spec,omitempty"`
	Status FreezeConfigStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// FreezeConfigList contains a list of FreezeConfig.
type FreezeConfigList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []FreezeConfig `json:"items"`
}

func init() {
	SchemeBuilder.Register(&FreezeConfig{}, &FreezeConfigList{})
}
