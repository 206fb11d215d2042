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

// FreezeScheduleSpec defines a named freeze window. The object's
// metadata.name is the schedule's unique name.
type FreezeScheduleSpec struct {
	// Message overrides FreezeConfig.FreezeMessage for denials matching this schedule
	// +optional
	Message string `json:"message,omitempty"`

	// Namespaces restricts the schedule to these namespaces; empty means all
	// +optional
	Namespaces []string `json:"namespaces,omitempty"`

	// Start is the absolute window start (paired with End, or End+Cron for Windowed)
	// +optional
	Start *metav1.Time `json:"start,omitempty"`

	// End is the absolute window end; must be strictly after Start when both are set
	// +optional
	End *metav1.Time `json:"end,omitempty"`

	// Cron is a 5-field cron expression (minute hour dom month dow)
	// +optional
	Cron string `json:"cron,omitempty"`

	// Timezone is the IANA zone name used to interpret Cron (default: UTC)
	// +optional
	// +kubebuilder:default=UTC
	Timezone string `json:"timezone,omitempty"`
}

// FreezeScheduleStatus defines the observed state of FreezeSchedule
type FreezeScheduleStatus struct {
	// Valid is false when the spec combination is rejected by the schedule engine
	// +optional
	Valid bool `json:"valid"`

	// InvalidReason explains why Valid is false
	// +optional
	InvalidReason string `json:"invalidReason,omitempty"`

	// LastEvaluatedActive is whether this schedule was active at LastEvaluatedTime
	// +optional
	LastEvaluatedActive bool `json:"lastEvaluatedActive"`

	// LastEvaluatedTime is when the engine last evaluated this schedule
	// +optional
	LastEvaluatedTime *metav1.Time `json:"lastEvaluatedTime,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:printcolumn:name="Valid",type=boolean,JSONPath=`.status.valid`
// +kubebuilder:printcolumn:name="Active",type=boolean,JSONPath=`.status.lastEvaluatedActive`
// +kubebuilder:printcolumn:name="Cron",type=string,JSONPath=`.spec.cron`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// FreezeSchedule is the Schema for the freezeschedules API.
type FreezeSchedule struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   FreezeScheduleSpec   `json:"spec,omitempty"`
	Status FreezeScheduleStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// FreezeScheduleList contains a list of FreezeSchedule.
type FreezeScheduleList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []FreezeSchedule `json:"items"`
}

func init() {
	SchemeBuilder.Register(&FreezeSchedule{}, &FreezeScheduleList{})
}
