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

// FreezeExemptionSpec defines a time-bounded authorization to bypass an
// active freeze. The object is cluster-scoped so operators can grant an
// exemption without needing write access to the target namespace.
type FreezeExemptionSpec struct {
	// Namespace is the target namespace this exemption applies to
	// +kubebuilder:validation:Required
	Namespace string `json:"namespace"`

	// ResourceName restricts the exemption to one resource name; absent means namespace-wide
	// +optional
	ResourceName string `json:"resourceName,omitempty"`

	// DurationMinutes is how long the exemption is valid for from creation
	// +kubebuilder:validation:Minimum=1
	DurationMinutes int32 `json:"durationMinutes"`

	// Reason is a human-readable justification
	// +optional
	Reason string `json:"reason,omitempty"`

	// ApprovedBy identifies who approved the exemption
	// +optional
	ApprovedBy string `json:"approvedBy,omitempty"`
}

// FreezeExemptionStatus defines the observed state of FreezeExemption
type FreezeExemptionStatus struct {
	// CreatedAt is when the exemption was admitted into the store
	// +optional
	CreatedAt *metav1.Time `json:"createdAt,omitempty"`

	// ExpiresAt is CreatedAt + DurationMinutes
	// +optional
	ExpiresAt *metav1.Time `json:"expiresAt,omitempty"`

	// Used is true once a specific-resource exemption has authorized a request.
	// Namespace-wide exemptions remain reusable until ExpiresAt and this stays false.
	// +optional
	Used bool `json:"used"`

	// Expired mirrors whether the store has evicted this exemption
	// +optional
	Expired bool `json:"expired"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Cluster
// +kubebuilder:printcolumn:name="Namespace",type=string,JSONPath=`.spec.namespace`
// +kubebuilder:printcolumn:name="Resource",type=string,JSONPath=`.spec.resourceName`
// +kubebuilder:printcolumn:name="Used",type=boolean,JSONPath=`.status.used`
// +kubebuilder:printcolumn:name="Expires",type=date,JSONPath=`.status.expiresAt`

// FreezeExemption is the Schema for the freezeexemptions API.
type FreezeExemption struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   FreezeExemptionSpec   `json:"spec,omitempty"`
	Status FreezeExemptionStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// FreezeExemptionList contains a list of FreezeExemption.
type FreezeExemptionList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []FreezeExemption `json:"items"`
}

func init() {
	SchemeBuilder.Register(&FreezeExemption{}, &FreezeExemptionList{})
}
