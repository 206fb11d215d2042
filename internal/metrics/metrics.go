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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// FreezeActive reports whether a freeze is currently in effect (1/0).
	FreezeActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kubefreezer_freeze_active",
			Help: "Whether a freeze is currently in effect (1) or not (0)",
		},
	)

	// DecisionsTotal tracks evaluator decisions by category and allow/deny.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubefreezer_decisions_total",
			Help: "Total number of admission decisions made",
		},
		[]string{"category", "allowed"},
	)

	// ExemptionsActive tracks the number of live (non-expired) exemptions.
	ExemptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kubefreezer_exemptions_active",
			Help: "Number of currently non-expired exemptions",
		},
	)

	// SchedulesActive tracks the number of schedules known to the engine.
	SchedulesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kubefreezer_schedules_active",
			Help: "Number of schedules known to the schedule engine",
		},
	)

	// ConfigReloadsTotal tracks successful config installs by kind.
	ConfigReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubefreezer_config_reloads_total",
			Help: "Total number of config objects successfully reconciled",
		},
		[]string{"kind"},
	)

	// EvaluatorErrorsTotal tracks internal evaluator errors.
	EvaluatorErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kubefreezer_evaluator_errors_total",
			Help: "Total number of internal evaluator errors",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		FreezeActive,
		DecisionsTotal,
		ExemptionsActive,
		SchedulesActive,
		ConfigReloadsTotal,
		EvaluatorErrorsTotal,
	)
}

// RecordDecision records one evaluator decision.
func RecordDecision(category string, allowed bool) {
	DecisionsTotal.WithLabelValues(category, boolLabel(allowed)).Inc()
}

// SetFreezeActive updates the freeze_active gauge.
func SetFreezeActive(active bool) {
	if active {
		FreezeActive.Set(1)
	} else {
		FreezeActive.Set(0)
	}
}

// SetExemptionsActive updates the exemptions_active gauge.
func SetExemptionsActive(n int) {
	ExemptionsActive.Set(float64(n))
}

// SetSchedulesActive updates the schedules_active gauge.
func SetSchedulesActive(n int) {
	SchedulesActive.Set(float64(n))
}

// RecordConfigReload records a successful reconcile of kind (FreezeConfig,
// FreezeSchedule, FreezeExemption).
func RecordConfigReload(kind string) {
	ConfigReloadsTotal.WithLabelValues(kind).Inc()
}

// RecordEvaluatorError records an internal evaluator error.
func RecordEvaluatorError() {
	EvaluatorErrorsTotal.Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
