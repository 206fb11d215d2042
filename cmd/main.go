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

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/certwatcher"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/metrics/filters"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/webhook"

	kubefreezerv1alpha1 "github.com/kubefreezer/kubefreezer/api/v1alpha1"
	kfadmission "github.com/kubefreezer/kubefreezer/internal/admission"
	"github.com/kubefreezer/kubefreezer/internal/api"
	"github.com/kubefreezer/kubefreezer/internal/clock"
	"github.com/kubefreezer/kubefreezer/internal/config"
	"github.com/kubefreezer/kubefreezer/internal/configwatcher"
	"github.com/kubefreezer/kubefreezer/internal/evaluator"
	"github.com/kubefreezer/kubefreezer/internal/exemption"
	"github.com/kubefreezer/kubefreezer/internal/freezeschedule"
	"github.com/kubefreezer/kubefreezer/internal/history"
	"github.com/kubefreezer/kubefreezer/internal/persistence"
	"github.com/kubefreezer/kubefreezer/internal/policyconfig"
	// +kubebuilder:scaffold:imports
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")

	errGateNotReady = errors.New("admission gate not yet opened by initial FreezeConfig reconcile")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	utilruntime.Must(kubefreezerv1alpha1.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

// nolint:gocyclo
func main() {
	// Set up pflags
	flags := pflag.NewFlagSet("kubefreezer", pflag.ExitOnError)
	config.BindFlags(flags)

	// Parse flags
	if err := flags.Parse(os.Args[1:]); err != nil {
		setupLog.Error(err, "failed to parse flags")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(flags)
	if err != nil {
		setupLog.Error(err, "failed to load configuration")
		os.Exit(1)
	}

	// Set up zerolog with configured log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
	logger := zerologr.New(&zl)
	ctrl.SetLogger(logger)

	// Re-initialize setupLog with the configured logger
	setupLog = ctrl.Log.WithName("setup")
	if cfg.ConfigFileUsed() != "" {
		setupLog.Info("configuration loaded", "file", cfg.ConfigFileUsed(), "level", cfg.LogLevel)
	} else {
		setupLog.Info("no config file found, using defaults and flags", "level", cfg.LogLevel)
	}

	// Share zerolog with diagnostics API server for chi middleware
	api.SetLogger(&zl)

	// TLS options
	var tlsOpts []func(*tls.Config)

	// if the enable-http2 flag is false (the default), http/2 should be disabled
	// due to its vulnerabilities. More specifically, disabling http/2 will
	// prevent from being vulnerable to the HTTP/2 Stream Cancellation and
	// Rapid Reset CVEs. For more information see:
	// - https://github.com/advisories/GHSA-qppj-fm5r-hxr3
	// - https://github.com/advisories/GHSA-4374-p667-p6c8
	disableHTTP2 := func(c *tls.Config) {
		setupLog.Info("disabling http/2")
		c.NextProtos = []string{"http/1.1"}
	}

	if !cfg.Webhook.EnableHTTP2 {
		tlsOpts = append(tlsOpts, disableHTTP2)
	}

	// Create watchers for metrics and webhooks certificates
	var metricsCertWatcher, webhookCertWatcher *certwatcher.CertWatcher

	// Initial webhook TLS options
	webhookTLSOpts := tlsOpts

	if len(cfg.Webhook.CertPath) > 0 {
		setupLog.Info("Initializing webhook certificate watcher using provided certificates",
			"webhook-cert-path", cfg.Webhook.CertPath,
			"webhook-cert-name", cfg.Webhook.CertName,
			"webhook-cert-key", cfg.Webhook.CertKey)

		var err error
		webhookCertWatcher, err = certwatcher.New(
			filepath.Join(cfg.Webhook.CertPath, cfg.Webhook.CertName),
			filepath.Join(cfg.Webhook.CertPath, cfg.Webhook.CertKey),
		)
		if err != nil {
			setupLog.Error(err, "Failed to initialize webhook certificate watcher")
			os.Exit(1)
		}

		webhookTLSOpts = append(webhookTLSOpts, func(config *tls.Config) {
			config.GetCertificate = webhookCertWatcher.GetCertificate
		})
	}

	webhookServer := webhook.NewServer(webhook.Options{
		TLSOpts: webhookTLSOpts,
	})

	// Metrics endpoint is enabled in 'config/default/kustomization.yaml'. The Metrics options configure the server.
	// More info:
	// - https://pkg.go.dev/sigs.k8s.io/controller-runtime@v0.21.0/pkg/metrics/server
	// - https://book.kubebuilder.io/reference/metrics.html
	metricsServerOptions := metricsserver.Options{
		BindAddress:   cfg.Metrics.BindAddress,
		SecureServing: cfg.Metrics.Secure,
		TLSOpts:       tlsOpts,
	}

	if cfg.Metrics.Secure {
		// FilterProvider is used to protect the metrics endpoint with authn/authz.
		// These configurations ensure that only authorized users and service accounts
		// can access the metrics endpoint. The RBAC are configured in 'config/rbac/kustomization.yaml'. More info:
		// https://pkg.go.dev/sigs.k8s.io/controller-runtime@v0.21.0/pkg/metrics/filters#WithAuthenticationAndAuthorization
		metricsServerOptions.FilterProvider = filters.WithAuthenticationAndAuthorization
	}

	// If the certificate is not specified, controller-runtime will automatically
	// generate self-signed certificates for the metrics server. While convenient for development and testing,
	// this setup is not recommended for production.
	if len(cfg.Metrics.CertPath) > 0 {
		setupLog.Info("Initializing metrics certificate watcher using provided certificates",
			"metrics-cert-path", cfg.Metrics.CertPath,
			"metrics-cert-name", cfg.Metrics.CertName,
			"metrics-cert-key", cfg.Metrics.CertKey)

		var err error
		metricsCertWatcher, err = certwatcher.New(
			filepath.Join(cfg.Metrics.CertPath, cfg.Metrics.CertName),
			filepath.Join(cfg.Metrics.CertPath, cfg.Metrics.CertKey),
		)
		if err != nil {
			setupLog.Error(err, "to initialize metrics certificate watcher", "error", err)
			os.Exit(1)
		}

		metricsServerOptions.TLSOpts = append(metricsServerOptions.TLSOpts, func(config *tls.Config) {
			config.GetCertificate = metricsCertWatcher.GetCertificate
		})
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsServerOptions,
		WebhookServer:          webhookServer,
		HealthProbeBindAddress: cfg.Probes.BindAddress,
		LeaderElection:         cfg.LeaderElection.Enabled,
		LeaderElectionID:       "kubefreezer-leader.kubefreezer.io",
		LeaseDuration:          &cfg.LeaderElection.LeaseDuration,
		RenewDeadline:          &cfg.LeaderElection.RenewDeadline,
		RetryPeriod:            &cfg.LeaderElection.RetryPeriod,
		// LeaderElectionReleaseOnCancel defines if the leader should step down voluntarily
		// when the Manager ends. This requires the binary to immediately end when the
		// Manager is stopped, otherwise, this setting is unsafe. Setting this significantly
		// speeds up voluntary leader transitions as the new leader don't have to wait
		// LeaseDuration time first.
		//
		// In the default scaffold provided, the program ends immediately after
		// the manager stops, so would be fine to enable this option. However,
		// if you are doing or is intended to do any operation such as perform cleanups
		// after the manager stops then its usage might be unsafe.
		// LeaderElectionReleaseOnCancel: true,
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	// Wire the in-memory policy state: config cache, schedule engine,
	// exemption store and bounded history recorder. These are the things the
	// evaluator reads on every admission request; the config cache and
	// schedule engine are read lock-free via RCU, while the exemption store
	// and history recorder are mutex-guarded.
	cache := policyconfig.NewCache()
	engine := freezeschedule.NewEngine()
	exemptions := exemption.NewStore(time.Now)
	recorder := history.NewRecorder(cfg.History.Capacity)

	// Optional crash-recovery persistence: rehydrates history/exemptions at
	// startup and mirrors every subsequent append, but never gates a
	// decision on its own availability.
	var persist persistence.Store
	if cfg.Storage.Enabled {
		dsn := storageDSN(cfg.Storage)
		gormStore, err := persistence.NewGormStore(cfg.Storage.Type, dsn)
		if err != nil {
			setupLog.Error(err, "unable to create persistence store")
			os.Exit(1)
		}
		if err := gormStore.Init(); err != nil {
			setupLog.Error(err, "unable to initialize persistence store")
			os.Exit(1)
		}
		defer func() { _ = gormStore.Close() }()
		gormStore.Retention = recorder.Cap()
		persist = gormStore
		setupLog.Info("persistence enabled", "type", cfg.Storage.Type)

		rehydrate(setupLog, gormStore, recorder, exemptions)

		recorder.SetPersistHook(func(e history.Event) {
			if err := gormStore.AppendEvent(context.Background(), e); err != nil {
				setupLog.Error(err, "failed to persist history event", "id", e.ID)
			}
		})
		exemptions.SetPersistHook(func(e exemption.Exemption) {
			if err := gormStore.SaveExemption(context.Background(), e); err != nil {
				setupLog.Error(err, "failed to persist exemption", "id", e.ID)
			}
		})
	}

	admissionGate := kfadmission.NewGate()
	eval := evaluator.New(cache, engine, exemptions, recorder, clock.RealClock{})

	handler := kfadmission.NewHandler(eval, admissionGate, cfg.Evaluator.Deadline)
	mgr.GetWebhookServer().Register("/validate-workloads", &webhook.Admission{Handler: handler})

	if err := (&configwatcher.FreezeConfigReconciler{
		Client:     mgr.GetClient(),
		Scheme:     mgr.GetScheme(),
		Cache:      cache,
		Engine:     engine,
		Exemptions: exemptions,
		History:    recorder,
		Gate:       admissionGate,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "FreezeConfig")
		os.Exit(1)
	}
	if err := (&configwatcher.FreezeScheduleReconciler{
		Client:  mgr.GetClient(),
		Scheme:  mgr.GetScheme(),
		Engine:  engine,
		History: recorder,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "FreezeSchedule")
		os.Exit(1)
	}
	if err := (&configwatcher.FreezeExemptionReconciler{
		Client:  mgr.GetClient(),
		Scheme:  mgr.GetScheme(),
		Store:   exemptions,
		History: recorder,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "FreezeExemption")
		os.Exit(1)
	}

	// +kubebuilder:scaffold:builder

	if metricsCertWatcher != nil {
		setupLog.Info("Adding metrics certificate watcher to manager")
		if err := mgr.Add(metricsCertWatcher); err != nil {
			setupLog.Error(err, "unable to add metrics certificate watcher to manager")
			os.Exit(1)
		}
	}

	if webhookCertWatcher != nil {
		setupLog.Info("Adding webhook certificate watcher to manager")
		if err := mgr.Add(webhookCertWatcher); err != nil {
			setupLog.Error(err, "unable to add webhook certificate watcher to manager")
			os.Exit(1)
		}
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", func(_ *http.Request) error {
		if !admissionGate.Ready() {
			return errGateNotReady
		}
		return nil
	}); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	if cfg.Diagnostics.Enabled {
		apiServer := api.NewServer(api.ServerOptions{
			Config:     cache,
			Schedules:  engine,
			Exemptions: exemptions,
			History:    recorder,
			Ready:      admissionGate.Ready,
			Port:       cfg.Diagnostics.Port,
		})
		if err := mgr.Add(apiServer); err != nil {
			setupLog.Error(err, "unable to add diagnostics API server to manager")
			os.Exit(1)
		}
	}

	if persist != nil {
		setupLog.Info("persistence store wired", "type", cfg.Storage.Type)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

func storageDSN(s config.StorageConfig) string {
	switch s.Type {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.PostgreSQL.Host, s.PostgreSQL.Port,
			s.PostgreSQL.Username, s.PostgreSQL.Password,
			s.PostgreSQL.Database, s.PostgreSQL.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			s.MySQL.Username, s.MySQL.Password,
			s.MySQL.Host, s.MySQL.Port,
			s.MySQL.Database)
	default:
		return s.SQLite.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
}

// rehydrate restores history events and unexpired exemptions recorded
// before a restart. It is best-effort: a persistence error here must never
// block startup, since the evaluator works correctly from empty state too.
func rehydrate(log logr.Logger, p persistence.Store, recorder *history.Recorder, store *exemption.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := p.ListEvents(ctx, recorder.Cap())
	if err != nil {
		log.Error(err, "unable to rehydrate history from persistence store")
	} else {
		for i := len(events) - 1; i >= 0; i-- {
			recorder.Append(events[i])
		}
	}

	exemptions, err := p.ListExemptions(ctx, time.Now())
	if err != nil {
		log.Error(err, "unable to rehydrate exemptions from persistence store")
		return
	}
	for _, ex := range exemptions {
		store.Restore(ex)
	}
}
