// Package policyconfig holds the process-wide policy Configuration snapshot
// behind an atomic pointer, so readers (the evaluator) always see a fully
// constructed snapshot while a single writer (the config watcher) installs
// new ones.
package policyconfig

import "sync/atomic"

// Configuration is the immutable freeze policy snapshot. A new
// Configuration is always built whole and installed via Cache.Install;
// existing fields are never mutated in place.
type Configuration struct {
	FreezeEnabled             bool
	FreezeUntilUnixNano       int64 // 0 means unset
	FreezeMessage             string
	BypassAnnotationKey       string
	BypassReasonAnnotationKey string
	BypassAllowedUsers        map[string]struct{}
	BypassExemptNamespaces    map[string]struct{}
	MonitoredKinds            map[string]struct{}
	FailClosed                bool
}

// IsMonitoredKind reports whether kind is in the monitored set.
func (c *Configuration) IsMonitoredKind(kind string) bool {
	_, ok := c.MonitoredKinds[kind]
	return ok
}

// IsAllowedUser reports whether user or any of groups is allow-listed.
func (c *Configuration) IsAllowedUser(user string, groups []string) bool {
	if _, ok := c.BypassAllowedUsers[user]; ok {
		return true
	}
	for _, g := range groups {
		if _, ok := c.BypassAllowedUsers[g]; ok {
			return true
		}
	}
	return false
}

// IsExemptNamespace reports whether ns is unconditionally exempt.
func (c *Configuration) IsExemptNamespace(ns string) bool {
	_, ok := c.BypassExemptNamespaces[ns]
	return ok
}

// Default returns a Configuration matching the CRD's kubebuilder defaults,
// used until the watcher's first successful reconcile installs a real one.
func Default() *Configuration {
	return &Configuration{
		FreezeMessage:             "cluster is frozen",
		BypassAnnotationKey:       "admission-controller.io/emergency-bypass",
		BypassReasonAnnotationKey: "admission-controller.io/emergency-reason",
		BypassAllowedUsers:        map[string]struct{}{},
		BypassExemptNamespaces:    map[string]struct{}{},
		MonitoredKinds: map[string]struct{}{
			"Deployment":  {},
			"StatefulSet": {},
			"DaemonSet":   {},
		},
		FailClosed: true,
	}
}

// Cache wraps atomic.Pointer[Configuration]; Load never returns nil after
// NewCache.
type Cache struct {
	current atomic.Pointer[Configuration]
}

// NewCache returns a Cache pre-populated with Default().
func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(Default())
	return c
}

// Load returns the current snapshot.
func (c *Cache) Load() *Configuration {
	return c.current.Load()
}

// Install atomically swaps in a new snapshot.
func (c *Cache) Install(cfg *Configuration) {
	c.current.Store(cfg)
}
