// Package health aggregates liveness checks for each binary's external
// dependencies (both binaries register the relational store) behind one
// registry that the metrics server's /healthz endpoint reads.
package health

import (
	"sync"

	"optionpricer/internal/core"
	"optionpricer/pkg/logging"
)

// HealthManager aggregates pass/fail checks registered by name, e.g.
// "database" in both cmd/marketdatasvc and cmd/pricingsvc.
type HealthManager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]func() error
}

// NewHealthManager builds an empty registry. A nil logger falls back to
// the process-wide default so the manager can be constructed before a
// binary has finished assembling its own logger.
func NewHealthManager(logger core.ILogger) *HealthManager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &HealthManager{
		logger: logger.WithField("component", "health_manager"),
		checks: make(map[string]func() error),
	}
}

// Register adds or replaces the check run under component's name, e.g.
// func() error { return pool.Ping(ctx) } for the database dependency.
func (hm *HealthManager) Register(component string, check func() error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
}

// GetStatus runs every registered check and reports "Healthy" or
// "Unhealthy: <error>" per component, the shape the /healthz handler
// renders as JSON.
func (hm *HealthManager) GetStatus() map[string]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := make(map[string]string)
	for component, check := range hm.checks {
		if err := check(); err != nil {
			status[component] = "Unhealthy: " + err.Error()
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy reports whether every registered check currently passes.
func (hm *HealthManager) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	for _, check := range hm.checks {
		if err := check(); err != nil {
			return false
		}
	}
	return true
}
