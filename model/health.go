package model

import (
	"sync"
	"time"
)

// EndpointHealth tracks the health status of a provider endpoint.
type EndpointHealth struct {
	// Available indicates if the endpoint is currently usable.
	Available bool `json:"available"`

	// LastSuccess is the time of the last successful request.
	LastSuccess time.Time `json:"last_success,omitempty"`

	// LastFailure is the time of the last failed request.
	LastFailure time.Time `json:"last_failure,omitempty"`

	// FailureCount is the number of consecutive failures.
	FailureCount int `json:"failure_count"`

	// CircuitOpen indicates if the circuit breaker has tripped.
	CircuitOpen bool `json:"circuit_open"`

	// CircuitOpenedAt is when the circuit was opened.
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig configures the circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int `yaml:"failure_threshold" validate:"min=1"`

	// RecoveryTimeout is how long to wait before trying a failed endpoint again.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// DefaultHealthConfig returns sensible defaults for health tracking.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// Health is a per-endpoint circuit breaker. It implements llm.HealthTracker
// and outlives registry reloads, so it is kept separate from Registry.
type Health struct {
	mu       sync.RWMutex
	config   HealthConfig
	statuses map[string]*EndpointHealth
	now      func() time.Time
}

// NewHealth creates a tracker. A zero threshold falls back to the default.
func NewHealth(cfg HealthConfig) *Health {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = DefaultHealthConfig().FailureThreshold
	}
	return &Health{
		config:   cfg,
		statuses: make(map[string]*EndpointHealth),
		now:      time.Now,
	}
}

// getOrCreate returns the status for an endpoint. Caller holds the write lock.
func (h *Health) getOrCreate(name string) *EndpointHealth {
	if status, ok := h.statuses[name]; ok {
		return status
	}
	status := &EndpointHealth{Available: true}
	h.statuses[name] = status
	return status
}

// MarkEndpointSuccess records a successful request to an endpoint.
func (h *Health) MarkEndpointSuccess(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.getOrCreate(name)
	status.LastSuccess = h.now()
	status.FailureCount = 0
	status.Available = true
	status.CircuitOpen = false
}

// MarkEndpointFailure records a failed request to an endpoint.
func (h *Health) MarkEndpointFailure(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.getOrCreate(name)
	status.LastFailure = h.now()
	status.FailureCount++

	if status.FailureCount >= h.config.FailureThreshold {
		status.CircuitOpen = true
		status.CircuitOpenedAt = h.now()
		status.Available = false
	}
}

// IsEndpointAvailable reports false while the circuit is open and the
// recovery timeout has not passed. A nil tracker reports every endpoint available.
func (h *Health) IsEndpointAvailable(name string) bool {
	if h == nil {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	status, ok := h.statuses[name]
	if !ok || !status.CircuitOpen {
		return true
	}

	// Half-open: allow a probe once the recovery window has passed.
	return h.now().Sub(status.CircuitOpenedAt) > h.config.RecoveryTimeout
}

// EndpointHealth returns a copy of an endpoint's status, or nil if unknown.
func (h *Health) EndpointHealth(name string) *EndpointHealth {
	if h == nil {
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if status, ok := h.statuses[name]; ok {
		cp := *status
		return &cp
	}
	return nil
}

// Reset clears the status for an endpoint.
func (h *Health) Reset(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.statuses, name)
}
