// Package health implements the liveness and readiness probes served by the
// analysis service.
package health

import (
	"context"
	"sync"
	"time"
)

// ReadinessChecker reports whether the analysis engine can accept new jobs.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status is the reported health of the service or of a single check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the body served by the health endpoints.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy reports whether the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

const (
	probeTimeout = 5 * time.Second
	cacheTTL     = time.Second
)

// Checker answers liveness and readiness probes. Readiness results are
// cached for cacheTTL so tight probe intervals do not translate into engine
// checks one-to-one.
type Checker struct {
	engine ReadinessChecker

	mu           sync.RWMutex
	checkedAt    time.Time
	cached       *Response
	shuttingDown bool
}

// NewChecker builds a Checker wired to the given engine.
func NewChecker(engine ReadinessChecker) *Checker {
	return &Checker{engine: engine}
}

// Liveness reports whether the process itself is functional. It never
// consults dependencies; a failure here should restart the container.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness reports whether the service should receive traffic. During
// shutdown it turns unhealthy so load balancers drain the instance.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	if c.shuttingDown {
		c.mu.RUnlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}
	if c.cached != nil && time.Since(c.checkedAt) < cacheTTL {
		cached := c.cached
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	// The engine is the only dependency, so its result is the overall one.
	engine := c.probeEngine(ctx)
	response := &Response{
		Status: engine.Status,
		Checks: map[string]CheckResult{"engine": engine},
	}

	c.mu.Lock()
	c.cached = response
	c.checkedAt = time.Now()
	c.mu.Unlock()

	return response
}

// probeEngine asks the engine whether it can take new analysis jobs.
func (c *Checker) probeEngine(ctx context.Context) CheckResult {
	if c.engine == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "engine not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := c.engine.Ready(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SetShuttingDown flips readiness to unhealthy and drops the cached result
// so the change is visible on the next probe.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cached = nil
}
