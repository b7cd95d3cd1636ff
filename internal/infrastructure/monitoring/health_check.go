package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	defaultCheckTimeout = 2 * time.Second
	maxParallelChecks   = 8
)

// CheckFunc reports a dependency problem as a non-nil error.
type CheckFunc func(ctx context.Context) error

type check struct {
	fn      CheckFunc
	timeout time.Duration
}

// HealthChecker runs the registered readiness checks side by side.
type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]check
	now    func() time.Time
}

type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]check), now: time.Now}
}

// AddCheck registers fn under name, replacing any check with that name.
// A non-positive timeout falls back to two seconds.
func (h *HealthChecker) AddCheck(name string, fn CheckFunc, timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	h.mu.Lock()
	h.checks[name] = check{fn: fn, timeout: timeout}
	h.mu.Unlock()
}

// AddRedisCheck pings client on every readiness probe.
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, timeout)
}

func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := make(map[string]check, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: h.now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxParallelChecks)
	for name, c := range checks {
		g.Go(func() error {
			result := h.run(ctx, c)
			mu.Lock()
			status.Checks[name] = result
			if result.Status != StatusHealthy {
				status.Status = StatusUnhealthy
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return status
}

func (h *HealthChecker) run(ctx context.Context, c check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := h.now()
	err := c.fn(ctx)
	result := CheckResult{Status: StatusHealthy, LatencyMS: h.now().Sub(start).Milliseconds()}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
