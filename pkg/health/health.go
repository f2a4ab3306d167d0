// Package health serves liveness and readiness for the services. Readiness
// runs every registered check concurrently; a failing required component
// makes the service unready, a failing optional one only degrades it.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/resilience"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// severity orders statuses from best to worst.
func (s Status) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

type component struct {
	check    Check
	optional bool
}

type Checker struct {
	mu         sync.RWMutex
	components map[string]component
	logger     *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]component),
		logger:     slog.Default().With("component", "health"),
	}
}

// Register adds or replaces a required component.
func (c *Checker) Register(name string, check Check) {
	c.register(name, component{check: check})
}

// RegisterOptional adds a component the service can run without, such as
// the query cache. Its failures report as degraded.
func (c *Checker) RegisterOptional(name string, check Check) {
	c.register(name, component{check: check, optional: true})
}

func (c *Checker) register(name string, comp component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = comp
}

// Run executes every check and reports the worst component status.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	components := make(map[string]component, len(c.components))
	for name, comp := range c.components {
		components[name] = comp
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(components)),
		Timestamp:  time.Now().UTC(),
	}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, comp := range components {
		wg.Go(func() {
			start := time.Now()
			result := comp.check(ctx)
			result.Latency = time.Since(start).Round(time.Microsecond).String()
			result.Optional = comp.optional
			if comp.optional && result.Status == StatusDown {
				result.Status = StatusDegraded
			}
			mu.Lock()
			defer mu.Unlock()
			report.Components[name] = result
			if result.Status.severity() > report.Status.severity() {
				report.Status = result.Status
			}
		})
	}
	wg.Wait()
	return report
}

// LiveHandler answers as long as the process can serve HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.write(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler is 200 while no required component is down, otherwise 503.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
			c.logger.Warn("not ready", "components", report.Components)
		}
		c.write(w, status, report)
	}
}

func (c *Checker) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		c.logger.Error("failed to write health response", "error", err)
	}
}

// Probe adapts a ping func into a Check that is down when ping fails or
// outlives timeout.
func Probe(timeout time.Duration, ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := resilience.WithTimeout(ctx, timeout, "probe", ping); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}
