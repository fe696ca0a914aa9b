package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// DependencyResult is the outcome of a single dependency check.
type DependencyResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency"`
}

// Dependency checks one dependency. Critical dependencies fail readiness; the others
// only degrade it.
type Dependency struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// HealthReport aggregates dependency results.
type HealthReport struct {
	Status       HealthStatus                `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyResult `json:"dependencies"`
}

// HealthRegistry runs readiness checks for the worker and MCP processes.
type HealthRegistry struct {
	mu      sync.RWMutex
	deps    map[string]Dependency
	timeout time.Duration
}

// NewHealthRegistry creates a registry whose checks each get the given timeout.
func NewHealthRegistry(timeout time.Duration) *HealthRegistry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthRegistry{
		deps:    make(map[string]Dependency),
		timeout: timeout,
	}
}

// Register adds or replaces a dependency.
func (r *HealthRegistry) Register(p Dependency) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps[p.Name] = p
}

// Names returns the registered dependency names in order.
func (r *HealthRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.deps))
	for name := range r.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every dependency check concurrently.
func (r *HealthRegistry) Check(ctx context.Context) HealthReport {
	r.mu.RLock()
	list := make([]Dependency, 0, len(r.deps))
	for _, p := range r.deps {
		list = append(list, p)
	}
	r.mu.RUnlock()

	report := HealthReport{
		Status:       HealthStatusHealthy,
		Timestamp:    time.Now().UTC(),
		Dependencies: make(map[string]DependencyResult, len(list)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range list {
		wg.Add(1)
		go func(p Dependency) {
			defer wg.Done()
			result := r.run(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			report.Dependencies[p.Name] = result
			report.Status = worse(report.Status, result.Status)
		}(p)
	}
	wg.Wait()

	return report
}

func (r *HealthRegistry) run(ctx context.Context, p Dependency) DependencyResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(ctx)
	result := DependencyResult{Status: HealthStatusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		result.Message = err.Error()
		result.Status = HealthStatusDegraded
		if p.Critical {
			result.Status = HealthStatusUnhealthy
		}
	}
	return result
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// LivenessHandler always answers 200 while the process is serving.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessHandler runs all checks and answers 503 when any critical dependency fails.
func (r *HealthRegistry) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		report := r.Check(req.Context())

		code := http.StatusOK
		if report.Status == HealthStatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}
