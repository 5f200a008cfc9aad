// Package health runs named probes concurrently and folds their results into
// one report. The health subcommand uses it to check the store files and the
// infrastructure enabled in the config before a build.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check probes one component.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report lists components by name; Status is the worst component status.
type Report struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  string            `json:"timestamp"`
}

type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
}

func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Ping adapts a function that only reports an error into a Check.
func Ping(fn func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := fn(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Run executes every check in parallel, each bounded by timeout.
func (c *Checker) Run(ctx context.Context, timeout time.Duration) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make([]ComponentHealth, 0, len(checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			res := check(cctx)
			res.Name = name
			res.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := Report{
		Status:     StatusUp,
		Components: results,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for _, r := range results {
		switch r.Status {
		case StatusDown:
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}
