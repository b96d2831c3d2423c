package health

import (
	"context"
	"time"
)

type CheckResult struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// ProbeRunner evaluates readiness checks with a shared per-check timeout.
type ProbeRunner struct {
	timeout  time.Duration
	checkers []Checker
}

func NewProbeRunner(timeout time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{timeout: timeout, checkers: checkers}
}

// Ready runs every check even after the first failure so the probe response
// names all unhealthy dependencies at once.
func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	ready := true
	results := make([]CheckResult, 0, len(p.checkers))
	for _, checker := range p.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
		start := time.Now()
		err := checker.Check(checkCtx)
		cancel()

		result := CheckResult{
			Name:      checker.Name,
			Status:    "ok",
			LatencyMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			ready = false
			result.Status = "failed"
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return ready, results
}
