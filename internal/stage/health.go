package stage

import "context"

// Health is one stage's readiness as reported to /healthz and status output.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// HealthChecker is implemented by stages that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Healthy reports name as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports name as not ready, with detail saying what is missing.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Collect asks every checker for its health, keyed by stage name. Nil
// checkers are skipped.
func Collect(ctx context.Context, checkers ...HealthChecker) map[string]Health {
	out := make(map[string]Health, len(checkers))
	for _, checker := range checkers {
		if checker == nil {
			continue
		}
		h := checker.HealthCheck(ctx)
		out[h.Name] = h
	}
	return out
}
