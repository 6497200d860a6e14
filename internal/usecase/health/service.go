package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the object store is down but search works.
	Degraded Status = "degraded"
	// Unhealthy indicates the search backend is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	Backend = "backend"
	Objects = "objects"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	backend Pinger
	objects Pinger
}

// New creates a Service. objects can be nil.
func New(backend, objects Pinger) *Service {
	return &Service{backend: backend, objects: objects}
}

// Check pings the backend and, if configured, the object store.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{Backend: probe(ctx, s.backend)}
	if s.objects != nil {
		checks[Objects] = probe(ctx, s.objects)
	}

	status := Healthy
	switch {
	case checks[Backend] == CheckError:
		status = Unhealthy
	case checks[Objects] == CheckError:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func probe(ctx context.Context, p Pinger) CheckResult {
	if p == nil || p.Ping(ctx) != nil {
		return CheckError
	}
	return CheckOK
}
