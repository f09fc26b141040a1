package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Pinger is any dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthStatus is the result of one health probe.
type HealthStatus struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

// HealthService probes the stores the app depends on.
type HealthService struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHealthService(timeout time.Duration) *HealthService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthService{checks: make(map[string]Pinger), timeout: timeout}
}

// Register adds a named dependency. Registering a nil pinger is a no-op.
func (s *HealthService) Register(name string, p Pinger) {
	if p == nil {
		return
	}
	s.checks[name] = p
}

// Check pings every registered dependency.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := HealthStatus{OK: true, Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			zap.S().Warnf("Health: %s unreachable: %v", name, err)
			status.OK = false
			status.Checks[name] = err.Error()
			continue
		}
		status.Checks[name] = "ok"
	}
	return status
}
