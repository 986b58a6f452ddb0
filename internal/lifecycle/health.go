package lifecycle

import (
	"context"
	"errors"
	"log/slog"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ReadinessFunc reports whether the application can serve traffic.
type ReadinessFunc func(ctx context.Context) bool

// Probes implements HealthChecker. Liveness always succeeds while the process
// runs; readiness delegates to the supplied function.
type Probes struct {
	log   *slog.Logger
	ready ReadinessFunc
}

// NewProbes creates a new Probes instance.
func NewProbes(log *slog.Logger, ready ReadinessFunc) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, ready: ready}
}

// Liveness reports success while the process is responsive.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness reports whether downstream dependencies are reachable.
func (p *Probes) Readiness(ctx context.Context) error {
	p.log.Debug("readiness probe called")

	if p.ready != nil && !p.ready(ctx) {
		return errors.New("dependencies are not ready")
	}
	return nil
}
