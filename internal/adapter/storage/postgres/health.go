package postgres

import (
	"context"
	"fmt"
)

// HealthCheck reports PostgreSQL reachability for the deep health endpoint.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping runs a trivial query; it touches no tables, reachability is all the
// health endpoint reports.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, `SELECT 1`); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Name identifies this dependency in health reports.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
