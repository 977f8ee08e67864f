package ports

import (
	"context"

	"github.com/frcrag/frcrag/internal/core/domain/tunnel"
)

// TunnelManager owns the singleton tunnel process that exposes the
// local service at a public URL. Start and Stop are idempotent and
// mutually exclusive; only the manager mutates tunnel state.
type TunnelManager interface {
	// Start launches the tunnel process unless one is already starting
	// or running, in which case it is a no-op returning current state.
	Start(ctx context.Context) (tunnel.State, error)

	// Stop terminates the process from any phase and returns to stopped.
	Stop() tunnel.State

	// State returns a snapshot for health/status reporting.
	State() tunnel.State
}
