package tunnel

import "time"

// Status is the lifecycle phase of the tunnel process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// State is a point-in-time snapshot of the tunnel. PublicURL is only
// set while running; LastError is only set after a failure.
type State struct {
	Status    Status    `json:"status"`
	Provider  string    `json:"provider,omitempty"`
	PublicURL string    `json:"public_url,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}
