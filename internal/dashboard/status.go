package dashboard

import "time"

// Status is the gateway health snapshot the dashboard polls for.
type Status struct {
	Reachable   bool
	Port        int
	Stage       string
	Connections int
	Uptime      time.Duration
	StartedAt   time.Time
}

// SessionRow is one row of the sessions panel.
type SessionRow struct {
	ConnectionID string
	SourceIP     string
	ConnectedAt  time.Time
	LastActiveAt time.Time
}
