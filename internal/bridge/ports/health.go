package ports

import "time"

// HealthRecord is the most recent fresh probe outcome. It is overwritten on
// every fresh probe.
type HealthRecord struct {
	ObservedAt time.Time
	OK         bool
	Error      string
	Latency    time.Duration
}

// HealthResult is what a health check reports to its caller.
type HealthResult struct {
	OK        bool
	Error     string
	LatencyMs int64
	Cached    bool
}

// ConnectionState is the lifecycle position of the shared session.
type ConnectionState int

const (
	StateUninitialized ConnectionState = iota
	StateConnecting
	StateAuthorized
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
