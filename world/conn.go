package world

import "time"

// Status is the lifecycle state of the server connection.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// ConnState describes the connection as last reported by the link.
type ConnState struct {
	Status Status
	// RetryDelay is the wait before the next attempt when Status is closed.
	// Zero means no reconnection is scheduled.
	RetryDelay time.Duration
	// Attempts counts dials since the last successful open.
	Attempts  int
	LastError string
	Since     time.Time
}
