package scenesync

import (
	"fmt"

	"github.com/hako/durafmt"

	"terrasync/world"
)

// StatusText is the overlay line for a connection state. It is empty while
// the connection is open.
func StatusText(cs world.ConnState) string {
	switch cs.Status {
	case world.StatusConnecting:
		if cs.Attempts > 1 {
			return fmt.Sprintf("Connecting... (attempt %d)", cs.Attempts)
		}
		return "Connecting..."
	case world.StatusClosed:
		if cs.RetryDelay > 0 {
			return "Connection lost, reconnecting in " + durafmt.Parse(cs.RetryDelay).String()
		}
		return "Disconnected"
	}
	return ""
}
