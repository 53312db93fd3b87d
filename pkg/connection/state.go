package connection

import (
	"fmt"

	"github.com/srg/relayctl/internal/peripheral"
)

// Phase is the coarse connection lifecycle position.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// State is a snapshot of the manager. Target is set while Connecting or
// Connected; Mode is only meaningful while Connecting.
type State struct {
	Phase  Phase
	Target peripheral.Record
	Mode   peripheral.Mode
}

// IsConnected reports whether a session is established
func (s State) IsConnected() bool { return s.Phase == Connected }

func (s State) String() string {
	switch s.Phase {
	case Connecting:
		return fmt.Sprintf("connecting to %s (%s)", s.Target.DisplayName(), s.Mode)
	case Connected:
		return fmt.Sprintf("connected to %s", s.Target.DisplayName())
	default:
		return Disconnected.String()
	}
}
