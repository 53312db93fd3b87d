package peripheral

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatch means no listed device matched the name heuristics.
	ErrNoMatch = errors.New("no matching peripheral found")

	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("not connected")

	// ErrCanceled marks a connect attempt superseded by a disconnect or a
	// newer connect before it resolved.
	ErrCanceled = errors.New("connect attempt canceled")

	// ErrUnsupported is returned by transports for modes or calls they do
	// not implement.
	ErrUnsupported = errors.New("unsupported")

	// ErrRadioOff is returned when the adapter is powered down.
	ErrRadioOff = errors.New("bluetooth is turned off")
)

// FetchSource names which listing failed.
type FetchSource string

const (
	SourcePaired   FetchSource = "paired"
	SourceUnpaired FetchSource = "unpaired"
)

// FetchError is a failed device listing. Discovery treats it as non-fatal.
type FetchError struct {
	Source FetchSource
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to list %s devices: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AttemptError is a failed single-mode connect call.
type AttemptError struct {
	Target Record
	Mode   Mode
	Err    error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s connection to %s failed: %v", e.Mode, e.Target.ID, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ExhaustedError means both link modes failed. Unwrap yields the last
// attempt, which is the error propagated to the caller.
type ExhaustedError struct {
	Target Record
	First  *AttemptError
	Last   *AttemptError
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("could not connect to %s in any mode: %v", e.Target.DisplayName(), e.Last.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// SendError is a failed command write.
type SendError struct {
	Command Command
	Attempt int
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send %s command (write %d): %v", e.Command, e.Attempt, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// User-facing guidance for the errors that reach the caller.
const (
	MsgNoMatch   = "Relay module not found. Pair it in the Bluetooth settings or power the module on."
	MsgExhausted = "Failed to connect. If the module is not paired, pair it in the Bluetooth settings (PIN 1234) and try again."
	MsgSend      = "Could not send the command to the module."
)

// UserMessage returns remediation text for user-visible errors and the
// plain error text for anything else.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var exhausted *ExhaustedError
	var send *SendError
	switch {
	case errors.Is(err, ErrNoMatch):
		return MsgNoMatch
	case errors.As(err, &exhausted):
		return MsgExhausted
	case errors.As(err, &send):
		return MsgSend
	default:
		return err.Error()
	}
}

// IsUserVisible reports whether err belongs to the user-visible taxonomy.
func IsUserVisible(err error) bool {
	var exhausted *ExhaustedError
	var send *SendError
	return errors.Is(err, ErrNoMatch) || errors.As(err, &exhausted) || errors.As(err, &send)
}
