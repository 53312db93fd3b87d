package main

import (
	"context"
	"errors"

	"github.com/srg/relayctl/internal/peripheral"
)

// ErrDaemonFailed wraps an error reported back by the daemon.
var ErrDaemonFailed = errors.New("daemon reported an error")

// FormatUserError turns an error into the line printed to the user.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "operation timed out"
	case errors.Is(err, peripheral.ErrRadioOff):
		return "Bluetooth is turned off. Turn it on and try again."
	case errors.Is(err, peripheral.ErrUnsupported):
		return "this operation is not supported here: " + err.Error()
	default:
		return peripheral.UserMessage(err)
	}
}
