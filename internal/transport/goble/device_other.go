//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
	"github.com/srg/relayctl/internal/peripheral"
)

func newDevice() (ble.Device, error) {
	return nil, fmt.Errorf("ble on %s: %w", runtime.GOOS, peripheral.ErrUnsupported)
}
