package goble

import (
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/relayctl/internal/peripheral"
)

// DeviceFactory opens the host BLE adapter. It is a variable so tests can
// replace it.
var DeviceFactory func() (ble.Device, error) = newDevice

// normalizeError maps go-ble error strings onto peripheral sentinels.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "have=4 want=5"),
		strings.Contains(msg, "bluetooth is turned off"),
		strings.Contains(msg, "powered off"):
		return fmt.Errorf("%w: %v", peripheral.ErrRadioOff, err)
	case strings.Contains(msg, "device not connected"),
		strings.Contains(msg, "disconnected"):
		return fmt.Errorf("%w: %v", peripheral.ErrNotConnected, err)
	default:
		return err
	}
}
