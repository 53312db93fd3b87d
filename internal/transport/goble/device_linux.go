//go:build linux

package goble

import (
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/cmd"
)

const hciTimeout = 20 * time.Second

var scanParams = cmd.LESetScanParameters{
	LEScanType:           1,    // active, so scan responses carry the name
	LEScanInterval:       0x10, // 10ms
	LEScanWindow:         0x10, // 10ms
	OwnAddressType:       0,
	ScanningFilterPolicy: 0, // accept all
}

func newDevice() (ble.Device, error) {
	dev, err := linux.NewDevice(
		ble.OptListenerTimeout(hciTimeout),
		ble.OptDialerTimeout(hciTimeout),
		ble.OptScanParams(scanParams),
	)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
