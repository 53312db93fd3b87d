package goble

import (
	"github.com/go-ble/ble"
)

// Serial-over-GATT profiles used by BLE relay boards: the HM-10/HC-08
// family exposes one FFE1 characteristic, Nordic UART splits RX and TX.
var (
	hm10Service = ble.UUID16(0xFFE0)
	hm10Char    = ble.UUID16(0xFFE1)

	nusService = ble.MustParse("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	nusRX      = ble.MustParse("6e400002-b5a3-f393-e0a9-e50e24dcca9e")
)

var uartProfiles = []struct {
	service ble.UUID
	char    ble.UUID
}{
	{hm10Service, hm10Char},
	{nusService, nusRX},
}

// uartClient is the part of ble.Client a session needs.
type uartClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	CancelConnection() error
}

// findUART returns the characteristic commands are written to and
// whether writes go without response.
func findUART(p *ble.Profile) (*ble.Characteristic, bool) {
	if p == nil {
		return nil, false
	}
	for _, want := range uartProfiles {
		for _, svc := range p.Services {
			if !svc.UUID.Equal(want.service) {
				continue
			}
			for _, c := range svc.Characteristics {
				if !c.UUID.Equal(want.char) {
					continue
				}
				if c.Property&(ble.CharWrite|ble.CharWriteNR) == 0 {
					continue
				}
				return c, c.Property&ble.CharWrite == 0
			}
		}
	}
	return nil, false
}
