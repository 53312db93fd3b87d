package testutils

import (
	"github.com/go-ble/ble"
	"github.com/srg/relayctl/internal/testutils/mocks"
)

// AdvertisementBuilder builds mocked BLE advertisements. Only fields that
// were set get mock expectations; Maybe() keeps unused ones from failing.
//
//	adv := testutils.NewAdvertisementBuilder().
//	    WithName("HC-08").
//	    WithAddress("11:22:33:44:55:66").
//	    Build()
type AdvertisementBuilder struct {
	name        string
	address     string
	rssi        int
	services    []string
	connectable bool

	nameSet     bool
	rssiSet     bool
	servicesSet bool
}

// NewAdvertisementBuilder starts a connectable advertisement
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{connectable: true}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	b.nameSet = true
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	b.rssiSet = true
	return b
}

// WithServices adds service UUIDs in short ("FFE0") or full form.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.services = append(b.services, uuids...)
	b.servicesSet = true
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.connectable = c
	return b
}

// Build creates the mock. Addr and Connectable are always answered.
func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	adv := &mocks.MockAdvertisement{}

	adv.On("Addr").Return(&mocks.MockAddr{Address: b.address}).Maybe()
	adv.On("Connectable").Return(b.connectable).Maybe()

	name := ""
	if b.nameSet {
		name = b.name
	}
	adv.On("LocalName").Return(name).Maybe()

	if b.rssiSet {
		adv.On("RSSI").Return(b.rssi).Maybe()
	}
	if b.servicesSet {
		uuids := make([]ble.UUID, 0, len(b.services))
		for _, s := range b.services {
			uuids = append(uuids, ble.MustParse(s))
		}
		adv.On("Services").Return(uuids).Maybe()
	}
	return adv
}
