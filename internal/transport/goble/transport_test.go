package goble

import (
	"context"
	"errors"
	"testing"

	"github.com/go-ble/ble"
	"github.com/srg/relayctl/internal/peripheral"
	"github.com/srg/relayctl/internal/testutils"
	"github.com/srg/relayctl/internal/testutils/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func uartProfile(props ble.Property) *ble.Profile {
	return &ble.Profile{Services: []*ble.Service{
		{UUID: ble.UUID16(0x180A)},
		{
			UUID: hm10Service,
			Characteristics: []*ble.Characteristic{
				{UUID: hm10Char, Property: props},
			},
		},
	}}
}

type TransportTestSuite struct {
	suite.Suite
	transport *Transport
	ads       []ble.Advertisement
	client    *mocks.MockUARTClient
	dialErr   error
	dialed    []string
}

func (s *TransportTestSuite) SetupTest() {
	s.ads = nil
	s.dialErr = nil
	s.dialed = nil
	s.client = mocks.NewMockUARTClient(s.T())

	s.transport = New(testutils.NewTestHelper(s.T()).Logger, nil)
	s.transport.scan = func(ctx context.Context, _ bool, h ble.AdvHandler) error {
		for _, adv := range s.ads {
			h(adv)
		}
		return context.DeadlineExceeded
	}
	s.transport.dial = func(_ context.Context, addr string) (uartClient, error) {
		s.dialed = append(s.dialed, addr)
		if s.dialErr != nil {
			return nil, s.dialErr
		}
		return s.client, nil
	}
}

func (s *TransportTestSuite) TestDiscoverUnpairedMergesByAddress() {
	// GOAL: Repeated advertisements collapse to one record that keeps the name
	//
	// TEST SCENARIO: name-less adv, named adv, name-less adv for one address + another device → 2 records

	s.ads = []ble.Advertisement{
		testutils.NewAdvertisementBuilder().WithAddress("aa:bb:cc:00:00:01").Build(),
		testutils.NewAdvertisementBuilder().WithAddress("aa:bb:cc:00:00:01").WithName("HC-08").Build(),
		testutils.NewAdvertisementBuilder().WithAddress("aa:bb:cc:00:00:01").Build(),
		testutils.NewAdvertisementBuilder().WithAddress("11:22:33:44:55:66").WithName("Mi Band").Build(),
	}

	got, err := s.transport.DiscoverUnpaired(context.Background())
	s.Require().NoError(err, "scan deadline MUST NOT be an error")

	s.Equal([]peripheral.RawRecord{
		{Name: "Mi Band", Address: "11:22:33:44:55:66"},
		{Name: "HC-08", Address: "AA:BB:CC:00:00:01"},
	}, got)
}

func (s *TransportTestSuite) TestDiscoverUnpairedRadioOff() {
	s.transport.scan = func(context.Context, bool, ble.AdvHandler) error {
		return errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?")
	}

	_, err := s.transport.DiscoverUnpaired(context.Background())
	s.ErrorIs(err, peripheral.ErrRadioOff)
}

func (s *TransportTestSuite) TestListPairedIsEmpty() {
	got, err := s.transport.ListPaired(context.Background())
	s.NoError(err)
	s.Empty(got)
}

func (s *TransportTestSuite) TestConnectSecureUnsupported() {
	_, err := s.transport.ConnectSecure(context.Background(), "AA:BB:CC:00:00:01")
	s.ErrorIs(err, peripheral.ErrUnsupported)
	s.Empty(s.dialed, "MUST NOT dial")
}

func (s *TransportTestSuite) TestConnectInsecureWrites() {
	profile := uartProfile(ble.CharRead | ble.CharWriteNR | ble.CharNotify)
	char := profile.Services[1].Characteristics[0]

	s.client.On("DiscoverProfile", true).Return(profile, nil).Once()
	s.client.On("WriteCharacteristic", char, []byte("ON\r\n"), true).Return(nil).Once()
	s.client.On("CancelConnection").Return(nil).Once()

	sess, err := s.transport.ConnectInsecure(context.Background(), "AA:BB:CC:00:00:01")
	s.Require().NoError(err)
	s.Equal([]string{"AA:BB:CC:00:00:01"}, s.dialed)

	s.Require().NoError(sess.Write(context.Background(), []byte("ON\r\n")))
	s.Require().NoError(sess.Close())
	s.NoError(sess.Close(), "second close MUST be a no-op")

	err = sess.Write(context.Background(), []byte("OFF\r\n"))
	s.ErrorIs(err, peripheral.ErrNotConnected)
}

func (s *TransportTestSuite) TestConnectInsecureChunksLongPayloads() {
	profile := uartProfile(ble.CharWrite)
	payload := make([]byte, chunkSize+5)

	s.client.On("DiscoverProfile", true).Return(profile, nil).Once()
	s.client.On("WriteCharacteristic", mock.Anything, mock.MatchedBy(func(b []byte) bool { return len(b) == chunkSize }), false).Return(nil).Once()
	s.client.On("WriteCharacteristic", mock.Anything, mock.MatchedBy(func(b []byte) bool { return len(b) == 5 }), false).Return(nil).Once()

	sess, err := s.transport.ConnectInsecure(context.Background(), "AA:BB:CC:00:00:01")
	s.Require().NoError(err)
	s.NoError(sess.Write(context.Background(), payload))
}

func (s *TransportTestSuite) TestConnectInsecureWithoutUART() {
	s.client.On("DiscoverProfile", true).Return(&ble.Profile{}, nil).Once()
	s.client.On("CancelConnection").Return(nil).Once()

	_, err := s.transport.ConnectInsecure(context.Background(), "AA:BB:CC:00:00:01")
	s.ErrorIs(err, peripheral.ErrUnsupported)
}

func (s *TransportTestSuite) TestConnectInsecureDialFailure() {
	s.dialErr = errors.New("connection timed out")

	_, err := s.transport.ConnectInsecure(context.Background(), "AA:BB:CC:00:00:01")
	s.ErrorIs(err, s.dialErr)
}

func (s *TransportTestSuite) TestAdapterFactoryFailure() {
	orig := DeviceFactory
	DeviceFactory = func() (ble.Device, error) { return nil, errors.New("bluetooth is turned off") }
	defer func() { DeviceFactory = orig }()

	t := New(nil, nil)
	_, err := t.DiscoverUnpaired(context.Background())
	s.ErrorIs(err, peripheral.ErrRadioOff)
	s.NoError(t.Close())
}

func TestTransportTestSuite(t *testing.T) {
	suite.Run(t, new(TransportTestSuite))
}

func TestFindUART(t *testing.T) {
	char, noRsp := findUART(uartProfile(ble.CharWrite | ble.CharWriteNR))
	require.NotNil(t, char)
	assert.False(t, noRsp, "acknowledged writes preferred when offered")

	char, _ = findUART(uartProfile(ble.CharRead | ble.CharNotify))
	assert.Nil(t, char, "read-only characteristic MUST be skipped")

	nus := &ble.Profile{Services: []*ble.Service{{
		UUID:            nusService,
		Characteristics: []*ble.Characteristic{{UUID: nusRX, Property: ble.CharWriteNR}},
	}}}
	char, noRsp = findUART(nus)
	require.NotNil(t, char)
	assert.True(t, noRsp)

	char, _ = findUART(nil)
	assert.Nil(t, char)
}
