package discovery_test

import (
	"context"
	"errors"
	"testing"

	"github.com/srg/relayctl/discovery"
	"github.com/srg/relayctl/internal/peripheral"
	"github.com/srg/relayctl/internal/signal"
	"github.com/srg/relayctl/internal/testutils"
	"github.com/srg/relayctl/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type AggregatorTestSuite struct {
	suite.Suite

	helper *testutils.TestHelper
	bus    *signal.Bus
}

func (s *AggregatorTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.bus = signal.NewBus(32)
}

func (s *AggregatorTestSuite) discover(t peripheral.Transport) []peripheral.Record {
	agg := discovery.NewAggregator(t, s.helper.Logger, &discovery.Options{Signals: s.bus})
	return agg.Discover(context.Background())
}

func (s *AggregatorTestSuite) TestSingleUnpairedModule() {
	// GOAL: Verify an unpaired-only result passes through unchanged
	//
	// TEST SCENARIO: empty paired list, one unpaired HC-06 → one unpaired record

	ft := testutils.NewFakeTransport().
		WithUnpaired(peripheral.RawRecord{Name: "HC-06_Module", Address: "A1"})

	records := s.discover(ft)

	s.Equal([]peripheral.Record{{ID: "A1", Name: "HC-06_Module", Paired: false}}, records)
	s.Equal([]string{testutils.OpListPaired, testutils.OpDiscoverUnpaired}, ft.Ops(), "paired list MUST be fetched before unpaired discovery")
}

func (s *AggregatorTestSuite) TestPairedWinsOnCollision() {
	// GOAL: Verify duplicate ids collapse into one paired record, sorted by name
	//
	// TEST SCENARIO: paired {B2 XYZ, C3 hc-06}, unpaired {C3 hc-06} → [C3 paired, B2 paired]

	ft := testutils.NewFakeTransport().
		WithPaired(
			peripheral.RawRecord{Name: "XYZ", Address: "B2"},
			peripheral.RawRecord{Name: "hc-06", Address: "C3"},
		).
		WithUnpaired(peripheral.RawRecord{Name: "hc-06", Address: "C3"})

	records := s.discover(ft)

	s.Equal([]peripheral.Record{
		{ID: "C3", Name: "hc-06", Paired: true},
		{ID: "B2", Name: "XYZ", Paired: true},
	}, records)
}

func (s *AggregatorTestSuite) TestOrdering() {
	// GOAL: Verify paired records precede unpaired ones and names sort case-insensitively
	//
	// TEST SCENARIO: mixed input → paired group sorted, then unpaired group sorted, equal names by id

	ft := testutils.NewFakeTransport().
		WithPaired(
			peripheral.RawRecord{Name: "zeta", Address: "P3"},
			peripheral.RawRecord{Name: "Alpha", Address: "P1"},
		).
		WithUnpaired(
			peripheral.RawRecord{Name: "beta", Address: "U2"},
			peripheral.RawRecord{Name: "Beta", Address: "U1"},
			peripheral.RawRecord{Address: "U0"},
			peripheral.RawRecord{Name: "AAA", Address: "U9"},
		)

	records := s.discover(ft)

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	s.Equal([]string{"P1", "P3", "U0", "U9", "U1", "U2"}, ids)
}

func (s *AggregatorTestSuite) TestRecordsWithoutIDAreDropped() {
	ft := testutils.NewFakeTransport().
		WithPaired(peripheral.RawRecord{Name: "HC-06"}).
		WithUnpaired(peripheral.RawRecord{Name: "JDY"}, peripheral.RawRecord{Name: "JDY", ID: "opaque-1"})

	records := s.discover(ft)

	s.Equal([]peripheral.Record{{ID: "opaque-1", Name: "JDY"}}, records)
}

func (s *AggregatorTestSuite) TestFetchFailuresAreNotFatal() {
	// GOAL: Verify each listing failure is swallowed independently
	//
	// TEST SCENARIO: one listing fails → the other listing's records are still returned

	s.Run("paired listing fails", func() {
		ft := testutils.NewFakeTransport().
			FailPaired(errors.New("dbus: no adapter")).
			WithUnpaired(peripheral.RawRecord{Name: "HC-05", Address: "U1"})

		records := s.discover(ft)

		s.Equal([]peripheral.Record{{ID: "U1", Name: "HC-05"}}, records)
	})

	s.Run("unpaired discovery fails", func() {
		ft := testutils.NewFakeTransport().
			WithPaired(peripheral.RawRecord{Name: "HC-05", Address: "P1"}).
			FailUnpaired(errors.New("discovery in progress"))

		records := s.discover(ft)

		s.Equal([]peripheral.Record{{ID: "P1", Name: "HC-05", Paired: true}}, records)
	})

	s.Run("both fail", func() {
		m := mocks.NewMockTransport(s.T())
		m.On("ListPaired", mock.Anything).Return(nil, errors.New("a")).Once()
		m.On("DiscoverUnpaired", mock.Anything).Return(nil, errors.New("b")).Once()

		records := s.discover(m)

		s.Empty(records)
		s.Equal(discovery.MsgNoDevices, s.bus.LastInfo(), "empty result MUST publish the no-devices message")
	})
}

func (s *AggregatorTestSuite) TestScanningFlag() {
	// GOAL: Verify the scanning flag is raised during discovery and cleared afterwards
	//
	// TEST SCENARIO: observe the bus from inside the listing call → flag set; after return → cleared

	var during bool
	m := mocks.NewMockTransport(s.T())
	m.On("ListPaired", mock.Anything).
		Run(func(mock.Arguments) { during = s.bus.Progress().Scanning }).
		Return([]peripheral.RawRecord{{Name: "HC-06", Address: "A"}}, nil)
	m.On("DiscoverUnpaired", mock.Anything).Return(nil, nil)

	s.bus.Error("stale error")
	records := s.discover(m)

	s.Len(records, 1)
	s.True(during, "scanning flag MUST be set while listing")
	s.False(s.bus.Progress().Scanning, "scanning flag MUST be cleared after discovery")
	s.Empty(s.bus.LastError(), "previous messages MUST be cleared at the start of a pass")
	s.Empty(s.bus.LastInfo(), "non-empty result MUST NOT publish the no-devices message")
}

func TestAggregatorTestSuite(t *testing.T) {
	suite.Run(t, new(AggregatorTestSuite))
}
