package peripheral_test

import (
	"testing"

	"github.com/srg/relayctl/internal/peripheral"
	"github.com/stretchr/testify/assert"
)

func TestRecord_PreferredMode(t *testing.T) {
	assert.Equal(t, peripheral.Secure, peripheral.Record{ID: "A", Paired: true}.PreferredMode())
	assert.Equal(t, peripheral.Insecure, peripheral.Record{ID: "A", Paired: false}.PreferredMode())
}

func TestMode_Opposite(t *testing.T) {
	assert.Equal(t, peripheral.Insecure, peripheral.Secure.Opposite())
	assert.Equal(t, peripheral.Secure, peripheral.Insecure.Opposite())
	assert.Equal(t, "secure", peripheral.Secure.String())
	assert.Equal(t, "insecure", peripheral.Insecure.String())
}

func TestRecord_DisplayName(t *testing.T) {
	assert.Equal(t, "HC-06", peripheral.Record{ID: "A1", Name: "HC-06"}.DisplayName())
	assert.Equal(t, "A1", peripheral.Record{ID: "A1"}.DisplayName())
}

func TestNewRecord(t *testing.T) {
	tests := []struct {
		name   string
		raw    peripheral.RawRecord
		wantID string
		wantOK bool
	}{
		{name: "address wins over id", raw: peripheral.RawRecord{Address: "AA", ID: "BB"}, wantID: "AA", wantOK: true},
		{name: "id used when address blank", raw: peripheral.RawRecord{Address: "  ", ID: "BB"}, wantID: "BB", wantOK: true},
		{name: "no key", raw: peripheral.RawRecord{Name: "x"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := peripheral.NewRecord(tt.raw, false)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, rec.ID)
		})
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := peripheral.ParseCommand("ON")
	assert.NoError(t, err)
	assert.Equal(t, peripheral.On, cmd)

	cmd, err = peripheral.ParseCommand(" off ")
	assert.NoError(t, err)
	assert.Equal(t, peripheral.Off, cmd)

	_, err = peripheral.ParseCommand("blink")
	assert.Error(t, err)
}

func TestPayloads(t *testing.T) {
	p := peripheral.DefaultPayloads()

	assert.Equal(t, []byte("ON\r\n"), p.For(peripheral.On))
	assert.Equal(t, []byte("OFF\r\n"), p.For(peripheral.Off))
}
