package peripheral

import (
	"fmt"
	"strings"
)

// RawRecord is a device entry exactly as a transport listing reported it.
// Address is preferred over ID; either may be empty.
type RawRecord struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	ID      string `json:"id,omitempty"`
}

// Key returns the channel address used to reach the device: the address
// when present, otherwise the opaque id.
func (r RawRecord) Key() string {
	if a := strings.TrimSpace(r.Address); a != "" {
		return a
	}
	return strings.TrimSpace(r.ID)
}

// Record is a candidate peripheral built from one discovery pass.
// ID is the unique key; records with the same ID are the same device.
type Record struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Paired bool   `json:"paired"`
}

// NewRecord normalizes a raw listing entry. It returns false when the
// entry carries neither an address nor an id.
func NewRecord(raw RawRecord, paired bool) (Record, bool) {
	id := raw.Key()
	if id == "" {
		return Record{}, false
	}
	return Record{ID: id, Name: raw.Name, Paired: paired}, true
}

// DisplayName returns the name when known, otherwise the id.
func (r Record) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// PreferredMode is the first link mode to try for this record.
// Unpaired modules of this class usually only accept the insecure channel.
func (r Record) PreferredMode() Mode {
	if r.Paired {
		return Secure
	}
	return Insecure
}

func (r Record) String() string {
	return fmt.Sprintf("%s (%s, paired=%t)", r.DisplayName(), r.ID, r.Paired)
}

// Mode selects the RFCOMM trust level of a connection attempt.
type Mode int

const (
	Secure Mode = iota
	Insecure
)

// Opposite returns the fallback mode.
func (m Mode) Opposite() Mode {
	if m == Secure {
		return Insecure
	}
	return Secure
}

func (m Mode) String() string {
	switch m {
	case Secure:
		return "secure"
	case Insecure:
		return "insecure"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Command is one of the two words understood by the peripheral.
type Command int

const (
	Off Command = iota
	On
)

func (c Command) String() string {
	if c == On {
		return "on"
	}
	return "off"
}

// ParseCommand accepts "on"/"off" in any case.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return On, nil
	case "off":
		return Off, nil
	default:
		return Off, fmt.Errorf("unknown command %q (must be on or off)", s)
	}
}

// Payloads maps command words to the terminated text sent verbatim
// over the serial channel.
type Payloads struct {
	On  []byte
	Off []byte
}

// DefaultPayloads uses CRLF termination, which every module in this
// family accepts.
func DefaultPayloads() Payloads {
	return Payloads{On: []byte("ON\r\n"), Off: []byte("OFF\r\n")}
}

// For returns the payload for cmd.
func (p Payloads) For(cmd Command) []byte {
	if cmd == On {
		return p.On
	}
	return p.Off
}
