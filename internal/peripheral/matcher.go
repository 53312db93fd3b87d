package peripheral

import "strings"

// Pattern is one name heuristic identifying the peripheral family.
type Pattern struct {
	Name   string
	prefix bool
}

// Matches reports whether name satisfies the pattern, ignoring case.
func (p Pattern) Matches(name string) bool {
	n := strings.ToUpper(name)
	if p.prefix {
		return strings.HasPrefix(n, p.Name)
	}
	return strings.Contains(n, p.Name)
}

// Patterns is checked in order; the first match wins.
var Patterns = []Pattern{
	{Name: "HC-06"},
	{Name: "HC-05"},
	{Name: "LINVOR"},
	{Name: "BT", prefix: true},
	{Name: "JDY"},
}

// MatchName returns the first pattern matching name.
func MatchName(name string) (Pattern, bool) {
	if name == "" {
		return Pattern{}, false
	}
	for _, p := range Patterns {
		if p.Matches(name) {
			return p, true
		}
	}
	return Pattern{}, false
}

// Match classifies a raw listing entry. Entries without an address or id
// are rejected even when the name matches.
func Match(raw RawRecord, paired bool) (Record, bool) {
	if _, ok := MatchName(raw.Name); !ok {
		return Record{}, false
	}
	return NewRecord(raw, paired)
}

// FirstMatch returns the first entry of raws that Match accepts.
func FirstMatch(raws []RawRecord, paired bool) (Record, bool) {
	for _, raw := range raws {
		if rec, ok := Match(raw, paired); ok {
			return rec, true
		}
	}
	return Record{}, false
}
