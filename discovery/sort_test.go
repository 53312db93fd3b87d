package discovery

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/srg/relayctl/internal/peripheral"
	"github.com/stretchr/testify/assert"
)

func TestSort_Invariants(t *testing.T) {
	names := []string{"HC-06", "hc-05", "Linvor", "", "bt04", "JDY-31", "xyz", "XYZ"}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		records := make([]peripheral.Record, 0, 12)
		for i := 0; i < 12; i++ {
			records = append(records, peripheral.Record{
				ID:     string(rune('A' + rng.Intn(26))),
				Name:   names[rng.Intn(len(names))],
				Paired: rng.Intn(2) == 0,
			})
		}

		Sort(records)

		for i := 1; i < len(records); i++ {
			prev, cur := records[i-1], records[i]
			if prev.Paired != cur.Paired {
				assert.True(t, prev.Paired, "paired records MUST precede unpaired ones")
				continue
			}
			assert.LessOrEqual(t, strings.ToLower(prev.Name), strings.ToLower(cur.Name), "names MUST be non-decreasing within a group")
		}
	}
}
