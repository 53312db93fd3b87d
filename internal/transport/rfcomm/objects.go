package rfcomm

import (
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/srg/relayctl/internal/peripheral"
)

// managedObjects is the reply shape of ObjectManager.GetManagedObjects.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

type deviceEntry struct {
	raw    peripheral.RawRecord
	paired bool
}

// devicesOf returns the Device1 objects below adapter ordered by path.
func devicesOf(objects managedObjects, adapter dbus.ObjectPath) []deviceEntry {
	paths := make([]dbus.ObjectPath, 0, len(objects))
	for path, ifaces := range objects {
		if _, ok := ifaces[deviceIface]; !ok {
			continue
		}
		if !strings.HasPrefix(string(path), string(adapter)+"/dev_") {
			continue
		}
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	out := make([]deviceEntry, 0, len(paths))
	for _, path := range paths {
		props := objects[path][deviceIface]
		addr := stringProp(props, "Address")
		if addr == "" {
			addr = addrFromPath(adapter, path)
		}
		name := stringProp(props, "Name")
		if name == "" {
			// BlueZ falls back to a dashed address for Alias; only keep
			// real aliases
			if alias := stringProp(props, "Alias"); alias != "" && !sameAddr(alias, addr) {
				name = alias
			}
		}
		out = append(out, deviceEntry{
			raw:    peripheral.RawRecord{Name: name, Address: addr},
			paired: boolProp(props, "Paired"),
		})
	}
	return out
}

func filterPaired(entries []deviceEntry, paired bool) []peripheral.RawRecord {
	var out []peripheral.RawRecord
	for _, e := range entries {
		if e.paired == paired {
			out = append(out, e.raw)
		}
	}
	return out
}

func stringProp(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

func boolProp(props map[string]dbus.Variant, key string) bool {
	v, ok := props[key]
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

func sameAddr(a, b string) bool {
	norm := func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, "-", ":")) }
	return norm(a) == norm(b)
}
