// Package config loads static table-entry bootstrap data for the
// router program in gen from a YAML file, the same static-configuration
// role a routing daemon's startup config plays before any control-plane
// API call has run.
package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/netrack/ppl/gen"
	"github.com/netrack/ppl/table"
)

// Entry is one YAML-configured router table row: a destination prefix,
// the egress port to forward matching traffic out of, the MAC address
// of the next hop on that port, and a priority used to break ties
// between overlapping entries of equal prefix length.
type Entry struct {
	Name     string `yaml:"name"`
	Prefix   string `yaml:"prefix"`
	Port     uint8  `yaml:"port"`
	NextHop  string `yaml:"next_hop"`
	Priority int    `yaml:"priority"`
}

// File is the top-level shape of a table-entry config file.
type File struct {
	Entries []Entry `yaml:"entries"`
}

// Load parses path as a File.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// TableEntries converts f's entries into router table entries ready to
// Insert, parsing each entry's prefix and next-hop MAC and failing
// fast on the first malformed one along with its name, so a config
// typo is easy to place.
func (f *File) TableEntries() ([]table.TableEntry[gen.RouterAction], error) {
	out := make([]table.TableEntry[gen.RouterAction], 0, len(f.Entries))
	for _, e := range f.Entries {
		_, ipnet, err := net.ParseCIDR(e.Prefix)
		if err != nil {
			return nil, fmt.Errorf("config: entry %q: prefix %q: %w", e.Name, e.Prefix, err)
		}
		ones, _ := ipnet.Mask.Size()

		mac, err := net.ParseMAC(e.NextHop)
		if err != nil {
			return nil, fmt.Errorf("config: entry %q: next_hop %q: %w", e.Name, e.NextHop, err)
		}
		var nextHop [6]byte
		copy(nextHop[:], mac)

		out = append(out, table.TableEntry[gen.RouterAction]{
			Name:     e.Name,
			Priority: e.Priority,
			Key:      table.KeySet{table.LpmKey(table.Prefix{Addr: ipnet.IP.To16(), Len: ones})},
			Action:   gen.Route(e.Port, nextHop),
		})
	}
	return out, nil
}
