// Package config loads a simulated cluster's scenario description. It
// keeps the teacher's ParsePeers comma-list parser, used by the CLI's
// --peers flag to pin an explicit node address list instead of the
// sequentially generated one, and adds a YAML scenario loader
// (gopkg.in/yaml.v3, promoted here from the teacher's indirect-only
// dependency) describing the cluster-wide parameters a real deployment
// would read from flags or a config service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"kvstore/internal/params"
	"kvstore/internal/wire"
)

// Peer is one "id=addr" entry parsed from a comma-separated peer list,
// carried over from the teacher's CLI conventions.
type Peer struct {
	ID   string
	Addr string
}

// ParsePeers parses a comma-separated list of peers in the format
// "id1=addr1,id2=addr2,id3=addr3".
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])
		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{ID: id, Addr: addr})
	}

	return peers, nil
}

// Scenario is the YAML-described shape of a simulated cluster run.
type Scenario struct {
	NumNodes     int     `yaml:"num_nodes"`
	TFail        int64   `yaml:"t_fail"`
	TRemove      int64   `yaml:"t_remove"`
	GossipFanout int     `yaml:"gossip_fanout"`
	RingSize     uint64  `yaml:"ring_size"`
	TxTimeout    int64   `yaml:"tx_timeout"`
	Ticks        int64   `yaml:"ticks"`
	LossRate     float64 `yaml:"loss_rate"`
	Introducer   string  `yaml:"introducer"`
}

// LoadScenario reads and parses a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parsing scenario %s: %w", path, err)
	}
	if s.NumNodes <= 0 {
		return nil, fmt.Errorf("config: scenario %s: num_nodes must be positive", path)
	}
	return &s, nil
}

// Params converts a Scenario into the params.Params the protocol layers
// consume, filling in defaults for anything left unset.
func (s *Scenario) Params() params.Params {
	d := params.Default()
	p := params.Params{
		NumNodes:     s.NumNodes,
		TFail:        orDefault(s.TFail, d.TFail),
		TRemove:      orDefault(s.TRemove, d.TRemove),
		GossipFanout: orDefaultInt(s.GossipFanout, d.GossipFanout),
		RingSize:     orDefaultU64(s.RingSize, d.RingSize),
		TxTimeout:    orDefault(s.TxTimeout, d.TxTimeout),
	}
	return p
}

func orDefault(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultU64(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

// IntroducerAddress parses the scenario's introducer override, falling
// back to wire.Introducer if unset.
func (s *Scenario) IntroducerAddress() (wire.Address, error) {
	if s.Introducer == "" {
		return wire.Introducer, nil
	}
	return wire.ParseAddress(s.Introducer)
}

// NodeAddress derives the i-th simulated node's address (0-indexed):
// NodeAddress(0) is wire.Introducer, and every later node gets ID i+1
// and port 7000+i.
func NodeAddress(i int) wire.Address {
	if i == 0 {
		return wire.Introducer
	}
	return wire.Address{ID: uint32(i + 1), Port: uint16(7000 + i)}
}

// String renders a Peer as "id=addr", the inverse of one ParsePeers
// entry.
func (p Peer) String() string {
	return p.ID + "=" + p.Addr
}

// ParsePort turns a decimal string into a wire.Address port.
func ParsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("config: invalid port %q: %w", s, err)
	}
	return uint16(v), nil
}
