// Package params is the parameter facade: the handful of cluster-wide
// constants that the membership and DHT layers treat as externally
// supplied (spec calls this the "parameter facade" collaborator).
package params

// Params holds the tunables shared by every peer in a simulated cluster.
// Peers never mutate a Params; it's handed to them at construction time.
type Params struct {
	// NumNodes is the expected cluster size. Neither the protocol logic
	// nor the simulation driver reads it; the driver sizes the cluster
	// from the scenario's own node count.
	NumNodes int

	// TFail is the age, in ticks, past which a membership entry is
	// suspected and withheld from outbound gossip digests.
	TFail int64

	// TRemove is the age, in ticks, past which a suspected entry is
	// evicted from the membership table. Must be > TFail.
	TRemove int64

	// GossipFanout is the number of gossip iterations run per tick.
	GossipFanout int

	// RingSize is the modulus of the consistent-hash ring.
	RingSize uint64

	// TxTimeout is the number of ticks a client transaction may remain
	// pending before it is retired as a failure. Unlike the original
	// implementation, which hardcoded this to 3, it is a named parameter:
	// Default sets it to 3 and a scenario file may override it (see
	// DESIGN.md).
	TxTimeout int64
}

// Default returns the reference parameter set used by the test suite and
// the CLI when no scenario file overrides it.
func Default() Params {
	return Params{
		NumNodes:     10,
		TFail:        5,
		TRemove:      10,
		GossipFanout: 4,
		RingSize:     65536,
		TxTimeout:    3,
	}
}
