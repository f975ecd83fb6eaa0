// Package transport models the "lossy packet transport" collaborator of
// spec.md §6: unreliable, unordered, and acknowledgment-free delivery of
// opaque byte payloads between addresses. The protocol layers (gossip,
// dht) only ever see this interface; Simulator is the in-memory
// reference implementation used by tests and the CLI driver, matching
// spec.md's statement that the transport's production implementation is
// out of scope.
package transport

import (
	"math/rand"

	"kvstore/internal/wire"
)

// Layer tags which wire codec a Frame's payload was encoded with, so a
// Simulator carrying both membership and DHT traffic can hand each
// frame to the right decoder without peeking at the bytes.
type Layer int

const (
	Membership Layer = iota
	DHT
)

// Frame is one opaque payload in flight between two addresses.
type Frame struct {
	From    wire.Address
	To      wire.Address
	Layer   Layer
	Payload []byte
}

// Transport is what the protocol layers depend on: send a frame, and
// drain whatever has arrived for a given address. No ACKs, no ordering
// guarantee, no delivery guarantee — callers must tolerate loss and
// duplication by construction (this is why the DHT coordinator is a
// pending-transaction table with a timeout sweep rather than a blocking
// call).
type Transport interface {
	Send(f Frame)
	Drain(addr wire.Address) []Frame
}

// Simulator is an in-process Transport: frames sent during tick N are
// queued and become visible to Drain starting on tick N+1, modeling
// one tick of network latency. An optional LossRate drops frames
// pseudo-randomly at Send time, and WithSeed makes those drops
// reproducible in tests.
type Simulator struct {
	// LossRate is the probability, in [0,1], that a sent frame is
	// silently dropped instead of queued; 1 drops every frame.
	LossRate float64

	rng     *rand.Rand
	pending map[wire.Address][]Frame // visible next tick
	queued  map[wire.Address][]Frame // sent this tick, not yet visible
}

// NewSimulator builds a Simulator with no loss and a default-seeded
// random source. Use WithSeed for deterministic tests.
func NewSimulator() *Simulator {
	return &Simulator{
		rng:     rand.New(rand.NewSource(1)),
		pending: make(map[wire.Address][]Frame),
		queued:  make(map[wire.Address][]Frame),
	}
}

// WithSeed returns s with its random source reseeded, for reproducible
// loss simulation across test runs.
func (s *Simulator) WithSeed(seed int64) *Simulator {
	s.rng = rand.New(rand.NewSource(seed))
	return s
}

// Send queues f for delivery on the next AdvanceTick call. It never
// blocks and never returns an error: a full drop is indistinguishable
// from a frame lost in transit, which is the point.
func (s *Simulator) Send(f Frame) {
	if s.LossRate > 0 && s.rng.Float64() < s.LossRate {
		return
	}
	s.queued[f.To] = append(s.queued[f.To], f)
}

// Drain returns and clears every frame currently visible to addr. It
// does not itself advance the simulated network clock; call
// AdvanceTick once per logical tick, after every peer has drained.
func (s *Simulator) Drain(addr wire.Address) []Frame {
	frames := s.pending[addr]
	delete(s.pending, addr)
	return frames
}

// AdvanceTick moves every frame sent since the last call into the
// pending set so the next round of Drain calls sees it. Call this once
// per tick, after all peers have had a chance to Drain the prior round.
func (s *Simulator) AdvanceTick() {
	for addr, frames := range s.queued {
		s.pending[addr] = append(s.pending[addr], frames...)
	}
	s.queued = make(map[wire.Address][]Frame)
}
