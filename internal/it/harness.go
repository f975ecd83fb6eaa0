// Package it holds end-to-end integration tests driving several
// peer.Peer values over one shared transport.Simulator, reproducing
// spec.md §8's scenario list. This replaces the teacher's internal/it,
// which spawned real OS processes (os/exec) and dialed real grpc
// connections to a built binary; this simulation never leaves the
// process, so Cluster builds in-memory peers instead.
package it

import (
	"math/rand"

	"kvstore/internal/config"
	"kvstore/internal/logsink"
	"kvstore/internal/params"
	"kvstore/internal/peer"
	"kvstore/internal/storage"
	"kvstore/internal/transport"
	"kvstore/internal/wire"
)

// Cluster wires N simulated peers over a shared transport.Simulator.
type Cluster struct {
	Sim    *transport.Simulator
	Params params.Params

	peers map[wire.Address]*peer.Peer
	sinks map[wire.Address]*logsink.MemorySink
}

// NewCluster builds n peers addressed config.NodeAddress(0..n-1), none
// of them bootstrapped yet.
func NewCluster(n int, p params.Params, seed int64) *Cluster {
	c := &Cluster{
		Sim:    transport.NewSimulator().WithSeed(seed),
		Params: p,
		peers:  make(map[wire.Address]*peer.Peer, n),
		sinks:  make(map[wire.Address]*logsink.MemorySink, n),
	}
	for i := 0; i < n; i++ {
		addr := config.NodeAddress(i)
		sink := logsink.NewMemorySink()
		c.peers[addr] = peer.New(addr, p, sink, storage.NewMapStore(), rand.New(rand.NewSource(seed+int64(i))))
		c.sinks[addr] = sink
	}
	return c
}

// GetNode returns the peer at the given address, or nil if it isn't
// part of the cluster (including peers removed by Kill).
func (c *Cluster) GetNode(addr wire.Address) *peer.Peer {
	return c.peers[addr]
}

// GetSink returns the log sink recording addr's events.
func (c *Cluster) GetSink(addr wire.Address) *logsink.MemorySink {
	return c.sinks[addr]
}

// Kill removes a peer from the tick loop entirely: it stops draining
// its inbox and stops being ticked, simulating an unclean crash rather
// than a graceful leave. Frames already addressed to it are simply
// never collected.
func (c *Cluster) Kill(addr wire.Address) {
	delete(c.peers, addr)
}

// Bootstrap runs every live peer's join step at tick 0.
func (c *Cluster) Bootstrap() {
	for _, p := range c.peers {
		p.Bootstrap(0, c.Sim)
	}
}

// Run advances every live peer, tick by tick, from "from" through "to"
// inclusive.
func (c *Cluster) Run(from, to int64) {
	for now := from; now <= to; now++ {
		for _, p := range c.peers {
			p.Tick(now, c.Sim)
		}
		c.Sim.AdvanceTick()
	}
}

// AllStores returns the current key's value and whether it is present,
// across every live peer, keyed by address.
func (c *Cluster) AllStores(key string) map[wire.Address]string {
	out := make(map[wire.Address]string)
	for addr, p := range c.peers {
		if v, ok := p.DHT.Store().Read(key); ok {
			out[addr] = v
		}
	}
	return out
}
