// Package peer assembles one cluster member out of the membership,
// ring, and dht layers, driven entirely by Tick (spec.md §5): there is
// no internal goroutine, timer, or lock anywhere in this package. This
// replaces the teacher's internal/node, which wired the same pieces
// together around a grpc.Server and a background-probing
// gossip.Membership.
package peer

import (
	"math/rand"

	"kvstore/internal/dht"
	"kvstore/internal/gossip"
	"kvstore/internal/logsink"
	"kvstore/internal/params"
	"kvstore/internal/ring"
	"kvstore/internal/storage"
	"kvstore/internal/transport"
	"kvstore/internal/wire"
)

// Peer is one simulated cluster member.
type Peer struct {
	Addr       wire.Address
	Membership *gossip.Membership
	DHT        *dht.Layer

	params params.Params
}

// New builds a Peer with fresh membership and DHT layers.
func New(addr wire.Address, p params.Params, log logsink.Sink, store storage.Store, rng *rand.Rand) *Peer {
	return &Peer{
		Addr:       addr,
		Membership: gossip.New(addr, p, log, rng),
		DHT:        dht.New(addr, p, log, store),
		params:     p,
	}
}

// Bootstrap joins the cluster's membership protocol.
func (pr *Peer) Bootstrap(now int64, t transport.Transport) {
	pr.Membership.Bootstrap(now, t)
}

// Tick advances this peer by one logical step: drain and dispatch every
// inbound frame to the right layer by its Layer tag, run the
// membership protocol's per-tick duties, rebuild the ring if
// membership changed, and sweep timed-out DHT transactions.
func (pr *Peer) Tick(now int64, t transport.Transport) {
	for _, f := range t.Drain(pr.Addr) {
		switch f.Layer {
		case transport.Membership:
			pr.Membership.Deliver(now, t, f)
		case transport.DHT:
			pr.DHT.Deliver(now, t, f)
		}
	}

	pr.Membership.Tick(now, t)
	pr.rebuildRing(now, t)
	pr.DHT.TimeoutSweep(now)
}

func (pr *Peer) rebuildRing(now int64, t transport.Transport) {
	if pr.Membership.State() != gossip.StateInGroup {
		return
	}
	entries := pr.Membership.Snapshot()
	addrs := make([]wire.Address, 0, len(entries))
	for _, e := range entries {
		addrs = append(addrs, e.Addr)
	}
	r := ring.New(addrs, pr.params.RingSize)
	pr.DHT.SetRing(now, r, t)
}

// Create, Read, Update, and Delete forward to the DHT layer's
// client-side operations, using this peer as coordinator.
func (pr *Peer) Create(now int64, key, value string, t transport.Transport) int32 {
	return pr.DHT.Create(now, key, value, t)
}

func (pr *Peer) Read(now int64, key string, t transport.Transport) int32 {
	return pr.DHT.Read(now, key, t)
}

func (pr *Peer) Update(now int64, key, value string, t transport.Transport) int32 {
	return pr.DHT.Update(now, key, value, t)
}

func (pr *Peer) Delete(now int64, key string, t transport.Transport) int32 {
	return pr.DHT.Delete(now, key, t)
}
