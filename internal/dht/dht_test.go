package dht

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kvstore/internal/logsink"
	"kvstore/internal/params"
	"kvstore/internal/ring"
	"kvstore/internal/storage"
	"kvstore/internal/transport"
	"kvstore/internal/wire"
)

func addr(id uint32) wire.Address { return wire.Address{ID: id, Port: uint16(7000 + id)} }

func addrs(n int) []wire.Address {
	out := make([]wire.Address, n)
	for i := 0; i < n; i++ {
		out[i] = addr(uint32(i + 1))
	}
	return out
}

type testCluster struct {
	sim    *transport.Simulator
	layers map[wire.Address]*Layer
	sinks  map[wire.Address]*logsink.MemorySink
}

func newTestCluster(n int, p params.Params) *testCluster {
	sim := transport.NewSimulator()
	r := ring.New(addrs(n), p.RingSize)
	c := &testCluster{sim: sim, layers: map[wire.Address]*Layer{}, sinks: map[wire.Address]*logsink.MemorySink{}}
	for _, a := range addrs(n) {
		sink := logsink.NewMemorySink()
		l := New(a, p, sink, storage.NewMapStore())
		l.SetRing(0, r, sim)
		c.layers[a] = l
		c.sinks[a] = sink
	}
	return c
}

// tick drains every layer's inbox and delivers it, then advances the
// simulated network clock, modeling one full round of the discrete
// tick loop across the whole cluster.
func (c *testCluster) tick(now int64) {
	for a, l := range c.layers {
		for _, f := range c.sim.Drain(a) {
			l.Deliver(now, c.sim, f)
		}
	}
	for _, l := range c.layers {
		l.TimeoutSweep(now)
	}
	c.sim.AdvanceTick()
}

func TestDHT_CreateSucceedsWithThreeReplicas(t *testing.T) {
	p := params.Default()
	c := newTestCluster(5, p)
	coordinator := c.layers[addr(1)]

	coordinator.Create(0, "foo", "bar", c.sim)
	require.Equal(t, 1, coordinator.PendingCount())

	for tick := int64(1); tick <= 3 && coordinator.PendingCount() > 0; tick++ {
		c.tick(tick)
	}

	require.Equal(t, 0, coordinator.PendingCount())
	sink := c.sinks[addr(1)]
	require.Condition(t, func() bool {
		for _, e := range sink.Events {
			if e.Kind == "create_success" && e.IsCoordinator && e.Key == "foo" {
				return true
			}
		}
		return false
	})

	// All three replicas should actually hold the key now.
	replicas := coordinator.ring.FindNodes("foo")
	require.Len(t, replicas, 3)
	found := 0
	for _, r := range replicas {
		if v, ok := c.layers[r.Addr].Store().Read("foo"); ok && v == "bar" {
			found++
		}
	}
	require.Equal(t, 3, found)
}

func TestDHT_ReadSucceedsWithOneReplicaDown(t *testing.T) {
	p := params.Default()
	c := newTestCluster(5, p)
	coordinator := c.layers[addr(1)]

	coordinator.Create(0, "foo", "bar", c.sim)
	for tick := int64(1); tick <= 3 && coordinator.PendingCount() > 0; tick++ {
		c.tick(tick)
	}
	require.Equal(t, 0, coordinator.PendingCount())

	replicas := coordinator.ring.FindNodes("foo")
	require.Len(t, replicas, 3)
	downed := replicas[0].Addr
	delete(c.layers, downed) // simulate node failure: it stops participating

	coordinator.Read(10, "foo", c.sim)
	for tick := int64(11); tick <= 14 && coordinator.PendingCount() > 0; tick++ {
		c.tick(tick)
	}

	require.Equal(t, 0, coordinator.PendingCount())
	sink := c.sinks[addr(1)]
	var last logsink.Event
	for _, e := range sink.Events {
		if e.Kind == "read_success" || e.Kind == "read_fail" {
			last = e
		}
	}
	require.Equal(t, "read_success", last.Kind)
	require.Equal(t, "bar", last.Value)
}

func TestDHT_ReadFailsWithTwoReplicasDown(t *testing.T) {
	p := params.Default()
	c := newTestCluster(5, p)
	coordinator := c.layers[addr(1)]

	coordinator.Create(0, "foo", "bar", c.sim)
	for tick := int64(1); tick <= 3 && coordinator.PendingCount() > 0; tick++ {
		c.tick(tick)
	}

	replicas := coordinator.ring.FindNodes("foo")
	require.Len(t, replicas, 3)
	delete(c.layers, replicas[0].Addr)
	delete(c.layers, replicas[1].Addr)

	coordinator.Read(10, "foo", c.sim)
	for tick := int64(11); tick <= 15 && coordinator.PendingCount() > 0; tick++ {
		c.tick(tick)
	}

	require.Equal(t, 0, coordinator.PendingCount(), "transaction should have timed out")
	sink := c.sinks[addr(1)]
	last := sink.Events[len(sink.Events)-1]
	require.Equal(t, "read_fail", last.Kind)
	require.True(t, last.IsCoordinator)
}

func TestDHT_StabilizeReCreatesKeysOnRingChange(t *testing.T) {
	p := params.Default()
	c := newTestCluster(5, p)
	coordinator := c.layers[addr(1)]

	coordinator.Create(0, "foo", "bar", c.sim)
	for tick := int64(1); tick <= 3 && coordinator.PendingCount() > 0; tick++ {
		c.tick(tick)
	}

	newAddr := addr(6)
	sink := logsink.NewMemorySink()
	newLayer := New(newAddr, p, sink, storage.NewMapStore())
	c.layers[newAddr] = newLayer
	c.sinks[newAddr] = sink

	bigRing := ring.New(addrs(6), p.RingSize)
	for _, l := range c.layers {
		l.SetRing(100, bigRing, c.sim)
	}
	c.tick(101)
	c.tick(102)

	replicas := bigRing.FindNodes("foo")
	require.Len(t, replicas, 3)
	found := 0
	for _, r := range replicas {
		if v, ok := c.layers[r.Addr].Store().Read("foo"); ok && v == "bar" {
			found++
		}
	}
	require.Equal(t, 3, found, "stabilization should have propagated foo to its new replica triple")
}

func TestDHT_DeliverIgnoresMalformedPayload(t *testing.T) {
	p := params.Default()
	c := newTestCluster(3, p)
	l := c.layers[addr(1)]
	require.NotPanics(t, func() {
		l.Deliver(0, c.sim, transport.Frame{Payload: []byte("not a valid message")})
	})
}
