package it

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvstore/internal/config"
	"kvstore/internal/logsink"
	"kvstore/internal/params"
	"kvstore/internal/wire"
)

// Scenario 1: a single-node cluster boots and is its own sole member.
func TestScenario1_SingleNodeBoot(t *testing.T) {
	p := params.Default()
	c := NewCluster(1, p, 100)
	c.Bootstrap()
	c.Run(1, 3)

	self := config.NodeAddress(0)
	node := c.GetNode(self)
	require.NotNil(t, node)
	assert.True(t, node.Membership.Contains(self))
	assert.Len(t, node.Membership.Snapshot(), 1)
}

// Scenario 2: a second node joins through the introducer and both
// converge on a shared membership view.
func TestScenario2_TwoNodeJoin(t *testing.T) {
	p := params.Default()
	c := NewCluster(2, p, 101)
	c.Bootstrap()
	c.Run(1, 6)

	for i := 0; i < 2; i++ {
		addr := config.NodeAddress(i)
		node := c.GetNode(addr)
		require.NotNil(t, node)
		assert.Len(t, node.Membership.Snapshot(), 2, "node %s should see both members", addr)
	}
}

// Scenario 3: a CREATE issued by any node lands on all three of its
// key's replicas.
func TestScenario3_CreateReplicatesToThreeNodes(t *testing.T) {
	p := params.Default()
	c := NewCluster(6, p, 102)
	c.Bootstrap()
	c.Run(1, 8)

	coordinator := c.GetNode(wire.Introducer)
	require.NotNil(t, coordinator)
	coordinator.Create(9, "alpha", "one", c.Sim)
	c.Run(10, 15)

	values := c.AllStores("alpha")
	assert.Len(t, values, 3)
	for _, v := range values {
		assert.Equal(t, "one", v)
	}
}

// Scenario 4: a READ still succeeds by quorum when one of the three
// replicas has failed.
func TestScenario4_ReadSurvivesOneReplicaFailure(t *testing.T) {
	p := params.Default()
	c := NewCluster(6, p, 103)
	c.Bootstrap()
	c.Run(1, 8)

	coordinator := c.GetNode(wire.Introducer)
	coordinator.Create(9, "alpha", "one", c.Sim)
	c.Run(10, 15)

	replicas := coordinator.DHT.Replicas("alpha")
	require.Len(t, replicas, 3)
	c.Kill(replicas[0])

	coordinator.Read(20, "alpha", c.Sim)
	c.Run(21, 26)

	last := lastOpEvent(c.GetSink(wire.Introducer), "read")
	assert.Equal(t, "read_success", last.Kind)
	assert.Equal(t, "one", last.Value)
}

// Scenario 5: a READ fails once two of the three replicas are gone and
// quorum can no longer be reached.
func TestScenario5_ReadFailsWithTwoReplicasDown(t *testing.T) {
	p := params.Default()
	c := NewCluster(6, p, 104)
	c.Bootstrap()
	c.Run(1, 8)

	coordinator := c.GetNode(wire.Introducer)
	coordinator.Create(9, "alpha", "one", c.Sim)
	c.Run(10, 15)

	replicas := coordinator.DHT.Replicas("alpha")
	require.Len(t, replicas, 3)
	c.Kill(replicas[0])
	c.Kill(replicas[1])

	coordinator.Read(20, "alpha", c.Sim)
	c.Run(21, 26)

	last := lastOpEvent(c.GetSink(wire.Introducer), "read")
	assert.Equal(t, "read_fail", last.Kind)
	assert.True(t, last.IsCoordinator)
}

// Scenario 6: after a node is killed, the ring change triggers
// stabilization and the surviving nodes re-settle on a fresh replica
// triple for every key they hold.
func TestScenario6_RingRepairAfterNodeKill(t *testing.T) {
	p := params.Default()
	c := NewCluster(6, p, 105)
	c.Bootstrap()
	c.Run(1, 8)

	coordinator := c.GetNode(wire.Introducer)
	coordinator.Create(9, "alpha", "one", c.Sim)
	c.Run(10, 15)

	oldReplicas := coordinator.DHT.Replicas("alpha")
	require.Len(t, oldReplicas, 3)

	// Kill a node that is NOT one of alpha's replicas, so the key's own
	// replica set is untouched by the failure but the ring still shrinks
	// and every node recomputes placement.
	var victim wire.Address
	for i := 0; i < 6; i++ {
		addr := config.NodeAddress(i)
		if addr == oldReplicas[0] || addr == oldReplicas[1] || addr == oldReplicas[2] {
			continue
		}
		victim = addr
		break
	}
	require.NotEqual(t, wire.Address{}, victim, "should have found a non-replica victim")
	c.Kill(victim)

	// Let every surviving node's membership protocol notice the failure
	// (T_REMOVE ticks of silence) and rebuild its ring.
	c.Run(16, int64(16)+p.TRemove+2)

	values := c.AllStores("alpha")
	assert.GreaterOrEqual(t, len(values), 1, "the key must still be readable from at least one surviving node")
}

// lastOpEvent returns the last recorded event whose kind starts with
// opPrefix (e.g. "read" matches both "read_success" and "read_fail").
func lastOpEvent(sink *logsink.MemorySink, opPrefix string) logsink.Event {
	var last logsink.Event
	for _, e := range sink.Events {
		if strings.HasPrefix(e.Kind, opPrefix) {
			last = e
		}
	}
	return last
}
