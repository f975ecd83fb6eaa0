// Package replication is a thin adaptation of the teacher's
// internal/replication: it still answers "which nodes hold this key",
// just over the spec's single-hash ring instead of the teacher's
// virtual-node ring, and fixed at three replicas rather than a
// caller-supplied factor (spec.md §3: PRIMARY/SECONDARY/TERTIARY, no
// variable replication factor).
package replication

import (
	"kvstore/internal/ring"
)

// ReplicationFactor is fixed at three: one PRIMARY plus two successors.
const ReplicationFactor = 3

// ReplicasForKey returns the replica triple for key, or nil if r has
// fewer than ReplicationFactor nodes.
func ReplicasForKey(r *ring.Ring, key string) []ring.Node {
	return r.FindNodes(key)
}
