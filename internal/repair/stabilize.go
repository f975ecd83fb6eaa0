// Package repair adapts the teacher's internal/repair — originally a
// vector-clock reconciliation package — into the spec's ring-change
// stabilization logic (spec.md §4.5). There is no conflict to reconcile
// here (storage has no versions, spec.md's Non-goals exclude strong
// consistency and conflict resolution); what survives from the teacher
// is the shape of the package, a planning step that a coordinator
// drains. Grounded on MP2Node::stabilizationProtocol: every locally
// stored key is unconditionally re-CREATEd at its (possibly new)
// replica triple. Stale replicas that fell out of a key's triple are
// deliberately left untouched — see the DESIGN.md note mirroring
// spec.md §9.
package repair

import (
	"kvstore/internal/replication"
	"kvstore/internal/ring"
	"kvstore/internal/wire"
)

// CreateOp is one re-CREATE to send as part of a stabilization pass.
type CreateOp struct {
	Target  ring.Node
	Replica wire.ReplicaLabel
	Key     string
	Value   string
}

// KeyLister is the minimal storage view Plan needs: every locally held
// key and its value.
type KeyLister interface {
	Keys() []string
	Read(key string) (string, bool)
}

// Plan builds the full set of re-CREATE operations for every locally
// stored key, targeted at that key's current replica triple. Keys
// whose ring lookup currently returns fewer than three nodes (ring too
// small) are skipped, mirroring findNodes' empty-vector behavior for a
// too-small ring.
func Plan(store KeyLister, r *ring.Ring) []CreateOp {
	var ops []CreateOp
	for _, key := range store.Keys() {
		value, ok := store.Read(key)
		if !ok {
			continue
		}
		replicas := replication.ReplicasForKey(r, key)
		for i, node := range replicas {
			ops = append(ops, CreateOp{Target: node, Replica: wire.ReplicaLabel(i), Key: key, Value: value})
		}
	}
	return ops
}
