// Package ring implements consistent-hash placement for spec.md §4.2:
// one hash per node address — not the teacher's virtual-node ring — and
// a 3-successor replica lookup. Grounded on the original
// MP2Node::updateRing/findNodes: nodes are sorted by hash, and a key's
// replica set is the first node whose hash is >= the key's hash (or the
// lowest-hashed node if the key hashes past every node), plus its two
// ring successors.
package ring

import (
	"hash/fnv"
	"sort"

	"kvstore/internal/wire"
)

// Node is one ring member: its address and its position.
type Node struct {
	Addr wire.Address
	Hash uint64
}

// HashAddress returns the ring position of a node address.
func HashAddress(a wire.Address, ringSize uint64) uint64 {
	return hashString(a.String(), ringSize)
}

// HashKey returns the ring position of a key.
func HashKey(key string, ringSize uint64) uint64 {
	return hashString(key, ringSize)
}

func hashString(s string, ringSize uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64() % ringSize
}

// Ring is an immutable, sorted-by-hash snapshot of the cluster. A new
// Ring is built whenever the owning peer observes a membership change;
// Ring values themselves are never mutated in place.
type Ring struct {
	ringSize uint64
	nodes    []Node // sorted ascending by Hash
}

// New builds a Ring from the given addresses, hashing each with
// ringSize as the modulus and sorting the result. Ties in hash value
// are broken by address to keep FindNodes deterministic.
func New(addrs []wire.Address, ringSize uint64) *Ring {
	nodes := make([]Node, 0, len(addrs))
	for _, a := range addrs {
		nodes = append(nodes, Node{Addr: a, Hash: HashAddress(a, ringSize)})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Hash != nodes[j].Hash {
			return nodes[i].Hash < nodes[j].Hash
		}
		return nodes[i].Addr.String() < nodes[j].Addr.String()
	})
	return &Ring{ringSize: ringSize, nodes: nodes}
}

// Nodes returns the sorted node list.
func (r *Ring) Nodes() []Node {
	out := make([]Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len is the number of nodes in the ring.
func (r *Ring) Len() int { return len(r.nodes) }

// Changed reports whether r and other differ, by the same rule as
// MP2Node::updateRing: a different size, or any position-wise hash
// mismatch once both are sorted.
func (r *Ring) Changed(other *Ring) bool {
	if r == nil || other == nil {
		return r != other
	}
	if len(r.nodes) != len(other.nodes) {
		return true
	}
	for i := range r.nodes {
		if r.nodes[i].Hash != other.nodes[i].Hash {
			return true
		}
	}
	return false
}

// FindNodes returns the replica triple for key: the first node at or
// after the key's hash position, plus its next two successors,
// wrapping around the ring. Returns nil if the ring has fewer than 3
// nodes, matching findNodes' "ring.size() >= 3" guard.
func (r *Ring) FindNodes(key string) []Node {
	if len(r.nodes) < 3 {
		return nil
	}

	pos := HashKey(key, r.ringSize)
	n := len(r.nodes)

	if pos <= r.nodes[0].Hash || pos > r.nodes[n-1].Hash {
		return []Node{r.nodes[0], r.nodes[1], r.nodes[2]}
	}

	for i := 1; i < n; i++ {
		if pos <= r.nodes[i].Hash {
			return []Node{r.nodes[i], r.nodes[(i+1)%n], r.nodes[(i+2)%n]}
		}
	}
	// Unreachable given the pos > nodes[n-1].Hash check above.
	return []Node{r.nodes[0], r.nodes[1], r.nodes[2]}
}
