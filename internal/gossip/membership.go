// Package gossip implements the membership layer of spec.md §4.1: join
// bootstrap against a well-known introducer, heartbeat-driven gossip
// dissemination, and time-based suspicion/eviction. Unlike the
// teacher's internal/gossip, which ran probe/gossip/timeout loops as
// background goroutines behind a sync.RWMutex, Membership is advanced
// exclusively by calling Tick once per logical tick (spec.md §5): no
// goroutines, no locks, no timers.
package gossip

import (
	"math/rand"

	"kvstore/internal/logsink"
	"kvstore/internal/params"
	"kvstore/internal/transport"
	"kvstore/internal/wire"
)

// State is the lifecycle state of a Membership instance, mirroring the
// inited/inGroup/bFailed flags on the original Member struct.
type State int

const (
	StateInit State = iota
	StateInGroup
	StateFailed
)

// Entry is one row of the membership table: a peer address plus the
// highest heartbeat counter seen for it and the local tick it was last
// refreshed at. LastSeen is never sent over the wire.
type Entry struct {
	Addr      wire.Address
	Heartbeat uint64
	LastSeen  int64
}

// Membership is one peer's view of the cluster. It satisfies invariants
// I1 (self always present), I2 (no entry's LastSeen precedes its last
// refresh), and I3 (heartbeat only increases) as documented in
// spec.md §3.
type Membership struct {
	self  wire.Address
	p     params.Params
	log   logsink.Sink
	state State

	table     map[wire.Address]*Entry
	heartbeat uint64

	rng *rand.Rand
}

// New builds a Membership for self. It is not yet in the group; call
// Bootstrap to join.
func New(self wire.Address, p params.Params, log logsink.Sink, rng *rand.Rand) *Membership {
	return &Membership{
		self:  self,
		p:     p,
		log:   log,
		state: StateInit,
		table: make(map[wire.Address]*Entry),
		rng:   rng,
	}
}

// State reports the lifecycle state.
func (m *Membership) State() State { return m.state }

// Snapshot returns a copy of every membership table entry, including
// self. Order is unspecified.
func (m *Membership) Snapshot() []Entry {
	out := make([]Entry, 0, len(m.table))
	for _, e := range m.table {
		out = append(out, *e)
	}
	return out
}

// Contains reports whether addr is currently a member.
func (m *Membership) Contains(addr wire.Address) bool {
	_, ok := m.table[addr]
	return ok
}

// Bootstrap joins the cluster, following the original
// initMemberListTable/introduceSelfToGroup ordering: self is seeded
// into the table unconditionally, before any handshake begins, so I1
// (self always present) holds from the first tick regardless of
// whether a JOINREQ/JOINREP is later lost on the simulated lossy
// transport. The well-known introducer is then immediately in-group;
// everyone else sends a JOINREQ and waits for the JOINREP carried back
// through Deliver.
func (m *Membership) Bootstrap(now int64, t transport.Transport) {
	if _, ok := m.table[m.self]; !ok {
		m.table[m.self] = &Entry{Addr: m.self, Heartbeat: m.heartbeat, LastSeen: now}
	}

	if m.self == wire.Introducer {
		m.state = StateInGroup
		return
	}
	frame := m.frame(wire.Introducer, wire.EncodeMembershipMsg(wire.MembershipMsg{
		Kind: wire.JoinReq,
		From: m.self,
	}))
	t.Send(frame)
}

func (m *Membership) frame(to wire.Address, payload []byte) transport.Frame {
	return transport.Frame{From: m.self, To: to, Layer: transport.Membership, Payload: payload}
}

// Deliver processes one inbound membership frame. Malformed payloads
// are dropped silently, matching the lossy-transport error model of
// spec.md §7 (membership datagrams carry no error channel).
func (m *Membership) Deliver(now int64, t transport.Transport, f transport.Frame) {
	msg, err := wire.DecodeMembershipMsg(f.Payload)
	if err != nil {
		return
	}
	switch msg.Kind {
	case wire.JoinReq:
		m.handleJoinReq(now, t, msg)
	case wire.JoinRep:
		m.handleJoinRep(now, msg)
	case wire.Gossip:
		m.handleGossip(now, msg)
	}
}

func (m *Membership) handleJoinReq(now int64, t transport.Transport, msg wire.MembershipMsg) {
	m.addNewNode(now, msg.From)
	t.Send(m.frame(msg.From, wire.EncodeMembershipMsg(wire.MembershipMsg{
		Kind:    wire.JoinRep,
		From:    m.self,
		Members: m.exportAll(),
	})))
}

func (m *Membership) handleJoinRep(now int64, msg wire.MembershipMsg) {
	m.table = make(map[wire.Address]*Entry)
	for _, e := range msg.Members {
		addr := e.Address()
		m.table[addr] = &Entry{Addr: addr, Heartbeat: e.Heartbeat, LastSeen: now}
		if addr != m.self {
			m.log.LogNodeAdded(m.self, addr)
		}
	}
	if _, ok := m.table[m.self]; !ok {
		m.table[m.self] = &Entry{Addr: m.self, Heartbeat: m.heartbeat, LastSeen: now}
	}
	m.state = StateInGroup
}

// handleGossip mirrors gossipHandler: the sender's own entry is bumped
// unconditionally (receipt itself is evidence of liveness), then every
// carried entry is merged by higher heartbeat, with unknown addresses
// appended and logged as newly added.
func (m *Membership) handleGossip(now int64, msg wire.MembershipMsg) {
	if e, ok := m.table[msg.From]; ok {
		e.Heartbeat++
		e.LastSeen = now
	}

	for _, carried := range msg.Members {
		addr := carried.Address()
		if existing, ok := m.table[addr]; ok {
			if carried.Heartbeat > existing.Heartbeat {
				existing.Heartbeat = carried.Heartbeat
				existing.LastSeen = now
			}
			continue
		}
		m.table[addr] = &Entry{Addr: addr, Heartbeat: carried.Heartbeat, LastSeen: now}
		m.log.LogNodeAdded(m.self, addr)
	}
}

func (m *Membership) addNewNode(now int64, addr wire.Address) {
	if _, ok := m.table[addr]; ok {
		return
	}
	m.table[addr] = &Entry{Addr: addr, Heartbeat: 0, LastSeen: now}
	m.log.LogNodeAdded(m.self, addr)
}

// Tick advances local time by one step: bump self's heartbeat, evict
// entries stale past T_REMOVE, then fan out GOSSIP_FANOUT gossip
// messages to random known peers. No-op until Bootstrap has joined the
// group, mirroring nodeLoop's "wait until you're in the group" gate.
func (m *Membership) Tick(now int64, t transport.Transport) {
	if m.state != StateInGroup {
		return
	}

	m.heartbeat++
	if self, ok := m.table[m.self]; ok {
		self.Heartbeat = m.heartbeat
		self.LastSeen = now
	}

	m.evictFailed(now)
	m.sendGossips(now, t)
}

func (m *Membership) evictFailed(now int64) {
	for addr, e := range m.table {
		if addr == m.self {
			continue
		}
		if now-e.LastSeen > m.p.TRemove {
			delete(m.table, addr)
			m.log.LogNodeRemoved(m.self, addr)
		}
	}
}

func (m *Membership) sendGossips(now int64, t transport.Transport) {
	peers := m.peersExceptSelf()
	if len(peers) == 0 {
		return
	}
	for i := 0; i < m.p.GossipFanout; i++ {
		target := peers[m.rng.Intn(len(peers))]
		t.Send(m.frame(target, wire.EncodeMembershipMsg(wire.MembershipMsg{
			Kind:    wire.Gossip,
			From:    m.self,
			Members: m.exportFresh(now),
		})))
	}
}

func (m *Membership) peersExceptSelf() []wire.Address {
	out := make([]wire.Address, 0, len(m.table))
	for addr := range m.table {
		if addr != m.self {
			out = append(out, addr)
		}
	}
	return out
}

// exportFresh mirrors createMessage(GOSSIP): entries older than T_FAIL
// are withheld from the outbound digest, so a suspect member isn't
// re-advertised as alive by a peer that hasn't itself noticed the
// silence yet.
func (m *Membership) exportFresh(now int64) []wire.MemberEntry {
	out := make([]wire.MemberEntry, 0, len(m.table))
	for _, e := range m.table {
		if now-e.LastSeen < m.p.TFail {
			out = append(out, wire.MemberEntry{ID: e.Addr.ID, Port: e.Addr.Port, Heartbeat: e.Heartbeat})
		}
	}
	return out
}

// exportAll mirrors createMessage(JOINREP): the full table, unfiltered.
func (m *Membership) exportAll() []wire.MemberEntry {
	out := make([]wire.MemberEntry, 0, len(m.table))
	for _, e := range m.table {
		out = append(out, wire.MemberEntry{ID: e.Addr.ID, Port: e.Addr.Port, Heartbeat: e.Heartbeat})
	}
	return out
}
