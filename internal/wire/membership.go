package wire

import (
	"encoding/binary"
	"fmt"
)

// MemberKind tags the three membership messages carried over the wire.
type MemberKind byte

const (
	JoinReq MemberKind = iota + 1
	JoinRep
	Gossip
)

// MemberEntry is the wire projection of a membership table row: it
// carries only what the original C++ MemberListEntry sends over the
// network (id, port, heartbeat). LastSeen is local-only and never
// travels on the wire.
type MemberEntry struct {
	ID        uint32
	Port      uint16
	Heartbeat uint64
}

func (e MemberEntry) Address() Address {
	return Address{ID: e.ID, Port: e.Port}
}

// MembershipMsg is the decoded form of a JOINREQ, JOINREP, or GOSSIP frame.
type MembershipMsg struct {
	Kind    MemberKind
	From    Address
	Members []MemberEntry // unused for JoinReq
}

const memberEntrySize = 4 + 2 + 8 // id + port + heartbeat

// EncodeMembershipMsg renders m using the layout described in spec.md §6:
// a one-byte kind tag, the 6-byte sender address, and — for JOINREP and
// GOSSIP only — a 4-byte little-endian length prefix followed by that
// many (id:4, port:2, heartbeat:8) entries, all little-endian.
func EncodeMembershipMsg(m MembershipMsg) []byte {
	addr := m.From.Encode()
	if m.Kind == JoinReq {
		buf := make([]byte, 0, 1+len(addr))
		buf = append(buf, byte(m.Kind))
		buf = append(buf, addr[:]...)
		return buf
	}

	buf := make([]byte, 0, 1+len(addr)+4+len(m.Members)*memberEntrySize)
	buf = append(buf, byte(m.Kind))
	buf = append(buf, addr[:]...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(m.Members)))
	buf = append(buf, countBuf[:]...)

	for _, e := range m.Members {
		var entry [memberEntrySize]byte
		binary.LittleEndian.PutUint32(entry[0:4], e.ID)
		binary.LittleEndian.PutUint16(entry[4:6], e.Port)
		binary.LittleEndian.PutUint64(entry[6:14], e.Heartbeat)
		buf = append(buf, entry[:]...)
	}
	return buf
}

// DecodeMembershipMsg is the inverse of EncodeMembershipMsg.
func DecodeMembershipMsg(b []byte) (MembershipMsg, error) {
	if len(b) < 1 {
		return MembershipMsg{}, fmt.Errorf("wire: empty membership frame")
	}
	kind := MemberKind(b[0])
	rest := b[1:]

	from, err := DecodeAddress(rest)
	if err != nil {
		return MembershipMsg{}, fmt.Errorf("wire: membership from-address: %w", err)
	}
	rest = rest[6:]

	if kind == JoinReq {
		return MembershipMsg{Kind: kind, From: from}, nil
	}
	if kind != JoinRep && kind != Gossip {
		return MembershipMsg{}, fmt.Errorf("wire: unknown membership kind %d", kind)
	}

	if len(rest) < 4 {
		return MembershipMsg{}, fmt.Errorf("wire: truncated member-list length prefix")
	}
	count := binary.LittleEndian.Uint32(rest[0:4])
	rest = rest[4:]

	want := int(count) * memberEntrySize
	if len(rest) < want {
		return MembershipMsg{}, fmt.Errorf("wire: truncated member list, want %d bytes got %d", want, len(rest))
	}

	members := make([]MemberEntry, 0, count)
	for i := 0; i < int(count); i++ {
		e := rest[i*memberEntrySize : (i+1)*memberEntrySize]
		members = append(members, MemberEntry{
			ID:        binary.LittleEndian.Uint32(e[0:4]),
			Port:      binary.LittleEndian.Uint16(e[4:6]),
			Heartbeat: binary.LittleEndian.Uint64(e[6:14]),
		})
	}

	return MembershipMsg{Kind: kind, From: from, Members: members}, nil
}
