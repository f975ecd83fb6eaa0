package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// MsgType tags the DHT-layer messages. These travel as the textual,
// "::"-delimited encoding produced by EncodeMessage, never the binary
// membership layout used by MembershipMsg.
type MsgType string

const (
	Create    MsgType = "CREATE"
	Read      MsgType = "READ"
	Update    MsgType = "UPDATE"
	Delete    MsgType = "DELETE"
	Reply     MsgType = "REPLY"
	ReadReply MsgType = "READREPLY"
)

// ReplicaLabel identifies a message's role relative to a key's replica
// triple: which of the three ring successors the recipient is acting as.
type ReplicaLabel int

const (
	Primary ReplicaLabel = iota
	Secondary
	Tertiary
)

func (r ReplicaLabel) String() string {
	switch r {
	case Primary:
		return "PRIMARY"
	case Secondary:
		return "SECONDARY"
	case Tertiary:
		return "TERTIARY"
	default:
		return "UNKNOWN"
	}
}

func parseReplicaLabel(s string) (ReplicaLabel, error) {
	switch s {
	case "PRIMARY":
		return Primary, nil
	case "SECONDARY":
		return Secondary, nil
	case "TERTIARY":
		return Tertiary, nil
	default:
		return 0, fmt.Errorf("wire: unknown replica label %q", s)
	}
}

// Message is the decoded form of a DHT-layer frame: a client request
// (CREATE/READ/UPDATE/DELETE) or a server reply (REPLY/READREPLY).
// Not every field is meaningful for every Type; see EncodeMessage for
// the exact field list each type carries on the wire.
type Message struct {
	TransID int32
	From    Address
	Type    MsgType
	Key     string
	Value   string // empty on READ/DELETE requests and on REPLY
	Replica ReplicaLabel
	Success bool // meaningful only for REPLY/READREPLY
}

const dhtDelim = "::"

// EncodeMessage renders m in the delimiter-separated textual format of
// spec.md §6: "trans_id::from_address::type::fields...". Field lists by
// type:
//
//	CREATE, UPDATE   -> key::value::replica
//	READ, DELETE     -> key
//	REPLY            -> success
//	READREPLY        -> success::value
func EncodeMessage(m Message) string {
	parts := []string{
		strconv.Itoa(int(m.TransID)),
		m.From.String(),
		string(m.Type),
	}
	switch m.Type {
	case Create, Update:
		parts = append(parts, m.Key, m.Value, m.Replica.String())
	case Read, Delete:
		parts = append(parts, m.Key)
	case Reply:
		// "true"/"false" here, not the original's literal "1"/"0" success
		// byte; both sides of this codec agree, so it's wire-compatible
		// with itself but not byte-identical to the original format.
		parts = append(parts, strconv.FormatBool(m.Success))
	case ReadReply:
		parts = append(parts, strconv.FormatBool(m.Success), m.Value)
	}
	return strings.Join(parts, dhtDelim)
}

// DecodeMessage is the inverse of EncodeMessage.
func DecodeMessage(s string) (Message, error) {
	parts := strings.Split(s, dhtDelim)
	if len(parts) < 3 {
		return Message{}, fmt.Errorf("wire: malformed dht message %q", s)
	}

	transID, err := strconv.Atoi(parts[0])
	if err != nil {
		return Message{}, fmt.Errorf("wire: malformed trans_id in %q: %w", s, err)
	}
	from, err := ParseAddress(parts[1])
	if err != nil {
		return Message{}, fmt.Errorf("wire: malformed from-address in %q: %w", s, err)
	}
	typ := MsgType(parts[2])
	fields := parts[3:]

	m := Message{TransID: int32(transID), From: from, Type: typ}

	switch typ {
	case Create, Update:
		if len(fields) != 3 {
			return Message{}, fmt.Errorf("wire: %s wants 3 fields, got %d in %q", typ, len(fields), s)
		}
		replica, err := parseReplicaLabel(fields[2])
		if err != nil {
			return Message{}, err
		}
		m.Key, m.Value, m.Replica = fields[0], fields[1], replica
	case Read, Delete:
		if len(fields) != 1 {
			return Message{}, fmt.Errorf("wire: %s wants 1 field, got %d in %q", typ, len(fields), s)
		}
		m.Key = fields[0]
	case Reply:
		if len(fields) != 1 {
			return Message{}, fmt.Errorf("wire: REPLY wants 1 field, got %d in %q", len(fields), s)
		}
		success, err := strconv.ParseBool(fields[0])
		if err != nil {
			return Message{}, fmt.Errorf("wire: malformed success flag in %q: %w", s, err)
		}
		m.Success = success
	case ReadReply:
		if len(fields) != 2 {
			return Message{}, fmt.Errorf("wire: READREPLY wants 2 fields, got %d in %q", len(fields), s)
		}
		success, err := strconv.ParseBool(fields[0])
		if err != nil {
			return Message{}, fmt.Errorf("wire: malformed success flag in %q: %w", s, err)
		}
		m.Success, m.Value = success, fields[1]
	default:
		return Message{}, fmt.Errorf("wire: unknown message type %q in %q", typ, s)
	}

	return m, nil
}
