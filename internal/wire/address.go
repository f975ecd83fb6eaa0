// Package wire implements the on-the-wire encodings for both protocols:
// the binary membership messages (JOINREQ/JOINREP/GOSSIP) and the textual,
// delimiter-separated DHT messages (CREATE/READ/UPDATE/DELETE/REPLY/
// READREPLY). Addresses are 6 bytes: a 4-byte node id followed by a
// 2-byte port, little-endian on the wire, matching the original C++
// Address layout bit-for-bit.
package wire

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Address identifies a peer: a 4-byte node id plus a 2-byte port.
// Equality and hashing are byte-wise, so Address is comparable and usable
// as a map key directly.
type Address struct {
	ID   uint32
	Port uint16
}

// Introducer is the well-known bootstrap address every peer dials on
// startup if it isn't the introducer itself.
var Introducer = Address{ID: 1, Port: 0}

// String renders the address as "id:port", used both for log output and
// as the textual encoding embedded in DHT messages.
func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.ID, a.Port)
}

// Encode writes the 6-byte little-endian wire form of a.
func (a Address) Encode() [6]byte {
	var buf [6]byte
	binary.LittleEndian.PutUint32(buf[0:4], a.ID)
	binary.LittleEndian.PutUint16(buf[4:6], a.Port)
	return buf
}

// DecodeAddress reads the 6-byte little-endian wire form produced by Encode.
func DecodeAddress(b []byte) (Address, error) {
	if len(b) < 6 {
		return Address{}, fmt.Errorf("wire: short address, need 6 bytes got %d", len(b))
	}
	return Address{
		ID:   binary.LittleEndian.Uint32(b[0:4]),
		Port: binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}

// ParseAddress parses the "id:port" textual form produced by String.
func ParseAddress(s string) (Address, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Address{}, fmt.Errorf("wire: malformed address %q", s)
	}
	id, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("wire: malformed address id in %q: %w", s, err)
	}
	port, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("wire: malformed address port in %q: %w", s, err)
	}
	return Address{ID: uint32(id), Port: uint16(port)}, nil
}
