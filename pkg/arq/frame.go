package arq

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Field widths are protocol constants.
const (
	checksumLen = 2
	seqLen      = 1
	indexLen    = 3
	totalLen    = 3

	// DataHeaderLen is the length of a data packet header.
	DataHeaderLen = checksumLen + seqLen + indexLen + totalLen // 9

	// AckLen is the length of an acknowledgment packet.
	AckLen = checksumLen + seqLen // 3

	// MaxFragments is the largest fragment count a 3-byte field can carry.
	MaxFragments = 1<<(8*totalLen) - 1

	// MaxDatagramSize bounds the receive buffers of both endpoints.
	MaxDatagramSize = 65535
)

var (
	// ErrChecksumMismatch is returned when the recomputed checksum differs
	// from the one carried by the packet.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrMalformed is returned when a datagram has the wrong length for its role.
	ErrMalformed = errors.New("malformed packet")

	// ErrInvalidSeq is returned when a packet passes the checksum but
	// carries a sequence byte other than 0 or 1.
	ErrInvalidSeq = errors.New("invalid sequence bit")
)

// IsCorrupt reports whether err is a per-datagram decode failure. All such
// failures are handled the same way as a checksum mismatch.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrInvalidSeq) ||
		errors.Is(err, ErrInconsistentTotal)
}

// Checksum XOR-folds b as a sequence of big-endian 16-bit words. An odd
// trailing byte is the high byte of a word whose low byte is zero.
func Checksum(b []byte) uint16 {
	var cs uint16
	for i := 0; i < len(b); i += 2 {
		if i+1 < len(b) {
			cs ^= binary.BigEndian.Uint16(b[i:])
		} else {
			cs ^= uint16(b[i]) << 8
		}
	}
	return cs
}

// Fragment is one bounded slice of the payload. Total is the same for every
// fragment of a session.
type Fragment struct {
	Index uint32
	Total uint32
	Data  []byte
}

// DataPacket is a decoded data packet.
type DataPacket struct {
	Checksum uint16
	Seq      SeqBit
	Index    uint32
	Total    uint32
	Payload  []byte
}

// Fragment returns the fragment carried by the packet.
func (p DataPacket) Fragment() Fragment {
	return Fragment{Index: p.Index, Total: p.Total, Data: p.Payload}
}

// String implements fmt.Stringer
func (p DataPacket) String() string {
	return fmt.Sprintf("<seq:%s><index:%d><total:%d><size:%d>", p.Seq, p.Index, p.Total, len(p.Payload))
}

// AckPacket is a decoded acknowledgment. Seq is the receiver's next
// expected sequence bit.
type AckPacket struct {
	Checksum uint16
	Seq      SeqBit
}

// EncodeDataPacket lays out the fragment with the given sequence bit and
// prepends the checksum. It panics if Index or Total do not fit in 3 bytes.
func EncodeDataPacket(f Fragment, seq SeqBit) []byte {
	if f.Index > MaxFragments || f.Total > MaxFragments {
		panic("fragment index exceeds 3 bytes")
	}

	b := make([]byte, DataHeaderLen+len(f.Data))
	b[2] = byte(seq)
	putUint24(b[3:6], f.Index)
	putUint24(b[6:9], f.Total)
	copy(b[DataHeaderLen:], f.Data)
	binary.BigEndian.PutUint16(b[:2], Checksum(b[2:]))
	return b
}

// DecodeDataPacket validates and splits a data packet. The returned payload
// aliases b.
func DecodeDataPacket(b []byte) (DataPacket, error) {
	if len(b) < DataHeaderLen {
		return DataPacket{}, ErrMalformed
	}
	cs := binary.BigEndian.Uint16(b[:2])
	if Checksum(b[2:]) != cs {
		return DataPacket{}, ErrChecksumMismatch
	}
	seq := SeqBit(b[2])
	if !seq.Valid() {
		return DataPacket{}, ErrInvalidSeq
	}
	return DataPacket{
		Checksum: cs,
		Seq:      seq,
		Index:    uint24(b[3:6]),
		Total:    uint24(b[6:9]),
		Payload:  b[DataHeaderLen:],
	}, nil
}

// EncodeAckPacket builds the 3-byte acknowledgment for seq.
func EncodeAckPacket(seq SeqBit) []byte {
	b := make([]byte, AckLen)
	b[2] = byte(seq)
	binary.BigEndian.PutUint16(b[:2], Checksum(b[2:]))
	return b
}

// DecodeAckPacket validates an acknowledgment.
func DecodeAckPacket(b []byte) (AckPacket, error) {
	if len(b) != AckLen {
		return AckPacket{}, ErrMalformed
	}
	cs := binary.BigEndian.Uint16(b[:2])
	if Checksum(b[2:]) != cs {
		return AckPacket{}, ErrChecksumMismatch
	}
	seq := SeqBit(b[2])
	if !seq.Valid() {
		return AckPacket{}, ErrInvalidSeq
	}
	return AckPacket{Checksum: cs, Seq: seq}, nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// CorruptDataPacket returns a copy of a data packet with its payload zeroed
// and its header, checksum included, left intact. ok is false when the
// zeroed copy still passes the checksum, which happens whenever the
// payload itself folds to zero.
func CorruptDataPacket(pkt []byte) (out []byte, ok bool) {
	out = make([]byte, len(pkt))
	if len(pkt) < DataHeaderLen {
		copy(out, pkt)
		return out, false
	}
	copy(out, pkt[:DataHeaderLen])
	return out, Checksum(out[checksumLen:]) != binary.BigEndian.Uint16(out[:checksumLen])
}

// CorruptAckPacket returns a copy of an acknowledgment with its sequence
// byte inverted. An all-zero ACK would still decode as a valid ACK for
// bit 0, so the payload is not zeroed as it is for data packets.
func CorruptAckPacket(pkt []byte) (out []byte, ok bool) {
	out = append([]byte(nil), pkt...)
	if len(out) <= checksumLen {
		return out, false
	}
	out[checksumLen] = ^out[checksumLen]
	return out, true
}
