package arq

import "fmt"

// SeqBit is the 1-bit modular sequence counter of the alternating-bit
// protocol. Only the values 0 and 1 are valid.
type SeqBit uint8

// Sequence bit values.
const (
	Seq0 = SeqBit(0)
	Seq1 = SeqBit(1)
)

// Next returns the bit that follows s (0 -> 1 -> 0 ...).
func (s SeqBit) Next() SeqBit { return s ^ 1 }

// Valid reports whether s holds one of the two legal values.
func (s SeqBit) Valid() bool { return s <= Seq1 }

// String implements fmt.Stringer
func (s SeqBit) String() string {
	if !s.Valid() {
		return fmt.Sprintf("INVALID:%d", uint8(s))
	}
	return fmt.Sprintf("%d", uint8(s))
}
