package arq

import (
	"bytes"
	"os"
	"testing"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	loggingLevel, ok := os.LookupEnv("TEST_LOGGING_LEVEL")
	if ok {
		lvl, err := logging.LevelFromString(loggingLevel)
		if err != nil {
			log.Fatal(err)
		}
		logging.SetLevel(lvl)
	} else {
		logging.Disable()
	}

	os.Exit(m.Run())
}

func TestChecksum(t *testing.T) {
	cases := []struct {
		in   []byte
		want uint16
	}{
		{in: nil, want: 0},
		{in: []byte{0x12}, want: 0x1200},
		{in: []byte{0x12, 0x34}, want: 0x1234},
		{in: []byte{0x12, 0x34, 0x12, 0x34}, want: 0},
		{in: []byte{0xff, 0x00, 0x0f, 0xf0, 0xab}, want: 0xff00 ^ 0x0ff0 ^ 0xab00},
		{in: []byte{0x00, 0x00, 0x00, 0x00, 0x03, 0xe8}, want: 0x03e8},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Checksum(tc.in), "%x", tc.in)
	}
}

func TestSeqBit(t *testing.T) {
	assert.Equal(t, Seq1, Seq0.Next())
	assert.Equal(t, Seq0, Seq1.Next())
	assert.Equal(t, Seq0, Seq0.Next().Next())
	assert.True(t, Seq1.Valid())
	assert.False(t, SeqBit(2).Valid())
	assert.Equal(t, "1", Seq1.String())
	assert.Equal(t, "INVALID:7", SeqBit(7).String())
}

func TestEncodeDataPacket(t *testing.T) {
	pkt := EncodeDataPacket(Fragment{Index: 2, Total: 0x010203, Data: []byte("foo")}, Seq1)

	body := []byte{0x01, 0x00, 0x00, 0x02, 0x01, 0x02, 0x03, 'f', 'o', 'o'}
	cs := Checksum(body)
	assert.Equal(t, append([]byte{byte(cs >> 8), byte(cs)}, body...), pkt)
	assert.Len(t, pkt, DataHeaderLen+3)
}

func TestDataPacket_RoundTrip(t *testing.T) {
	frags := []Fragment{
		{Index: 0, Total: 1, Data: []byte{}},
		{Index: 0, Total: 3, Data: bytes.Repeat([]byte{0xa5}, 1000)},
		{Index: 2, Total: 3, Data: []byte("odd")},
		{Index: MaxFragments - 1, Total: MaxFragments, Data: []byte{1, 2}},
	}
	for _, f := range frags {
		for _, seq := range []SeqBit{Seq0, Seq1} {
			pkt, err := DecodeDataPacket(EncodeDataPacket(f, seq))
			require.NoError(t, err)
			assert.Equal(t, seq, pkt.Seq)
			assert.Equal(t, f.Index, pkt.Index)
			assert.Equal(t, f.Total, pkt.Total)
			assert.Equal(t, f.Data, pkt.Payload)
			assert.Equal(t, f.Data, pkt.Fragment().Data)
		}
	}
}

func TestEncodeDataPacket_Overflow(t *testing.T) {
	assert.Panics(t, func() {
		EncodeDataPacket(Fragment{Index: 0, Total: MaxFragments + 1}, Seq0)
	})
}

func TestDecodeDataPacket_Errors(t *testing.T) {
	_, err := DecodeDataPacket(make([]byte, DataHeaderLen-1))
	assert.Equal(t, ErrMalformed, err)

	bad := EncodeDataPacket(Fragment{Index: 0, Total: 1, Data: []byte("x")}, Seq0)
	bad[2] = 5
	cs := Checksum(bad[2:])
	bad[0], bad[1] = byte(cs>>8), byte(cs)
	_, err = DecodeDataPacket(bad)
	assert.Equal(t, ErrInvalidSeq, err)
	assert.True(t, IsCorrupt(err))
}

func TestDecodeDataPacket_SingleBitFlips(t *testing.T) {
	pkt := EncodeDataPacket(Fragment{Index: 1, Total: 4, Data: []byte("hello, world")}, Seq1)
	for i := 2; i < len(pkt); i++ {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), pkt...)
			flipped[i] ^= 1 << bit
			_, err := DecodeDataPacket(flipped)
			assert.True(t, IsCorrupt(err), "byte %d bit %d", i, bit)
		}
	}
}

// Flipping the same bit column in two words cancels out in the fold.
func TestDecodeDataPacket_PairedFlipUndetected(t *testing.T) {
	pkt := EncodeDataPacket(Fragment{Index: 0, Total: 1, Data: []byte("abcdefgh")}, Seq0)
	pkt[DataHeaderLen+1] ^= 0x01
	pkt[DataHeaderLen+3] ^= 0x01 // same byte position, next word
	_, err := DecodeDataPacket(pkt)
	assert.NoError(t, err)
}

func TestAckPacket(t *testing.T) {
	for _, seq := range []SeqBit{Seq0, Seq1} {
		b := EncodeAckPacket(seq)
		require.Len(t, b, AckLen)
		ack, err := DecodeAckPacket(b)
		require.NoError(t, err)
		assert.Equal(t, seq, ack.Seq)
	}
	assert.Equal(t, []byte{0x01, 0x00, 0x01}, EncodeAckPacket(Seq1))

	_, err := DecodeAckPacket([]byte{0, 0})
	assert.Equal(t, ErrMalformed, err)
	_, err = DecodeAckPacket([]byte{0, 0, 0, 0})
	assert.Equal(t, ErrMalformed, err)
	_, err = DecodeAckPacket([]byte{0x00, 0x00, 0x01})
	assert.Equal(t, ErrChecksumMismatch, err)
	_, err = DecodeAckPacket([]byte{0x02, 0x00, 0x02})
	assert.Equal(t, ErrInvalidSeq, err)
}

func TestCorruptDataPacket(t *testing.T) {
	pkt := EncodeDataPacket(Fragment{Index: 0, Total: 2, Data: []byte("payload")}, Seq0)
	orig := append([]byte(nil), pkt...)

	bad, ok := CorruptDataPacket(pkt)
	require.True(t, ok)
	assert.Equal(t, orig, pkt, "input must not be modified")
	assert.Equal(t, pkt[:DataHeaderLen], bad[:DataHeaderLen])
	assert.Equal(t, make([]byte, 7), bad[DataHeaderLen:])

	_, err := DecodeDataPacket(bad)
	assert.Equal(t, ErrChecksumMismatch, err)
}

func TestCorruptDataPacket_ZeroFold(t *testing.T) {
	pkt := EncodeDataPacket(Fragment{Index: 0, Total: 1, Data: bytes.Repeat([]byte{0xAB, 0xCD}, 500)}, Seq0)
	bad, ok := CorruptDataPacket(pkt)
	assert.False(t, ok)

	_, err := DecodeDataPacket(bad)
	assert.NoError(t, err, "zeroed copy passes the checksum")

	_, ok = CorruptDataPacket(pkt[:DataHeaderLen-1])
	assert.False(t, ok)
}

func TestCorruptAckPacket(t *testing.T) {
	for _, seq := range []SeqBit{Seq0, Seq1} {
		ack := EncodeAckPacket(seq)
		bad, ok := CorruptAckPacket(ack)
		require.True(t, ok)
		assert.Equal(t, EncodeAckPacket(seq), ack)
		_, err := DecodeAckPacket(bad)
		assert.Equal(t, ErrChecksumMismatch, err)
	}
}
