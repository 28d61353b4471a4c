package impair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zero(pkt []byte) ([]byte, bool) { return make([]byte, len(pkt)), true }

func TestBudget(t *testing.T) {
	cases := []struct {
		n    int
		rate float64
		want int
	}{
		{n: 10, rate: 0, want: 0},
		{n: 10, rate: 0.3, want: 3},
		{n: 3, rate: 0.5, want: 1},
		{n: 100, rate: 0.29, want: 29},
		{n: 7, rate: 1, want: 7},
		{n: 1, rate: 0.99, want: 0},
	}
	for _, tc := range cases {
		b := NewBudget(tc.rate)
		b.Size(tc.n)
		assert.Equal(t, tc.want, b.Total(), "n=%d rate=%v", tc.n, tc.rate)

		taken := 0
		for i := 0; i < tc.n; i++ {
			if b.Take() {
				require.Equal(t, i, taken, "budget must be consumed by the first packets")
				taken++
			}
		}
		assert.Equal(t, tc.want, taken)
		assert.Equal(t, tc.want, b.Used())
	}
}

func TestBudget_SizeOnce(t *testing.T) {
	b := NewBudget(0.5)
	assert.False(t, b.Sized())
	assert.False(t, b.Take())

	b.Size(0)
	assert.False(t, b.Sized())

	b.Size(4)
	b.Size(100)
	assert.True(t, b.Sized())
	assert.Equal(t, 2, b.Total())
}

func TestChannel_Apply(t *testing.T) {
	c := NewChannel(0.2, 0.2, zero)
	c.Size(10)

	pkt := []byte{1, 2, 3}
	var verdicts []Verdict
	for i := 0; i < 10; i++ {
		out, v := c.Apply(pkt)
		switch v {
		case Corrupted:
			assert.Equal(t, []byte{0, 0, 0}, out)
		case Dropped:
			assert.Nil(t, out)
		case Pass:
			assert.Equal(t, pkt, out)
		}
		verdicts = append(verdicts, v)
	}

	assert.Equal(t, []Verdict{Corrupted, Corrupted, Dropped, Dropped, Pass, Pass, Pass, Pass, Pass, Pass}, verdicts)
	assert.Equal(t, []byte{1, 2, 3}, pkt)
	assert.Equal(t, 2, c.Corrupted())
	assert.Equal(t, 2, c.Dropped())
}

func TestChannel_SkipsUndetectableCorruption(t *testing.T) {
	// packets starting with 0 stay intact when zeroed
	corrupter := func(pkt []byte) ([]byte, bool) {
		out, _ := zero(pkt)
		return out, pkt[0] != 0
	}
	c := NewChannel(0.5, 0.25, corrupter)
	c.Size(4)

	out, v := c.Apply([]byte{0, 5})
	assert.Equal(t, Dropped, v, "loss is charged when corruption cannot apply")
	assert.Nil(t, out)

	out, v = c.Apply([]byte{0, 6})
	assert.Equal(t, Pass, v)
	assert.Equal(t, []byte{0, 6}, out)

	for i := 0; i < 2; i++ {
		out, v = c.Apply([]byte{1, 7})
		assert.Equal(t, Corrupted, v)
		assert.Equal(t, []byte{0, 0}, out)
	}

	_, v = c.Apply([]byte{1, 8})
	assert.Equal(t, Pass, v)
	assert.Equal(t, 2, c.Corrupted())
	assert.Equal(t, 1, c.Dropped())
}

func TestChannel_Nil(t *testing.T) {
	var c *Channel
	c.Size(10)
	out, v := c.Apply([]byte{7})
	assert.Equal(t, Pass, v)
	assert.Equal(t, []byte{7}, out)
	assert.True(t, c.Sized())
	assert.Zero(t, c.Corrupted())
	assert.Zero(t, c.Dropped())
}

func TestValidateRate(t *testing.T) {
	require.NoError(t, ValidateRate(0))
	require.NoError(t, ValidateRate(0.5))
	require.NoError(t, ValidateRate(1))
	require.Error(t, ValidateRate(-0.1))
	require.Error(t, ValidateRate(1.01))
}
