// Package impair injects deterministic faults into outbound packets so the
// recovery paths of the ARQ engine can be exercised with exact counts.
//
// A rate r applied to a session of N packets yields a budget of floor(N*r)
// impaired packets, consumed greedily by the first qualifying packets. A
// packet the Corrupter cannot damage detectably does not qualify for
// corruption and leaves the corruption budget untouched.
package impair

import (
	"fmt"
	"math"
)

// Corrupter returns a damaged copy of pkt. It must not modify pkt. ok is
// false when the damage would go unnoticed by the receiver's checksum.
type Corrupter func(pkt []byte) (out []byte, ok bool)

// Verdict is the outcome of passing a packet through a Channel.
type Verdict int

// Verdicts.
const (
	Pass Verdict = iota
	Corrupted
	Dropped
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Corrupted:
		return "corrupted"
	case Dropped:
		return "dropped"
	default:
		return fmt.Sprintf("UNKNOWN:%d", int(v))
	}
}

// ValidateRate checks that r is a fraction in [0, 1].
func ValidateRate(r float64) error {
	if math.IsNaN(r) || r < 0 || r > 1 {
		return fmt.Errorf("rate %v is outside [0, 1]", r)
	}
	return nil
}

// Budget is a fixed allowance of impaired packets for one session. It is
// sized once, when the session's packet count becomes known.
type Budget struct {
	rate  float64
	total int
	used  int
	sized bool
}

// NewBudget returns an unsized budget for the given rate.
func NewBudget(rate float64) *Budget {
	return &Budget{rate: rate}
}

// Size fixes the budget at floor(n*rate). Only the first call has effect.
func (b *Budget) Size(n int) {
	if b.sized || n <= 0 {
		return
	}
	// the epsilon keeps products such as 100*0.29 from flooring to 28
	b.total = int(math.Floor(float64(n)*b.rate + 1e-9))
	b.sized = true
}

// Sized reports whether Size has taken effect.
func (b *Budget) Sized() bool { return b.sized }

// Take consumes one unit of the budget if any is left.
func (b *Budget) Take() bool {
	if b.used >= b.total {
		return false
	}
	b.used++
	return true
}

// Left reports whether any of the budget remains.
func (b *Budget) Left() bool { return b.used < b.total }

// Total returns the size of the budget.
func (b *Budget) Total() int { return b.total }

// Used returns how much of the budget has been consumed.
func (b *Budget) Used() int { return b.used }

// Channel impairs one direction of traffic. A nil *Channel passes every
// packet unchanged.
type Channel struct {
	corrupt   *Budget
	drop      *Budget
	corrupter Corrupter
}

// NewChannel creates a Channel that corrupts with corrupter and drops
// packets according to the given rates.
func NewChannel(corruptRate, lossRate float64, corrupter Corrupter) *Channel {
	return &Channel{
		corrupt:   NewBudget(corruptRate),
		drop:      NewBudget(lossRate),
		corrupter: corrupter,
	}
}

// Size sizes both budgets for a session of n qualifying packets.
func (c *Channel) Size(n int) {
	if c == nil {
		return
	}
	c.corrupt.Size(n)
	c.drop.Size(n)
}

// Sized reports whether the channel budgets are fixed.
func (c *Channel) Sized() bool {
	return c == nil || c.corrupt.Sized()
}

// Apply decides the fate of a qualifying packet. Corruption is charged
// before loss. When the verdict is Dropped, out is nil.
func (c *Channel) Apply(pkt []byte) (out []byte, v Verdict) {
	if c == nil {
		return pkt, Pass
	}
	if c.corrupt.Left() {
		if out, ok := c.corrupter(pkt); ok {
			c.corrupt.Take()
			return out, Corrupted
		}
	}
	if c.drop.Take() {
		return nil, Dropped
	}
	return pkt, Pass
}

// Corrupted returns the number of packets corrupted so far.
func (c *Channel) Corrupted() int {
	if c == nil {
		return 0
	}
	return c.corrupt.Used()
}

// Dropped returns the number of packets dropped so far.
func (c *Channel) Dropped() int {
	if c == nil {
		return 0
	}
	return c.drop.Used()
}
