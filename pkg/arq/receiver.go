package arq

import (
	"context"
	"errors"
	"net"

	pkgerrors "github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/stopwait/pkg/impair"
)

var (
	// ErrInconsistentTotal is returned for a packet whose fragment count
	// disagrees with the session, or whose index is out of range.
	ErrInconsistentTotal = errors.New("inconsistent fragment count")

	// ErrIncomplete is returned when reassembling before every fragment
	// has been received.
	ErrIncomplete = errors.New("transfer incomplete")
)

// ReceiverStats are the session-scoped counters of a Receiver.
type ReceiverStats struct {
	Received       int `json:"received"`        // data datagrams read
	Accepted       int `json:"accepted"`        // new in-order fragments stored
	Duplicates     int `json:"duplicates"`      // valid packets carrying the previous bit
	ChecksumErrors int `json:"checksum_errors"` // data datagrams that failed to decode
	AcksSent       int `json:"acks_sent"`       // acknowledgments written
	Corrupted      int `json:"corrupted"`       // acknowledgments sent corrupted on purpose
	Dropped        int `json:"dropped"`         // acknowledgments dropped on purpose
}

// Receiver validates inbound data packets, deduplicates them by the
// expected sequence bit, buffers fragments by index and produces the
// acknowledgments. It owns its sequence bit and fragment map exclusively.
type Receiver struct {
	expected  SeqBit
	total     uint32
	fragments map[uint32][]byte

	impair *impair.Channel
	stats  ReceiverStats
	log    *logging.Logger
}

// NewReceiver creates a Receiver expecting sequence bit 0. A nil ch
// disables fault injection on acknowledgments.
func NewReceiver(ch *impair.Channel) *Receiver {
	return &Receiver{
		expected:  Seq0,
		fragments: make(map[uint32][]byte),
		impair:    ch,
		log:       log,
	}
}

// SetLogger sets the logger used by the Receiver.
func (r *Receiver) SetLogger(log *logging.Logger) {
	r.log = log
}

// Expected returns the next expected sequence bit.
func (r *Receiver) Expected() SeqBit { return r.expected }

// Total returns the fragment count learned from the first valid packet, or
// 0 if none has arrived yet.
func (r *Receiver) Total() uint32 { return r.total }

// Len returns the number of distinct fragments stored.
func (r *Receiver) Len() int { return len(r.fragments) }

// Stats returns the counters accumulated so far.
func (r *Receiver) Stats() ReceiverStats { return r.stats }

// Done reports whether every fragment of the session has been stored.
func (r *Receiver) Done() bool {
	return r.total > 0 && len(r.fragments) == int(r.total)
}

// Handle processes one inbound datagram and returns the acknowledgment to
// send back, or nil when the acknowledgment is dropped by fault injection.
//
// A corrupt packet and a duplicate both produce an acknowledgment carrying
// the unchanged expected bit; the sender cannot tell them apart.
func (r *Receiver) Handle(datagram []byte) []byte {
	r.stats.Received++

	pkt, err := DecodeDataPacket(datagram)
	if err == nil {
		err = r.checkTotal(pkt)
	}

	switch {
	case err != nil:
		r.stats.ChecksumErrors++
		r.log.WithError(err).Debugf("rejecting datagram, expected seq=%s", r.expected)
	case pkt.Seq == r.expected:
		if _, ok := r.fragments[pkt.Index]; !ok {
			r.fragments[pkt.Index] = append([]byte(nil), pkt.Payload...)
		}
		r.stats.Accepted++
		r.expected = r.expected.Next()
		r.log.Debugf("accepted %s", pkt)
	default:
		r.stats.Duplicates++
		r.log.Debugf("duplicate %s", pkt)
	}

	return r.ack()
}

func (r *Receiver) checkTotal(pkt DataPacket) error {
	if pkt.Total == 0 || pkt.Index >= pkt.Total {
		return ErrInconsistentTotal
	}
	if r.total == 0 {
		r.total = pkt.Total
		r.impair.Size(int(pkt.Total))
		return nil
	}
	if pkt.Total != r.total {
		return ErrInconsistentTotal
	}
	return nil
}

func (r *Receiver) ack() []byte {
	out, v := r.impair.Apply(EncodeAckPacket(r.expected))
	switch v {
	case impair.Corrupted:
		r.stats.Corrupted++
	case impair.Dropped:
		r.stats.Dropped++
	}
	return out
}

// Serve reads datagrams from conn and acknowledges each one to its source
// until Done. It returns the address of the last sender seen.
func (r *Receiver) Serve(ctx context.Context, conn net.PacketConn) (net.Addr, error) {
	buf := make([]byte, MaxDatagramSize)
	var from net.Addr
	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return from, err
		}
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return from, ctxErr
			}
			return from, pkgerrors.Wrap(err, "failed to read data packet")
		}
		from = addr
		if err := r.Reply(conn, addr, r.Handle(buf[:n])); err != nil {
			return from, err
		}
	}
	return from, nil
}

// Reply writes ack to addr. A nil ack is not written.
func (r *Receiver) Reply(conn net.PacketConn, addr net.Addr, ack []byte) error {
	if ack == nil {
		return nil
	}
	if _, err := conn.WriteTo(ack, addr); err != nil {
		return pkgerrors.Wrap(err, "failed to write ack")
	}
	r.stats.AcksSent++
	return nil
}

// Reassemble concatenates the stored fragments in index order.
func (r *Receiver) Reassemble() ([]byte, error) {
	if !r.Done() {
		return nil, pkgerrors.Wrapf(ErrIncomplete, "%d/%d fragments", len(r.fragments), r.total)
	}
	size := 0
	for _, b := range r.fragments {
		size += len(b)
	}
	out := make([]byte, 0, size)
	for i := uint32(0); i < r.total; i++ {
		out = append(out, r.fragments[i]...)
	}
	return out, nil
}
