package arq

import (
	"context"
	"errors"
	"net"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/stopwait/pkg/impair"
)

var log = logging.MustGetLogger("arq")

// ErrTooManyRetransmits is returned when a fragment was retransmitted more
// than SenderConfig.MaxRetransmits times without a matching acknowledgment.
var ErrTooManyRetransmits = errors.New("too many retransmissions")

// SenderConfig holds the optional extensions of the sender. The zero value
// is the reference protocol: no timer, unbounded retransmission.
type SenderConfig struct {
	// RetransmitTimeout, when positive, retransmits the outstanding packet
	// if no datagram arrives within the timeout.
	RetransmitTimeout time.Duration

	// MaxRetransmits, when positive, bounds retransmissions per fragment.
	MaxRetransmits int
}

// SenderStats are the session-scoped counters of a Sender.
type SenderStats struct {
	DataSent        int `json:"data_sent"`       // data datagrams written, retransmissions included
	Retransmissions int `json:"retransmissions"` // retransmitted data datagrams
	ChecksumErrors  int `json:"checksum_errors"` // acknowledgments that failed to decode
	SequenceErrors  int `json:"sequence_errors"` // valid acknowledgments carrying the wrong bit
	Timeouts        int `json:"timeouts"`        // retransmissions triggered by the timer
	Corrupted       int `json:"corrupted"`       // data datagrams sent corrupted on purpose
	Dropped         int `json:"dropped"`         // data datagrams dropped on purpose
}

// Sender drives the transmission of fragments under the stop-and-wait
// discipline: PreparePacket -> AwaitAck -> Advance.
type Sender struct {
	conn   net.PacketConn
	peer   net.Addr
	impair *impair.Channel
	conf   SenderConfig
	log    *logging.Logger

	stats SenderStats
	buf   []byte
}

// NewSender creates a Sender writing to peer over conn. A nil ch disables
// fault injection.
func NewSender(conn net.PacketConn, peer net.Addr, ch *impair.Channel, conf SenderConfig) *Sender {
	return &Sender{
		conn:   conn,
		peer:   peer,
		impair: ch,
		conf:   conf,
		log:    log,
		buf:    make([]byte, MaxDatagramSize),
	}
}

// SetLogger sets the logger used by the Sender.
func (s *Sender) SetLogger(log *logging.Logger) {
	s.log = log
}

// Stats returns the counters accumulated so far.
func (s *Sender) Stats() SenderStats {
	return s.stats
}

// SendFragment transmits f with sequence bit seq and blocks until the
// receiver acknowledges it. It returns the sequence bit for the next
// fragment.
//
// Without a RetransmitTimeout the only retransmission trigger is a
// disqualifying acknowledgment: a lost data packet or a lost
// acknowledgment stalls the call until ctx is done.
func (s *Sender) SendFragment(ctx context.Context, f Fragment, seq SeqBit) (SeqBit, error) {
	pkt := EncodeDataPacket(f, seq)
	want := seq.Next()

	out, v := s.impair.Apply(pkt)
	switch v {
	case impair.Corrupted:
		s.stats.Corrupted++
	case impair.Dropped:
		s.stats.Dropped++
	}
	s.log.Debugf("sending fragment %d/%d seq=%s (%s)", f.Index+1, f.Total, seq, v)
	if err := s.write(out); err != nil {
		return seq, err
	}

	for retries := 0; ; retries++ {
		if err := ctx.Err(); err != nil {
			return seq, err
		}

		ack, err := s.readAck(ctx)
		switch {
		case err == nil && ack.Seq == want:
			s.clearDeadline()
			return want, nil
		case err == nil:
			s.stats.SequenceErrors++
			s.log.Debugf("fragment %d: ack seq=%s, want %s", f.Index, ack.Seq, want)
		case IsCorrupt(err):
			s.stats.ChecksumErrors++
			s.log.WithError(err).Debugf("fragment %d: bad ack", f.Index)
		case isTimeout(err) && s.conf.RetransmitTimeout > 0 && ctx.Err() == nil:
			s.stats.Timeouts++
			s.log.Debugf("fragment %d: no ack within %s", f.Index, s.conf.RetransmitTimeout)
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return seq, ctxErr
			}
			return seq, pkgerrors.Wrap(err, "failed to read ack")
		}

		if s.conf.MaxRetransmits > 0 && retries >= s.conf.MaxRetransmits {
			return seq, pkgerrors.Wrapf(ErrTooManyRetransmits, "fragment %d", f.Index)
		}
		s.stats.Retransmissions++
		if err := s.write(pkt); err != nil {
			return seq, err
		}
	}
}

func (s *Sender) write(pkt []byte) error {
	if pkt == nil {
		return nil
	}
	if _, err := s.conn.WriteTo(pkt, s.peer); err != nil {
		return pkgerrors.Wrap(err, "failed to write data packet")
	}
	s.stats.DataSent++
	return nil
}

// readAck reads datagrams until one arrives from the peer and decodes it.
func (s *Sender) readAck(ctx context.Context) (AckPacket, error) {
	for {
		if s.conf.RetransmitTimeout > 0 && ctx.Err() == nil {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.conf.RetransmitTimeout)); err != nil {
				return AckPacket{}, err
			}
		}
		n, addr, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			return AckPacket{}, err
		}
		if addr.String() != s.peer.String() {
			s.log.Debugf("ignoring datagram from %s", addr)
			continue
		}
		return DecodeAckPacket(s.buf[:n])
	}
}

func (s *Sender) clearDeadline() {
	if s.conf.RetransmitTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
			s.log.WithError(err).Warn("Failed to clear read deadline")
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
