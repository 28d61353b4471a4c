// Package session orchestrates whole-payload transfers: it fragments the
// payload, drives the ARQ state machines one fragment at a time and
// reassembles the result on the receiving end.
package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/cipher"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/skycoin/stopwait/pkg/arq"
	"github.com/skycoin/stopwait/pkg/impair"
	"github.com/skycoin/stopwait/pkg/transport"
)

// DefaultFragmentSize is the reference payload size of one fragment.
const DefaultFragmentSize = 1000

// ErrPayloadTooLarge is returned when a payload needs more fragments than
// the 3-byte header fields can count.
var ErrPayloadTooLarge = errors.New("payload needs too many fragments")

var log = logging.MustGetLogger("session")

// Fragment splits payload into ceil(len(payload)/size) fragments. The last
// fragment is short when size does not divide the payload length.
func Fragment(payload []byte, size int) ([]arq.Fragment, error) {
	if size <= 0 {
		return nil, pkgerrors.Errorf("invalid fragment size %d", size)
	}
	total := (len(payload) + size - 1) / size
	if total > arq.MaxFragments {
		return nil, ErrPayloadTooLarge
	}

	frags := make([]arq.Fragment, total)
	for i := range frags {
		start := i * size
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		frags[i] = arq.Fragment{Index: uint32(i), Total: uint32(total), Data: payload[start:end]}
	}
	return frags, nil
}

// SendOptions configure the sending side of a session.
type SendOptions struct {
	FragmentSize      int
	DataCorruptRate   float64
	DataLossRate      float64
	RetransmitTimeout time.Duration
	MaxRetransmits    int
	Logger            *logging.Logger
}

// SendReport summarizes a completed send.
type SendReport struct {
	ID        uuid.UUID       `json:"id"`
	Peer      string          `json:"peer"`
	Size      int             `json:"size"`
	Fragments int             `json:"fragments"`
	Digest    cipher.SHA256   `json:"digest"`
	Started   time.Time       `json:"started"`
	Duration  time.Duration   `json:"duration"`
	Stats     arq.SenderStats `json:"stats"`
}

// Send transfers payload to peer over conn, one fragment at a time, and
// returns once the last fragment is acknowledged. An empty payload has no
// fragments and sends nothing.
func Send(ctx context.Context, conn net.PacketConn, peer net.Addr, payload []byte, opts SendOptions) (*SendReport, error) {
	if opts.FragmentSize == 0 {
		opts.FragmentSize = DefaultFragmentSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log
	}

	frags, err := Fragment(payload, opts.FragmentSize)
	if err != nil {
		return nil, err
	}

	rep := &SendReport{
		ID:        uuid.New(),
		Peer:      peer.String(),
		Size:      len(payload),
		Fragments: len(frags),
		Digest:    cipher.SumSHA256(payload),
		Started:   time.Now(),
	}

	ch := impair.NewChannel(opts.DataCorruptRate, opts.DataLossRate, arq.CorruptDataPacket)
	ch.Size(len(frags))
	s := arq.NewSender(conn, peer, ch, arq.SenderConfig{
		RetransmitTimeout: opts.RetransmitTimeout,
		MaxRetransmits:    opts.MaxRetransmits,
	})
	s.SetLogger(logger)

	stop := transport.WatchContext(ctx, conn)
	defer stop()

	logger.WithField("session", rep.ID).Infof("sending %d bytes as %d fragments to %s", rep.Size, rep.Fragments, peer)

	seq := arq.Seq0
	for _, f := range frags {
		if seq, err = s.SendFragment(ctx, f, seq); err != nil {
			rep.Duration = time.Since(rep.Started)
			rep.Stats = s.Stats()
			return rep, pkgerrors.Wrapf(err, "fragment %d/%d", f.Index+1, f.Total)
		}
	}

	rep.Duration = time.Since(rep.Started)
	rep.Stats = s.Stats()
	logger.WithField("session", rep.ID).
		WithField("checksum_errors", rep.Stats.ChecksumErrors).
		WithField("sequence_errors", rep.Stats.SequenceErrors).
		Infof("sent %d fragments in %s", rep.Fragments, rep.Duration)
	return rep, nil
}

// ReceiveOptions configure the receiving side of a session.
type ReceiveOptions struct {
	AckCorruptRate float64
	AckLossRate    float64

	// Linger, when positive, keeps acknowledging duplicates after the
	// transfer completed until no datagram arrives for Linger. It covers
	// the loss of the final acknowledgment.
	Linger time.Duration
	Logger *logging.Logger
}

// ReceiveReport summarizes a completed receive.
type ReceiveReport struct {
	ID        uuid.UUID         `json:"id"`
	Peer      string            `json:"peer"`
	Size      int               `json:"size"`
	Fragments int               `json:"fragments"`
	Digest    cipher.SHA256     `json:"digest"`
	Started   time.Time         `json:"started"`
	Duration  time.Duration     `json:"duration"`
	Stats     arq.ReceiverStats `json:"stats"`
	Payload   []byte            `json:"-"`
}

// Receive drives the receiver on conn until every fragment of one session
// arrived, then reassembles the payload in index order.
func Receive(ctx context.Context, conn net.PacketConn, opts ReceiveOptions) (*ReceiveReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log
	}

	rep := &ReceiveReport{ID: uuid.New(), Started: time.Now()}
	r := arq.NewReceiver(impair.NewChannel(opts.AckCorruptRate, opts.AckLossRate, arq.CorruptAckPacket))
	r.SetLogger(logger)

	stop := transport.WatchContext(ctx, conn)
	defer stop()

	logger.WithField("session", rep.ID).Infof("waiting for data on %s", conn.LocalAddr())

	peer, err := r.Serve(ctx, conn)
	rep.Duration = time.Since(rep.Started)
	rep.Stats = r.Stats()
	rep.Fragments = int(r.Total())
	if peer != nil {
		rep.Peer = peer.String()
	}
	if err != nil {
		return rep, err
	}

	if rep.Payload, err = r.Reassemble(); err != nil {
		return rep, err
	}
	rep.Size = len(rep.Payload)
	rep.Digest = cipher.SumSHA256(rep.Payload)

	logger.WithField("session", rep.ID).Infof("received %d bytes in %d fragments from %s in %s",
		rep.Size, rep.Fragments, rep.Peer, rep.Duration)

	if opts.Linger > 0 {
		linger(ctx, conn, r, opts.Linger, logger)
		rep.Stats = r.Stats()
	}
	return rep, nil
}

// linger answers late retransmissions until the line stays quiet for d.
func linger(ctx context.Context, conn net.PacketConn, r *arq.Receiver, d time.Duration, logger *logging.Logger) {
	buf := make([]byte, arq.MaxDatagramSize)
	defer func() {
		if err := conn.SetReadDeadline(time.Time{}); err != nil {
			logger.WithError(err).Warn("Failed to clear read deadline")
		}
	}()

	for ctx.Err() == nil {
		if err := conn.SetReadDeadline(time.Now().Add(d)); err != nil {
			logger.WithError(err).Warn("Failed to set read deadline")
			return
		}
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if err := r.Reply(conn, addr, r.Handle(buf[:n])); err != nil {
			logger.WithError(err).Warn("Failed to answer late datagram")
			return
		}
	}
}
