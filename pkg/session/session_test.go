package session

import (
	"context"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/skycoin/stopwait/internal/testhelpers"
	"github.com/skycoin/stopwait/pkg/arq"
	"github.com/skycoin/stopwait/pkg/transport"
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

func randBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestFragment(t *testing.T) {
	for _, n := range []int{0, 1, 999, 1000, 1001, 2500, 4096} {
		for _, size := range []int{1, 7, 1000, 5000} {
			payload := randBytes(t, n)
			frags, err := Fragment(payload, size)
			require.NoError(t, err)

			want := (n + size - 1) / size
			require.Len(t, frags, want, "n=%d size=%d", n, size)

			joined := []byte{}
			for i, f := range frags {
				assert.Equal(t, uint32(i), f.Index)
				assert.Equal(t, uint32(want), f.Total)
				if i < len(frags)-1 {
					assert.Len(t, f.Data, size)
				}
				joined = append(joined, f.Data...)
			}
			assert.Equal(t, payload, joined)
		}
	}
}

func TestFragment_Sizes(t *testing.T) {
	frags, err := Fragment(make([]byte, 2500), 1000)
	require.NoError(t, err)
	require.Len(t, frags, 3)
	assert.Len(t, frags[0].Data, 1000)
	assert.Len(t, frags[1].Data, 1000)
	assert.Len(t, frags[2].Data, 500)
}

func TestFragment_Invalid(t *testing.T) {
	_, err := Fragment([]byte("x"), 0)
	require.Error(t, err)
	_, err = Fragment([]byte("x"), -1)
	require.Error(t, err)

	_, err = Fragment(make([]byte, arq.MaxFragments+1), 1)
	assert.Equal(t, ErrPayloadTooLarge, err)
}

type endpoints struct {
	snd, rcv *transport.MeteredConn
}

func pipeEndpoints(t *testing.T) endpoints {
	a, b := transport.Pipe("sender", "receiver")
	t.Cleanup(func() { testhelpers.NoErrorN(t, a.Close(), b.Close()) })
	return endpoints{snd: transport.Meter(a), rcv: transport.Meter(b)}
}

func transfer(t *testing.T, ep endpoints, payload []byte, sOpts SendOptions, rOpts ReceiveOptions) (*SendReport, *ReceiveReport) {
	t.Helper()

	type result struct {
		rep *ReceiveReport
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		rep, err := Receive(context.Background(), ep.rcv, rOpts)
		resCh <- result{rep, err}
	}()

	sRep, err := Send(context.Background(), ep.snd, ep.rcv.LocalAddr(), payload, sOpts)
	require.NoError(t, err)

	select {
	case res := <-resCh:
		require.NoError(t, res.err)
		return sRep, res.rep
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not complete")
		return nil, nil
	}
}

func TestTransfer_Reference(t *testing.T) {
	ep := pipeEndpoints(t)
	payload := randBytes(t, 2500)

	sRep, rRep := transfer(t, ep, payload, SendOptions{FragmentSize: 1000}, ReceiveOptions{})

	assert.Equal(t, payload, rRep.Payload)
	assert.Equal(t, 3, sRep.Fragments)
	assert.Equal(t, 3, rRep.Fragments)
	assert.Equal(t, uint64(3), ep.snd.Entry.SentPackets())
	assert.Equal(t, uint64(3), ep.rcv.Entry.SentPackets())
	assert.Equal(t, arq.SenderStats{DataSent: 3}, sRep.Stats)
	assert.Equal(t, 3, rRep.Stats.AcksSent)
	assert.Equal(t, sRep.Digest, rRep.Digest)
	assert.Equal(t, "sender", rRep.Peer)
	assert.Equal(t, "receiver", sRep.Peer)
}

func TestTransfer_DefaultFragmentSize(t *testing.T) {
	ep := pipeEndpoints(t)
	payload := randBytes(t, 4321)

	sRep, rRep := transfer(t, ep, payload, SendOptions{}, ReceiveOptions{})
	assert.Equal(t, 5, sRep.Fragments)
	assert.Equal(t, payload, rRep.Payload)
}

func TestTransfer_Impaired(t *testing.T) {
	ep := pipeEndpoints(t)
	payload := make([]byte, 20*100)
	for i := range payload {
		payload[i] = byte(i*7 + 3)
	}

	sRep, rRep := transfer(t, ep, payload,
		SendOptions{FragmentSize: 100, DataCorruptRate: 0.25},
		ReceiveOptions{AckCorruptRate: 0.1})

	assert.Equal(t, payload, rRep.Payload)
	assert.Equal(t, 5, sRep.Stats.Corrupted)
	assert.Equal(t, 2, rRep.Stats.Corrupted)
	assert.Equal(t, 20, rRep.Stats.Accepted)
	assert.Equal(t, sRep.Stats.DataSent, rRep.Stats.Received)
	assert.Equal(t, sRep.Stats.Retransmissions, sRep.Stats.ChecksumErrors+sRep.Stats.SequenceErrors)
}

func TestTransfer_LingerCoversLostFinalAck(t *testing.T) {
	ep := pipeEndpoints(t)
	payload := []byte("single fragment")

	sRep, rRep := transfer(t, ep, payload,
		SendOptions{RetransmitTimeout: 50 * time.Millisecond, MaxRetransmits: 5},
		ReceiveOptions{AckLossRate: 1, Linger: 300 * time.Millisecond})

	assert.Equal(t, payload, rRep.Payload)
	assert.Equal(t, 1, sRep.Stats.Timeouts)
	assert.Equal(t, 1, rRep.Stats.Dropped)
	assert.Equal(t, 1, rRep.Stats.Duplicates)
}

func TestSend_Empty(t *testing.T) {
	ep := pipeEndpoints(t)
	rep, err := Send(context.Background(), ep.snd, ep.rcv.LocalAddr(), nil, SendOptions{})
	require.NoError(t, err)
	assert.Zero(t, rep.Fragments)
	assert.Zero(t, ep.snd.Entry.SentPackets())
}

func TestReceive_Cancel(t *testing.T) {
	ep := pipeEndpoints(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := Receive(ctx, ep.rcv, ReceiveOptions{})
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	err := testhelpers.WithinTimeout(errCh)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTransfer_UDP(t *testing.T) {
	if !nettest.TestableNetwork("udp") {
		t.Skip("udp is not testable on this platform")
	}

	rcv, err := nettest.NewLocalPacketListener("udp")
	require.NoError(t, err)
	snd, err := nettest.NewLocalPacketListener("udp")
	require.NoError(t, err)
	defer func() { testhelpers.NoErrorN(t, rcv.Close(), snd.Close()) }()

	payload := randBytes(t, 64*1024)
	var peer net.Addr = rcv.LocalAddr()

	resCh := make(chan *ReceiveReport, 1)
	go func() {
		rep, err := Receive(context.Background(), rcv, ReceiveOptions{})
		if err != nil {
			resCh <- nil
			return
		}
		resCh <- rep
	}()

	sRep, err := Send(context.Background(), snd, peer, payload, SendOptions{
		FragmentSize:      1000,
		RetransmitTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 66, sRep.Fragments)

	select {
	case rRep := <-resCh:
		require.NotNil(t, rRep)
		assert.Equal(t, payload, rRep.Payload)
	case <-time.After(10 * time.Second):
		t.Fatal("receiver did not complete")
	}
}
