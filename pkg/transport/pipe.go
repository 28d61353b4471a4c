package transport

import (
	"io"
	"net"
	"os"
	"sync"
	"time"
)

const pipeQueueLen = 1024

// PipeAddr is the address of one end of a Pipe.
type PipeAddr string

// Network implements net.Addr
func (a PipeAddr) Network() string { return "pipe" }

// String implements net.Addr
func (a PipeAddr) String() string { return string(a) }

type datagram struct {
	b    []byte
	from net.Addr
}

// PipeConn is one end of an in-memory datagram link. Every write is
// delivered to the other end regardless of the destination address, and
// datagram boundaries are preserved.
type PipeConn struct {
	local  PipeAddr
	inbox  chan datagram
	remote *PipeConn

	rDeadline *deadline
	closeOnce sync.Once
	done      chan struct{}
}

// Pipe creates a connected pair of in-memory PacketConns named a and b.
func Pipe(a, b string) (*PipeConn, *PipeConn) {
	c1 := newPipeConn(PipeAddr(a))
	c2 := newPipeConn(PipeAddr(b))
	c1.remote, c2.remote = c2, c1
	return c1, c2
}

func newPipeConn(addr PipeAddr) *PipeConn {
	return &PipeConn{
		local:     addr,
		inbox:     make(chan datagram, pipeQueueLen),
		rDeadline: newDeadline(),
		done:      make(chan struct{}),
	}
}

// ReadFrom implements net.PacketConn
func (pc *PipeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case <-pc.done:
		return 0, nil, io.ErrClosedPipe
	case <-pc.rDeadline.wait():
		return 0, nil, os.ErrDeadlineExceeded
	default:
	}

	select {
	case dg := <-pc.inbox:
		return copy(p, dg.b), dg.from, nil
	case <-pc.done:
		return 0, nil, io.ErrClosedPipe
	case <-pc.rDeadline.wait():
		return 0, nil, os.ErrDeadlineExceeded
	}
}

// WriteTo implements net.PacketConn
func (pc *PipeConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	select {
	case <-pc.done:
		return 0, io.ErrClosedPipe
	default:
	}

	dg := datagram{b: append([]byte(nil), p...), from: pc.local}
	select {
	case pc.remote.inbox <- dg:
		return len(p), nil
	case <-pc.remote.done:
		// the far end is gone; like UDP, the datagram is silently lost
		return len(p), nil
	case <-pc.done:
		return 0, io.ErrClosedPipe
	}
}

// Close implements net.PacketConn
func (pc *PipeConn) Close() error {
	pc.closeOnce.Do(func() { close(pc.done) })
	return nil
}

// LocalAddr implements net.PacketConn
func (pc *PipeConn) LocalAddr() net.Addr { return pc.local }

// SetDeadline implements net.PacketConn. Writes never block on a deadline.
func (pc *PipeConn) SetDeadline(t time.Time) error { return pc.SetReadDeadline(t) }

// SetReadDeadline implements net.PacketConn
func (pc *PipeConn) SetReadDeadline(t time.Time) error {
	pc.rDeadline.set(t)
	return nil
}

// SetWriteDeadline implements net.PacketConn
func (pc *PipeConn) SetWriteDeadline(time.Time) error { return nil }

// deadline is a resettable timer whose channel is closed once it expires.
type deadline struct {
	mu     sync.Mutex
	timer  *time.Timer
	cancel chan struct{}
}

func newDeadline() *deadline {
	return &deadline{cancel: make(chan struct{})}
}

func (d *deadline) set(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil && !d.timer.Stop() {
		<-d.cancel // the timer fired; wait for it to close cancel
	}
	d.timer = nil

	closed := isClosed(d.cancel)
	if t.IsZero() {
		if closed {
			d.cancel = make(chan struct{})
		}
		return
	}

	if dur := time.Until(t); dur > 0 {
		if closed {
			d.cancel = make(chan struct{})
		}
		cancel := d.cancel
		d.timer = time.AfterFunc(dur, func() { close(cancel) })
		return
	}

	if !closed {
		close(d.cancel)
	}
}

func (d *deadline) wait() chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel
}

func isClosed(c chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}
