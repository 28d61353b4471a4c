// Package transport provides the datagram transports used by the ARQ
// endpoints: UDP sockets, an in-memory pipe, and a metering wrapper.
// Every transport is a net.PacketConn.
package transport

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"
)

// Type is the network used for real endpoints.
const Type = "udp"

var log = logging.MustGetLogger("transport")

// Listen opens a UDP endpoint bound to addr. An empty port picks a free one.
func Listen(addr string) (net.PacketConn, error) {
	conn, err := net.ListenPacket(Type, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	log.Debugf("listening on %s", conn.LocalAddr())
	return conn, nil
}

// ResolvePeer resolves the fixed remote endpoint.
func ResolvePeer(addr string) (net.Addr, error) {
	udpAddr, err := net.ResolveUDPAddr(Type, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", addr)
	}
	return udpAddr, nil
}

// WatchContext unblocks pending reads on conn once ctx is done, by setting
// a read deadline in the past. The returned func stops the watcher.
func WatchContext(ctx context.Context, conn net.PacketConn) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := conn.SetReadDeadline(time.Now()); err != nil {
				log.WithError(err).Warn("Failed to interrupt read")
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}
