package transport

import "net"

// MeteredConn wraps a net.PacketConn and records its traffic in a LogEntry.
type MeteredConn struct {
	net.PacketConn
	Entry *LogEntry
}

// Meter wraps conn with a fresh LogEntry.
func Meter(conn net.PacketConn) *MeteredConn {
	return &MeteredConn{PacketConn: conn, Entry: new(LogEntry)}
}

// ReadFrom implements net.PacketConn
func (mc *MeteredConn) ReadFrom(p []byte) (int, net.Addr, error) {
	n, addr, err := mc.PacketConn.ReadFrom(p)
	if err == nil {
		mc.Entry.AddRecv(n)
	}
	return n, addr, err
}

// WriteTo implements net.PacketConn
func (mc *MeteredConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	n, err := mc.PacketConn.WriteTo(p, addr)
	if err == nil {
		mc.Entry.AddSent(n)
	}
	return n, err
}
