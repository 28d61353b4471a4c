package transport

import (
	"encoding/json"
	"sync/atomic"
)

// LogEntry counts the traffic of one endpoint. It is updated every time a
// datagram is sent or received.
type LogEntry struct {
	recvBytes uint64
	sentBytes uint64
	recvPkts  uint64
	sentPkts  uint64
}

// AddRecv records a received datagram of n bytes.
func (le *LogEntry) AddRecv(n int) {
	atomic.AddUint64(&le.recvBytes, uint64(n))
	atomic.AddUint64(&le.recvPkts, 1)
}

// AddSent records a sent datagram of n bytes.
func (le *LogEntry) AddSent(n int) {
	atomic.AddUint64(&le.sentBytes, uint64(n))
	atomic.AddUint64(&le.sentPkts, 1)
}

// RecvBytes returns the total received bytes.
func (le *LogEntry) RecvBytes() uint64 { return atomic.LoadUint64(&le.recvBytes) }

// SentBytes returns the total sent bytes.
func (le *LogEntry) SentBytes() uint64 { return atomic.LoadUint64(&le.sentBytes) }

// RecvPackets returns the number of received datagrams.
func (le *LogEntry) RecvPackets() uint64 { return atomic.LoadUint64(&le.recvPkts) }

// SentPackets returns the number of sent datagrams.
func (le *LogEntry) SentPackets() uint64 { return atomic.LoadUint64(&le.sentPkts) }

// Traffic is a point-in-time copy of a LogEntry.
type Traffic struct {
	RecvBytes   uint64 `json:"recv_bytes"`
	SentBytes   uint64 `json:"sent_bytes"`
	RecvPackets uint64 `json:"recv_packets"`
	SentPackets uint64 `json:"sent_packets"`
}

// Snapshot returns the current counters.
func (le *LogEntry) Snapshot() Traffic {
	return Traffic{
		RecvBytes:   le.RecvBytes(),
		SentBytes:   le.SentBytes(),
		RecvPackets: le.RecvPackets(),
		SentPackets: le.SentPackets(),
	}
}

// MarshalJSON implements json.Marshaller
func (le *LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(le.Snapshot())
}
