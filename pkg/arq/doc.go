// Package arq implements the alternating-bit stop-and-wait ARQ engine: the
// frame codec for data and acknowledgment packets, and the sender and
// receiver state machines that drive one fragment at a time over an
// unreliable datagram transport.
//
// Wire format (all integers big-endian, unsigned):
//
//	Data: checksum(2) | seq(1) | index(3) | total(3) | payload(P)
//	Ack:  checksum(2) | seq(1)
//
// The checksum is an XOR-fold of 16-bit words over every byte after the
// checksum field. It detects single-word corruption only.
package arq
