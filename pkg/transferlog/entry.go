// Package transferlog persists one record per completed (or failed)
// transfer session.
package transferlog

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/skycoin/stopwait/pkg/arq"
	"github.com/skycoin/stopwait/pkg/session"
	"github.com/skycoin/stopwait/pkg/transport"
)

// ErrNotFound is returned when no entry is recorded under an ID.
var ErrNotFound = errors.New("transfer log entry not found")

// Direction tells which end of a transfer recorded an entry.
type Direction string

// Directions.
const (
	Sent     Direction = "send"
	Received Direction = "receive"
)

// Entry is the record of one transfer session.
type Entry struct {
	ID        uuid.UUID          `json:"id"`
	Direction Direction          `json:"direction"`
	Peer      string             `json:"peer"`
	Size      int                `json:"size"`
	Fragments int                `json:"fragments"`
	Digest    string             `json:"digest,omitempty"`
	Path      string             `json:"path,omitempty"`
	Started   time.Time          `json:"started"`
	Duration  time.Duration      `json:"duration"`
	Sender    *arq.SenderStats   `json:"sender,omitempty"`
	Receiver  *arq.ReceiverStats `json:"receiver,omitempty"`
	Traffic   *transport.Traffic `json:"traffic,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// FromSendReport builds the entry of a send. err is the error the send
// ended with, if any.
func FromSendReport(rep *session.SendReport, traffic *transport.LogEntry, err error) *Entry {
	stats := rep.Stats
	e := &Entry{
		ID:        rep.ID,
		Direction: Sent,
		Peer:      rep.Peer,
		Size:      rep.Size,
		Fragments: rep.Fragments,
		Digest:    rep.Digest.Hex(),
		Started:   rep.Started,
		Duration:  rep.Duration,
		Sender:    &stats,
	}
	e.finish(traffic, err)
	return e
}

// FromReceiveReport builds the entry of a receive stored at path.
func FromReceiveReport(rep *session.ReceiveReport, path string, traffic *transport.LogEntry, err error) *Entry {
	stats := rep.Stats
	e := &Entry{
		ID:        rep.ID,
		Direction: Received,
		Peer:      rep.Peer,
		Size:      rep.Size,
		Fragments: rep.Fragments,
		Path:      path,
		Started:   rep.Started,
		Duration:  rep.Duration,
		Receiver:  &stats,
	}
	if err == nil {
		e.Digest = rep.Digest.Hex()
	}
	e.finish(traffic, err)
	return e
}

func (e *Entry) finish(traffic *transport.LogEntry, err error) {
	if traffic != nil {
		t := traffic.Snapshot()
		e.Traffic = &t
	}
	if err != nil {
		e.Error = err.Error()
	}
}

// Store stores transfer log entries.
type Store interface {
	Entry(id uuid.UUID) (*Entry, error)
	Record(id uuid.UUID, entry *Entry) error

	// Entries returns every entry, oldest first.
	Entries() ([]*Entry, error)
	Close() error
}

func sortEntries(entries []*Entry) []*Entry {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Started.Before(entries[j].Started)
	})
	return entries
}
