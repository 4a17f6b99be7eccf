// Package eventlog is the broader, sequence-numbered event stream a poll's
// owning process keeps alongside the audit log: every audit event plus
// finer-grained operational events (receipt verification, tally
// completion, audit requests) that the audit log itself does not carry.
// Unlike audit.Log, entries here are not hash-chained or signed — the
// contract is purely monotonic sequencing plus a self-describing binary
// export, in the same spirit as keeping a lightweight operational
// event feed distinct from its cryptographically chained state.
package eventlog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/vocdoni/scrutinium/ids"
)

// EventType enumerates the event-log's broader taxonomy.
type EventType string

const (
	PollCreated    EventType = "poll_created"
	VoteCast       EventType = "vote_cast"
	PollClosed     EventType = "poll_closed"
	VoteVerified   EventType = "vote_verified"
	TallyComputed  EventType = "tally_computed"
	AuditRequested EventType = "audit_requested"
)

// Entry is one record in the event log.
type Entry struct {
	Sequence      uint64
	EventType     EventType
	Timestamp     int64
	PollID        ids.ID
	CreatorID     []byte
	VoterToken    []byte
	Configuration []byte // JSON, UTF-8
	TallyHash     []byte
	Metadata      []byte // JSON, UTF-8
}

// Log is an append-only, monotonically sequenced event stream. Like audit.Log
// it takes no internal locks; callers sharing one across goroutines must
// serialize their own calls.
type Log struct {
	entries []Entry
}

// New returns an empty event log.
func New() *Log {
	return &Log{}
}

// Append appends a new entry, stamping it with the next sequence number and
// the current timestamp in microseconds.
func (l *Log) Append(eventType EventType, pollID ids.ID, opts ...EntryOption) Entry {
	e := Entry{
		Sequence:  uint64(len(l.entries)),
		EventType: eventType,
		Timestamp: time.Now().UnixMicro(),
		PollID:    pollID,
	}
	for _, opt := range opts {
		opt(&e)
	}
	l.entries = append(l.entries, e)
	return e
}

// EntryOption sets one of Entry's optional fields.
type EntryOption func(*Entry)

func WithCreatorID(id []byte) EntryOption      { return func(e *Entry) { e.CreatorID = id } }
func WithVoterToken(tok []byte) EntryOption    { return func(e *Entry) { e.VoterToken = tok } }
func WithConfiguration(cfg []byte) EntryOption { return func(e *Entry) { e.Configuration = cfg } }
func WithTallyHash(h []byte) EntryOption       { return func(e *Entry) { e.TallyHash = h } }
func WithMetadata(m []byte) EntryOption        { return func(e *Entry) { e.Metadata = m } }

// GetEntries returns a read-only snapshot of the log.
func (l *Log) GetEntries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// VerifySequence reports whether entries[i].Sequence == i for every i.
func (l *Log) VerifySequence() bool {
	for i, e := range l.entries {
		if e.Sequence != uint64(i) {
			return false
		}
	}
	return true
}

// Export serializes the entire log into the self-describing binary format
// fixed by the external wire format: a u64 count, then for each entry a u64 sequence, u64
// timestamp, length-prefixed eventType, length-prefixed pollId, and one
// {flag, length, bytes} triple per optional field in the fixed order
// creatorId, voterToken, configuration, tallyHash, metadata.
func (l *Log) Export() []byte {
	var buf bytes.Buffer
	writeU64(&buf, uint64(len(l.entries)))
	for _, e := range l.entries {
		writeU64(&buf, e.Sequence)
		writeU64(&buf, uint64(e.Timestamp))
		writeBytes(&buf, []byte(e.EventType))
		writeBytes(&buf, e.PollID)
		writeOptional(&buf, e.CreatorID)
		writeOptional(&buf, e.VoterToken)
		writeOptional(&buf, e.Configuration)
		writeOptional(&buf, e.TallyHash)
		writeOptional(&buf, e.Metadata)
	}
	return buf.Bytes()
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeU64(buf, uint64(len(b)))
	buf.Write(b)
}

func writeOptional(buf *bytes.Buffer, b []byte) {
	if b == nil {
		writeU64(buf, 0)
		return
	}
	writeU64(buf, 1)
	writeBytes(buf, b)
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("eventlog: could not read u64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("eventlog: could not read bytes: %w", err)
		}
	}
	return b, nil
}

func readOptional(r *bytes.Reader) ([]byte, error) {
	flag, err := readU64(r)
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return nil, nil
	}
	return readBytes(r)
}

// Import parses the binary format Export produces, mainly for tests and for
// cross-process hand-off of a captured log.
func Import(data []byte) ([]Entry, error) {
	r := bytes.NewReader(data)
	count, err := readU64(r)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		var e Entry
		if e.Sequence, err = readU64(r); err != nil {
			return nil, err
		}
		ts, err := readU64(r)
		if err != nil {
			return nil, err
		}
		e.Timestamp = int64(ts)
		eventType, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		e.EventType = EventType(eventType)
		if e.PollID, err = readBytes(r); err != nil {
			return nil, err
		}
		if e.CreatorID, err = readOptional(r); err != nil {
			return nil, err
		}
		if e.VoterToken, err = readOptional(r); err != nil {
			return nil, err
		}
		if e.Configuration, err = readOptional(r); err != nil {
			return nil, err
		}
		if e.TallyHash, err = readOptional(r); err != nil {
			return nil, err
		}
		if e.Metadata, err = readOptional(r); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
