// Package audit implements the hash-chained, authority-signed event stream
// that every Poll keeps of its own lifecycle: creation, each cast vote, and
// closure. Every entry's hash commits to its predecessor's hash, so any
// mutation to a past entry is detectable by recomputing the chain forward —
// the same tamper-evidence shape a hash-chained state tree relies on
// roots, but specialized to a flat append-only log rather than a sparse
// Merkle tree.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/member"
	"github.com/vocdoni/scrutinium/voting"
)

// EventType identifies the kind of lifecycle event an AuditEntry records.
type EventType string

const (
	PollCreated EventType = "poll_created"
	VoteCast    EventType = "vote_cast"
	PollClosed  EventType = "poll_closed"
)

// HashLength is the fixed size, in bytes, of every hash field in the chain.
const HashLength = 32

var zeroHash = make([]byte, HashLength)

// Sentinel integrity errors. VerifyChain and VerifyEntry do not return them:
// they report a failed check as a false result, never as an error or panic.
var (
	ErrChainBroken       = errors.New("audit: chain link broken")
	ErrSignatureInvalid  = errors.New("audit: authority signature invalid")
	ErrEntryNotFound     = errors.New("audit: entry not found")
)

// AuditEntry is one link in the hash chain.
type AuditEntry struct {
	Sequence      uint64          `json:"sequence"`
	EventType     EventType       `json:"eventType"`
	Timestamp     int64           `json:"timestamp"`
	PollID        ids.ID          `json:"pollId"`
	VoterIDHash   []byte          `json:"voterIdHash,omitempty"`
	AuthorityID   ids.ID          `json:"authorityId,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	PreviousHash  []byte          `json:"previousHash"`
	EntryHash     []byte          `json:"entryHash"`
	Signature     []byte          `json:"signature"`
}

// Log is an append-only, authority-signed hash chain. Like Poll and the
// other core components, it takes no internal locks: callers that share a
// Log across goroutines must serialize their own calls into it.
type Log struct {
	entries   []AuditEntry
	authority *member.Signer
}

// New creates an empty audit log signed by authority.
func New(authority *member.Signer) *Log {
	return &Log{authority: authority}
}

// RecordPollCreated appends a PollCreated entry carrying method/choiceCount
// metadata.
func (l *Log) RecordPollCreated(pollID ids.ID, method voting.VotingMethod, choiceCount int, maxWeight *int) (AuditEntry, error) {
	meta := map[string]any{"method": method, "choiceCount": choiceCount}
	if maxWeight != nil {
		meta["maxWeight"] = *maxWeight
	}
	return l.append(PollCreated, pollID, nil, meta)
}

// RecordVoteCast appends a VoteCast entry. voterIDHash is a fixed-length
// anonymized digest of the voting member's id, never the id itself.
func (l *Log) RecordVoteCast(pollID ids.ID, voterIDHash []byte) (AuditEntry, error) {
	return l.appendWithVoter(VoteCast, pollID, voterIDHash, nil)
}

// RecordPollClosed appends a PollClosed entry carrying the final voter count.
func (l *Log) RecordPollClosed(pollID ids.ID, voterCount int, closedAt int64) (AuditEntry, error) {
	meta := map[string]any{"voterCount": voterCount, "closedAt": closedAt}
	return l.append(PollClosed, pollID, nil, meta)
}

func (l *Log) append(eventType EventType, pollID ids.ID, voterIDHash []byte, metadata map[string]any) (AuditEntry, error) {
	return l.appendWithVoter(eventType, pollID, voterIDHash, metadata)
}

func (l *Log) appendWithVoter(eventType EventType, pollID ids.ID, voterIDHash []byte, metadata map[string]any) (AuditEntry, error) {
	var metaJSON json.RawMessage
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return AuditEntry{}, fmt.Errorf("audit: could not marshal metadata: %w", err)
		}
		metaJSON = b
	}

	prevHash := zeroHash
	if n := len(l.entries); n > 0 {
		prevHash = l.entries[n-1].EntryHash
	}

	var authorityID ids.ID
	if l.authority != nil {
		authorityID = l.authority.ID()
	}

	entry := AuditEntry{
		Sequence:     uint64(len(l.entries)),
		EventType:    eventType,
		Timestamp:    nowMicros(),
		PollID:       pollID,
		VoterIDHash:  voterIDHash,
		AuthorityID:  authorityID,
		Metadata:     metaJSON,
		PreviousHash: prevHash,
	}

	hash := hashEntry(entry)
	entry.EntryHash = hash

	if l.authority != nil {
		sig, err := l.authority.Sign(hash)
		if err != nil {
			return AuditEntry{}, fmt.Errorf("audit: could not sign entry: %w", err)
		}
		entry.Signature = sig.Bytes()
	}

	l.entries = append(l.entries, entry)
	return entry, nil
}

// hashEntry computes the deterministic, serialized hash input fixed by
// the external wire format: sequence | eventType | timestamp | pollId | previousHash |
// voterIdHash? | authorityId? | JSON(metadata)?, SHA-256'd.
func hashEntry(e AuditEntry) []byte {
	var buf bytes.Buffer
	writeU64(&buf, e.Sequence)
	writeString(&buf, string(e.EventType))
	writeU64(&buf, uint64(e.Timestamp))
	buf.Write(e.PollID)
	buf.Write(e.PreviousHash)
	if len(e.VoterIDHash) > 0 {
		buf.Write(e.VoterIDHash)
	}
	if len(e.AuthorityID) > 0 {
		buf.Write(e.AuthorityID)
	}
	if len(e.Metadata) > 0 {
		buf.Write(e.Metadata)
	}
	sum := sha256.Sum256(buf.Bytes())
	return sum[:]
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeU64(buf, uint64(len(s)))
	buf.WriteString(s)
}

// nowMicros is overridable in tests to get deterministic timestamps.
var nowMicros = func() int64 {
	return time.Now().UnixMicro()
}

// GetEntries returns a read-only snapshot of every entry appended so far.
func (l *Log) GetEntries() []AuditEntry {
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// GetEntriesForPoll returns every entry in the chain whose PollID matches id.
func (l *Log) GetEntriesForPoll(id ids.ID) []AuditEntry {
	var out []AuditEntry
	for _, e := range l.entries {
		if e.PollID.Equal(id) {
			out = append(out, e)
		}
	}
	return out
}

// VerifyChain recomputes every entry's hash, checks its link to the prior
// entry, and verifies the authority signature over each hash. It returns
// false (never an error) the moment any check fails, per the integrity-error
// policy of surfacing tamper detection through verify* booleans.
func (l *Log) VerifyChain() bool {
	prevHash := zeroHash
	for _, e := range l.entries {
		if !bytes.Equal(e.PreviousHash, prevHash) {
			return false
		}
		if !l.verifyEntry(e) {
			return false
		}
		prevHash = e.EntryHash
	}
	return true
}

// VerifyEntry checks a single entry's hash and signature in isolation
// (without checking its chain link).
func (l *Log) VerifyEntry(e AuditEntry) bool {
	return l.verifyEntry(e)
}

func (l *Log) verifyEntry(e AuditEntry) bool {
	recomputed := hashEntry(e)
	if !bytes.Equal(recomputed, e.EntryHash) {
		return false
	}
	if l.authority == nil {
		return true
	}
	sig, err := member.SignatureFromBytes(e.Signature)
	if err != nil {
		return false
	}
	ok, err := member.Verify(e.EntryHash, sig, l.authority.ID())
	return err == nil && ok
}
