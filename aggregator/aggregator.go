// Package aggregator composes encrypted poll tallies up a jurisdictional
// hierarchy — Precinct, County, State, National — summing ciphertexts
// without ever decrypting them. No level in this hierarchy ever touches a
// private key; only a Tallier at the very top can decrypt.
package aggregator

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/poll"
	"github.com/vocdoni/scrutinium/voting"
)

// Level orders the jurisdictional hierarchy: Precinct < County < State <
// National.
type Level int

const (
	Precinct Level = iota
	County
	State
	National
)

func (l Level) String() string {
	switch l {
	case Precinct:
		return "precinct"
	case County:
		return "county"
	case State:
		return "state"
	case National:
		return "national"
	default:
		return "unknown"
	}
}

var (
	// ErrLevelMismatch is returned when a child tally's level does not sit
	// exactly one rung below its parent.
	ErrLevelMismatch = errors.New("aggregator: child level does not match parent's expected child level")
	// ErrNoChildren is returned by a parent aggregator asked for a tally
	// before it has absorbed at least one child.
	ErrNoChildren = errors.New("aggregator: no child tallies have been absorbed yet")
)

// AggregatedTally is the encrypted tally reported by any level of the
// hierarchy.
type AggregatedTally struct {
	JurisdictionID     ids.ID   `json:"jurisdictionId" cbor:"jurisdictionId"`
	Level              Level    `json:"level" cbor:"level"`
	EncryptedTallies   [][]byte `json:"encryptedTallies" cbor:"encryptedTallies"`
	VoterCount         int      `json:"voterCount" cbor:"voterCount"`
	Timestamp          int64    `json:"timestamp" cbor:"timestamp"`
	ChildJurisdictions []ids.ID `json:"childJurisdictions,omitempty" cbor:"childJurisdictions,omitempty"`
}

// Marshal encodes t as CBOR, for compact hand-off across a process boundary
// between aggregator levels.
func (t *AggregatedTally) Marshal() ([]byte, error) {
	return cbor.Marshal(t)
}

// Unmarshal decodes a CBOR-encoded AggregatedTally produced by Marshal.
func Unmarshal(data []byte) (*AggregatedTally, error) {
	var t AggregatedTally
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("aggregator: could not decode tally: %w", err)
	}
	return &t, nil
}

func encryptedTalliesFrom(pk *homomorphic.PublicKey, vectors [][]*homomorphic.Ciphertext, n int) ([][]byte, [][]*homomorphic.Ciphertext, error) {
	sums := make([]*homomorphic.Ciphertext, n)
	for i := range sums {
		zero, err := homomorphic.Zero(pk)
		if err != nil {
			return nil, nil, fmt.Errorf("aggregator: could not build zero ciphertext: %w", err)
		}
		sums[i] = zero
	}
	for _, v := range vectors {
		for i, ct := range v {
			sum, err := homomorphic.Add(pk, sums[i], ct)
			if err != nil {
				return nil, nil, fmt.Errorf("aggregator: could not add ciphertext: %w", err)
			}
			sums[i] = sum
		}
	}
	out := make([][]byte, n)
	for i, ct := range sums {
		raw, err := ct.Bytes()
		if err != nil {
			return nil, nil, fmt.Errorf("aggregator: could not serialize ciphertext: %w", err)
		}
		out[i] = raw
	}
	return out, sums, nil
}

// PrecinctAggregator wraps a single Poll, reporting its encrypted per-choice
// sums as a Precinct-level tally.
type PrecinctAggregator struct {
	jurisdictionID ids.ID
	pk             *homomorphic.PublicKey
	poll           *poll.Poll
}

// NewPrecinct wraps p under jurisdictionID.
func NewPrecinct(jurisdictionID ids.ID, pk *homomorphic.PublicKey, p *poll.Poll) *PrecinctAggregator {
	return &PrecinctAggregator{jurisdictionID: jurisdictionID, pk: pk, poll: p}
}

// Vote delegates to the wrapped Poll.
func (a *PrecinctAggregator) Vote(voterID ids.ID, vote voting.EncryptedVote) (poll.VoteReceipt, error) {
	return a.poll.Vote(voterID, vote)
}

// GetTally sums every stored ballot's ciphertext vector, slot by slot, via
// homomorphic addition. The wrapped Poll need not be closed: Precinct-level
// reporting can run continuously, but callers composing a County/State/
// National rollup should only do so once every precinct has closed.
func (a *PrecinctAggregator) GetTally() (*AggregatedTally, error) {
	votes := a.poll.GetEncryptedVotes()
	n := len(a.poll.Choices)
	encrypted, _, err := encryptedTalliesFrom(a.pk, votes.Vectors(), n)
	if err != nil {
		return nil, err
	}
	return &AggregatedTally{
		JurisdictionID:   a.jurisdictionID,
		Level:            Precinct,
		EncryptedTallies: encrypted,
		VoterCount:       a.poll.VoterCount(),
		Timestamp:        time.Now().UnixMicro(),
	}, nil
}

// Close closes the wrapped Poll.
func (a *PrecinctAggregator) Close() error {
	return a.poll.Close()
}

// compositeAggregator implements County, State, and National: each absorbs
// tallies from the level directly below it and sums ciphertexts pairwise,
// never decrypting.
type compositeAggregator struct {
	jurisdictionID ids.ID
	level          Level
	childLevel     Level
	pk             *homomorphic.PublicKey
	n              int
	sums           []*homomorphic.Ciphertext
	voterCount     int
	children       []ids.ID
}

func newComposite(jurisdictionID ids.ID, level, childLevel Level, pk *homomorphic.PublicKey, n int) (*compositeAggregator, error) {
	sums := make([]*homomorphic.Ciphertext, n)
	for i := range sums {
		zero, err := homomorphic.Zero(pk)
		if err != nil {
			return nil, fmt.Errorf("aggregator: could not build zero ciphertext: %w", err)
		}
		sums[i] = zero
	}
	return &compositeAggregator{
		jurisdictionID: jurisdictionID,
		level:          level,
		childLevel:     childLevel,
		pk:             pk,
		n:              n,
		sums:           sums,
	}, nil
}

// NewCounty builds a County aggregator expecting n choice slots, over
// Precinct-level children.
func NewCounty(jurisdictionID ids.ID, pk *homomorphic.PublicKey, n int) (*CountyAggregator, error) {
	c, err := newComposite(jurisdictionID, County, Precinct, pk, n)
	if err != nil {
		return nil, err
	}
	return &CountyAggregator{c}, nil
}

// NewState builds a State aggregator expecting n choice slots, over
// County-level children.
func NewState(jurisdictionID ids.ID, pk *homomorphic.PublicKey, n int) (*StateAggregator, error) {
	c, err := newComposite(jurisdictionID, State, County, pk, n)
	if err != nil {
		return nil, err
	}
	return &StateAggregator{c}, nil
}

// NewNational builds a National aggregator expecting n choice slots, over
// State-level children.
func NewNational(jurisdictionID ids.ID, pk *homomorphic.PublicKey, n int) (*NationalAggregator, error) {
	c, err := newComposite(jurisdictionID, National, State, pk, n)
	if err != nil {
		return nil, err
	}
	return &NationalAggregator{c}, nil
}

// CountyAggregator composes Precinct tallies.
type CountyAggregator struct{ *compositeAggregator }

// AddPrecinctTally absorbs a Precinct-level tally.
func (a *CountyAggregator) AddPrecinctTally(t *AggregatedTally) error {
	return a.absorb(t)
}

// StateAggregator composes County tallies.
type StateAggregator struct{ *compositeAggregator }

// AddCountyTally absorbs a County-level tally.
func (a *StateAggregator) AddCountyTally(t *AggregatedTally) error {
	return a.absorb(t)
}

// NationalAggregator composes State tallies.
type NationalAggregator struct{ *compositeAggregator }

// AddStateTally absorbs a State-level tally.
func (a *NationalAggregator) AddStateTally(t *AggregatedTally) error {
	return a.absorb(t)
}

func (a *compositeAggregator) absorb(t *AggregatedTally) error {
	if t.Level != a.childLevel {
		return fmt.Errorf("%w: expected %s, got %s", ErrLevelMismatch, a.childLevel, t.Level)
	}
	if len(t.EncryptedTallies) != a.n {
		return fmt.Errorf("aggregator: expected %d choice slots, got %d", a.n, len(t.EncryptedTallies))
	}
	for i, raw := range t.EncryptedTallies {
		ct := homomorphic.CiphertextFromBytes(raw)
		sum, err := homomorphic.Add(a.pk, a.sums[i], ct)
		if err != nil {
			return fmt.Errorf("aggregator: could not add ciphertext: %w", err)
		}
		a.sums[i] = sum
	}
	a.voterCount += t.VoterCount
	a.children = append(a.children, t.JurisdictionID)
	return nil
}

// GetTally reports this level's running composite tally. It fails with
// ErrNoChildren until at least one child tally has been absorbed.
func (a *compositeAggregator) GetTally() (*AggregatedTally, error) {
	if len(a.children) == 0 {
		return nil, ErrNoChildren
	}
	encrypted := make([][]byte, a.n)
	for i, ct := range a.sums {
		raw, err := ct.Bytes()
		if err != nil {
			return nil, fmt.Errorf("aggregator: could not serialize ciphertext: %w", err)
		}
		encrypted[i] = raw
	}
	children := make([]ids.ID, len(a.children))
	copy(children, a.children)
	return &AggregatedTally{
		JurisdictionID:     a.jurisdictionID,
		Level:              a.level,
		EncryptedTallies:   encrypted,
		VoterCount:         a.voterCount,
		Timestamp:          time.Now().UnixMicro(),
		ChildJurisdictions: children,
	}, nil
}
