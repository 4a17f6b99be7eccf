// Package tally holds the private key side of the engine: once a Poll is
// closed, Tally decrypts its aggregate and runs the method-specific winner
// algorithm, from a single round of ciphertext addition (Plurality, Score,
// Borda, …) through the iterative eliminations of IRV and STV. The tallier
// is the only component in the module that ever calls homomorphic.Decrypt;
// everything upstream of it works exclusively with ciphertexts.
package tally

import (
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/log"
	"github.com/vocdoni/scrutinium/poll"
	"github.com/vocdoni/scrutinium/voting"
)

// ErrPollNotClosed is returned when Tally is invoked on a poll still
// accepting votes.
var ErrPollNotClosed = errors.New("tally: poll has not been closed")

// ErrUnsupportedMethod is returned for a VotingMethod the tallier has no
// dispatch rule for.
var ErrUnsupportedMethod = errors.New("tally: unsupported voting method")

// RoundResult captures one round of a multi-round tally (IRV, Two-Round,
// STAR, STV); additive methods produce a PollResults with no rounds.
type RoundResult struct {
	Round      int     `json:"round"`
	Tallies    []int64 `json:"tallies"`
	Eliminated *int    `json:"eliminated,omitempty"`
	Elected    []int   `json:"elected,omitempty"`
	Winner     *int    `json:"winner,omitempty"`
}

// PollResults is the outcome of tallying a closed poll.
type PollResults struct {
	PollID     ids.ID              `json:"pollId" cbor:"pollId"`
	Method     voting.VotingMethod `json:"method" cbor:"method"`
	Choices    []string            `json:"choices" cbor:"choices"`
	Tallies    []int64             `json:"tallies" cbor:"tallies"`
	Winners    []int               `json:"winners" cbor:"winners"`
	VoterCount int                 `json:"voterCount" cbor:"voterCount"`
	Rounds     []RoundResult       `json:"rounds,omitempty" cbor:"rounds,omitempty"`
	Timestamp  int64               `json:"timestamp" cbor:"timestamp"`
}

// Tallier decrypts and tallies closed polls, caching recent results so
// repeat calls against an unchanged poll (permitted any number of times
// after closure, per the poll state machine) skip redundant decryption.
type Tallier struct {
	sk    *homomorphic.PrivateKey
	cache *lru.Cache[string, *PollResults]
}

// cacheSize bounds how many distinct polls' results the Tallier remembers.
const cacheSize = 128

// New returns a Tallier that decrypts with sk.
func New(sk *homomorphic.PrivateKey) (*Tallier, error) {
	cache, err := lru.New[string, *PollResults](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("tally: could not create result cache: %w", err)
	}
	return &Tallier{sk: sk, cache: cache}, nil
}

// Tally decrypts p's stored ballots and dispatches to the method-specific
// winner algorithm. It fails with ErrPollNotClosed while the poll is open.
// Results for an unchanged poll are served from cache on repeat calls.
func (t *Tallier) Tally(p *poll.Poll) (*PollResults, error) {
	if !p.IsClosed() {
		return nil, ErrPollNotClosed
	}

	key := p.ID.Hex()
	if cached, ok := t.cache.Get(key); ok {
		return cached, nil
	}

	vectors := p.GetEncryptedVotes().Vectors()
	n := len(p.Choices)

	var results *PollResults
	var err error
	switch p.Method {
	case voting.Plurality, voting.Approval, voting.Weighted, voting.Score, voting.Borda,
		voting.YesNo, voting.YesNoAbstain, voting.Supermajority:
		results, err = tallyAdditive(t.sk, p, vectors, n)
	case voting.RankedChoice:
		results, err = tallyIRV(t.sk, p, vectors, n)
	case voting.TwoRound:
		results, err = tallyTwoRound(t.sk, p, vectors, n)
	case voting.STAR:
		results, err = tallySTAR(t.sk, p, vectors, n)
	case voting.STV:
		results, err = tallySTV(t.sk, p, vectors, n)
	case voting.Quadratic:
		results, err = tallyQuadratic(t.sk, p, vectors, n)
	case voting.Consensus:
		results, err = tallyConsensus(t.sk, p, vectors, n)
	case voting.ConsentBased:
		results, err = tallyConsentBased(t.sk, p, vectors, n)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, p.Method)
	}
	if err != nil {
		return nil, err
	}

	results.Timestamp = time.Now().UnixMicro()
	t.cache.Add(key, results)
	log.Infow("poll tallied", "pollId", p.ID.Hex(), "method", string(p.Method), "winners", results.Winners)
	return results, nil
}

// decryptVector decrypts every slot of v under sk.
func decryptVector(sk *homomorphic.PrivateKey, v []*homomorphic.Ciphertext) ([]int64, error) {
	out := make([]int64, len(v))
	for i, ct := range v {
		m, err := homomorphic.Decrypt(sk, ct)
		if err != nil {
			return nil, fmt.Errorf("tally: could not decrypt slot %d: %w", i, err)
		}
		out[i] = m.Int64()
	}
	return out, nil
}

// argmax returns every index attaining the maximum value in tallies.
func argmax(tallies []int64) []int {
	if len(tallies) == 0 {
		return nil
	}
	max := tallies[0]
	for _, v := range tallies[1:] {
		if v > max {
			max = v
		}
	}
	var winners []int
	for i, v := range tallies {
		if v == max {
			winners = append(winners, i)
		}
	}
	return winners
}

// argminHighestIndexOnTie returns the index of the smallest value in
// tallies, among the indices in candidates; ties are broken by the highest
// index, the tie-breaking rule IRV uses when eliminating.
func argminHighestIndexOnTie(tallies []int64, candidates []int) int {
	best := candidates[0]
	for _, idx := range candidates[1:] {
		if tallies[idx] < tallies[best] || (tallies[idx] == tallies[best] && idx > best) {
			best = idx
		}
	}
	return best
}
