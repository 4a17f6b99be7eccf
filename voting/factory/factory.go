// Package factory provides method-specific poll constructors that mint a
// fresh random poll id and leave each method's baseline invariants (choice
// counts, weight caps, security classification) to poll.New.
package factory

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/member"
	"github.com/vocdoni/scrutinium/poll"
	"github.com/vocdoni/scrutinium/voting"
)

// newPollID generates a fresh 16-byte random poll id via a cryptographically
// secure RNG (uuid.NewRandom reads crypto/rand under the hood).
func newPollID() (ids.ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("factory: could not generate poll id: %w", err)
	}
	b := u[:]
	return ids.ID(append([]byte(nil), b...)), nil
}

// CreatePlurality builds a single-choice-per-ballot poll.
func CreatePlurality(choices []string, authority *member.Signer, votingPublicKey *homomorphic.PublicKey) (*poll.Poll, error) {
	return Create(choices, voting.Plurality, authority, votingPublicKey, nil, voting.Options{})
}

// CreateApproval builds a poll where each ballot may approve of any subset
// of choices.
func CreateApproval(choices []string, authority *member.Signer, votingPublicKey *homomorphic.PublicKey) (*poll.Poll, error) {
	return Create(choices, voting.Approval, authority, votingPublicKey, nil, voting.Options{})
}

// CreateWeighted builds a poll where each ballot carries a per-voter weight
// capped at maxWeight.
func CreateWeighted(choices []string, authority *member.Signer, votingPublicKey *homomorphic.PublicKey, maxWeight int) (*poll.Poll, error) {
	return Create(choices, voting.Weighted, authority, votingPublicKey, &maxWeight, voting.Options{})
}

// CreateBorda builds a poll tallied by Borda point totals over ranked
// ballots; a ballot may rank only some of the choices.
func CreateBorda(choices []string, authority *member.Signer, votingPublicKey *homomorphic.PublicKey) (*poll.Poll, error) {
	return Create(choices, voting.Borda, authority, votingPublicKey, nil, voting.Options{})
}

// CreateRankedChoice builds an instant-runoff poll over ranked ballots; a
// ballot may rank only some of the choices.
func CreateRankedChoice(choices []string, authority *member.Signer, votingPublicKey *homomorphic.PublicKey) (*poll.Poll, error) {
	return Create(choices, voting.RankedChoice, authority, votingPublicKey, nil, voting.Options{AllowInsecure: false})
}

// Create is the generic constructor every named helper above delegates to:
// it mints a fresh poll id and defers every other invariant (choice count,
// weight validity, method security classification) to poll.New.
func Create(choices []string, method voting.VotingMethod, authority *member.Signer, votingPublicKey *homomorphic.PublicKey, maxWeight *int, opts voting.Options) (*poll.Poll, error) {
	id, err := newPollID()
	if err != nil {
		return nil, err
	}
	return poll.New(id, choices, method, authority, votingPublicKey, maxWeight, opts)
}
