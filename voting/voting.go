// Package voting holds the types shared by every stage of the pipeline: the
// VotingMethod enum, the security-gate configuration, and the encoded ballot
// shape that flows from a voter's intent through the poll core into the
// tallier. It mirrors the way a small central types package anchors a handful
// of plain structs that every other package imports, rather than each
// package inventing its own local copy.
package voting

import (
	"github.com/vocdoni/scrutinium/crypto/homomorphic"
)

// VotingMethod identifies how a ballot is encoded and how a poll is tallied.
type VotingMethod string

// The fifteen supported voting methods, grouped by the SecurityLevel they
// fall into (see voting/classifier).
const (
	Plurality      VotingMethod = "plurality"
	Approval       VotingMethod = "approval"
	Weighted       VotingMethod = "weighted"
	Borda          VotingMethod = "borda"
	Score          VotingMethod = "score"
	YesNo          VotingMethod = "yes_no"
	YesNoAbstain   VotingMethod = "yes_no_abstain"
	Supermajority  VotingMethod = "supermajority"
	RankedChoice   VotingMethod = "ranked_choice"
	TwoRound       VotingMethod = "two_round"
	STAR           VotingMethod = "star"
	STV            VotingMethod = "stv"
	Quadratic      VotingMethod = "quadratic"
	Consensus      VotingMethod = "consensus"
	ConsentBased   VotingMethod = "consent_based"
)

// SecurityLevel classifies a VotingMethod by its compatibility with
// homomorphic tallying.
type SecurityLevel int

const (
	// FullyHomomorphic methods tally entirely from a single round of
	// ciphertext addition; the tallier never needs intermediate plaintext.
	FullyHomomorphic SecurityLevel = iota
	// MultiRound methods require decrypting intermediate round tallies
	// (eliminations, runoffs) before the final winner is known.
	MultiRound
	// Insecure methods leak information beyond the final tally by their
	// nature (squared weights, objection counts, negative plaintexts) and
	// are gated behind an explicit opt-in.
	Insecure
)

// Options is the explicit configuration record gating poll creation, in
// place of an untyped option bag.
type Options struct {
	// RequireFullySecure rejects MultiRound methods. It does not affect
	// Insecure methods, which AllowInsecure alone gates.
	RequireFullySecure bool
	// AllowInsecure permits methods classified Insecure to be used.
	AllowInsecure bool
}

// EncryptedVote is a voter's ballot as handed to encoder.Encode: the raw
// intent fields the method needs and, for Score and STAR, the
// client-encrypted per-choice vector in Encrypted. Encode returns the
// ciphertext vector it builds; it does not write it back into this struct.
type EncryptedVote struct {
	ChoiceIndex *int                     `json:"choiceIndex,omitempty" cbor:"choiceIndex,omitempty"`
	Choices     []int                    `json:"choices,omitempty" cbor:"choices,omitempty"`
	Rankings    []int                    `json:"rankings,omitempty" cbor:"rankings,omitempty"`
	Weight      *int                     `json:"weight,omitempty" cbor:"weight,omitempty"`
	Score       []int                    `json:"score,omitempty" cbor:"score,omitempty"`
	Encrypted   []*homomorphic.Ciphertext `json:"-" cbor:"-"`
}

// IntPtr is a small convenience for building an EncryptedVote literal without
// a throwaway local variable.
func IntPtr(v int) *int {
	return &v
}
