// Package encoder turns a voter's plaintext intent into the ordered
// per-choice ciphertext vector the rest of the engine operates on. Each
// voting method has its own encoding rule (one-hot, indicator, points,
// ranks, or pass-through) and its own validation failures, all reported
// through the sentinel errors below so poll.vote can surface them verbatim.
package encoder

import (
	"errors"
	"fmt"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/voting"
)

// Sentinel errors for ballot validation, named after the taxonomy entries
// the ballot-validation error taxonomy.
var (
	ErrInvalidChoice         = errors.New("encoder: invalid choice index")
	ErrInvalidWeight         = errors.New("encoder: invalid weight")
	ErrDuplicateRanking      = errors.New("encoder: duplicate ranking")
	ErrMissingRequiredField  = errors.New("encoder: missing required field")
	ErrEncryptedPayloadEmpty = errors.New("encoder: encrypted payload empty")
)

// Encode produces the length-n ciphertext vector for vote cast under method,
// validating vote's plaintext fields against n (the poll's choice count) and
// maxWeight (nil if the poll does not cap weight).
func Encode(pk *homomorphic.PublicKey, method voting.VotingMethod, n int, maxWeight *int, vote voting.EncryptedVote) ([]*homomorphic.Ciphertext, error) {
	switch method {
	case voting.Plurality, voting.YesNo, voting.YesNoAbstain, voting.Supermajority,
		voting.Consensus, voting.ConsentBased, voting.TwoRound:
		// TwoRound's first round is itself an additive plurality tally
		// so it shares Plurality's one-hot ballot shape.
		return encodeOneHot(pk, n, vote.ChoiceIndex)
	case voting.Approval:
		return encodeIndicator(pk, n, vote.Choices)
	case voting.Weighted, voting.Quadratic:
		return encodeWeighted(pk, n, vote.ChoiceIndex, vote.Weight, maxWeight)
	case voting.Borda:
		return encodeBorda(pk, n, vote.Rankings)
	case voting.RankedChoice, voting.STV:
		// STV's per-round counting walks the same rank vector IRV does.
		return encodeRanks(pk, n, vote.Rankings)
	case voting.Score, voting.STAR:
		// STAR's round 1 sums per-choice scores exactly like Score.
		return encodeScore(n, vote.Encrypted)
	default:
		return nil, fmt.Errorf("encoder: unsupported voting method %q", method)
	}
}

func zeroVector(pk *homomorphic.PublicKey, n int) ([]*homomorphic.Ciphertext, error) {
	out := make([]*homomorphic.Ciphertext, n)
	for i := range out {
		c, err := homomorphic.Zero(pk)
		if err != nil {
			return nil, fmt.Errorf("encoder: could not encrypt zero slot: %w", err)
		}
		out[i] = c
	}
	return out, nil
}

func encodeOneHot(pk *homomorphic.PublicKey, n int, choiceIndex *int) ([]*homomorphic.Ciphertext, error) {
	if choiceIndex == nil {
		return nil, fmt.Errorf("%w: choiceIndex", ErrMissingRequiredField)
	}
	if *choiceIndex < 0 || *choiceIndex >= n {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidChoice, *choiceIndex, n)
	}
	out, err := zeroVector(pk, n)
	if err != nil {
		return nil, err
	}
	one, err := homomorphic.Encrypt(pk, bigOne)
	if err != nil {
		return nil, fmt.Errorf("encoder: could not encrypt choice slot: %w", err)
	}
	out[*choiceIndex] = one
	return out, nil
}

func encodeIndicator(pk *homomorphic.PublicKey, n int, choices []int) ([]*homomorphic.Ciphertext, error) {
	if len(choices) == 0 {
		return nil, fmt.Errorf("%w: choices", ErrMissingRequiredField)
	}
	selected := make(map[int]bool, len(choices))
	for _, idx := range choices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidChoice, idx, n)
		}
		selected[idx] = true
	}
	out, err := zeroVector(pk, n)
	if err != nil {
		return nil, err
	}
	for idx := range selected {
		one, err := homomorphic.Encrypt(pk, bigOne)
		if err != nil {
			return nil, fmt.Errorf("encoder: could not encrypt choice slot: %w", err)
		}
		out[idx] = one
	}
	return out, nil
}

func encodeWeighted(pk *homomorphic.PublicKey, n int, choiceIndex, weight, maxWeight *int) ([]*homomorphic.Ciphertext, error) {
	if choiceIndex == nil {
		return nil, fmt.Errorf("%w: choiceIndex", ErrMissingRequiredField)
	}
	if weight == nil {
		return nil, fmt.Errorf("%w: weight", ErrMissingRequiredField)
	}
	if *choiceIndex < 0 || *choiceIndex >= n {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidChoice, *choiceIndex, n)
	}
	if *weight <= 0 {
		return nil, fmt.Errorf("%w: weight %d must be positive", ErrInvalidWeight, *weight)
	}
	if maxWeight != nil && *weight > *maxWeight {
		return nil, fmt.Errorf("%w: weight %d exceeds max %d", ErrInvalidWeight, *weight, *maxWeight)
	}
	out, err := zeroVector(pk, n)
	if err != nil {
		return nil, err
	}
	c, err := homomorphic.Encrypt(pk, bigIntOf(*weight))
	if err != nil {
		return nil, fmt.Errorf("encoder: could not encrypt weight slot: %w", err)
	}
	out[*choiceIndex] = c
	return out, nil
}

func encodeBorda(pk *homomorphic.PublicKey, n int, rankings []int) ([]*homomorphic.Ciphertext, error) {
	if len(rankings) == 0 {
		return nil, fmt.Errorf("%w: rankings", ErrMissingRequiredField)
	}
	if err := checkRankings(rankings, n); err != nil {
		return nil, err
	}
	out, err := zeroVector(pk, n)
	if err != nil {
		return nil, err
	}
	k := len(rankings)
	for j, idx := range rankings {
		points := k - j
		c, err := homomorphic.Encrypt(pk, bigIntOf(points))
		if err != nil {
			return nil, fmt.Errorf("encoder: could not encrypt ranking slot: %w", err)
		}
		out[idx] = c
	}
	return out, nil
}

func encodeRanks(pk *homomorphic.PublicKey, n int, rankings []int) ([]*homomorphic.Ciphertext, error) {
	if len(rankings) == 0 {
		return nil, fmt.Errorf("%w: rankings", ErrMissingRequiredField)
	}
	if err := checkRankings(rankings, n); err != nil {
		return nil, err
	}
	out, err := zeroVector(pk, n)
	if err != nil {
		return nil, err
	}
	for j, idx := range rankings {
		c, err := homomorphic.Encrypt(pk, bigIntOf(j+1))
		if err != nil {
			return nil, fmt.Errorf("encoder: could not encrypt ranking slot: %w", err)
		}
		out[idx] = c
	}
	return out, nil
}

func checkRankings(rankings []int, n int) error {
	seen := make(map[int]bool, len(rankings))
	for _, idx := range rankings {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidChoice, idx, n)
		}
		if seen[idx] {
			return fmt.Errorf("%w: index %d appears more than once", ErrDuplicateRanking, idx)
		}
		seen[idx] = true
	}
	return nil
}

// encodeScore passes the voter-supplied ciphertext vector through unchanged.
// Scores are bounded (0-10 per choice) by convention of the external client
// that produced the ciphertexts; the engine cannot validate plaintext ranges
// it never decrypts, so the only contract it enforces is vector length.
func encodeScore(n int, encrypted []*homomorphic.Ciphertext) ([]*homomorphic.Ciphertext, error) {
	if len(encrypted) == 0 {
		return nil, ErrEncryptedPayloadEmpty
	}
	if len(encrypted) != n {
		return nil, fmt.Errorf("%w: expected %d ciphertexts, got %d", ErrMissingRequiredField, n, len(encrypted))
	}
	return encrypted, nil
}
