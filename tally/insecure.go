package tally

import (
	"math"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/poll"
)

// consensusThreshold is the fraction of voters that must back the winning
// choice for Consensus voting to declare a result.
const consensusThreshold = 0.95

// tallyQuadratic sums the square of each voter's decrypted weight per
// choice, the quadratic-voting cost/benefit relationship that makes this
// method Insecure: the tallier learns each individual weight, not only the
// aggregate.
func tallyQuadratic(sk *homomorphic.PrivateKey, p *poll.Poll, vectors [][]*homomorphic.Ciphertext, n int) (*PollResults, error) {
	tallies := make([]int64, n)
	for _, v := range vectors {
		decoded, err := decryptVector(sk, v)
		if err != nil {
			return nil, err
		}
		for i, w := range decoded {
			tallies[i] += w * w
		}
	}
	return &PollResults{
		PollID: p.ID, Method: p.Method, Choices: p.Choices, Tallies: tallies,
		Winners: argmax(tallies), VoterCount: p.VoterCount(),
	}, nil
}

// tallyConsensus counts votes like Plurality, but only declares a winner if
// it holds at least consensusThreshold of all ballots; otherwise no
// candidate reached consensus and Winners is empty.
func tallyConsensus(sk *homomorphic.PrivateKey, p *poll.Poll, vectors [][]*homomorphic.Ciphertext, n int) (*PollResults, error) {
	tallies := make([]int64, n)
	var total int64
	for _, v := range vectors {
		decoded, err := decryptVector(sk, v)
		if err != nil {
			return nil, err
		}
		for i, m := range decoded {
			tallies[i] += m
			total += m
		}
	}
	top := argmax(tallies)
	required := int64(math.Ceil(consensusThreshold * float64(total)))
	var winners []int
	if len(top) == 1 && tallies[top[0]] >= required {
		winners = top
	}
	return &PollResults{
		PollID: p.ID, Method: p.Method, Choices: p.Choices, Tallies: tallies,
		Winners: winners, VoterCount: p.VoterCount(),
	}, nil
}

// tallyConsentBased counts votes like Plurality. The
// negative-plaintext "strong objection" encoding as an explicit open
// question; DESIGN.md records the decision taken here: ConsentBased is
// restricted to the non-negative {choice} domain (no objection ballots are
// representable), so every choice that received any votes has, by
// construction, zero encoded objections — the winner is simply the most
// consented-to choice.
func tallyConsentBased(sk *homomorphic.PrivateKey, p *poll.Poll, vectors [][]*homomorphic.Ciphertext, n int) (*PollResults, error) {
	tallies := make([]int64, n)
	for _, v := range vectors {
		decoded, err := decryptVector(sk, v)
		if err != nil {
			return nil, err
		}
		for i, m := range decoded {
			tallies[i] += m
		}
	}
	return &PollResults{
		PollID: p.ID, Method: p.Method, Choices: p.Choices, Tallies: tallies,
		Winners: argmax(tallies), VoterCount: p.VoterCount(),
	}, nil
}
