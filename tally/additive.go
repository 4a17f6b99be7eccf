package tally

import (
	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/poll"
)

// tallyAdditive sums every voter's decrypted ciphertext vector slot-wise and
// returns the argmax as the winner set. Covers Plurality, Approval,
// Weighted, Score, Borda, YesNo, YesNoAbstain, and Supermajority.
func tallyAdditive(sk *homomorphic.PrivateKey, p *poll.Poll, vectors [][]*homomorphic.Ciphertext, n int) (*PollResults, error) {
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
		PollID:     p.ID,
		Method:     p.Method,
		Choices:    p.Choices,
		Tallies:    tallies,
		Winners:    argmax(tallies),
		VoterCount: p.VoterCount(),
	}, nil
}
