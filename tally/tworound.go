package tally

import (
	"sort"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/poll"
)

// tallyTwoRound runs a simulated two-round runoff: round 1 is a plain
// additive tally; if its leader already holds a strict majority, it wins
// outright. Otherwise round 2 is derived deterministically from the top two
// round-1 candidates' existing vote counts (a simulated
// runoff" — no second Poll is conducted).
func tallyTwoRound(sk *homomorphic.PrivateKey, p *poll.Poll, vectors [][]*homomorphic.Ciphertext, n int) (*PollResults, error) {
	round1 := make([]int64, n)
	var total int64
	for _, v := range vectors {
		decoded, err := decryptVector(sk, v)
		if err != nil {
			return nil, err
		}
		for i, m := range decoded {
			round1[i] += m
			total += m
		}
	}

	top := argmax(round1)
	if len(top) == 1 && 2*round1[top[0]] > total {
		w := top[0]
		return &PollResults{
			PollID:     p.ID,
			Method:     p.Method,
			Choices:    p.Choices,
			Tallies:    round1,
			Winners:    []int{w},
			VoterCount: p.VoterCount(),
			Rounds:     []RoundResult{{Round: 1, Tallies: round1, Winner: &w}},
		}, nil
	}

	candidates := make([]int, n)
	for i := range candidates {
		candidates[i] = i
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if round1[a] != round1[b] {
			return round1[a] > round1[b]
		}
		return a < b
	})
	finalists := candidates
	if len(finalists) > 2 {
		finalists = finalists[:2]
	}

	round2 := make([]int64, n)
	for _, idx := range finalists {
		round2[idx] = round1[idx]
	}
	winner := finalists[0]

	return &PollResults{
		PollID:     p.ID,
		Method:     p.Method,
		Choices:    p.Choices,
		Tallies:    round2,
		Winners:    []int{winner},
		VoterCount: p.VoterCount(),
		Rounds: []RoundResult{
			{Round: 1, Tallies: round1},
			{Round: 2, Tallies: round2, Winner: &winner},
		},
	}, nil
}
