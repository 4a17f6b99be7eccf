package tally

import (
	"sort"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/poll"
)

// tallySTAR implements Score-Then-Automatic-Runoff: round 1 sums every
// voter's per-choice score; the top two scorers advance to an automatic
// runoff where each voter's ballot counts for whichever of the two it
// scored higher (a tie on both scores counts for neither).
func tallySTAR(sk *homomorphic.PrivateKey, p *poll.Poll, vectors [][]*homomorphic.Ciphertext, n int) (*PollResults, error) {
	decoded := make([][]int64, len(vectors))
	scores := make([]int64, n)
	for i, v := range vectors {
		d, err := decryptVector(sk, v)
		if err != nil {
			return nil, err
		}
		decoded[i] = d
		for choice, s := range d {
			scores[choice] += s
		}
	}

	candidates := make([]int, n)
	for i := range candidates {
		candidates[i] = i
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return a < b
	})
	top2 := candidates
	if len(top2) > 2 {
		top2 = top2[:2]
	}

	round1 := RoundResult{Round: 1, Tallies: scores}

	if len(top2) < 2 {
		w := top2[0]
		round1.Winner = &w
		return &PollResults{
			PollID: p.ID, Method: p.Method, Choices: p.Choices, Tallies: scores,
			Winners: []int{w}, VoterCount: p.VoterCount(), Rounds: []RoundResult{round1},
		}, nil
	}

	a, b := top2[0], top2[1]
	runoff := make([]int64, n)
	for _, d := range decoded {
		switch {
		case d[a] > d[b]:
			runoff[a]++
		case d[b] > d[a]:
			runoff[b]++
		}
	}

	var winner int
	switch {
	case runoff[a] > runoff[b]:
		winner = a
	case runoff[b] > runoff[a]:
		winner = b
	default:
		// Tie in the runoff: broken in favor of the higher round-1 score
		// total.
		winner = a
	}
	round2Winner := winner
	round2 := RoundResult{Round: 2, Tallies: runoff, Winner: &round2Winner}

	return &PollResults{
		PollID:     p.ID,
		Method:     p.Method,
		Choices:    p.Choices,
		Tallies:    runoff,
		Winners:    []int{winner},
		VoterCount: p.VoterCount(),
		Rounds:     []RoundResult{round1, round2},
	}, nil
}
