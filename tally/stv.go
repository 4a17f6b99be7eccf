package tally

import (
	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/poll"
)

// tallySTV fills min(3, n) seats under the single transferable vote using a
// Droop quota. Each round elects every candidate meeting quota and removes
// them from future counts; if none do, the candidate with the fewest active
// votes is eliminated (ties broken toward the highest index, the same rule
// IRV uses). This reference implementation does not redistribute surplus
// votes above quota — a simplification noted alongside the simulated
// runoffs elsewhere in this package.
func tallySTV(sk *homomorphic.PrivateKey, p *poll.Poll, vectors [][]*homomorphic.Ciphertext, n int) (*PollResults, error) {
	seats := n
	if seats > 3 {
		seats = 3
	}
	voters := len(vectors)
	quota := voters/(seats+1) + 1

	preferences := make([][]int, len(vectors))
	for i, v := range vectors {
		decoded, err := decryptVector(sk, v)
		if err != nil {
			return nil, err
		}
		preferences[i] = preferenceOrder(decoded)
	}

	elected := make(map[int]bool, seats)
	eliminated := make(map[int]bool, n)
	var electionOrder []int
	var rounds []RoundResult
	var lastCounts []int64

	resolved := func(choice int) bool { return elected[choice] || eliminated[choice] }

	for round := 1; len(elected) < seats; round++ {
		var active []int
		for i := 0; i < n; i++ {
			if !resolved(i) {
				active = append(active, i)
			}
		}
		if len(active) == 0 {
			break
		}

		counts := make([]int64, n)
		for _, prefs := range preferences {
			for _, choice := range prefs {
				if !resolved(choice) {
					counts[choice]++
					break
				}
			}
		}
		lastCounts = counts

		var electedThisRound []int
		for _, c := range active {
			if counts[c] >= int64(quota) {
				electedThisRound = append(electedThisRound, c)
			}
		}

		if len(electedThisRound) > 0 {
			for _, c := range electedThisRound {
				elected[c] = true
				electionOrder = append(electionOrder, c)
			}
			rounds = append(rounds, RoundResult{Round: round, Tallies: counts, Elected: electedThisRound})
			continue
		}

		loser := argminHighestIndexOnTie(counts, active)
		eliminated[loser] = true
		l := loser
		rounds = append(rounds, RoundResult{Round: round, Tallies: counts, Eliminated: &l})
	}

	return &PollResults{
		PollID:     p.ID,
		Method:     p.Method,
		Choices:    p.Choices,
		Tallies:    lastCounts,
		Winners:    electionOrder,
		VoterCount: p.VoterCount(),
		Rounds:     rounds,
	}, nil
}
