package tally

import (
	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/poll"
)

// preferenceOrder turns a decrypted rank vector (0 = unranked, else
// 1-indexed rank) into an ordered list of choice indices, ascending by rank.
func preferenceOrder(ranks []int64) []int {
	type ranked struct {
		choice int
		rank   int64
	}
	var entries []ranked
	for choice, r := range ranks {
		if r > 0 {
			entries = append(entries, ranked{choice, r})
		}
	}
	// insertion sort: ballots are short (number of choices), and this keeps
	// the ordering stable without importing sort for a handful of elements.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].rank < entries[j-1].rank; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.choice
	}
	return out
}

// firstActivePreference returns the first choice in prefs not present in
// eliminated, or -1 if the ballot is exhausted.
func firstActivePreference(prefs []int, eliminated map[int]bool) int {
	for _, choice := range prefs {
		if !eliminated[choice] {
			return choice
		}
	}
	return -1
}

// tallyIRV runs instant-runoff elimination: each round counts first active
// preferences; a candidate exceeding half the active ballots wins outright,
// otherwise the candidate with the fewest active votes is eliminated (ties
// broken toward the highest index), until one candidate remains.
func tallyIRV(sk *homomorphic.PrivateKey, p *poll.Poll, vectors [][]*homomorphic.Ciphertext, n int) (*PollResults, error) {
	preferences := make([][]int, len(vectors))
	for i, v := range vectors {
		decoded, err := decryptVector(sk, v)
		if err != nil {
			return nil, err
		}
		preferences[i] = preferenceOrder(decoded)
	}

	eliminated := make(map[int]bool, n)
	active := make([]int, 0, n)
	for i := 0; i < n; i++ {
		active = append(active, i)
	}

	var rounds []RoundResult
	var finalTallies []int64
	var winner int

	for round := 1; ; round++ {
		counts := make([]int64, n)
		var totalActive int64
		for _, prefs := range preferences {
			choice := firstActivePreference(prefs, eliminated)
			if choice == -1 {
				continue
			}
			counts[choice]++
			totalActive++
		}
		finalTallies = counts

		if len(active) == 1 {
			winner = active[0]
			w := winner
			rounds = append(rounds, RoundResult{Round: round, Tallies: counts, Winner: &w})
			break
		}

		top := argmaxAmong(counts, active)
		if len(top) == 1 && 2*counts[top[0]] > totalActive {
			winner = top[0]
			w := winner
			rounds = append(rounds, RoundResult{Round: round, Tallies: counts, Winner: &w})
			break
		}

		loser := argminHighestIndexOnTie(counts, active)
		eliminated[loser] = true
		active = removeIndex(active, loser)
		l := loser
		rounds = append(rounds, RoundResult{Round: round, Tallies: counts, Eliminated: &l})
	}

	return &PollResults{
		PollID:     p.ID,
		Method:     p.Method,
		Choices:    p.Choices,
		Tallies:    finalTallies,
		Winners:    []int{winner},
		VoterCount: p.VoterCount(),
		Rounds:     rounds,
	}, nil
}

// argmaxAmong returns the indices within candidates that attain the maximum
// value of tallies over just those candidates.
func argmaxAmong(tallies []int64, candidates []int) []int {
	if len(candidates) == 0 {
		return nil
	}
	max := tallies[candidates[0]]
	for _, idx := range candidates[1:] {
		if tallies[idx] > max {
			max = tallies[idx]
		}
	}
	var out []int
	for _, idx := range candidates {
		if tallies[idx] == max {
			out = append(out, idx)
		}
	}
	return out
}

func removeIndex(s []int, target int) []int {
	out := make([]int, 0, len(s)-1)
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
