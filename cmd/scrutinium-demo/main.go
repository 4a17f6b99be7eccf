// Command scrutinium-demo drives the voting engine end to end from a single
// process: it creates a poll, stages and casts a batch of simulated ballots,
// closes the poll, tallies it, publishes the tally to a bulletin board, and
// reports whether the audit chain verifies.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/vocdoni/scrutinium/batch"
	"github.com/vocdoni/scrutinium/bulletin"
	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/log"
	"github.com/vocdoni/scrutinium/member"
	"github.com/vocdoni/scrutinium/tally"
	"github.com/vocdoni/scrutinium/voting"
	"github.com/vocdoni/scrutinium/voting/encoder"
	"github.com/vocdoni/scrutinium/voting/factory"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level, cfg.Log.Output)

	if err := run(cfg); err != nil {
		log.Errorw(err, "simulation failed")
		os.Exit(1)
	}
}

func run(cfg *Config) error {
	method := voting.VotingMethod(cfg.Poll.Method)

	votingPub, tallySecret, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	if err != nil {
		return fmt.Errorf("could not generate homomorphic key pair: %w", err)
	}
	authority, err := member.NewSigner()
	if err != nil {
		return fmt.Errorf("could not create authority signer: %w", err)
	}

	p, err := factory.Create(cfg.Poll.Choices, method, authority, votingPub, nil, voting.Options{})
	if err != nil {
		return fmt.Errorf("could not create poll: %w", err)
	}
	log.Infow("poll created", "pollId", p.ID.Hex(), "method", string(method), "choices", cfg.Poll.Choices)

	board := bulletin.New(authority)
	processor := batch.New(cfg.Poll.BatchSize)

	flush := func(pending []batch.PendingVote) error {
		for _, v := range pending {
			encoded, err := encoder.Encode(votingPub, method, len(p.Choices), p.MaxWeight, v.Vote)
			if err != nil {
				return fmt.Errorf("could not encode ballot for %s: %w", v.VoterID.Hex(), err)
			}

			receipt, err := p.Vote(v.VoterID, v.Vote)
			if err != nil {
				return fmt.Errorf("could not cast vote for %s: %w", v.VoterID.Hex(), err)
			}
			if !p.VerifyReceipt(v.VoterID, receipt) {
				return fmt.Errorf("receipt failed to verify for %s", v.VoterID.Hex())
			}

			voterIDHash := member.HashMessage(v.VoterID)
			if _, err := board.PublishVote(p.ID, encoded, voterIDHash); err != nil {
				return fmt.Errorf("could not publish vote entry: %w", err)
			}
		}
		log.Infow("batch flushed", "size", len(pending))
		return nil
	}

	for i := 0; i < cfg.Poll.VoterCount; i++ {
		voterID, err := ids.New(20)
		if err != nil {
			return fmt.Errorf("could not mint voter id: %w", err)
		}
		vote, err := randomVote(method, len(cfg.Poll.Choices))
		if err != nil {
			return err
		}
		if full := processor.AddVote(voterID, vote); full {
			if err := processor.ProcessBatch(flush); err != nil {
				return err
			}
		}
	}
	if err := processor.ProcessBatch(flush); err != nil {
		return err
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("could not close poll: %w", err)
	}
	log.Infow("poll closed", "voterCount", p.VoterCount())

	tallier, err := tally.New(tallySecret)
	if err != nil {
		return fmt.Errorf("could not create tallier: %w", err)
	}
	results, err := tallier.Tally(p)
	if err != nil {
		return fmt.Errorf("could not tally poll: %w", err)
	}
	log.Infow("poll tallied", "tallies", results.Tallies, "winners", results.Winners)

	votes := p.GetEncryptedVotes().Vectors()
	if _, err := board.PublishTally(p.ID, results.Tallies, p.Choices, votes); err != nil {
		return fmt.Errorf("could not publish tally: %w", err)
	}

	verified := p.AuditLog.VerifyChain()
	log.Infow("audit chain verification complete", "verified", verified)
	if !verified {
		return fmt.Errorf("audit chain failed to verify")
	}
	return nil
}

// randomVote encodes a random ballot appropriate to method. It supports a
// representative subset of the fifteen methods, covering the one-hot,
// indicator, weighted and ranking ballot shapes; it does not generate the
// client-encrypted vectors Score and STAR take, and any method not listed
// returns an error.
func randomVote(method voting.VotingMethod, n int) (voting.EncryptedVote, error) {
	switch method {
	case voting.Plurality, voting.TwoRound:
		return voting.EncryptedVote{ChoiceIndex: voting.IntPtr(rand.Intn(n))}, nil
	case voting.Approval:
		var choices []int
		for i := 0; i < n; i++ {
			if rand.Intn(2) == 0 {
				choices = append(choices, i)
			}
		}
		if len(choices) == 0 {
			choices = []int{rand.Intn(n)}
		}
		return voting.EncryptedVote{Choices: choices}, nil
	case voting.Weighted:
		w := 1 + rand.Intn(100)
		return voting.EncryptedVote{ChoiceIndex: voting.IntPtr(rand.Intn(n)), Weight: &w}, nil
	case voting.Borda, voting.RankedChoice, voting.STV:
		return voting.EncryptedVote{Rankings: randomPermutation(n)}, nil
	default:
		return voting.EncryptedVote{}, fmt.Errorf("scrutinium-demo: no ballot generator for method %q", method)
	}
}

func randomPermutation(n int) []int {
	perm := rand.Perm(n)
	return perm
}
