// Package classifier maps each voting method to its security class and
// gates poll creation against the caller's configured Options. It is
// intentionally the smallest package in the module: a handful of table
// lookups and one validation entry point, the same shape used elsewhere to keep
// its own small policy-table packages (e.g. ballotmode defaults) to plain
// map lookups rather than a rules engine.
package classifier

import (
	"errors"
	"fmt"

	"github.com/vocdoni/scrutinium/voting"
)

// ErrInsecureMethod is returned when a method classified Insecure is used
// without voting.Options.AllowInsecure set.
var ErrInsecureMethod = errors.New("classifier: method is insecure and was not explicitly allowed")

// ErrMultiRoundDisallowed is returned when voting.Options.RequireFullySecure
// is set and the method is MultiRound.
var ErrMultiRoundDisallowed = errors.New("classifier: method requires multiple rounds but fully-secure voting was required")

// ErrUnknownMethod is returned for a VotingMethod with no classification.
var ErrUnknownMethod = errors.New("classifier: unknown voting method")

var levels = map[voting.VotingMethod]voting.SecurityLevel{
	voting.Plurality:     voting.FullyHomomorphic,
	voting.Approval:      voting.FullyHomomorphic,
	voting.Weighted:      voting.FullyHomomorphic,
	voting.Borda:         voting.FullyHomomorphic,
	voting.Score:         voting.FullyHomomorphic,
	voting.YesNo:         voting.FullyHomomorphic,
	voting.YesNoAbstain:  voting.FullyHomomorphic,
	voting.Supermajority: voting.FullyHomomorphic,

	voting.RankedChoice: voting.MultiRound,
	voting.TwoRound:     voting.MultiRound,
	voting.STAR:         voting.MultiRound,
	voting.STV:          voting.MultiRound,

	voting.Quadratic:    voting.Insecure,
	voting.Consensus:    voting.Insecure,
	voting.ConsentBased: voting.Insecure,
}

// SecurityLevel returns the classification of method, or an error if method
// is not one of the fifteen known voting methods.
func SecurityLevel(method voting.VotingMethod) (voting.SecurityLevel, error) {
	level, ok := levels[method]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return level, nil
}

// IsFullySecure reports whether method tallies without any intermediate
// decryption round.
func IsFullySecure(method voting.VotingMethod) bool {
	level, err := SecurityLevel(method)
	return err == nil && level == voting.FullyHomomorphic
}

// RequiresMultipleRounds reports whether method's tally needs intermediate
// plaintext rounds (eliminations, runoffs) before a winner is known.
func RequiresMultipleRounds(method voting.VotingMethod) bool {
	level, err := SecurityLevel(method)
	return err == nil && level == voting.MultiRound
}

// Validate enforces opts against method's security classification. It is the
// gate poll construction calls through. An Insecure method is gated by
// AllowInsecure alone; RequireFullySecure rejects MultiRound methods only.
func Validate(method voting.VotingMethod, opts voting.Options) error {
	level, err := SecurityLevel(method)
	if err != nil {
		return err
	}
	switch level {
	case voting.Insecure:
		if !opts.AllowInsecure {
			return fmt.Errorf("%w: %q", ErrInsecureMethod, method)
		}
	case voting.MultiRound:
		if opts.RequireFullySecure {
			return fmt.Errorf("%w: %q", ErrMultiRoundDisallowed, method)
		}
	case voting.FullyHomomorphic:
		// always permitted
	}
	return nil
}
