package poll_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/member"
	"github.com/vocdoni/scrutinium/poll"
	"github.com/vocdoni/scrutinium/voting"
)

func newTestPoll(c *qt.C, method voting.VotingMethod, choices []string, opts voting.Options) (*poll.Poll, *homomorphic.PrivateKey) {
	pub, priv, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)

	pollID, err := ids.New(16)
	c.Assert(err, qt.IsNil)

	p, err := poll.New(pollID, choices, method, authority, pub, nil, opts)
	c.Assert(err, qt.IsNil)
	return p, priv
}

func newVoter(c *qt.C) ids.ID {
	id, err := ids.New(20)
	c.Assert(err, qt.IsNil)
	return id
}

func TestVoteAndVerifyReceipt(t *testing.T) {
	c := qt.New(t)
	p, _ := newTestPoll(c, voting.Plurality, []string{"A", "B"}, voting.Options{})

	voter := newVoter(c)
	idx := 0
	receipt, err := p.Vote(voter, voting.EncryptedVote{ChoiceIndex: &idx})
	c.Assert(err, qt.IsNil)
	c.Assert(p.VerifyReceipt(voter, receipt), qt.IsTrue)
}

func TestSecondVoteFromSameVoterFails(t *testing.T) {
	c := qt.New(t)
	p, _ := newTestPoll(c, voting.Plurality, []string{"A", "B"}, voting.Options{})

	voter := newVoter(c)
	idx := 0
	_, err := p.Vote(voter, voting.EncryptedVote{ChoiceIndex: &idx})
	c.Assert(err, qt.IsNil)

	_, err = p.Vote(voter, voting.EncryptedVote{ChoiceIndex: &idx})
	c.Assert(err, qt.ErrorIs, poll.ErrAlreadyVoted)
}

func TestVoteAfterCloseFails(t *testing.T) {
	c := qt.New(t)
	p, _ := newTestPoll(c, voting.Plurality, []string{"A", "B"}, voting.Options{})

	c.Assert(p.Close(), qt.IsNil)

	idx := 0
	_, err := p.Vote(newVoter(c), voting.EncryptedVote{ChoiceIndex: &idx})
	c.Assert(err, qt.ErrorIs, poll.ErrPollClosed)
}

func TestCloseTwiceFails(t *testing.T) {
	c := qt.New(t)
	p, _ := newTestPoll(c, voting.Plurality, []string{"A", "B"}, voting.Options{})

	c.Assert(p.Close(), qt.IsNil)
	c.Assert(p.Close(), qt.ErrorIs, poll.ErrAlreadyClosed)
}

func TestReceiptTamperDetection(t *testing.T) {
	c := qt.New(t)
	p, _ := newTestPoll(c, voting.Plurality, []string{"A", "B"}, voting.Options{})

	voter := newVoter(c)
	idx := 1
	receipt, err := p.Vote(voter, voting.EncryptedVote{ChoiceIndex: &idx})
	c.Assert(err, qt.IsNil)

	tampered := receipt
	tampered.Timestamp++
	c.Assert(p.VerifyReceipt(voter, tampered), qt.IsFalse)
}

func TestInsecureMethodRejectedWithoutOptIn(t *testing.T) {
	c := qt.New(t)

	pub, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)
	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	pollID, err := ids.New(16)
	c.Assert(err, qt.IsNil)

	_, err = poll.New(pollID, []string{"A", "B"}, voting.Quadratic, authority, pub, nil, voting.Options{})
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestGetEncryptedVotesReflectsStoredBallots(t *testing.T) {
	c := qt.New(t)
	p, _ := newTestPoll(c, voting.Plurality, []string{"A", "B", "C"}, voting.Options{})

	for i := 0; i < 3; i++ {
		idx := i % 3
		_, err := p.Vote(newVoter(c), voting.EncryptedVote{ChoiceIndex: &idx})
		c.Assert(err, qt.IsNil)
	}

	view := p.GetEncryptedVotes()
	c.Assert(view.Len(), qt.Equals, 3)
	for _, vec := range view.Vectors() {
		c.Assert(vec, qt.HasLen, 3)
	}
}
