package batch_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/scrutinium/batch"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/voting"
)

func newVote(c *qt.C, choice int) (ids.ID, voting.EncryptedVote) {
	voter, err := ids.New(20)
	c.Assert(err, qt.IsNil)
	i := choice
	return voter, voting.EncryptedVote{ChoiceIndex: &i}
}

func TestAddVoteReportsFullAtBatchSize(t *testing.T) {
	c := qt.New(t)
	p := batch.New(3)

	v1, e1 := newVote(c, 0)
	v2, e2 := newVote(c, 1)
	v3, e3 := newVote(c, 2)

	c.Assert(p.AddVote(v1, e1), qt.IsFalse)
	c.Assert(p.AddVote(v2, e2), qt.IsFalse)
	c.Assert(p.AddVote(v3, e3), qt.IsTrue)
	c.Assert(p.Len(), qt.Equals, 3)
}

func TestProcessBatchClearsOnSuccess(t *testing.T) {
	c := qt.New(t)
	p := batch.New(2)
	v1, e1 := newVote(c, 0)
	p.AddVote(v1, e1)

	var seen []batch.PendingVote
	err := p.ProcessBatch(func(votes []batch.PendingVote) error {
		seen = votes
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(len(seen), qt.Equals, 1)
	c.Assert(p.Len(), qt.Equals, 0)
}

func TestProcessBatchKeepsBacklogOnFailure(t *testing.T) {
	c := qt.New(t)
	p := batch.New(2)
	v1, e1 := newVote(c, 0)
	p.AddVote(v1, e1)

	handlerErr := errors.New("downstream unavailable")
	err := p.ProcessBatch(func(votes []batch.PendingVote) error {
		return handlerErr
	})
	c.Assert(err, qt.Equals, handlerErr)
	c.Assert(p.Len(), qt.Equals, 1)

	// A retry after the transient failure clears on success.
	err = p.ProcessBatch(func(votes []batch.PendingVote) error { return nil })
	c.Assert(err, qt.IsNil)
	c.Assert(p.Len(), qt.Equals, 0)
}

func TestProcessBatchIsNoOpWhenEmpty(t *testing.T) {
	c := qt.New(t)
	p := batch.New(5)
	called := false
	err := p.ProcessBatch(func(votes []batch.PendingVote) error {
		called = true
		return nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(called, qt.IsFalse)
}
