// Package batch implements a memory-bounded staging queue that flushes
// pending votes to a handler in FIFO order. Like poll.Poll, Processor takes
// no internal locks; a caller sharing one across goroutines serializes its
// own AddVote/ProcessBatch calls.
package batch

import (
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/voting"
)

// PendingVote is one staged {voter, vote} pair awaiting a batch flush.
type PendingVote struct {
	VoterID ids.ID
	Vote    voting.EncryptedVote
}

// Handler processes a full backlog of staged votes.
type Handler func([]PendingVote) error

// Processor stages votes in FIFO order until ProcessBatch flushes them.
type Processor struct {
	batchSize int
	backlog   []PendingVote
}

// New returns a Processor that reports AddVote as full once batchSize votes
// are staged.
func New(batchSize int) *Processor {
	return &Processor{batchSize: batchSize}
}

// AddVote appends voterID/vote to the backlog and reports whether the
// backlog has now reached batchSize.
func (p *Processor) AddVote(voterID ids.ID, vote voting.EncryptedVote) bool {
	p.backlog = append(p.backlog, PendingVote{VoterID: voterID, Vote: vote})
	return len(p.backlog) >= p.batchSize
}

// Len reports how many votes are currently staged.
func (p *Processor) Len() int {
	return len(p.backlog)
}

// ProcessBatch invokes handler exactly once on the current backlog if it is
// non-empty, then clears the backlog — but only once handler returns nil.
// A handler error propagates to the caller and leaves the backlog intact,
// so a retry sees the same votes again.
func (p *Processor) ProcessBatch(handler Handler) error {
	if len(p.backlog) == 0 {
		return nil
	}
	if err := handler(p.backlog); err != nil {
		return err
	}
	p.backlog = nil
	return nil
}
