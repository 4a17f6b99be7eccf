// Package poll implements the core ballot box: a Poll accepts encoded
// ballots from distinct voters, enforces the one-vote-per-voter and
// open/closed state machine, mints signed receipts, and exposes a read-only
// view of its stored ciphertexts to the tallier. It
// takes no internal locks — callers sharing a Poll across goroutines are
// responsible for serializing their own calls, the same discipline the
// teacher's storage layer delegates to its own caller via explicit
// transaction boundaries rather than hiding a mutex inside the type.
package poll

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vocdoni/scrutinium/audit"
	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/log"
	"github.com/vocdoni/scrutinium/member"
	"github.com/vocdoni/scrutinium/voting"
	"github.com/vocdoni/scrutinium/voting/classifier"
	"github.com/vocdoni/scrutinium/voting/encoder"
)

// Sentinel errors for the ballot and state-machine taxonomy.
var (
	ErrPollClosed        = errors.New("poll: poll is closed")
	ErrAlreadyVoted      = errors.New("poll: voter has already cast a ballot")
	ErrAlreadyClosed     = errors.New("poll: poll is already closed")
	ErrNotClosed         = errors.New("poll: poll has not been closed")
	ErrChoicesTooFew     = errors.New("poll: a poll needs at least two choices")
	ErrVoterNotFound     = errors.New("poll: voter has not cast a ballot")
	ErrReceiptSignature  = errors.New("poll: receipt signature invalid")
)

const receiptNonceLen = 16

// VoteReceipt proves a voter cast a ballot without revealing its contents.
type VoteReceipt struct {
	VoterID   ids.ID
	PollID    ids.ID
	Timestamp int64
	Nonce     [receiptNonceLen]byte
	Signature []byte
}

// canonicalBytes returns voterId‖pollId‖uint64(timestamp)‖nonce, the exact
// payload the authority signs and verifyReceipt recomputes.
func (r VoteReceipt) canonicalBytes() []byte {
	buf := make([]byte, 0, len(r.VoterID)+len(r.PollID)+8+receiptNonceLen)
	buf = append(buf, r.VoterID...)
	buf = append(buf, r.PollID...)
	var ts [8]byte
	for i := 0; i < 8; i++ {
		ts[7-i] = byte(r.Timestamp >> (8 * i))
	}
	buf = append(buf, ts[:]...)
	buf = append(buf, r.Nonce[:]...)
	return buf
}

// Poll is a single ballot box over a fixed, frozen choice set.
type Poll struct {
	ID              ids.ID
	Choices         []string
	Method          voting.VotingMethod
	Authority       *member.Signer
	VotingPublicKey *homomorphic.PublicKey
	MaxWeight       *int
	Options         voting.Options
	CreatedAt       int64
	ClosedAt        *int64

	votes    map[string][]*homomorphic.Ciphertext
	receipts map[string]VoteReceipt
	AuditLog *audit.Log
}

// New constructs a Poll, validating the method against opts via the
// classifier and recording a PollCreated audit entry. The poll is not
// observable until this call succeeds in full: configuration errors leave
// nothing behind.
func New(id ids.ID, choices []string, method voting.VotingMethod, authority *member.Signer, votingPublicKey *homomorphic.PublicKey, maxWeight *int, opts voting.Options) (*Poll, error) {
	if len(choices) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrChoicesTooFew, len(choices))
	}
	if err := classifier.Validate(method, opts); err != nil {
		return nil, err
	}

	auditLog := audit.New(authority)
	if _, err := auditLog.RecordPollCreated(id, method, len(choices), maxWeight); err != nil {
		return nil, fmt.Errorf("poll: could not record creation: %w", err)
	}

	p := &Poll{
		ID:              id,
		Choices:         choices,
		Method:          method,
		Authority:       authority,
		VotingPublicKey: votingPublicKey,
		MaxWeight:       maxWeight,
		Options:         opts,
		CreatedAt:       time.Now().UnixMicro(),
		votes:           make(map[string][]*homomorphic.Ciphertext),
		receipts:        make(map[string]VoteReceipt),
		AuditLog:        auditLog,
	}
	log.Debugw("poll created", "pollId", id.Hex(), "method", string(method), "choices", len(choices))
	return p, nil
}

// voterKey is the hex of a voter's id bytes, used to key the votes/receipts
// maps.
func voterKey(voterID ids.ID) string {
	return hex.EncodeToString(voterID)
}

// Vote encodes and stores vote on behalf of voterID, returning a signed
// receipt. It fails with ErrPollClosed, ErrAlreadyVoted, or one of the
// encoder's ballot-validation errors.
func (p *Poll) Vote(voterID ids.ID, vote voting.EncryptedVote) (VoteReceipt, error) {
	if p.ClosedAt != nil {
		return VoteReceipt{}, ErrPollClosed
	}
	key := voterKey(voterID)
	if _, ok := p.receipts[key]; ok {
		return VoteReceipt{}, ErrAlreadyVoted
	}

	encoded, err := encoder.Encode(p.VotingPublicKey, p.Method, len(p.Choices), p.MaxWeight, vote)
	if err != nil {
		return VoteReceipt{}, err
	}

	receipt, err := p.mintReceipt(voterID)
	if err != nil {
		return VoteReceipt{}, err
	}

	p.votes[key] = encoded
	p.receipts[key] = receipt

	voterIDHash := anonymize(voterID)
	if _, err := p.AuditLog.RecordVoteCast(p.ID, voterIDHash); err != nil {
		return VoteReceipt{}, fmt.Errorf("poll: could not record vote: %w", err)
	}
	log.Debugw("vote cast", "pollId", p.ID.Hex(), "voterIdHash", hex.EncodeToString(voterIDHash))
	return receipt, nil
}

func (p *Poll) mintReceipt(voterID ids.ID) (VoteReceipt, error) {
	var nonce [receiptNonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return VoteReceipt{}, fmt.Errorf("poll: could not generate receipt nonce: %w", err)
	}
	r := VoteReceipt{
		VoterID:   voterID,
		PollID:    p.ID,
		Timestamp: time.Now().UnixMicro(),
		Nonce:     nonce,
	}
	if p.Authority != nil {
		sig, err := p.Authority.Sign(r.canonicalBytes())
		if err != nil {
			return VoteReceipt{}, fmt.Errorf("poll: could not sign receipt: %w", err)
		}
		r.Signature = sig.Bytes()
	}
	return r, nil
}

// VerifyReceipt reports whether receipt is a genuine, unaltered receipt this
// poll issued to voterID.
func (p *Poll) VerifyReceipt(voterID ids.ID, receipt VoteReceipt) bool {
	key := voterKey(voterID)
	stored, ok := p.receipts[key]
	if !ok {
		return false
	}
	if stored.Timestamp != receipt.Timestamp || stored.Nonce != receipt.Nonce {
		return false
	}
	if !stored.VoterID.Equal(receipt.VoterID) || !stored.PollID.Equal(receipt.PollID) {
		return false
	}
	if p.Authority == nil {
		return true
	}
	sig, err := member.SignatureFromBytes(receipt.Signature)
	if err != nil {
		return false
	}
	ok2, err := member.Verify(receipt.canonicalBytes(), sig, p.Authority.ID())
	return err == nil && ok2
}

// Close closes the poll for further votes, recording a PollClosed audit
// entry. A poll may be closed exactly once.
func (p *Poll) Close() error {
	if p.ClosedAt != nil {
		return ErrAlreadyClosed
	}
	now := time.Now().UnixMicro()
	p.ClosedAt = &now
	if _, err := p.AuditLog.RecordPollClosed(p.ID, len(p.receipts), now); err != nil {
		return fmt.Errorf("poll: could not record closure: %w", err)
	}
	log.Debugw("poll closed", "pollId", p.ID.Hex(), "voterCount", len(p.receipts))
	return nil
}

// IsClosed reports whether Close has been called.
func (p *Poll) IsClosed() bool {
	return p.ClosedAt != nil
}

// VoterCount returns the number of distinct voters who have cast a ballot.
func (p *Poll) VoterCount() int {
	return len(p.receipts)
}

// EncryptedVotes is a read-only view over a poll's stored ciphertext
// vectors, one per voter. Mutation attempts through this type are
// impossible at the type level: every accessor returns a copy.
type EncryptedVotes struct {
	vectors [][]*homomorphic.Ciphertext
}

// Vectors returns a copy of the stored ciphertext vectors, one per voter.
// Both the outer slice and every inner per-choice slice are freshly
// allocated, so a caller that writes into the result (vecs[i][j] = x) cannot
// reach back into the Poll's own vote store.
func (v EncryptedVotes) Vectors() [][]*homomorphic.Ciphertext {
	out := make([][]*homomorphic.Ciphertext, len(v.vectors))
	for i, vec := range v.vectors {
		out[i] = cloneVector(vec)
	}
	return out
}

// cloneVector copies vec into a freshly allocated slice so the caller cannot
// mutate the Poll's internal ballot store through the returned view.
func cloneVector(vec []*homomorphic.Ciphertext) []*homomorphic.Ciphertext {
	out := make([]*homomorphic.Ciphertext, len(vec))
	copy(out, vec)
	return out
}

// Len reports how many ballots are in the view.
func (v EncryptedVotes) Len() int {
	return len(v.vectors)
}

// GetEncryptedVotes returns a read-only view over every ballot stored so
// far. Ordering is not significant to any tallying algorithm. Each vector is
// copied out of p.votes so mutating the view can never reach the Poll's own
// store.
func (p *Poll) GetEncryptedVotes() EncryptedVotes {
	out := make([][]*homomorphic.Ciphertext, 0, len(p.votes))
	for _, v := range p.votes {
		out = append(out, cloneVector(v))
	}
	return EncryptedVotes{vectors: out}
}

// anonymize derives a fixed-length digest of a voter id for audit-log
// storage, so the raw id never appears outside the poll's own receipt map.
func anonymize(voterID ids.ID) []byte {
	return member.HashMessage(voterID)
}
