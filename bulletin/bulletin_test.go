package bulletin_test

import (
	"math/big"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/scrutinium/bulletin"
	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/member"
)

func newCiphertext(c *qt.C, pk *homomorphic.PublicKey, m int64) *homomorphic.Ciphertext {
	ct, err := homomorphic.Encrypt(pk, big.NewInt(m))
	c.Assert(err, qt.IsNil)
	return ct
}

func TestPublishVoteBuildsChainedMerkleRoots(t *testing.T) {
	c := qt.New(t)
	pk, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)
	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	pollID, err := ids.New(16)
	c.Assert(err, qt.IsNil)

	board := bulletin.New(authority)

	first, err := board.PublishVote(pollID, []*homomorphic.Ciphertext{newCiphertext(c, pk, 1)}, []byte("voter-1"))
	c.Assert(err, qt.IsNil)
	c.Assert(first.Sequence, qt.Equals, uint64(0))
	c.Assert(first.MerkleRoot, qt.DeepEquals, make([]byte, bulletin.HashLength))

	second, err := board.PublishVote(pollID, []*homomorphic.Ciphertext{newCiphertext(c, pk, 0)}, []byte("voter-2"))
	c.Assert(err, qt.IsNil)
	c.Assert(second.Sequence, qt.Equals, uint64(1))
	c.Assert(second.MerkleRoot, qt.DeepEquals, first.EntryHash)

	c.Assert(board.VerifyEntry(first), qt.IsTrue)
	c.Assert(board.VerifyEntry(second), qt.IsTrue)
	c.Assert(board.VerifyMerkleTree(), qt.IsTrue)
}

func TestVerifyEntryRejectsTamperedHash(t *testing.T) {
	c := qt.New(t)
	pk, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)
	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	pollID, err := ids.New(16)
	c.Assert(err, qt.IsNil)

	board := bulletin.New(authority)
	entry, err := board.PublishVote(pollID, []*homomorphic.Ciphertext{newCiphertext(c, pk, 7)}, []byte("voter"))
	c.Assert(err, qt.IsNil)

	entry.VoterIDHash = []byte("tampered")
	c.Assert(board.VerifyEntry(entry), qt.IsFalse)
}

func TestVerifyMerkleTreeAcceptsUntamperedBoard(t *testing.T) {
	c := qt.New(t)
	pk, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)
	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	pollID, err := ids.New(16)
	c.Assert(err, qt.IsNil)

	board := bulletin.New(authority)
	_, err = board.PublishVote(pollID, []*homomorphic.Ciphertext{newCiphertext(c, pk, 1)}, []byte("voter-1"))
	c.Assert(err, qt.IsNil)
	_, err = board.PublishVote(pollID, []*homomorphic.Ciphertext{newCiphertext(c, pk, 2)}, []byte("voter-2"))
	c.Assert(err, qt.IsNil)

	c.Assert(board.VerifyMerkleTree(), qt.IsTrue)
}

func TestPublishTallyRoundTrips(t *testing.T) {
	c := qt.New(t)
	pk, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)
	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	pollID, err := ids.New(16)
	c.Assert(err, qt.IsNil)

	board := bulletin.New(authority)
	ballots := [][]*homomorphic.Ciphertext{
		{newCiphertext(c, pk, 1), newCiphertext(c, pk, 0)},
		{newCiphertext(c, pk, 0), newCiphertext(c, pk, 1)},
	}

	proof, err := board.PublishTally(pollID, []int64{1, 1}, []string{"A", "B"}, ballots)
	c.Assert(err, qt.IsNil)
	c.Assert(board.VerifyTallyProof(proof, ballots), qt.IsTrue)

	// Mutating a reported tally after the fact must break verification.
	proof.Tallies = []int64{2, 0}
	c.Assert(board.VerifyTallyProof(proof, ballots), qt.IsFalse)
}

func TestComputeMerkleRootEmptyBoardIsZero(t *testing.T) {
	c := qt.New(t)
	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	board := bulletin.New(authority)
	c.Assert(board.ComputeMerkleRoot(), qt.Equals, strings.Repeat("00", bulletin.HashLength))
}

func TestExportImportEntriesRoundTrip(t *testing.T) {
	c := qt.New(t)
	pk, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)
	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	pollID, err := ids.New(16)
	c.Assert(err, qt.IsNil)

	board := bulletin.New(authority)
	want, err := board.PublishVote(pollID, []*homomorphic.Ciphertext{newCiphertext(c, pk, 3)}, []byte("voter"))
	c.Assert(err, qt.IsNil)

	data, err := board.Export()
	c.Assert(err, qt.IsNil)

	entries, _, err := bulletin.ImportEntries(data)
	c.Assert(err, qt.IsNil)
	c.Assert(len(entries), qt.Equals, 1)
	c.Assert(entries[0].Sequence, qt.Equals, want.Sequence)
	c.Assert(entries[0].EntryHash, qt.DeepEquals, want.EntryHash)
	c.Assert(entries[0].Signature, qt.DeepEquals, want.Signature)
}
