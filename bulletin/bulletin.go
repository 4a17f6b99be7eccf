// Package bulletin implements the public, append-only registry every poll's
// owning authority publishes to: one entry per cast vote and one tally
// proof per completed tally, each Merkle-committed and signed so any third
// party can reconstruct and verify the election without trusting the
// authority. Like poll.Poll, Board takes no internal locks;
// callers sharing one across goroutines serialize their own calls.
package bulletin

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/member"
)

// HashLength is the fixed size, in bytes, of every hash/root field.
const HashLength = 32

var zeroHash = make([]byte, HashLength)

// BulletinBoardEntry publishes one voter's ciphertext vector.
type BulletinBoardEntry struct {
	Sequence      uint64
	Timestamp     int64
	PollID        ids.ID
	EncryptedVote []*homomorphic.Ciphertext
	VoterIDHash   []byte
	MerkleRoot    []byte
	EntryHash     []byte
	Signature     []byte
}

// TallyProof publishes a completed tally and its binding commitment.
type TallyProof struct {
	PollID          ids.ID
	Tallies         []int64
	Choices         []string
	Timestamp       int64
	VotesHash       []byte
	DecryptionProof []byte
	Signature       []byte
}

// Board is the append-only bulletin board.
type Board struct {
	authority   *member.Signer
	entries     []BulletinBoardEntry
	tallyProofs []TallyProof
}

// New returns an empty Board signed by authority.
func New(authority *member.Signer) *Board {
	return &Board{authority: authority}
}

// PublishVote appends a new BulletinBoardEntry, whose MerkleRoot commits to
// every entry published before it (entry 0's root is 32 zero bytes).
func (b *Board) PublishVote(pollID ids.ID, encryptedVote []*homomorphic.Ciphertext, voterIDHash []byte) (BulletinBoardEntry, error) {
	root := merkleRoot(b.priorEntryHashes())

	entry := BulletinBoardEntry{
		Sequence:      uint64(len(b.entries)),
		Timestamp:     time.Now().UnixMicro(),
		PollID:        pollID,
		EncryptedVote: encryptedVote,
		VoterIDHash:   voterIDHash,
		MerkleRoot:    root,
	}

	hash, err := hashVoteEntry(entry)
	if err != nil {
		return BulletinBoardEntry{}, err
	}
	entry.EntryHash = hash

	if b.authority != nil {
		sig, err := b.authority.Sign(hash)
		if err != nil {
			return BulletinBoardEntry{}, fmt.Errorf("bulletin: could not sign entry: %w", err)
		}
		entry.Signature = sig.Bytes()
	}

	b.entries = append(b.entries, entry)
	return entry, nil
}

// PublishTally appends a TallyProof binding tallies to the ciphertexts that
// produced them. decryptionProof is a SHA-256 commitment over
// (ciphertexts ‖ tallies), a placeholder for a real proof of correct
// decryption, not a zero-knowledge argument.
func (b *Board) PublishTally(pollID ids.ID, tallies []int64, choices []string, encryptedVotes [][]*homomorphic.Ciphertext) (TallyProof, error) {
	flattened, err := flattenCiphertexts(encryptedVotes)
	if err != nil {
		return TallyProof{}, err
	}

	votesHash := sha256Sum(flattened)
	decryptionProof := sha256Sum(append(append([]byte{}, flattened...), serializeTallies(tallies)...))

	proof := TallyProof{
		PollID:          pollID,
		Tallies:         tallies,
		Choices:         choices,
		Timestamp:       time.Now().UnixMicro(),
		VotesHash:       votesHash,
		DecryptionProof: decryptionProof,
	}

	if b.authority != nil {
		sig, err := b.authority.Sign(decryptionProof)
		if err != nil {
			return TallyProof{}, fmt.Errorf("bulletin: could not sign tally proof: %w", err)
		}
		proof.Signature = sig.Bytes()
	}

	b.tallyProofs = append(b.tallyProofs, proof)
	return proof, nil
}

func (b *Board) priorEntryHashes() [][]byte {
	out := make([][]byte, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.EntryHash
	}
	return out
}

// hashVoteEntry computes H(sequence | timestamp | pollIdBytes | voterIdHash
// | merkleRoot | each ciphertext), the wire-format hash input from
// the external bulletin-board wire format.
func hashVoteEntry(e BulletinBoardEntry) ([]byte, error) {
	var buf bytes.Buffer
	writeU64(&buf, e.Sequence)
	writeU64(&buf, uint64(e.Timestamp))
	buf.Write(e.PollID)
	buf.Write(e.VoterIDHash)
	buf.Write(e.MerkleRoot)
	for _, ct := range e.EncryptedVote {
		raw, err := ct.Bytes()
		if err != nil {
			return nil, fmt.Errorf("bulletin: could not serialize ciphertext: %w", err)
		}
		buf.Write(raw)
	}
	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}

func flattenCiphertexts(vectors [][]*homomorphic.Ciphertext) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range vectors {
		for _, ct := range v {
			raw, err := ct.Bytes()
			if err != nil {
				return nil, fmt.Errorf("bulletin: could not serialize ciphertext: %w", err)
			}
			buf.Write(raw)
		}
	}
	return buf.Bytes(), nil
}

func serializeTallies(tallies []int64) []byte {
	var buf bytes.Buffer
	for _, t := range tallies {
		writeU64(&buf, uint64(t))
	}
	return buf.Bytes()
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// VerifyEntry recomputes entry's hash and, when the board has a known
// authority, its signature. It does not check entry's position against the
// board's current state; use VerifyMerkleTree for that.
func (b *Board) VerifyEntry(entry BulletinBoardEntry) bool {
	hash, err := hashVoteEntry(entry)
	if err != nil || !bytes.Equal(hash, entry.EntryHash) {
		return false
	}
	if b.authority == nil {
		return true
	}
	sig, err := member.SignatureFromBytes(entry.Signature)
	if err != nil {
		return false
	}
	ok, err := member.Verify(entry.EntryHash, sig, b.authority.ID())
	return err == nil && ok
}

// VerifyTallyProof recomputes votesHash and decryptionProof from
// encryptedVotes and proof.Tallies and checks them, along with the
// signature, against proof.
func (b *Board) VerifyTallyProof(proof TallyProof, encryptedVotes [][]*homomorphic.Ciphertext) bool {
	flattened, err := flattenCiphertexts(encryptedVotes)
	if err != nil {
		return false
	}
	votesHash := sha256Sum(flattened)
	decryptionProof := sha256Sum(append(append([]byte{}, flattened...), serializeTallies(proof.Tallies)...))
	if !bytes.Equal(votesHash, proof.VotesHash) || !bytes.Equal(decryptionProof, proof.DecryptionProof) {
		return false
	}
	if b.authority == nil {
		return true
	}
	sig, err := member.SignatureFromBytes(proof.Signature)
	if err != nil {
		return false
	}
	ok, err := member.Verify(proof.DecryptionProof, sig, b.authority.ID())
	return err == nil && ok
}

// VerifyMerkleTree checks that every entry's MerkleRoot equals the Merkle
// root of every entry published strictly before it.
func (b *Board) VerifyMerkleTree() bool {
	for i, e := range b.entries {
		expected := merkleRoot(b.priorEntryHashesUpTo(i))
		if !bytes.Equal(expected, e.MerkleRoot) {
			return false
		}
	}
	return true
}

func (b *Board) priorEntryHashesUpTo(i int) [][]byte {
	out := make([][]byte, i)
	for j := 0; j < i; j++ {
		out[j] = b.entries[j].EntryHash
	}
	return out
}

// ComputeMerkleRoot returns, as hex, the Merkle root over every entry
// published to the board so far.
func (b *Board) ComputeMerkleRoot() string {
	return hex.EncodeToString(merkleRoot(b.priorEntryHashes()))
}

// merkleRoot computes the bottom-up pairwise Merkle root of hashes,
// promoting a lone odd sibling unchanged to the next level. The root of an
// empty list is 32 zero bytes.
func merkleRoot(hashes [][]byte) []byte {
	if len(hashes) == 0 {
		return zeroHash
	}
	level := hashes
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				var buf bytes.Buffer
				buf.Write(level[i])
				buf.Write(level[i+1])
				sum := sha256.Sum256(buf.Bytes())
				next = append(next, sum[:])
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0]
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeU64(buf, uint64(len(b)))
	buf.Write(b)
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("bulletin: could not read u64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readU64(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("bulletin: could not read bytes: %w", err)
		}
	}
	return b, nil
}

// Export serializes the entire board into the length-prefixed wire format
// fixed by the external wire format: entry count, entries, tally-proof count, tally
// proofs.
func (b *Board) Export() ([]byte, error) {
	var buf bytes.Buffer
	writeU64(&buf, uint64(len(b.entries)))
	for _, e := range b.entries {
		if err := writeEntry(&buf, e); err != nil {
			return nil, err
		}
	}
	writeU64(&buf, uint64(len(b.tallyProofs)))
	for _, p := range b.tallyProofs {
		writeTallyProof(&buf, p)
	}
	return buf.Bytes(), nil
}

func writeEntry(buf *bytes.Buffer, e BulletinBoardEntry) error {
	writeU64(buf, e.Sequence)
	writeU64(buf, uint64(e.Timestamp))
	writeBytes(buf, e.PollID)
	writeU64(buf, uint64(len(e.EncryptedVote)))
	for _, ct := range e.EncryptedVote {
		raw, err := ct.Bytes()
		if err != nil {
			return fmt.Errorf("bulletin: could not serialize ciphertext: %w", err)
		}
		buf.Write(raw)
	}
	writeBytes(buf, e.VoterIDHash)
	writeBytes(buf, e.MerkleRoot)
	writeBytes(buf, e.EntryHash)
	writeBytes(buf, e.Signature)
	return nil
}

func writeTallyProof(buf *bytes.Buffer, p TallyProof) {
	writeBytes(buf, p.PollID)
	writeU64(buf, uint64(len(p.Tallies)))
	for _, t := range p.Tallies {
		writeU64(buf, uint64(t))
	}
	writeU64(buf, uint64(len(p.Choices)))
	for _, c := range p.Choices {
		writeBytes(buf, []byte(c))
	}
	writeU64(buf, uint64(p.Timestamp))
	writeBytes(buf, p.VotesHash)
	writeBytes(buf, p.DecryptionProof)
	writeBytes(buf, p.Signature)
}

// ImportEntries parses the entries section of an exported board, mainly for
// tests and cross-process verification; ciphertexts are restored from their
// fixed-width wire encoding.
func ImportEntries(data []byte) ([]BulletinBoardEntry, []byte, error) {
	r := bytes.NewReader(data)
	count, err := readU64(r)
	if err != nil {
		return nil, nil, err
	}
	entries := make([]BulletinBoardEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var e BulletinBoardEntry
		if e.Sequence, err = readU64(r); err != nil {
			return nil, nil, err
		}
		ts, err := readU64(r)
		if err != nil {
			return nil, nil, err
		}
		e.Timestamp = int64(ts)
		if e.PollID, err = readBytes(r); err != nil {
			return nil, nil, err
		}
		ctCount, err := readU64(r)
		if err != nil {
			return nil, nil, err
		}
		e.EncryptedVote = make([]*homomorphic.Ciphertext, ctCount)
		for j := uint64(0); j < ctCount; j++ {
			raw := make([]byte, homomorphic.CiphertextWireLen)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, nil, fmt.Errorf("bulletin: could not read ciphertext: %w", err)
			}
			e.EncryptedVote[j] = homomorphic.CiphertextFromBytes(raw)
		}
		if e.VoterIDHash, err = readBytes(r); err != nil {
			return nil, nil, err
		}
		if e.MerkleRoot, err = readBytes(r); err != nil {
			return nil, nil, err
		}
		if e.EntryHash, err = readBytes(r); err != nil {
			return nil, nil, err
		}
		if e.Signature, err = readBytes(r); err != nil {
			return nil, nil, err
		}
		entries = append(entries, e)
	}
	rest := data[len(data)-r.Len():]
	return entries, rest, nil
}
