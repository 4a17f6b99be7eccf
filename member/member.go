// Package member implements the signing identity every authority in the
// engine holds: election officials creating polls, voters casting ballots,
// and jurisdictions publishing aggregated tallies all sign through the same
// Signer type, backed by secp256k1 ECDSA.
//
// The key type (ecdsa.PrivateKey aliased to a named type), the
// keccak256-with-prefix message hashing, and the Sign/Verify shape follow the
// same pattern as other secp256k1-based signer wrappers in the ecosystem.
// Dropped is any gnark-crypto mirror signature or BLS12-377 verification —
// those only matter when a signature must be consumable inside a SNARK
// circuit, and this engine has no circuits to verify.
package member

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/vocdoni/scrutinium/ids"
)

// signingPrefix mirrors the Ethereum personal-message signing convention:
// hashing commits to the length of the payload so a signature over one
// message can never be replayed as a valid signature over a differently
// framed one.
const signingPrefix = "Scrutinium Signed Message:\n"

// SignatureLength is the byte length of a serialized Signature (R ‖ S ‖ v).
const SignatureLength = ethcrypto.SignatureLength

// Signer is a member's ECDSA signing key. The zero value is not usable; obtain
// one via NewSigner or NewSignerFromHex.
type Signer ecdsa.PrivateKey

// Signature is a recoverable secp256k1 signature.
type Signature struct {
	R        *big.Int `json:"r"`
	S        *big.Int `json:"s"`
	recovery byte
}

// NewSigner generates a fresh random signing key.
func NewSigner() (*Signer, error) {
	k, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("member: could not generate key: %w", err)
	}
	return (*Signer)(k), nil
}

// NewSignerFromHex restores a signing key from its hex-encoded private scalar.
func NewSignerFromHex(hexKey string) (*Signer, error) {
	k, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("member: could not parse key: %w", err)
	}
	return (*Signer)(k), nil
}

// ID derives this signer's stable identifier from its public key's
// Ethereum-style address, a 20-byte value well suited to keying authorities
// and voters alike.
func (s *Signer) ID() ids.ID {
	addr := ethcrypto.PubkeyToAddress(s.PublicKey)
	return ids.ID(addr.Bytes())
}

// Address returns the derived address as a go-ethereum common.Address, for
// callers that want to compare against a recovered signer.
func (s *Signer) Address() common.Address {
	return ethcrypto.PubkeyToAddress(s.PublicKey)
}

// HexPrivateKey exports the raw private scalar as a hex string. Intended for
// test fixtures and the cmd/scrutinium-demo simulation, never for production
// key custody.
func (s *Signer) HexPrivateKey() string {
	return hex.EncodeToString(ethcrypto.FromECDSA((*ecdsa.PrivateKey)(s)))
}

// Sign signs msg, returning a recoverable signature.
func (s *Signer) Sign(msg []byte) (*Signature, error) {
	return Sign(msg, (*ecdsa.PrivateKey)(s))
}

// Sign signs msg with privKey directly, without requiring a Signer value.
func Sign(msg []byte, privKey *ecdsa.PrivateKey) (*Signature, error) {
	sig, err := ethcrypto.Sign(HashMessage(msg), privKey)
	if err != nil {
		return nil, fmt.Errorf("member: could not sign message: %w", err)
	}
	return &Signature{
		R:        new(big.Int).SetBytes(sig[:32]),
		S:        new(big.Int).SetBytes(sig[32:64]),
		recovery: sig[64],
	}, nil
}

// HashMessage keccak256-hashes data after prepending the length-committing
// signing prefix.
func HashMessage(data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%d%s", signingPrefix, len(data), data)
	return ethcrypto.Keccak256(buf.Bytes())
}

// Bytes serializes the signature as R ‖ S ‖ recovery, 65 bytes total.
func (sig *Signature) Bytes() []byte {
	r := make([]byte, 32)
	s := make([]byte, 32)
	rb, sb := sig.R.Bytes(), sig.S.Bytes()
	copy(r[32-len(rb):], rb)
	copy(s[32-len(sb):], sb)
	return append(r, append(s, sig.recovery)...)
}

// SignatureFromBytes parses a 65-byte R‖S‖recovery signature.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureLength {
		return nil, fmt.Errorf("member: signature must be %d bytes, got %d", SignatureLength, len(b))
	}
	return &Signature{
		R:        new(big.Int).SetBytes(b[:32]),
		S:        new(big.Int).SetBytes(b[32:64]),
		recovery: b[64],
	}, nil
}

// Verify reports whether sig is a valid signature over msg produced by the
// holder of expected's private key. The error is non-nil only when sig is nil
// or no public key can be recovered from it.
func Verify(msg []byte, sig *Signature, expected ids.ID) (bool, error) {
	if sig == nil || sig.R == nil || sig.S == nil {
		return false, fmt.Errorf("member: nil signature")
	}
	pub, err := ethcrypto.SigToPub(HashMessage(msg), sig.Bytes())
	if err != nil {
		return false, fmt.Errorf("member: could not recover public key: %w", err)
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	return ids.ID(recovered.Bytes()).Equal(expected), nil
}
