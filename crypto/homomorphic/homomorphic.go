// Package homomorphic is the façade the voting engine uses for an
// additively-homomorphic public-key scheme: encrypt, homomorphically add two
// ciphertexts, and decrypt. It implements the simplified Paillier cryptosystem
// (generator g = n+1), the textbook construction whose decryption collapses
// to a single modular inverse — see Paillier, "Public-Key Cryptosystems Based
// on Composite Degree Residuosity Classes" (EUROCRYPT'99), §3 optimization.
//
// Key generation and threshold/Guardian key-sharing are explicitly out of
// scope for this engine: production deployments replace
// GenerateKeyPair with a proper distributed-keygen oracle. GenerateKeyPair is
// kept here only as the in-process stand-in the engine's own tests and the
// cmd/scrutinium-demo simulation use to obtain a (pk, sk) pair; nothing under
// poll/, tally/, audit/, or bulletin/ calls it.
//
// The wire format fixes ciphertexts at 32 bytes, so this
// package deliberately uses a small, non-production modulus: like any toy
// hash, DefaultModulusBits must be replaced by the implementer
// with a real key size (≥3072 bits) before this is used for anything but
// testing the protocol's shape.
package homomorphic

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultModulusBits is the bit length of N for keys generated by
// GenerateKeyPair. It is sized so that N² (the ciphertext space) fits the
// 32-byte fixed wire width fixed by the bulletin board's entry format; it is
// NOT a cryptographically adequate key size.
const DefaultModulusBits = 128

// CiphertextWireLen is the fixed big-endian width of a serialized Ciphertext,
// per the bulletin-board and tally-proof wire formats.
const CiphertextWireLen = 32

var (
	one = big.NewInt(1)
)

// PublicKey is the Paillier public modulus. The generator is fixed to n+1,
// which lets decryption avoid computing a discrete log.
type PublicKey struct {
	N    *big.Int
	nSq  *big.Int
	bits int
}

// PrivateKey holds the Paillier private exponent (Carmichael's lambda) and
// its modular inverse (mu), alongside the public key needed to decrypt.
type PrivateKey struct {
	Lambda *big.Int
	Mu     *big.Int
	Pub    *PublicKey
}

// Ciphertext is an opaque element of Z*_{n²}. Two encryptions of the same
// plaintext differ with overwhelming probability because Encrypt always
// folds in fresh randomness.
type Ciphertext struct {
	c *big.Int
}

// NewPublicKey wraps a given modulus n as a PublicKey, computing n² once.
func NewPublicKey(n *big.Int) *PublicKey {
	return &PublicKey{N: new(big.Int).Set(n), nSq: new(big.Int).Mul(n, n), bits: n.BitLen()}
}

// GenerateKeyPair produces a fresh (pk, sk) pair with an n of approximately
// bits length. See the package doc: this is a test/demo stand-in, not the
// production threshold key-generation oracle this engine is designed around.
func GenerateKeyPair(bits int) (*PublicKey, *PrivateKey, error) {
	if bits < 16 || bits%2 != 0 {
		return nil, nil, fmt.Errorf("homomorphic: bits must be even and >= 16, got %d", bits)
	}
	half := bits / 2
	var p, q *big.Int
	var err error
	for {
		p, err = rand.Prime(rand.Reader, half)
		if err != nil {
			return nil, nil, fmt.Errorf("homomorphic: could not generate prime: %w", err)
		}
		q, err = rand.Prime(rand.Reader, half)
		if err != nil {
			return nil, nil, fmt.Errorf("homomorphic: could not generate prime: %w", err)
		}
		if p.Cmp(q) != 0 {
			break
		}
	}
	n := new(big.Int).Mul(p, q)
	pMinus1 := new(big.Int).Sub(p, one)
	qMinus1 := new(big.Int).Sub(q, one)
	// lambda = lcm(p-1, q-1)
	gcd := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
	lambda := new(big.Int).Div(new(big.Int).Mul(pMinus1, qMinus1), gcd)

	mu := new(big.Int).ModInverse(lambda, n)
	if mu == nil {
		return nil, nil, fmt.Errorf("homomorphic: lambda not invertible mod n, retry key generation")
	}

	pub := NewPublicKey(n)
	priv := &PrivateKey{Lambda: lambda, Mu: mu, Pub: pub}
	return pub, priv, nil
}

// Encrypt encrypts a non-negative plaintext m < pk.N under pk, using g = n+1
// so that g^m = 1 + m*n (mod n²).
func Encrypt(pk *PublicKey, m *big.Int) (*Ciphertext, error) {
	if pk == nil {
		return nil, fmt.Errorf("homomorphic: nil public key")
	}
	if m.Sign() < 0 {
		return nil, fmt.Errorf("homomorphic: plaintext must be non-negative, got %s", m.String())
	}
	if m.Cmp(pk.N) >= 0 {
		return nil, fmt.Errorf("homomorphic: plaintext %s too large for modulus", m.String())
	}
	r, err := randUnit(pk.N)
	if err != nil {
		return nil, err
	}
	// gm = (1 + m*N) mod N²
	gm := new(big.Int).Mod(new(big.Int).Add(one, new(big.Int).Mul(m, pk.N)), pk.nSq)
	// rn = r^N mod N²
	rn := new(big.Int).Exp(r, pk.N, pk.nSq)
	c := new(big.Int).Mod(new(big.Int).Mul(gm, rn), pk.nSq)
	return &Ciphertext{c: c}, nil
}

// Add homomorphically adds two ciphertexts encrypted under the same pk: the
// decryption of the result equals the sum of the two plaintexts modulo N.
func Add(pk *PublicKey, a, b *Ciphertext) (*Ciphertext, error) {
	if pk == nil {
		return nil, fmt.Errorf("homomorphic: nil public key")
	}
	if a == nil || b == nil {
		return nil, fmt.Errorf("homomorphic: nil ciphertext")
	}
	c := new(big.Int).Mod(new(big.Int).Mul(a.c, b.c), pk.nSq)
	return &Ciphertext{c: c}, nil
}

// Decrypt recovers the plaintext encoded by c under sk. The result is always
// in [0, N).
func Decrypt(sk *PrivateKey, c *Ciphertext) (*big.Int, error) {
	if sk == nil || sk.Pub == nil {
		return nil, fmt.Errorf("homomorphic: nil private key")
	}
	if c == nil {
		return nil, fmt.Errorf("homomorphic: nil ciphertext")
	}
	pub := sk.Pub
	cLambda := new(big.Int).Exp(c.c, sk.Lambda, pub.nSq)
	l := lFunction(cLambda, pub.N)
	m := new(big.Int).Mod(new(big.Int).Mul(l, sk.Mu), pub.N)
	return m, nil
}

// lFunction computes (x-1)/n, the standard Paillier L function.
func lFunction(x, n *big.Int) *big.Int {
	num := new(big.Int).Sub(x, one)
	return new(big.Int).Div(num, n)
}

// randUnit samples a uniformly random element of Z*_n (retrying on the
// negligible chance of a non-invertible sample).
func randUnit(n *big.Int) (*big.Int, error) {
	for {
		r, err := rand.Int(rand.Reader, n)
		if err != nil {
			return nil, fmt.Errorf("homomorphic: could not sample randomness: %w", err)
		}
		if r.Sign() == 0 {
			continue
		}
		if new(big.Int).GCD(nil, nil, r, n).Cmp(one) == 0 {
			return r, nil
		}
	}
}

// Bytes returns the fixed-width (CiphertextWireLen) big-endian encoding of c.
func (c *Ciphertext) Bytes() ([]byte, error) {
	raw := c.c.Bytes()
	if len(raw) > CiphertextWireLen {
		return nil, fmt.Errorf("homomorphic: ciphertext does not fit in %d bytes, got %d", CiphertextWireLen, len(raw))
	}
	out := make([]byte, CiphertextWireLen)
	copy(out[CiphertextWireLen-len(raw):], raw)
	return out, nil
}

// CiphertextFromBytes parses a fixed-width big-endian ciphertext.
func CiphertextFromBytes(b []byte) *Ciphertext {
	return &Ciphertext{c: new(big.Int).SetBytes(b)}
}

// Zero is a convenience encryption of 0 used to fill unselected ballot slots.
func Zero(pk *PublicKey) (*Ciphertext, error) {
	return Encrypt(pk, new(big.Int))
}

// BigInt exposes the underlying value, mainly for tests and debugging.
func (c *Ciphertext) BigInt() *big.Int {
	return new(big.Int).Set(c.c)
}
