package homomorphic_test

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/scrutinium/crypto/homomorphic"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := qt.New(t)

	pub, priv, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	for _, m := range []int64{0, 1, 7, 42, 1000} {
		ct, err := homomorphic.Encrypt(pub, big.NewInt(m))
		c.Assert(err, qt.IsNil)

		got, err := homomorphic.Decrypt(priv, ct)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Int64(), qt.Equals, m)
	}
}

func TestAddIsHomomorphic(t *testing.T) {
	c := qt.New(t)

	pub, priv, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	c1, err := homomorphic.Encrypt(pub, big.NewInt(5))
	c.Assert(err, qt.IsNil)
	c2, err := homomorphic.Encrypt(pub, big.NewInt(9))
	c.Assert(err, qt.IsNil)

	sum, err := homomorphic.Add(pub, c1, c2)
	c.Assert(err, qt.IsNil)

	got, err := homomorphic.Decrypt(priv, sum)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Int64(), qt.Equals, int64(14))
}

func TestAddIsAssociativeAcrossManyTerms(t *testing.T) {
	c := qt.New(t)

	pub, priv, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	acc, err := homomorphic.Zero(pub)
	c.Assert(err, qt.IsNil)

	var want int64
	for _, v := range []int64{1, 2, 3, 4, 5, 6, 7} {
		ct, err := homomorphic.Encrypt(pub, big.NewInt(v))
		c.Assert(err, qt.IsNil)
		acc, err = homomorphic.Add(pub, acc, ct)
		c.Assert(err, qt.IsNil)
		want += v
	}

	got, err := homomorphic.Decrypt(priv, acc)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Int64(), qt.Equals, want)
}

func TestEncryptRejectsOutOfRangePlaintext(t *testing.T) {
	c := qt.New(t)

	pub, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	_, err = homomorphic.Encrypt(pub, big.NewInt(-1))
	c.Assert(err, qt.ErrorMatches, ".*non-negative.*")

	tooBig := new(big.Int).Set(pub.N)
	_, err = homomorphic.Encrypt(pub, tooBig)
	c.Assert(err, qt.ErrorMatches, ".*too large.*")
}

func TestCiphertextBytesRoundTrip(t *testing.T) {
	c := qt.New(t)

	pub, priv, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	ct, err := homomorphic.Encrypt(pub, big.NewInt(123))
	c.Assert(err, qt.IsNil)

	raw, err := ct.Bytes()
	c.Assert(err, qt.IsNil)
	c.Assert(raw, qt.HasLen, homomorphic.CiphertextWireLen)

	parsed := homomorphic.CiphertextFromBytes(raw)
	got, err := homomorphic.Decrypt(priv, parsed)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Int64(), qt.Equals, int64(123))
}

func TestDistinctEncryptionsOfSamePlaintextDiffer(t *testing.T) {
	c := qt.New(t)

	pub, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	a, err := homomorphic.Encrypt(pub, big.NewInt(3))
	c.Assert(err, qt.IsNil)
	b, err := homomorphic.Encrypt(pub, big.NewInt(3))
	c.Assert(err, qt.IsNil)

	c.Assert(a.BigInt().Cmp(b.BigInt()), qt.Not(qt.Equals), 0)
}
