package member_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/scrutinium/member"
)

func TestSignAndVerify(t *testing.T) {
	c := qt.New(t)

	signer, err := member.NewSigner()
	c.Assert(err, qt.IsNil)

	msg := []byte("cast ballot for poll 0x01")
	sig, err := signer.Sign(msg)
	c.Assert(err, qt.IsNil)

	ok, err := member.Verify(msg, sig, signer.ID())
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	c := qt.New(t)

	signer, err := member.NewSigner()
	c.Assert(err, qt.IsNil)

	sig, err := signer.Sign([]byte("original"))
	c.Assert(err, qt.IsNil)

	ok, err := member.Verify([]byte("tampered"), sig, signer.ID())
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	c := qt.New(t)

	a, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	b, err := member.NewSigner()
	c.Assert(err, qt.IsNil)

	msg := []byte("hello")
	sig, err := a.Sign(msg)
	c.Assert(err, qt.IsNil)

	ok, err := member.Verify(msg, sig, b.ID())
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestSignatureBytesRoundTrip(t *testing.T) {
	c := qt.New(t)

	signer, err := member.NewSigner()
	c.Assert(err, qt.IsNil)

	msg := []byte("round trip me")
	sig, err := signer.Sign(msg)
	c.Assert(err, qt.IsNil)

	raw := sig.Bytes()
	c.Assert(raw, qt.HasLen, member.SignatureLength)

	parsed, err := member.SignatureFromBytes(raw)
	c.Assert(err, qt.IsNil)

	ok, err := member.Verify(msg, parsed, signer.ID())
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestNewSignerFromHexRestoresIdentity(t *testing.T) {
	c := qt.New(t)

	original, err := member.NewSigner()
	c.Assert(err, qt.IsNil)

	restored, err := member.NewSignerFromHex(original.HexPrivateKey())
	c.Assert(err, qt.IsNil)

	c.Assert(restored.ID().Equal(original.ID()), qt.IsTrue)
}
