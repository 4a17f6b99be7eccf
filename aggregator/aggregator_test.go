package aggregator_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/scrutinium/aggregator"
	"github.com/vocdoni/scrutinium/crypto/homomorphic"
	"github.com/vocdoni/scrutinium/ids"
	"github.com/vocdoni/scrutinium/member"
	"github.com/vocdoni/scrutinium/poll"
	"github.com/vocdoni/scrutinium/voting"
)

func newPrecinct(c *qt.C, pub *homomorphic.PublicKey, votes []int) *aggregator.PrecinctAggregator {
	authority, err := member.NewSigner()
	c.Assert(err, qt.IsNil)
	pollID, err := ids.New(16)
	c.Assert(err, qt.IsNil)
	p, err := poll.New(pollID, []string{"A", "B", "C"}, voting.Plurality, authority, pub, nil, voting.Options{})
	c.Assert(err, qt.IsNil)

	for _, idx := range votes {
		voter, err := ids.New(20)
		c.Assert(err, qt.IsNil)
		i := idx
		_, err = p.Vote(voter, voting.EncryptedVote{ChoiceIndex: &i})
		c.Assert(err, qt.IsNil)
	}
	c.Assert(p.Close(), qt.IsNil)

	jurisdiction, err := ids.New(16)
	c.Assert(err, qt.IsNil)
	return aggregator.NewPrecinct(jurisdiction, pub, p)
}

func TestHierarchyComposesCiphertextsAcrossLevels(t *testing.T) {
	c := qt.New(t)
	pub, priv, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	precinct1 := newPrecinct(c, pub, []int{0, 0, 1})
	precinct2 := newPrecinct(c, pub, []int{1, 2, 2})

	t1, err := precinct1.GetTally()
	c.Assert(err, qt.IsNil)
	c.Assert(t1.Level, qt.Equals, aggregator.Precinct)
	c.Assert(t1.VoterCount, qt.Equals, 3)

	t2, err := precinct2.GetTally()
	c.Assert(err, qt.IsNil)

	countyID, err := ids.New(16)
	c.Assert(err, qt.IsNil)
	county, err := aggregator.NewCounty(countyID, pub, 3)
	c.Assert(err, qt.IsNil)

	_, err = county.GetTally()
	c.Assert(err, qt.ErrorIs, aggregator.ErrNoChildren)

	c.Assert(county.AddPrecinctTally(t1), qt.IsNil)
	c.Assert(county.AddPrecinctTally(t2), qt.IsNil)

	countyTally, err := county.GetTally()
	c.Assert(err, qt.IsNil)
	c.Assert(countyTally.Level, qt.Equals, aggregator.County)
	c.Assert(countyTally.VoterCount, qt.Equals, 6)
	c.Assert(len(countyTally.ChildJurisdictions), qt.Equals, 2)

	stateID, err := ids.New(16)
	c.Assert(err, qt.IsNil)
	state, err := aggregator.NewState(stateID, pub, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(state.AddCountyTally(countyTally), qt.IsNil)

	nationID, err := ids.New(16)
	c.Assert(err, qt.IsNil)
	national, err := aggregator.NewNational(nationID, pub, 3)
	c.Assert(err, qt.IsNil)

	stateTally, err := state.GetTally()
	c.Assert(err, qt.IsNil)
	c.Assert(national.AddStateTally(stateTally), qt.IsNil)

	finalTally, err := national.GetTally()
	c.Assert(err, qt.IsNil)
	c.Assert(finalTally.VoterCount, qt.Equals, 6)

	// Decrypting the National-level ciphertexts must match a flat, direct
	// tally over the same six ballots, proving composition via `add` alone
	// never needs private-key material below this point.
	decrypted := make([]int64, 3)
	for i, raw := range finalTally.EncryptedTallies {
		ct := homomorphic.CiphertextFromBytes(raw)
		m, err := homomorphic.Decrypt(priv, ct)
		c.Assert(err, qt.IsNil)
		decrypted[i] = m.Int64()
	}
	c.Assert(decrypted, qt.DeepEquals, []int64{2, 2, 2})
}

func TestAddPrecinctTallyRejectsWrongLevel(t *testing.T) {
	c := qt.New(t)
	pub, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)

	countyID, err := ids.New(16)
	c.Assert(err, qt.IsNil)
	county, err := aggregator.NewCounty(countyID, pub, 3)
	c.Assert(err, qt.IsNil)

	stateID, err := ids.New(16)
	c.Assert(err, qt.IsNil)
	state, err := aggregator.NewState(stateID, pub, 3)
	c.Assert(err, qt.IsNil)
	stateTally, err := state.GetTally()
	c.Assert(err, qt.ErrorIs, aggregator.ErrNoChildren)
	c.Assert(stateTally, qt.IsNil)

	fake := &aggregator.AggregatedTally{Level: aggregator.State, EncryptedTallies: make([][]byte, 3)}
	c.Assert(county.AddPrecinctTally(fake), qt.ErrorIs, aggregator.ErrLevelMismatch)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	c := qt.New(t)
	pub, _, err := homomorphic.GenerateKeyPair(homomorphic.DefaultModulusBits)
	c.Assert(err, qt.IsNil)
	precinct := newPrecinct(c, pub, []int{0, 1})

	want, err := precinct.GetTally()
	c.Assert(err, qt.IsNil)

	data, err := want.Marshal()
	c.Assert(err, qt.IsNil)

	got, err := aggregator.Unmarshal(data)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Level, qt.Equals, want.Level)
	c.Assert(got.VoterCount, qt.Equals, want.VoterCount)
	c.Assert(got.EncryptedTallies, qt.DeepEquals, want.EncryptedTallies)
}
