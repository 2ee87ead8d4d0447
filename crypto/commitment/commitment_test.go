package commitment

import (
	"fmt"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestDeriveSecretDeterministic(t *testing.T) {
	c := qt.New(t)
	engine, err := NewEngine([]byte("server-key"))
	c.Assert(err, qt.IsNil)

	s1 := engine.DeriveSecret("alice@example.com")
	s2 := engine.DeriveSecret("alice@example.com")
	c.Assert(s1.Cmp(s2), qt.Equals, 0)

	// a different user reference or a different server key yields a
	// different secret
	c.Assert(s1.Cmp(engine.DeriveSecret("bob@example.com")), qt.Not(qt.Equals), 0)
	other, err := NewEngine([]byte("another-key"))
	c.Assert(err, qt.IsNil)
	c.Assert(s1.Cmp(other.DeriveSecret("alice@example.com")), qt.Not(qt.Equals), 0)
}

func TestEmptyServerKey(t *testing.T) {
	c := qt.New(t)
	_, err := NewEngine(nil)
	c.Assert(err, qt.IsNotNil)
}

func TestCommitmentsUnique(t *testing.T) {
	c := qt.New(t)
	engine, err := NewEngine([]byte("server-key"))
	c.Assert(err, qt.IsNil)

	n := 10000
	if testing.Short() {
		n = 256
	}
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		secret := engine.DeriveSecret(fmt.Sprintf("user-%d@example.com", i))
		com, err := CommitmentOf(secret)
		c.Assert(err, qt.IsNil)
		c.Assert(seen[com.String()], qt.IsFalse)
		seen[com.String()] = true
	}
}

func TestCommitmentHidesSecret(t *testing.T) {
	c := qt.New(t)
	secret := big.NewInt(42)
	com, err := CommitmentOf(secret)
	c.Assert(err, qt.IsNil)
	c.Assert(com.Cmp(secret), qt.Not(qt.Equals), 0)

	// same secret, same commitment
	again, err := CommitmentOf(big.NewInt(42))
	c.Assert(err, qt.IsNil)
	c.Assert(com.Cmp(again), qt.Equals, 0)
}

func TestNullifierPerElection(t *testing.T) {
	c := qt.New(t)
	engine, err := NewEngine([]byte("server-key"))
	c.Assert(err, qt.IsNil)
	secret := engine.DeriveSecret("alice@example.com")

	n1, err := NullifierOf(secret, 1)
	c.Assert(err, qt.IsNil)
	n1again, err := NullifierOf(secret, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Cmp(n1again), qt.Equals, 0)

	// a second election produces an unlinkable nullifier
	n2, err := NullifierOf(secret, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Cmp(n2), qt.Not(qt.Equals), 0)

	// two voters in the same election never collide
	otherSecret := engine.DeriveSecret("bob@example.com")
	nOther, err := NullifierOf(otherSecret, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Cmp(nOther), qt.Not(qt.Equals), 0)

	// the nullifier does not trivially reveal the commitment
	com, err := CommitmentOf(secret)
	c.Assert(err, qt.IsNil)
	c.Assert(n1.Cmp(com), qt.Not(qt.Equals), 0)
}
