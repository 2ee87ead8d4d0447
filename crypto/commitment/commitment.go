// Package commitment derives the voter secret, the public commitment and the
// per-election nullifier. The commitment and nullifier use the iden3 poseidon
// implementation, which is the same hash evaluated inside the voting circuit
// and by the ledger's verifier contract: the three parties must agree on the
// exact primitive or proofs stop verifying.
package commitment

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/zkvote-coordinator/util"
)

// Engine derives secrets, commitments and nullifiers. The server key is held
// for the lifetime of the process; a changed key would re-derive different
// secrets for every voter, so it must be treated as immutable once voters
// exist.
type Engine struct {
	serverKey []byte
}

// NewEngine creates a new commitment Engine with the given server-side key.
func NewEngine(serverKey []byte) (*Engine, error) {
	if len(serverKey) == 0 {
		return nil, fmt.Errorf("empty server key")
	}
	return &Engine{serverKey: serverKey}, nil
}

// DeriveSecret returns the voter secret for a user reference. The derivation
// is a keyed HMAC-SHA256 reduced into the BN254 scalar field: deterministic,
// one-way, and infeasible to brute force across the user-reference domain
// without the server key.
func (e *Engine) DeriveSecret(userRef string) *big.Int {
	mac := hmac.New(sha256.New, e.serverKey)
	mac.Write([]byte(userRef))
	return util.BigToFF(new(big.Int).SetBytes(mac.Sum(nil)))
}

// CommitmentOf returns the public commitment for a secret:
// poseidon(secret). Safe to publish; registered on the ledger's voter
// registry at approval time.
func CommitmentOf(secret *big.Int) (*big.Int, error) {
	c, err := poseidon.Hash([]*big.Int{util.BigToFF(secret)})
	if err != nil {
		return nil, fmt.Errorf("poseidon commitment: %w", err)
	}
	return c, nil
}

// NullifierOf returns the nullifier for a secret and a ledger election id:
// poseidon(secret, electionId). The ledger consumes nullifiers to reject a
// second vote from the same voter in the same election.
func NullifierOf(secret *big.Int, chainElectionID uint64) (*big.Int, error) {
	n, err := poseidon.Hash([]*big.Int{
		util.BigToFF(secret),
		new(big.Int).SetUint64(chainElectionID),
	})
	if err != nil {
		return nil, fmt.Errorf("poseidon nullifier: %w", err)
	}
	return n, nil
}
