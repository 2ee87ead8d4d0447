package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	rapidsnarktypes "github.com/iden3/go-rapidsnark/types"
	"go.vocdoni.io/dvote/log"
)

// groth16Proof is a snarkjs proof formatted for the on-ledger verifier: the
// curve point coordinates as big integers, with the G2 coordinate pairs of B
// swapped. snarkjs emits them in reverse order with respect to what the
// generated Solidity verifier expects.
type groth16Proof struct {
	A       [2]*big.Int
	B       [2][2]*big.Int
	C       [2]*big.Int
	Signals [3]*big.Int
}

// formatProof converts a snarkjs Groth16 proof into calldata form.
func formatProof(proof *rapidsnarktypes.ZKProof) (*groth16Proof, error) {
	if proof == nil || proof.Proof == nil {
		return nil, fmt.Errorf("nil proof")
	}
	if len(proof.Proof.A) < 2 || len(proof.Proof.B) < 2 ||
		len(proof.Proof.B[0]) < 2 || len(proof.Proof.B[1]) < 2 ||
		len(proof.Proof.C) < 2 {
		return nil, fmt.Errorf("truncated proof components")
	}
	if len(proof.PubSignals) != 3 {
		return nil, fmt.Errorf("expected 3 public signals, got %d", len(proof.PubSignals))
	}
	parse := func(s string) (*big.Int, error) {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid field element %q", s)
		}
		return v, nil
	}
	out := &groth16Proof{}
	var err error
	for i := 0; i < 2; i++ {
		if out.A[i], err = parse(proof.Proof.A[i]); err != nil {
			return nil, err
		}
		if out.C[i], err = parse(proof.Proof.C[i]); err != nil {
			return nil, err
		}
		// swap the pair elements of B
		if out.B[i][0], err = parse(proof.Proof.B[i][1]); err != nil {
			return nil, err
		}
		if out.B[i][1], err = parse(proof.Proof.B[i][0]); err != nil {
			return nil, err
		}
	}
	for i := 0; i < 3; i++ {
		if out.Signals[i], err = parse(proof.PubSignals[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CastVote submits the anonymous ballot to the VotingSystem contract, waits
// for it to be mined and returns the transaction hash. The contract verifies
// the proof, consumes the nullifier and counts the vote atomically, so a
// mined transaction means the vote is final.
func (c *Contracts) CastVote(ctx context.Context, chainElectionID uint64, candidateID int,
	proof *rapidsnarktypes.ZKProof,
) (*common.Hash, error) {
	p, err := formatProof(proof)
	if err != nil {
		return nil, fmt.Errorf("failed to format proof: %w", err)
	}
	txOpts, err := c.authTransactOpts()
	if err != nil {
		return nil, fmt.Errorf("failed to create transact options: %w", err)
	}
	tx, err := c.votingSystem.Transact(txOpts, "castVote",
		new(big.Int).SetUint64(chainElectionID),
		big.NewInt(int64(candidateID)),
		p.A, p.B, p.C, p.Signals,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to cast vote: %w", err)
	}
	hash := tx.Hash()
	if _, err := c.WaitTx(ctx, hash); err != nil {
		return nil, err
	}
	log.Infow("vote cast on ledger", "electionId", chainElectionID, "tx", hash.Hex())
	return &hash, nil
}

// GetResults returns the per-candidate tallies held by the VotingSystem
// contract, indexed by candidate id.
func (c *Contracts) GetResults(ctx context.Context, chainElectionID uint64, candidateCount int) (map[int]uint64, error) {
	var out []any
	if err := callView(ctx, c.votingSystem, &out, "getResults",
		new(big.Int).SetUint64(chainElectionID), big.NewInt(int64(candidateCount))); err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	counts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected results type")
	}
	results := make(map[int]uint64, len(counts))
	for i, count := range counts {
		results[i] = count.Uint64()
	}
	return results, nil
}

// VerifyProofOnLedger asks the Groth16Verifier contract to check the proof.
// This is a read-only call, it does not consume the nullifier.
func (c *Contracts) VerifyProofOnLedger(ctx context.Context, proof *rapidsnarktypes.ZKProof) (bool, error) {
	p, err := formatProof(proof)
	if err != nil {
		return false, fmt.Errorf("failed to format proof: %w", err)
	}
	var out []any
	if err := callView(ctx, c.verifier, &out, "verifyProof", p.A, p.B, p.C, p.Signals); err != nil {
		return false, fmt.Errorf("failed to verify proof on ledger: %w", err)
	}
	valid, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected verifier return type")
	}
	return valid, nil
}
