package service

import (
	"fmt"

	rapidsnarktypes "github.com/iden3/go-rapidsnark/types"

	"github.com/vocdoni/zkvote-coordinator/crypto/commitment"
	"github.com/vocdoni/zkvote-coordinator/zkproof"
)

// MockProver implements the proof engine without circuit artifacts. It
// computes the real poseidon commitment and nullifier, so nullifier
// semantics behave exactly as with the full prover, and wraps them in a
// structurally valid placeholder proof.
type MockProver struct{}

// Prove computes the commitment and nullifier for the inputs and returns a
// placeholder Groth16 proof carrying them as public signals.
func (MockProver) Prove(inputs *zkproof.VoteInputs) (*zkproof.VoteProof, error) {
	voterCommitment, err := commitment.CommitmentOf(inputs.VoterSecret)
	if err != nil {
		return nil, err
	}
	nullifier, err := commitment.NullifierOf(inputs.VoterSecret, inputs.ChainElectionID)
	if err != nil {
		return nil, err
	}
	return &zkproof.VoteProof{
		Proof: &rapidsnarktypes.ZKProof{
			Proof: &rapidsnarktypes.ProofData{
				A: []string{"1", "2", "1"},
				B: [][]string{{"1", "2"}, {"3", "4"}, {"1", "0"}},
				C: []string{"3", "4", "1"},
			},
			PubSignals: []string{
				voterCommitment.String(),
				nullifier.String(),
				fmt.Sprintf("%d", inputs.MaxCandidates),
			},
		},
		Commitment: voterCommitment,
		Nullifier:  nullifier,
	}, nil
}

// VerifyProof checks the structural validity of the placeholder proof.
func (MockProver) VerifyProof(proof *rapidsnarktypes.ZKProof) error {
	return zkproof.ValidateStructure(proof)
}

// VerificationKey returns a placeholder verification key.
func (MockProver) VerificationKey() []byte {
	return []byte(`{"protocol":"groth16","curve":"bn128","nPublic":3}`)
}
