// Package zkproof wraps the external circom prover and verifier. Proofs are
// produced with rapidsnark over a Groth16 circuit and verified against a
// snarkjs verification key, so artifacts generated by a standard circom
// toolchain work unmodified.
package zkproof

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/iden3/go-rapidsnark/prover"
	rapidsnark "github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/verifier"
	"github.com/iden3/go-rapidsnark/witness"
	"github.com/vocdoni/zkvote-coordinator/crypto/commitment"
	"github.com/vocdoni/zkvote-coordinator/types"
	"go.vocdoni.io/dvote/log"
)

// VoteInputs are the private and public inputs of the voting circuit.
type VoteInputs struct {
	VoterSecret     *big.Int
	CandidateID     int
	ChainElectionID uint64
	MaxCandidates   int
}

// VoteProof is the result of proving a vote: the Groth16 proof with its
// public signals, plus the commitment and nullifier the circuit computed
// (the ledger's verifier checks them against its on-chain registries).
type VoteProof struct {
	Proof      *rapidsnark.ZKProof
	Commitment *big.Int
	Nullifier  *big.Int
}

// Engine holds the circuit artifacts and the witness calculator. Artifact
// loading happens once at construction and is a deployment precondition:
// a missing artifact is fatal, not a runtime-recoverable condition.
type Engine struct {
	circuit         []byte
	provingKey      []byte
	verificationKey []byte
	calc            *witness.Circom2WitnessCalculator
}

// New creates a proof Engine from the circuit wasm, proving key and
// verification key files.
func New(circuitPath, provingKeyPath, verificationKeyPath string) (*Engine, error) {
	circuit, err := os.ReadFile(circuitPath)
	if err != nil {
		return nil, fmt.Errorf("circuit artifact not found at %s: %w", circuitPath, err)
	}
	provingKey, err := os.ReadFile(provingKeyPath)
	if err != nil {
		return nil, fmt.Errorf("proving key not found at %s: %w", provingKeyPath, err)
	}
	verificationKey, err := os.ReadFile(verificationKeyPath)
	if err != nil {
		return nil, fmt.Errorf("verification key not found at %s: %w", verificationKeyPath, err)
	}
	calc, err := witness.NewCircom2WitnessCalculator(circuit, true)
	if err != nil {
		return nil, fmt.Errorf("failed to instance witness calculator: %w", err)
	}
	log.Infow("zkproof engine initialized",
		"circuit", circuitPath, "provingKey", provingKeyPath, "verificationKey", verificationKeyPath)
	return &Engine{
		circuit:         circuit,
		provingKey:      provingKey,
		verificationKey: verificationKey,
		calc:            calc,
	}, nil
}

// Prove generates a Groth16 proof for the given vote inputs. The commitment
// and nullifier are recomputed here with the same poseidon primitive the
// circuit uses; any mismatch with the circuit would make the proof fail
// verification, never silently succeed.
func (e *Engine) Prove(inputs *VoteInputs) (*VoteProof, error) {
	voterCommitment, err := commitment.CommitmentOf(inputs.VoterSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProofGeneration, err)
	}
	nullifier, err := commitment.NullifierOf(inputs.VoterSecret, inputs.ChainElectionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProofGeneration, err)
	}
	// circom input map, all scalars as decimal strings
	circuitInputs := map[string]any{
		"voterSecret":     inputs.VoterSecret.String(),
		"candidateId":     fmt.Sprintf("%d", inputs.CandidateID),
		"electionId":      fmt.Sprintf("%d", inputs.ChainElectionID),
		"voterCommitment": voterCommitment.String(),
		"nullifier":       nullifier.String(),
		"maxCandidates":   fmt.Sprintf("%d", inputs.MaxCandidates),
	}
	rawInputs, err := json.Marshal(circuitInputs)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal inputs: %v", types.ErrProofGeneration, err)
	}
	parsedInputs, err := witness.ParseInputs(rawInputs)
	if err != nil {
		return nil, fmt.Errorf("%w: parse inputs: %v", types.ErrProofGeneration, err)
	}
	wtns, err := e.calc.CalculateWTNSBin(parsedInputs, true)
	if err != nil {
		return nil, fmt.Errorf("%w: calculate witness: %v", types.ErrProofGeneration, err)
	}
	proofJSON, pubSignalsJSON, err := prover.Groth16ProverRaw(e.provingKey, wtns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProofGeneration, err)
	}
	proofData := &rapidsnark.ProofData{}
	if err := json.Unmarshal([]byte(proofJSON), proofData); err != nil {
		return nil, fmt.Errorf("%w: decode proof: %v", types.ErrProofGeneration, err)
	}
	var pubSignals []string
	if err := json.Unmarshal([]byte(pubSignalsJSON), &pubSignals); err != nil {
		return nil, fmt.Errorf("%w: decode public signals: %v", types.ErrProofGeneration, err)
	}
	return &VoteProof{
		Proof: &rapidsnark.ZKProof{
			Proof:      proofData,
			PubSignals: pubSignals,
		},
		Commitment: voterCommitment,
		Nullifier:  nullifier,
	}, nil
}

// VerifyProof verifies a Groth16 proof against the engine's verification key.
// It returns ErrProofVerification both on verifier errors and on a negative
// verification result.
func (e *Engine) VerifyProof(proof *rapidsnark.ZKProof) error {
	if err := ValidateStructure(proof); err != nil {
		return err
	}
	if err := verifier.VerifyGroth16(*proof, e.verificationKey); err != nil {
		return fmt.Errorf("%w: %v", types.ErrProofVerification, err)
	}
	return nil
}

// VerificationKey returns the raw snarkjs verification key, for the public
// standalone-verification surface.
func (e *Engine) VerificationKey() []byte {
	return e.verificationKey
}

// ValidateStructure checks that a proof carries the three expected
// curve-point groupings in the expected shapes. Malformed proofs are
// rejected here, before spending verifier or ledger time on them.
func ValidateStructure(proof *rapidsnark.ZKProof) error {
	if proof == nil || proof.Proof == nil {
		return fmt.Errorf("%w: missing proof data", types.ErrMalformedProof)
	}
	p := proof.Proof
	if len(p.A) != 3 || len(p.B) != 3 || len(p.C) != 3 {
		return fmt.Errorf("%w: expected 3 elements in each proof group, got a=%d b=%d c=%d",
			types.ErrMalformedProof, len(p.A), len(p.B), len(p.C))
	}
	for i, pair := range p.B {
		if len(pair) != 2 {
			return fmt.Errorf("%w: pi_b[%d] must hold a coordinate pair", types.ErrMalformedProof, i)
		}
	}
	return nil
}
