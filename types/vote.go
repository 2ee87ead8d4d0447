package types

import (
	"time"

	"github.com/google/uuid"
	rapidsnark "github.com/iden3/go-rapidsnark/types"
)

// VerificationStatus is the verification state of a recorded vote.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusFailed   VerificationStatus = "failed"
)

// VoteRecord is an append-only fact recording a successful vote submission.
// It is created only after the ledger has accepted the vote; a failed attempt
// leaves no VoteRecord, only an audit entry. Never mutated except for
// verification-status refresh, never deleted.
type VoteRecord struct {
	ElectionID         uuid.UUID            `json:"electionId"         cbor:"0,keyasint"`
	VoterID            uuid.UUID            `json:"voterId"            cbor:"1,keyasint"`
	Nullifier          *BigInt              `json:"nullifier"          cbor:"2,keyasint"`
	CandidateID        int                  `json:"candidateId"        cbor:"3,keyasint"`
	Proof              *rapidsnark.ZKProof  `json:"zkProof,omitempty"  cbor:"4,keyasint,omitempty"`
	TxHash             HexBytes             `json:"transactionHash"    cbor:"5,keyasint"`
	Timestamp          time.Time            `json:"timestamp"          cbor:"6,keyasint"`
	VerificationStatus VerificationStatus   `json:"verificationStatus" cbor:"7,keyasint"`
	SourceAddress      string               `json:"ipAddress,omitempty" cbor:"8,keyasint,omitempty"`
}
