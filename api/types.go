package api

import (
	"time"

	"github.com/google/uuid"
	rapidsnark "github.com/iden3/go-rapidsnark/types"

	"github.com/vocdoni/zkvote-coordinator/types"
)

// RegisterVoterRequest is the body for POST /voters.
type RegisterVoterRequest struct {
	UserRef string `json:"userRef"`
}

// CreateElectionRequest is the body for POST /elections.
type CreateElectionRequest struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	ElectionType types.ElectionType `json:"electionType"`
	Candidates   []types.Candidate  `json:"candidates"`
	StartTime    time.Time          `json:"startTime"`
	EndTime      time.Time          `json:"endTime"`
	CreatedBy    string             `json:"createdBy"`
}

// AdminActionRequest is the optional body for the admin approval, rejection
// and phase-transition endpoints. AdminRef identifies the operator for the
// audit trail; Reason is recorded on rejections.
type AdminActionRequest struct {
	AdminRef string `json:"adminRef,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// EligibilityRequest is the body for POST /elections/{electionId}/eligibility.
type EligibilityRequest struct {
	VoterID uuid.UUID `json:"voterId"`
}

// CastVoteRequest is the body for POST /elections/{electionId}/votes.
type CastVoteRequest struct {
	VoterID     uuid.UUID `json:"voterId"`
	CandidateID int       `json:"candidateId"`
}

// CastVoteResponse acknowledges an accepted vote. The voter association is
// deliberately not echoed back.
type CastVoteResponse struct {
	ElectionID  uuid.UUID      `json:"electionId"`
	Nullifier   *types.BigInt  `json:"nullifier"`
	TxHash      types.HexBytes `json:"transactionHash"`
	Timestamp   time.Time      `json:"timestamp"`
	CandidateID int            `json:"candidateId"`
}

// VerifyProofRequest is the body for POST /proof/verify.
type VerifyProofRequest struct {
	Proof      *rapidsnark.ProofData `json:"proof"`
	PubSignals []string              `json:"publicSignals"`
}

// VerifyProofResponse reports the outcome of a standalone proof check.
type VerifyProofResponse struct {
	Valid bool `json:"valid"`
}

// VerifyVoteResponse reports the outcome of re-verifying an accepted vote,
// with the context of the election it was cast in.
type VerifyVoteResponse struct {
	TxHash        types.HexBytes           `json:"transactionHash"`
	ElectionID    uuid.UUID                `json:"electionId"`
	ElectionTitle string                   `json:"electionTitle"`
	Status        types.VerificationStatus `json:"verificationStatus"`
}

// ResultsResponse carries an election tally.
type ResultsResponse struct {
	ElectionID uuid.UUID      `json:"electionId"`
	Published  bool           `json:"published"`
	Results    map[int]uint64 `json:"results"`
}

// ListResponse wraps paginated collections.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
