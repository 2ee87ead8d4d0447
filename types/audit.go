package types

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is the closed set of auditable actions. Every state-changing
// operation produces exactly one AuditEntry, success or failure.
type AuditAction string

const (
	AuditVoterRegister  AuditAction = "voter_register"
	AuditVoterApprove   AuditAction = "voter_approve"
	AuditVoterReject    AuditAction = "voter_reject"
	AuditElectionCreate AuditAction = "election_create"
	AuditElectionStart  AuditAction = "election_start"
	AuditElectionEnd    AuditAction = "election_end"
	AuditVoteCast       AuditAction = "vote_cast"
	AuditVoteVerify     AuditAction = "vote_verify"
	AuditResultsPublish AuditAction = "results_publish"
	AuditSecurityEvent  AuditAction = "security_event"
)

// AuditOutcome is the outcome recorded for an audited operation.
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeFailure AuditOutcome = "failure"
	AuditOutcomePending AuditOutcome = "pending"
)

// TargetKind names the aggregate an audit entry refers to.
type TargetKind string

const (
	TargetVoter    TargetKind = "voter"
	TargetElection TargetKind = "election"
	TargetVote     TargetKind = "vote"
)

// AuditEntry is an append-only record of a state-changing operation. It is
// the only durable trace of failed attempts.
type AuditEntry struct {
	ID           uuid.UUID         `json:"id"                     cbor:"0,keyasint"`
	Action       AuditAction       `json:"action"                 cbor:"1,keyasint"`
	ActorRef     string            `json:"actorRef"               cbor:"2,keyasint"`
	TargetID     string            `json:"targetId"               cbor:"3,keyasint"`
	TargetKind   TargetKind        `json:"targetKind"             cbor:"4,keyasint"`
	Description  string            `json:"description"            cbor:"5,keyasint"`
	Metadata     map[string]string `json:"metadata,omitempty"     cbor:"6,keyasint,omitempty"`
	Outcome      AuditOutcome      `json:"outcome"                cbor:"7,keyasint"`
	ErrorMessage string            `json:"errorMessage,omitempty" cbor:"8,keyasint,omitempty"`
	TxHash       HexBytes          `json:"txHash,omitempty"       cbor:"9,keyasint,omitempty"`
	Timestamp    time.Time         `json:"timestamp"              cbor:"10,keyasint"`
}
