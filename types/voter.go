package types

import (
	"time"

	"github.com/google/uuid"
)

// VoterStatus is the lifecycle status of a voter identity.
type VoterStatus string

const (
	VoterStatusPending   VoterStatus = "pending"
	VoterStatusApproved  VoterStatus = "approved"
	VoterStatusRejected  VoterStatus = "rejected"
	VoterStatusSuspended VoterStatus = "suspended"
)

// VotedElection is one entry of the voter's local voted list. It is a cache
// of what the ledger already knows; the ledger's nullifier registry is the
// source of truth for whether a nullifier was consumed.
type VotedElection struct {
	ElectionID uuid.UUID `json:"electionId" cbor:"0,keyasint"`
	VotedAt    time.Time `json:"votedAt"    cbor:"1,keyasint"`
	Nullifier  *BigInt   `json:"nullifier"  cbor:"2,keyasint"`
	TxHash     HexBytes  `json:"txHash"     cbor:"3,keyasint"`
}

// VoterIdentity is the root aggregate for a registered voter. The secret is
// derived once from the user reference and a server-side key; it never leaves
// local storage and is stripped from any wire representation.
type VoterIdentity struct {
	ID                 uuid.UUID       `json:"id"                           cbor:"0,keyasint"`
	UserRef            string          `json:"userRef"                      cbor:"1,keyasint"`
	Secret             *BigInt         `json:"-"                            cbor:"2,keyasint"`
	Commitment         *BigInt         `json:"commitment"                   cbor:"3,keyasint"`
	Status             VoterStatus     `json:"status"                       cbor:"4,keyasint"`
	RegisteredOnChain  bool            `json:"isRegisteredOnChain"          cbor:"5,keyasint"`
	RegistrationTxHash HexBytes        `json:"registrationTxHash,omitempty" cbor:"6,keyasint,omitempty"`
	RegistrationDate   time.Time       `json:"registrationDate,omitempty"   cbor:"7,keyasint,omitempty"`
	EligibleElections  []uuid.UUID     `json:"eligibleElections"            cbor:"8,keyasint,omitempty"`
	VotedElections     []VotedElection `json:"votedElections"               cbor:"9,keyasint,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"                    cbor:"10,keyasint"`
}

// HasVotedIn reports whether the local voted list contains an entry for the
// given election. Advisory only; the authoritative check is the ledger's
// nullifier registry.
func (v *VoterIdentity) HasVotedIn(electionID uuid.UUID) bool {
	for _, vote := range v.VotedElections {
		if vote.ElectionID == electionID {
			return true
		}
	}
	return false
}

// IsEligibleFor reports whether the voter carries the election in its own
// eligible-elections mirror.
func (v *VoterIdentity) IsEligibleFor(electionID uuid.UUID) bool {
	for _, id := range v.EligibleElections {
		if id == electionID {
			return true
		}
	}
	return false
}
