package types

import (
	"time"

	"github.com/google/uuid"
)

// ElectionState is the lifecycle state of an election. Transitions are
// strictly forward-only: created -> registration -> voting -> ended.
type ElectionState string

const (
	ElectionStateCreated      ElectionState = "created"
	ElectionStateRegistration ElectionState = "registration"
	ElectionStateVoting       ElectionState = "voting"
	ElectionStateEnded        ElectionState = "ended"
)

// ElectionType classifies an election for presentation purposes.
type ElectionType string

const (
	ElectionTypeGeneral        ElectionType = "general"
	ElectionTypeLocal          ElectionType = "local"
	ElectionTypeOrganizational ElectionType = "organizational"
	ElectionTypePoll           ElectionType = "poll"
)

// Candidate is one option of an election. IDs are dense and 0-based, assigned
// in submission order at creation time.
type Candidate struct {
	ID          int    `json:"id"                    cbor:"0,keyasint"`
	Name        string `json:"name"                  cbor:"1,keyasint"`
	Description string `json:"description,omitempty" cbor:"2,keyasint,omitempty"`
	Party       string `json:"party,omitempty"       cbor:"3,keyasint,omitempty"`
}

// Election is the root aggregate for a voting process. ChainElectionID is
// assigned exactly once, when the election is mirrored to the ledger; a nil
// value means the ledger write has not succeeded yet and the election must
// not be exposed for registration.
type Election struct {
	ID                    uuid.UUID      `json:"id"                          cbor:"0,keyasint"`
	Title                 string         `json:"title"                       cbor:"1,keyasint"`
	Description           string         `json:"description"                 cbor:"2,keyasint"`
	ElectionType          ElectionType   `json:"electionType"                cbor:"3,keyasint"`
	Candidates            []Candidate    `json:"candidates"                  cbor:"4,keyasint"`
	StartTime             time.Time      `json:"startTime"                   cbor:"5,keyasint"`
	EndTime               time.Time      `json:"endTime"                     cbor:"6,keyasint"`
	State                 ElectionState  `json:"state"                       cbor:"7,keyasint"`
	ChainElectionID       *uint64        `json:"chainElectionId,omitempty"   cbor:"8,keyasint,omitempty"`
	CreatedBy             string         `json:"createdBy"                   cbor:"9,keyasint"`
	EligibleVoters        []uuid.UUID    `json:"eligibleVoters"              cbor:"10,keyasint,omitempty"`
	TotalVotersRegistered int            `json:"totalVotersRegistered"       cbor:"11,keyasint"`
	TotalVotesCast        int            `json:"totalVotesCast"              cbor:"12,keyasint"`
	Results               map[int]uint64 `json:"results,omitempty"           cbor:"13,keyasint,omitempty"`
	ResultsPublished      bool           `json:"isResultsPublished"          cbor:"14,keyasint"`
	CreatedAt             time.Time      `json:"createdAt"                   cbor:"15,keyasint"`
}

// IsVoterEligible reports whether the voter is in the eligible set.
func (e *Election) IsVoterEligible(voterID uuid.UUID) bool {
	for _, id := range e.EligibleVoters {
		if id == voterID {
			return true
		}
	}
	return false
}

// OnLedger reports whether the election has been mirrored to the ledger.
func (e *Election) OnLedger() bool {
	return e.ChainElectionID != nil
}
