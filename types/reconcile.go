package types

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationMarker records a vote the ledger accepted but local
// persistence failed to record. A background job replays the local side
// until the marker drains.
type ReconciliationMarker struct {
	ElectionID  uuid.UUID `json:"electionId" cbor:"1,keyasint"`
	VoterID     uuid.UUID `json:"voterId" cbor:"2,keyasint"`
	Nullifier   *BigInt   `json:"nullifier" cbor:"3,keyasint"`
	CandidateID int       `json:"candidateId" cbor:"4,keyasint"`
	TxHash      HexBytes  `json:"txHash" cbor:"5,keyasint"`
	CreatedAt   time.Time `json:"createdAt" cbor:"6,keyasint"`
	Attempts    int       `json:"attempts" cbor:"7,keyasint"`
}
