package types

import "errors"

// Error kinds shared across the coordinator services. Callers classify them
// with errors.Is; the API layer maps the first block to client errors and the
// second to server errors.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidState          = errors.New("invalid lifecycle state for operation")
	ErrNotEligible           = errors.New("voter not eligible")
	ErrAlreadyVoted          = errors.New("already voted in this election")
	ErrDuplicateRegistration = errors.New("voter already registered")
	ErrMalformedProof        = errors.New("malformed proof structure")
	ErrNotOnLedger           = errors.New("election not mirrored to the ledger")

	ErrLedgerWrite       = errors.New("ledger write failed")
	ErrProofGeneration   = errors.New("proof generation failed")
	ErrProofVerification = errors.New("proof verification failed")
	ErrDeploymentTimeout = errors.New("timeout waiting for contract deployment")
)
