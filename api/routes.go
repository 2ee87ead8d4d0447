package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"

	// VotersEndpoint is the endpoint for registering and listing voters
	VotersEndpoint = "/voters"
	// VoterURLParam is the URL parameter carrying a voter id
	VoterURLParam = "voterId"
	// VoterEndpoint is the endpoint to get a single voter
	VoterEndpoint = "/voters/{" + VoterURLParam + "}"
	// VoterApproveEndpoint approves a pending voter
	VoterApproveEndpoint = "/voters/{" + VoterURLParam + "}/approve"
	// VoterRejectEndpoint rejects a pending voter
	VoterRejectEndpoint = "/voters/{" + VoterURLParam + "}/reject"
	// VoterHistoryEndpoint returns the voter's voting history
	VoterHistoryEndpoint = "/voters/{" + VoterURLParam + "}/votes"

	// ElectionsEndpoint is the endpoint for creating and listing elections
	ElectionsEndpoint = "/elections"
	// ElectionURLParam is the URL parameter carrying an election id
	ElectionURLParam = "electionId"
	// ElectionEndpoint is the endpoint to get a single election
	ElectionEndpoint = "/elections/{" + ElectionURLParam + "}"
	// ElectionRegistrationEndpoint opens the registration phase
	ElectionRegistrationEndpoint = "/elections/{" + ElectionURLParam + "}/registration"
	// ElectionVotingEndpoint opens the voting phase
	ElectionVotingEndpoint = "/elections/{" + ElectionURLParam + "}/voting"
	// ElectionEndEndpoint closes the election
	ElectionEndEndpoint = "/elections/{" + ElectionURLParam + "}/end"
	// ElectionLedgerRetryEndpoint retries the ledger mirror of an election
	ElectionLedgerRetryEndpoint = "/elections/{" + ElectionURLParam + "}/ledger-retry"
	// ElectionEligibilityEndpoint adds a voter to the election roll
	ElectionEligibilityEndpoint = "/elections/{" + ElectionURLParam + "}/eligibility"
	// ElectionResultsEndpoint reads (GET) or publishes (POST) results
	ElectionResultsEndpoint = "/elections/{" + ElectionURLParam + "}/results"
	// ElectionStatsEndpoint returns participation statistics
	ElectionStatsEndpoint = "/elections/{" + ElectionURLParam + "}/stats"
	// ElectionVotesEndpoint casts (POST) or lists (GET) the election's votes
	ElectionVotesEndpoint = "/elections/{" + ElectionURLParam + "}/votes"

	// TxHashURLParam is the URL parameter carrying a vote transaction hash
	TxHashURLParam = "txHash"
	// VoteEndpoint is the endpoint to get a single vote record
	VoteEndpoint = "/votes/{" + TxHashURLParam + "}"
	// VoteVerifyEndpoint re-verifies an accepted vote
	VoteVerifyEndpoint = "/votes/{" + TxHashURLParam + "}/verify"
	// NullifierURLParam is the URL parameter carrying a nullifier
	NullifierURLParam = "nullifier"
	// VoteByNullifierEndpoint resolves a vote through the nullifier index
	VoteByNullifierEndpoint = "/votes/nullifier/{" + NullifierURLParam + "}"

	// VerificationKeyEndpoint serves the circuit verification key
	VerificationKeyEndpoint = "/proof/verification-key"
	// ProofVerifyEndpoint verifies a standalone proof
	ProofVerifyEndpoint = "/proof/verify"

	// AuditEndpoint lists audit entries
	AuditEndpoint = "/audit"
)
