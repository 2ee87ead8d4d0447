package api

import (
	"encoding/json"
	"net/http"

	rapidsnark "github.com/iden3/go-rapidsnark/types"

	"github.com/vocdoni/zkvote-coordinator/types"
)

// castVote handles POST /elections/{electionId}/votes. The full pipeline
// runs server-side: proof generation, ledger submission and local
// bookkeeping. The response never echoes the voter id.
func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	req := CastVoteRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	record, err := a.votes.CastVote(r.Context(), electionID, req.VoterID, req.CandidateID, r.RemoteAddr)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, CastVoteResponse{
		ElectionID:  record.ElectionID,
		Nullifier:   record.Nullifier,
		TxHash:      record.TxHash,
		Timestamp:   record.Timestamp,
		CandidateID: record.CandidateID,
	})
}

// listVotes handles GET /elections/{electionId}/votes.
func (a *API) listVotes(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	records, err := a.votes.Votes(electionID)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, records)
}

// vote handles GET /votes/{txHash}.
func (a *API) vote(w http.ResponseWriter, r *http.Request) {
	txHash, ok := urlParamTxHash(w, r)
	if !ok {
		return
	}
	record, err := a.storage.VoteRecord(txHash)
	if err != nil {
		ErrVoteNotFound.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, record)
}

// verifyVote handles POST /votes/{txHash}/verify: the ledger transaction is
// re-checked and the stored proof re-verified.
func (a *API) verifyVote(w http.ResponseWriter, r *http.Request) {
	txHash, ok := urlParamTxHash(w, r)
	if !ok {
		return
	}
	result, err := a.votes.VerifyVote(r.Context(), txHash)
	if err != nil && result == nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, VerifyVoteResponse{
		TxHash:        result.Record.TxHash,
		ElectionID:    result.Record.ElectionID,
		ElectionTitle: result.ElectionTitle,
		Status:        result.Record.VerificationStatus,
	})
}

// voteByNullifier handles GET /votes/nullifier/{nullifier}.
func (a *API) voteByNullifier(w http.ResponseWriter, r *http.Request) {
	nullifier, ok := urlParamBigInt(w, r, NullifierURLParam)
	if !ok {
		return
	}
	record, err := a.votes.VoteByNullifier(nullifier)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, record)
}

// verificationKey handles GET /proof/verification-key. Clients can use it
// to verify proofs independently.
func (a *API) verificationKey(w http.ResponseWriter, _ *http.Request) {
	if a.prover == nil {
		ErrGenericInternalServerError.With("no proof engine configured").Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.prover.VerificationKey()); err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
	}
}

// verifyProof handles POST /proof/verify, checking a standalone proof
// against the circuit verification key.
func (a *API) verifyProof(w http.ResponseWriter, r *http.Request) {
	if a.prover == nil {
		ErrGenericInternalServerError.With("no proof engine configured").Write(w)
		return
	}
	req := VerifyProofRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.Proof == nil {
		ErrMalformedProof.With("missing proof").Write(w)
		return
	}
	err := a.prover.VerifyProof(&rapidsnark.ZKProof{
		Proof:      req.Proof,
		PubSignals: req.PubSignals,
	})
	httpWriteJSON(w, VerifyProofResponse{Valid: err == nil})
}

// listAudit handles GET /audit with optional action and actor filters.
func (a *API) listAudit(w http.ResponseWriter, r *http.Request) {
	offset, limit := queryPagination(r)
	action := types.AuditAction(r.URL.Query().Get("action"))
	actor := r.URL.Query().Get("actor")
	entries, err := a.storage.ListAudit(action, actor, offset, limit)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, ListResponse[*types.AuditEntry]{
		Items:  entries,
		Offset: offset,
		Limit:  limit,
	})
}
