package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vocdoni/zkvote-coordinator/types"
)

// registerVoter handles POST /voters. It derives the commitment for the
// given user reference and stores a pending identity.
func (a *API) registerVoter(w http.ResponseWriter, r *http.Request) {
	req := RegisterVoterRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.UserRef == "" {
		ErrMalformedBody.With("missing userRef").Write(w)
		return
	}
	v, err := a.voters.Register(r.Context(), req.UserRef)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, v)
}

// listVoters handles GET /voters with optional status filter and
// pagination.
func (a *API) listVoters(w http.ResponseWriter, r *http.Request) {
	offset, limit := queryPagination(r)
	status := types.VoterStatus(r.URL.Query().Get("status"))
	voters, err := a.voters.List(status, offset, limit)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, ListResponse[*types.VoterIdentity]{
		Items:  voters,
		Offset: offset,
		Limit:  limit,
	})
}

// voter handles GET /voters/{voterId}.
func (a *API) voter(w http.ResponseWriter, r *http.Request) {
	voterID, ok := urlParamUUID(w, r, VoterURLParam)
	if !ok {
		return
	}
	v, err := a.voters.Voter(voterID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ErrVoterNotFound.Write(w)
			return
		}
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, v)
}

// approveVoter handles POST /voters/{voterId}/approve. Approval registers
// the commitment on the ledger.
func (a *API) approveVoter(w http.ResponseWriter, r *http.Request) {
	voterID, ok := urlParamUUID(w, r, VoterURLParam)
	if !ok {
		return
	}
	req := AdminActionRequest{}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	v, err := a.voters.Approve(r.Context(), voterID, req.AdminRef)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, v)
}

// rejectVoter handles POST /voters/{voterId}/reject.
func (a *API) rejectVoter(w http.ResponseWriter, r *http.Request) {
	voterID, ok := urlParamUUID(w, r, VoterURLParam)
	if !ok {
		return
	}
	req := AdminActionRequest{}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	if err := a.voters.Reject(r.Context(), voterID, req.AdminRef, req.Reason); err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// voterHistory handles GET /voters/{voterId}/votes.
func (a *API) voterHistory(w http.ResponseWriter, r *http.Request) {
	voterID, ok := urlParamUUID(w, r, VoterURLParam)
	if !ok {
		return
	}
	history, err := a.voters.History(voterID)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, history)
}
