package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vocdoni/zkvote-coordinator/election"
	"github.com/vocdoni/zkvote-coordinator/types"
)

// createElection handles POST /elections. The election is stored locally
// and mirrored to the ledger; a failed mirror leaves the election retriable
// through the ledger-retry endpoint.
func (a *API) createElection(w http.ResponseWriter, r *http.Request) {
	req := CreateElectionRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	e, err := a.elections.Create(r.Context(), &election.CreateParams{
		Title:        req.Title,
		Description:  req.Description,
		ElectionType: req.ElectionType,
		Candidates:   req.Candidates,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		if e == nil {
			serviceError(err).Write(w)
			return
		}
		// stored locally but the ledger mirror failed; 202 signals the
		// partial state, the record is returned so the caller can retry
		// the mirror through the ledger-retry endpoint
		httpWriteJSONStatus(w, http.StatusAccepted, e)
		return
	}
	httpWriteJSON(w, e)
}

// listElections handles GET /elections with optional state filter.
func (a *API) listElections(w http.ResponseWriter, r *http.Request) {
	offset, limit := queryPagination(r)
	state := types.ElectionState(r.URL.Query().Get("state"))
	elections, err := a.elections.List(state, offset, limit)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, ListResponse[*types.Election]{
		Items:  elections,
		Offset: offset,
		Limit:  limit,
	})
}

// election handles GET /elections/{electionId}.
func (a *API) election(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	e, err := a.elections.Election(electionID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			ErrElectionNotFound.Write(w)
			return
		}
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, e)
}

// startRegistration handles POST /elections/{electionId}/registration.
func (a *API) startRegistration(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	req := AdminActionRequest{}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	e, err := a.elections.StartRegistration(r.Context(), electionID, req.AdminRef)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, e)
}

// startVoting handles POST /elections/{electionId}/voting.
func (a *API) startVoting(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	req := AdminActionRequest{}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	e, err := a.elections.StartVoting(r.Context(), electionID, req.AdminRef)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, e)
}

// endElection handles POST /elections/{electionId}/end.
func (a *API) endElection(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	req := AdminActionRequest{}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	e, err := a.elections.End(r.Context(), electionID, req.AdminRef)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, e)
}

// retryLedgerCreate handles POST /elections/{electionId}/ledger-retry.
func (a *API) retryLedgerCreate(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	e, err := a.elections.RetryLedgerCreate(r.Context(), electionID)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, e)
}

// addEligibleVoter handles POST /elections/{electionId}/eligibility.
func (a *API) addEligibleVoter(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	req := EligibilityRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := a.elections.AddEligibleVoter(electionID, req.VoterID); err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// results handles GET /elections/{electionId}/results.
func (a *API) results(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	e, err := a.elections.Election(electionID)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	results, err := a.elections.Results(r.Context(), electionID)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, ResultsResponse{
		ElectionID: electionID,
		Published:  e.ResultsPublished,
		Results:    results,
	})
}

// publishResults handles POST /elections/{electionId}/results, retrying the
// tally freeze of an ended election.
func (a *API) publishResults(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	e, err := a.elections.PublishResults(r.Context(), electionID)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, ResultsResponse{
		ElectionID: electionID,
		Published:  e.ResultsPublished,
		Results:    e.Results,
	})
}

// electionStats handles GET /elections/{electionId}/stats.
func (a *API) electionStats(w http.ResponseWriter, r *http.Request) {
	electionID, ok := urlParamUUID(w, r, ElectionURLParam)
	if !ok {
		return
	}
	stats, err := a.elections.Stats(electionID)
	if err != nil {
		serviceError(err).Write(w)
		return
	}
	httpWriteJSON(w, stats)
}
