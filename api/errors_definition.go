//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400 or 404 (or even 204), whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 4010, 4011 and 4013 exist, 4012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status,
// for example the fact that some 400XX error returns HTTP Status 404 Not Found is just a coincidence
var (
	ErrResourceNotFound    = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody       = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedID         = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed identifier")}
	ErrVoterNotFound       = Error{Code: 40004, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("voter not found")}
	ErrElectionNotFound    = Error{Code: 40005, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("election not found")}
	ErrVoterAlreadyExists  = Error{Code: 40006, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already registered")}
	ErrInvalidState        = Error{Code: 40007, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("operation not allowed in current state")}
	ErrVoterNotEligible    = Error{Code: 40008, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("voter not eligible")}
	ErrAlreadyVoted        = Error{Code: 40009, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("vote already cast for this election")}
	ErrMalformedProof      = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed proof")}
	ErrElectionNotOnLedger = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("election not mirrored to the ledger")}
	ErrVoteNotFound        = Error{Code: 40012, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("vote not found")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrLedgerWriteFailed          = Error{Code: 50003, HTTPstatus: http.StatusBadGateway, Err: fmt.Errorf("ledger write failed")}
	ErrProofGenerationFailed      = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("proof generation failed")}
	ErrProofVerificationFailed    = Error{Code: 50005, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("proof verification failed")}
)
