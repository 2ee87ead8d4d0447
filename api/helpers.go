package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/log"

	"github.com/vocdoni/zkvote-coordinator/types"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	httpWriteJSONStatus(w, http.StatusOK, data)
}

// httpWriteJSONStatus writes a JSON response with an explicit status code.
func httpWriteJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// decodeOptionalJSON decodes a JSON request body into dst, accepting an
// empty body as a zero value. It returns false (and writes the error
// response) only when a non-empty body fails to decode.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		ErrMalformedBody.WithErr(err).Write(w)
		return false
	}
	return true
}

// urlParamUUID parses a UUID URL parameter. It writes the error response
// itself and returns false when the parameter is missing or malformed.
func urlParamUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		ErrMalformedID.Withf("bad %s", param).Write(w)
		return uuid.Nil, false
	}
	return id, true
}

// urlParamTxHash parses the transaction hash URL parameter.
func urlParamTxHash(w http.ResponseWriter, r *http.Request) (types.HexBytes, bool) {
	txHash := types.HexBytes{}
	if err := txHash.SetString(chi.URLParam(r, TxHashURLParam)); err != nil || len(txHash) == 0 {
		ErrMalformedID.With("bad transaction hash").Write(w)
		return nil, false
	}
	return txHash, true
}

// urlParamBigInt parses a decimal big-integer URL parameter.
func urlParamBigInt(w http.ResponseWriter, r *http.Request, param string) (*types.BigInt, bool) {
	v, err := new(types.BigInt).SetString(chi.URLParam(r, param))
	if err != nil {
		ErrMalformedID.Withf("bad %s", param).Write(w)
		return nil, false
	}
	return v, true
}

// queryPagination reads the offset/limit query parameters, with a sane
// default page size.
func queryPagination(r *http.Request) (offset, limit int) {
	limit = 50
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return offset, limit
}

// serviceError maps the service-layer error kinds to API errors.
func serviceError(err error) Error {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return ErrResourceNotFound.WithErr(err)
	case errors.Is(err, types.ErrDuplicateRegistration):
		return ErrVoterAlreadyExists.WithErr(err)
	case errors.Is(err, types.ErrInvalidState):
		return ErrInvalidState.WithErr(err)
	case errors.Is(err, types.ErrNotEligible):
		return ErrVoterNotEligible.WithErr(err)
	case errors.Is(err, types.ErrAlreadyVoted):
		return ErrAlreadyVoted.WithErr(err)
	case errors.Is(err, types.ErrMalformedProof):
		return ErrMalformedProof.WithErr(err)
	case errors.Is(err, types.ErrNotOnLedger):
		return ErrElectionNotOnLedger.WithErr(err)
	case errors.Is(err, types.ErrLedgerWrite):
		return ErrLedgerWriteFailed.WithErr(err)
	case errors.Is(err, types.ErrProofGeneration):
		return ErrProofGenerationFailed.WithErr(err)
	case errors.Is(err, types.ErrProofVerification):
		return ErrProofVerificationFailed.WithErr(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
