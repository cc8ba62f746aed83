package api

import (
	"encoding/json"
	"net/http"

	"github.com/fusionbridge/fusion-bridge-core/internal/sync"
)

// Common error codes returned in the error envelope.
const (
	errCodeBadRequest   = "bad_request"
	errCodeNotFound     = "not_found"
	errCodeUnauthorized = "unauthorised"
	errCodeForbidden    = "forbidden"
	errCodeConflict     = "conflict"
	errCodeValidation   = "validation_error"
	errCodeInternal     = "internal_error"
)

// envelope is the uniform response shape: {success, data?, error?},
// with a pagination block on list responses.
type envelope struct {
	Success    bool           `json:"success"`
	Data       any            `json:"data,omitempty"`
	Errors     any            `json:"errors,omitempty"`
	Pagination *paginationOut `json:"pagination,omitempty"`
	Error      *apiError      `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type paginationOut struct {
	ItemsPerPage int  `json:"itemsPerPage"`
	CurrentPage  int  `json:"currentPage"`
	HasNextPage  bool `json:"hasNextPage"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// respondList writes a success envelope with pagination metadata.
func respondList(w http.ResponseWriter, data any, itemsPerPage, currentPage int, hasNextPage bool) {
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Pagination: &paginationOut{
			ItemsPerPage: itemsPerPage,
			CurrentPage:  currentPage,
			HasNextPage:  hasNextPage,
		},
	})
}

// respondSyncResult reports a sweep that succeeded overall while some
// connectors failed: success stays true, per-connector errors ride
// alongside. A clean sweep omits the errors key entirely; a nil slice in
// the any-typed field would serialise as "errors":null.
func respondSyncResult(w http.ResponseWriter, data any, failures []sync.SyncFailure) {
	env := envelope{Success: true, Data: data}
	if len(failures) > 0 {
		env.Errors = failures
	}
	writeJSON(w, http.StatusOK, env)
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondError(w, http.StatusBadRequest, errCodeBadRequest, message)
}

func respondNotFound(w http.ResponseWriter, message string) {
	respondError(w, http.StatusNotFound, errCodeNotFound, message)
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondError(w, http.StatusUnauthorized, errCodeUnauthorized, message)
}

func respondForbidden(w http.ResponseWriter, message string) {
	respondError(w, http.StatusForbidden, errCodeForbidden, message)
}

func respondConflict(w http.ResponseWriter, message string) {
	respondError(w, http.StatusConflict, errCodeConflict, message)
}

func respondValidationError(w http.ResponseWriter, message string) {
	respondError(w, http.StatusUnprocessableEntity, errCodeValidation, message)
}

func respondInternalError(w http.ResponseWriter, message string) {
	respondError(w, http.StatusInternalServerError, errCodeInternal, message)
}
