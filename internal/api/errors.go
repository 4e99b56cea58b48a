package api

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vault-router/internal/errors"
	"github.com/vault-router/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondServiceError maps a categorized error onto the wire. Anything the
// error package cannot categorize becomes an opaque 500.
func respondServiceError(w http.ResponseWriter, err error) {
	if catErr := errors.Categorize(err); catErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(catErr.StatusCode)
		json.NewEncoder(w).Encode(ErrorResponse{Error: *catErr.ToServiceError()})
		return
	}
	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
}

// parseAddress reads and validates a hex address from the URL or body
func parseAddress(value string) (common.Address, bool) {
	if !common.IsHexAddress(value) {
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}

// parseAmount parses a base-10 token amount string
func parseAmount(value string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false
	}
	return amount, true
}

// callerAddress extracts the authenticated caller from the request. Requests
// without a valid X-Caller-Address header are rejected before reaching the
// vault guards.
func callerAddress(r *http.Request) (common.Address, bool) {
	raw := r.Header.Get("X-Caller-Address")
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
