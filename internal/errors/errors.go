// Package errors provides the categorized error taxonomy for the vault
// router. Every guard that can trip an operation has its own constructor so
// callers and tests can assert on the specific condition.
package errors

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vault-router/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryAuthorization represents wrong-caller-role errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryValidation represents invalid-input errors (zero amounts, zero addresses, bad arrays)
	CategoryValidation ErrorCategory = "validation"
	// CategoryState represents state machine guard errors (not allowed, cooldown, duplicates)
	CategoryState ErrorCategory = "state"
	// CategoryInsufficientFunds represents no-balance-to-act-on errors
	CategoryInsufficientFunds ErrorCategory = "insufficient_funds"
	// CategoryAdapter represents opaque failures bubbled from external collaborators
	CategoryAdapter ErrorCategory = "adapter"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryNotFound represents missing-resource errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategorySystem represents unexpected internal errors
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Is reports whether target carries the same error code. This lets tests
// match guards with errors.Is against a prototype error.
func (e *CategorizedError) Is(target error) bool {
	if other, ok := target.(*CategorizedError); ok {
		return e.Code == other.Code
	}
	return false
}

// Authorization errors

// NewNotOwnerError creates an error for a non-owner calling an owner-only operation
func NewNotOwnerError(caller common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "NOT_OWNER",
		Message:    "caller is not the account owner",
		Details:    map[string]interface{}{"caller": caller.Hex()},
	}
}

// NewNotAdminError creates an error for a non-admin calling an admin-only operation
func NewNotAdminError(caller common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "NOT_ADMIN",
		Message:    "caller is not the account admin",
		Details:    map[string]interface{}{"caller": caller.Hex()},
	}
}

// NewNotPendingRecipientError creates an error for accepting a role transfer
// from an address other than the proposed recipient
func NewNotPendingRecipientError(role types.Role, caller common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "NOT_PENDING_RECIPIENT",
		Message:    fmt.Sprintf("caller is not the pending %s", role),
		Details:    map[string]interface{}{"role": string(role), "caller": caller.Hex()},
	}
}

// Validation errors

// NewZeroAmountError creates an error for a zero or missing amount
func NewZeroAmountError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "ZERO_AMOUNT",
		Message:    "amount must be greater than zero",
	}
}

// NewZeroAddressError creates an error for the zero address in a required slot
func NewZeroAddressError(field string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "ZERO_ADDRESS",
		Message:    fmt.Sprintf("%s must not be the zero address", field),
		Details:    map[string]interface{}{"field": field},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details:    map[string]interface{}{"parameter": param, "reason": reason},
	}
}

// NewArrayMismatchError creates an error for empty or unequal-length config arrays
func NewArrayMismatchError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "ARRAY_MISMATCH",
		Message:    reason,
	}
}

// NewFeeTooHighError creates an error for a fee setting above the maximum
func NewFeeTooHighError(field string, bps, maxBps uint32) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "FEE_TOO_HIGH",
		Message:    fmt.Sprintf("%s of %d bps exceeds maximum %d bps", field, bps, maxBps),
		Details:    map[string]interface{}{"field": field, "bps": bps, "maxBps": maxBps},
	}
}

// NewBatchTooLargeError creates an error for a claim batch above the size cap
func NewBatchTooLargeError(size, max int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "BATCH_TOO_LARGE",
		Message:    fmt.Sprintf("claim batch of %d entries exceeds maximum %d", size, max),
		Details:    map[string]interface{}{"size": size, "max": max},
	}
}

// NewDuplicateTokenError creates an error for a repeated token in one claim batch
func NewDuplicateTokenError(token common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "DUPLICATE_TOKEN",
		Message:    fmt.Sprintf("token %s appears more than once in claim batch", token.Hex()),
		Details:    map[string]interface{}{"token": token.Hex()},
	}
}

// State errors

// NewAssetNotAllowedError creates an error for an asset outside the whitelist
func NewAssetNotAllowedError(asset common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "ASSET_NOT_ALLOWED",
		Message:    fmt.Sprintf("asset %s is not allowed", asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex()},
	}
}

// NewAssetAlreadyExistsError creates an error for whitelisting an asset twice
func NewAssetAlreadyExistsError(asset common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "ASSET_ALREADY_EXISTS",
		Message:    fmt.Sprintf("asset %s is already allowed", asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex()},
	}
}

// NewVaultNotWhitelistedError creates an error for a yield source outside the global whitelist
func NewVaultNotWhitelistedError(source common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "VAULT_NOT_WHITELISTED",
		Message:    fmt.Sprintf("yield source %s is not whitelisted", source.Hex()),
		Details:    map[string]interface{}{"source": source.Hex()},
	}
}

// NewVaultAlreadyExistsError creates an error for whitelisting a yield source twice
func NewVaultAlreadyExistsError(source common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "VAULT_ALREADY_EXISTS",
		Message:    fmt.Sprintf("yield source %s is already whitelisted", source.Hex()),
		Details:    map[string]interface{}{"source": source.Hex()},
	}
}

// NewAssetMismatchError creates an error for a yield source whose underlying
// asset differs from the asset being configured
func NewAssetMismatchError(asset, source, underlying common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "ASSET_MISMATCH",
		Message:    fmt.Sprintf("yield source %s holds %s, not %s", source.Hex(), underlying.Hex(), asset.Hex()),
		Details: map[string]interface{}{
			"asset":      asset.Hex(),
			"source":     source.Hex(),
			"underlying": underlying.Hex(),
		},
	}
}

// NewHasDepositsError creates an error for removing an asset that still has deposits
func NewHasDepositsError(asset common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "HAS_DEPOSITS",
		Message:    fmt.Sprintf("asset %s has deposits and cannot be removed", asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex()},
	}
}

// NewVaultNotAvailableError creates an error for a yield source not in the asset's available set
func NewVaultNotAvailableError(asset, source common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "VAULT_NOT_AVAILABLE",
		Message:    fmt.Sprintf("yield source %s is not available for asset %s", source.Hex(), asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex(), "source": source.Hex()},
	}
}

// NewCannotRemoveActiveError creates an error for removing an asset's active yield source
func NewCannotRemoveActiveError(asset, source common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "CANNOT_REMOVE_ACTIVE",
		Message:    fmt.Sprintf("yield source %s is the active source for asset %s", source.Hex(), asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex(), "source": source.Hex()},
	}
}

// NewVaultInUseError creates an error for removing a yield source that is
// still some asset's active source
func NewVaultInUseError(source common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "VAULT_IN_USE",
		Message:    fmt.Sprintf("yield source %s is still an active source", source.Hex()),
		Details:    map[string]interface{}{"source": source.Hex()},
	}
}

// NewAlreadyInitializedError creates an error for a repeated initial deposit
func NewAlreadyInitializedError(asset common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "ALREADY_INITIALIZED",
		Message:    fmt.Sprintf("asset %s already has an initial deposit", asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex()},
	}
}

// NewNoDepositsError creates an error for operating on an uninitialized asset
func NewNoDepositsError(asset common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "NO_DEPOSITS",
		Message:    fmt.Sprintf("asset %s has no initial deposit", asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex()},
	}
}

// NewCooldownNotElapsedError creates an error for an operation inside its cooldown window
func NewCooldownNotElapsedError(what string, remaining string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "COOLDOWN_NOT_ELAPSED",
		Message:    fmt.Sprintf("%s cooldown not passed, %s remaining", what, remaining),
		Details:    map[string]interface{}{"operation": what, "remaining": remaining},
	}
}

// NewSameValueError creates an error for a no-op setter call
func NewSameValueError(field string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "SAME_VALUE",
		Message:    fmt.Sprintf("%s already has the requested value", field),
		Details:    map[string]interface{}{"field": field},
	}
}

// NewSameSourceError creates an error for rebalancing to the current active source
func NewSameSourceError(source common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "SAME_SOURCE",
		Message:    fmt.Sprintf("yield source %s is already the active source", source.Hex()),
		Details:    map[string]interface{}{"source": source.Hex()},
	}
}

// NewPausedError creates an error for a value-moving operation while paused
func NewPausedError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "PAUSED",
		Message:    "account is paused",
	}
}

// NewNotPausedError creates an error for an emergency withdrawal while not paused
func NewNotPausedError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "NOT_PAUSED",
		Message:    "account is not paused",
	}
}

// NewReentrancyError creates an error for a nested call into a busy account
func NewReentrancyError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "REENTRANT_CALL",
		Message:    "account is busy with another operation",
	}
}

// NewNoPendingTransferError creates an error for accepting or cancelling an
// absent role transfer
func NewNoPendingTransferError(role types.Role) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "NO_PENDING_TRANSFER",
		Message:    fmt.Sprintf("no pending %s transfer", role),
		Details:    map[string]interface{}{"role": string(role)},
	}
}

// NewDeploymentExistsError creates an error for a duplicate (owner, salt) deployment
func NewDeploymentExistsError(owner common.Address, salt common.Hash) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       "DEPLOYMENT_EXISTS",
		Message:    fmt.Sprintf("vault for owner %s with salt %s already deployed", owner.Hex(), salt.Hex()),
		Details:    map[string]interface{}{"owner": owner.Hex(), "salt": salt.Hex()},
	}
}

// Insufficient funds errors

// NewNoFundsInSourceError creates an error for withdrawing from an empty yield source
func NewNoFundsInSourceError(asset, source common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInsufficientFunds,
		StatusCode: http.StatusConflict,
		Code:       "NO_FUNDS_IN_SOURCE",
		Message:    fmt.Sprintf("yield source %s holds no funds for asset %s", source.Hex(), asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex(), "source": source.Hex()},
	}
}

// NewNoFundsToRebalanceError creates an error for rebalancing a zero balance
func NewNoFundsToRebalanceError(asset common.Address) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInsufficientFunds,
		StatusCode: http.StatusConflict,
		Code:       "NO_FUNDS_TO_REBALANCE",
		Message:    fmt.Sprintf("no funds to rebalance for asset %s", asset.Hex()),
		Details:    map[string]interface{}{"asset": asset.Hex()},
	}
}

// NewInsufficientBalanceError creates an error for a transfer above the held balance
func NewInsufficientBalanceError(token common.Address, have, want *big.Int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryInsufficientFunds,
		StatusCode: http.StatusConflict,
		Code:       "INSUFFICIENT_BALANCE",
		Message:    fmt.Sprintf("token %s balance %s below required %s", token.Hex(), have, want),
		Details:    map[string]interface{}{"token": token.Hex(), "have": have.String(), "want": want.String()},
	}
}

// Adapter and infrastructure errors

// NewAdapterError wraps an opaque failure from an external collaborator
func NewAdapterError(op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAdapter,
		StatusCode: http.StatusBadGateway,
		Code:       "ADAPTER_ERROR",
		Message:    fmt.Sprintf("adapter failure during %s", op),
		Cause:      cause,
		Details:    map[string]interface{}{"operation": op},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details:    map[string]interface{}{"operation": operation},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details:    map[string]interface{}{"operation": operation},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details:    map[string]interface{}{"resource": resource, "id": id},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details:    map[string]interface{}{"retryAfter": retryAfter},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	// If already categorized, return as-is
	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	// If it's a ServiceError, wrap it as a conflict-level state error
	if svcErr, ok := err.(*types.ServiceError); ok {
		return &CategorizedError{
			Category:   CategoryState,
			StatusCode: http.StatusConflict,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	// Default to internal error
	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable. Guard failures never are:
// the caller decides whether to resubmit after conditions change.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryAdapter, CategoryDatabase, CategoryCache:
		return true
	default:
		return false
	}
}

// IsUserError determines if an error is a caller error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
