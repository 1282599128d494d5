package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

func ErrInvalidAmount(detail string) *AppError {
	msg := "Invalid amount"
	if detail != "" {
		msg = fmt.Sprintf("Invalid amount: %s", detail)
	}
	return New("VAL_001", msg, http.StatusBadRequest)
}

func ErrCurrencyMismatch(want, got string) *AppError {
	return New("VAL_002",
		fmt.Sprintf("Currency mismatch: expected %s, got %s", want, got),
		http.StatusBadRequest)
}

// Validation returns a generic VAL_003 request validation error.
func Validation(message string) *AppError {
	return New("VAL_003", message, http.StatusBadRequest)
}

// ---- Wallet State & Funds (WLT) ----

// ErrInsufficientBalance carries the required and available amounts as
// 4-decimal strings so callers can render a precise message.
func ErrInsufficientBalance(required, available string) *AppError {
	return New("WLT_001",
		fmt.Sprintf("Insufficient balance: required %s, available %s", required, available),
		http.StatusPaymentRequired)
}

func ErrWalletNotFound() *AppError {
	return New("WLT_002", "Wallet not found", http.StatusNotFound)
}

func ErrWalletFrozen() *AppError {
	return New("WLT_003", "Wallet is frozen", http.StatusConflict)
}

func ErrWalletClosed() *AppError {
	return New("WLT_004", "Wallet is closed", http.StatusConflict)
}

func ErrWalletNotEmpty() *AppError {
	return New("WLT_005", "Wallet balance must be zero before closing", http.StatusConflict)
}

// ---- Workflow State (WFL) ----

func ErrInvalidState(detail string) *AppError {
	msg := "Operation not allowed in current state"
	if detail != "" {
		msg = fmt.Sprintf("Operation not allowed: %s", detail)
	}
	return New("WFL_001", msg, http.StatusConflict)
}

func ErrForbidden() *AppError {
	return New("WFL_002", "Not allowed to act on this resource", http.StatusForbidden)
}

func ErrDuplicateResolution() *AppError {
	return New("WFL_003", "Dispute has already been resolved", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("WFL_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Configuration & Resources (CFG) ----

func ErrConfigurationMissing(what string) *AppError {
	return New("CFG_001",
		fmt.Sprintf("Required configuration missing: %s", what),
		http.StatusServiceUnavailable)
}

func ErrAdminWalletMissing() *AppError {
	return New("CFG_002", "Admin wallet is not configured", http.StatusServiceUnavailable)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrRoleRequired(role string) *AppError {
	return New("AUTH_004", fmt.Sprintf("Requires %s role", role), http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
