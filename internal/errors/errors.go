package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	AccountNotFound           ErrorCode = "account_not_found"
	AccountLocked             ErrorCode = "account_locked"
	AccountClosed             ErrorCode = "account_closed"
	InsufficientBalance       ErrorCode = "insufficient_balance"
	InvalidAmount             ErrorCode = "invalid_amount"
	AccountTransferRestricted ErrorCode = "account_transfer_restricted"
	AccountLockConflict       ErrorCode = "account_lock_conflict"
	InvalidInput              ErrorCode = "invalid_input"
	MissingBalanceQuery       ErrorCode = "missing_balance_query"
	DuplicateAccount          ErrorCode = "duplicate_account"
	InternalError             ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// HTTPStatus maps the error code to the status the boundary layer responds
// with.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound:
		return http.StatusNotFound
	case AccountLocked, AccountClosed, InsufficientBalance, AccountTransferRestricted, AccountLockConflict, DuplicateAccount:
		return http.StatusConflict
	case InvalidAmount, InvalidInput, MissingBalanceQuery:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code of err when it is an AppError, or InternalError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return InternalError
}

// Predefined errors for common cases
var (
	ErrAccountNotFound     = NewAppError(AccountNotFound, "account not found")
	ErrAccountLocked       = NewAppError(AccountLocked, "account is locked")
	ErrInvalidAmount       = NewAppError(InvalidAmount, "amount must be greater than zero")
	ErrInvalidInput        = NewAppError(InvalidInput, "invalid input")
	ErrMissingBalanceQuery = NewAppError(MissingBalanceQuery, "account number or iban must be present to perform the query")
)
