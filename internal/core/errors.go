// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrTokenInvalid = errors.New("token invalid")
)

// Economy error kinds. Callers translate these into user-facing messages;
// none of them carry internal detail.
var (
	ErrInsufficient    = errors.New("insufficient balance")
	ErrUnavailable     = errors.New("product unavailable")
	ErrClosed          = errors.New("purchases closed")
	ErrEconomyDisabled = errors.New("economy disabled")
	ErrCapReached      = errors.New("earning cap reached")
	ErrCooldown        = errors.New("cooldown active")
	ErrBusy            = errors.New("resource busy")
	ErrChatUnavailable = errors.New("chat surface unavailable")
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Err:        err,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, ErrUnauthorized)
}

func ForbiddenError(message string) *AppError {
	return NewAppError("FORBIDDEN", message, http.StatusForbidden, ErrForbidden)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		"NOT_FOUND",
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
		ErrNotFound,
	)
}

func DuplicateError(resource string) *AppError {
	return NewAppError(
		"DUPLICATE",
		fmt.Sprintf("%s already exists", resource),
		http.StatusConflict,
		ErrDuplicateKey,
	)
}

func TokenExpiredError() *AppError {
	return NewAppError("TOKEN_EXPIRED", "token has expired", http.StatusUnauthorized, ErrTokenExpired)
}

func TokenRevokedError() *AppError {
	return NewAppError("TOKEN_REVOKED", "token has been revoked", http.StatusUnauthorized, ErrTokenRevoked)
}

func TokenInvalidError() *AppError {
	return NewAppError("TOKEN_INVALID", "token is invalid", http.StatusUnauthorized, ErrTokenInvalid)
}

// EconomyError maps an economy error kind to its client-facing AppError.
// The second return is false for errors that are not economy kinds.
func EconomyError(err error) (*AppError, bool) {
	switch {
	case errors.Is(err, ErrInsufficient):
		return NewAppError("INSUFFICIENT_BALANCE", "not enough points", http.StatusUnprocessableEntity, err), true
	case errors.Is(err, ErrUnavailable):
		return NewAppError("UNAVAILABLE", "product is out of stock or no longer available", http.StatusConflict, err), true
	case errors.Is(err, ErrClosed):
		return NewAppError("PURCHASES_CLOSED", "purchases are currently closed", http.StatusServiceUnavailable, err), true
	case errors.Is(err, ErrEconomyDisabled):
		return NewAppError("ECONOMY_DISABLED", "the economy is currently disabled", http.StatusConflict, err), true
	case errors.Is(err, ErrCapReached):
		return NewAppError("CAP_REACHED", "earning limit reached", http.StatusConflict, err), true
	case errors.Is(err, ErrCooldown):
		return NewAppError("COOLDOWN", "please wait before trying again", http.StatusTooManyRequests, err), true
	case errors.Is(err, ErrBusy):
		return NewAppError("BUSY", "please try again in a moment", http.StatusServiceUnavailable, err), true
	case errors.Is(err, ErrChatUnavailable):
		return NewAppError("CHAT_UNAVAILABLE", "chat integration is not configured", http.StatusServiceUnavailable, err), true
	}
	return nil, false
}
