package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Invalid      Kind = "invalid"
	NotFound     Kind = "not_found"
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	Unavailable  Kind = "unavailable"
	Upstream     Kind = "upstream"
	Internal     Kind = "internal"
)

type AppError struct {
	Kind      Kind
	PublicMsg string // safe to show to the caller
	Err       error  // internal cause, logged only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.PublicMsg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on Kind and PublicMsg so wrapped sentinels compare equal.
// ErrValidation matches every Invalid error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t == ErrValidation {
		return e.Kind == Invalid
	}
	return e.Kind == t.Kind && e.PublicMsg == t.PublicMsg
}

var (
	ErrInvalidRange       = &AppError{Kind: Invalid, PublicMsg: "check_out must be after check_in"}
	ErrValidation         = &AppError{Kind: Invalid, PublicMsg: "invalid request"}
	ErrUnauthorized       = &AppError{Kind: Unauthorized, PublicMsg: "authentication required"}
	ErrForbidden          = &AppError{Kind: Forbidden, PublicMsg: "not allowed"}
	ErrNotFound           = &AppError{Kind: NotFound, PublicMsg: "not found"}
	ErrBookingNotFound    = &AppError{Kind: NotFound, PublicMsg: "booking not found"}
	ErrRoomUnavailable    = &AppError{Kind: Unavailable, PublicMsg: "room is no longer available for the selected dates"}
	ErrGatewaySignature   = &AppError{Kind: Forbidden, PublicMsg: "callback signature mismatch"}
	ErrGatewayUnreachable = &AppError{Kind: Upstream, PublicMsg: "payment status unknown, please retry"}
	ErrGatewayRejected    = &AppError{Kind: Upstream, PublicMsg: "payment could not be initiated"}
	ErrPersistence        = &AppError{Kind: Internal, PublicMsg: "temporary server error, please retry"}
	ErrInvalidTransition  = &AppError{Kind: Invalid, PublicMsg: "booking cannot move to the requested state"}
)

// Validation returns an Invalid error carrying a caller-safe message.
func Validation(publicMsg string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg}
}

// With attaches an internal cause to a sentinel without changing how it
// matches under errors.Is.
func With(sentinel *AppError, err error) *AppError {
	return &AppError{Kind: sentinel.Kind, PublicMsg: sentinel.PublicMsg, Err: err}
}

// Persistence wraps a data-store failure as a retryable server error.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return With(ErrPersistence, err)
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid, Unavailable:
			return http.StatusBadRequest
		case Unauthorized:
			return http.StatusUnauthorized
		case Forbidden:
			return http.StatusForbidden
		case NotFound:
			return http.StatusNotFound
		case Upstream:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return "unexpected server error"
}

// Retryable reports whether the caller may safely repeat the request.
func Retryable(err error) bool {
	ae, ok := As(err)
	if !ok {
		return true
	}
	return ae.Kind == Internal || ae.Kind == Upstream
}
