package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation error")
	// ErrQuotaExceeded means a reservation or adjustment would pass the user's ceiling.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrUnknownUser means no profile exists for the user id.
	ErrUnknownUser = errors.New("unknown user")
	// ErrStorage wraps object store failures that survived retries.
	ErrStorage = errors.New("storage error")
	// ErrConsistency means a state transition was not legal, e.g. releasing a reservation twice.
	ErrConsistency = errors.New("consistency error")

	ErrShareNotFound  = errors.New("share not found")
	ErrFileNotFound   = errors.New("file not found")
	ErrPlanNotFound   = errors.New("plan not found")
	ErrIntentNotFound = errors.New("upload intent not found")
	ErrNotOwner       = errors.New("not the share owner")
	ErrSlugTaken      = errors.New("custom slug already in use")
	// ErrUploadLimit means an upload sent more files or bytes than its signature declared.
	ErrUploadLimit = errors.New("upload exceeds the declared file count or size")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

// TokenReason says why a signature could not be redeemed.
type TokenReason string

const (
	TokenExpired     TokenReason = "expired"
	TokenAlreadyUsed TokenReason = "already_used"
	TokenNotFound    TokenReason = "not_found"
)

// TokenError is returned by signature redemption.
type TokenError struct {
	Reason TokenReason
}

func (e *TokenError) Error() string {
	return "signature " + string(e.Reason)
}

// Is matches another TokenError with the same reason; an empty reason matches any.
func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	if !ok {
		return false
	}

	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrToken            = &TokenError{}
	ErrTokenExpired     = &TokenError{Reason: TokenExpired}
	ErrTokenAlreadyUsed = &TokenError{Reason: TokenAlreadyUsed}
	ErrTokenNotFound    = &TokenError{Reason: TokenNotFound}
)

// DenyReason is the outcome of a denied access evaluation.
type DenyReason string

const (
	DenyNotFound         DenyReason = "not_found"
	DenyExpired          DenyReason = "expired"
	DenyLimitReached     DenyReason = "limit_reached"
	DenyPasswordRequired DenyReason = "password_required"
	DenyPasswordMismatch DenyReason = "password_mismatch"
	DenyForbidden        DenyReason = "forbidden"
)

// AccessDeniedError is returned when the access gate refuses a request.
type AccessDeniedError struct {
	Reason DenyReason
}

func (e *AccessDeniedError) Error() string {
	return "access denied: " + string(e.Reason)
}

// Is matches another AccessDeniedError with the same reason; an empty reason matches any.
func (e *AccessDeniedError) Is(target error) bool {
	t, ok := target.(*AccessDeniedError)
	if !ok {
		return false
	}

	return t.Reason == "" || t.Reason == e.Reason
}

var (
	ErrAccessDenied     = &AccessDeniedError{}
	ErrDeniedNotFound   = &AccessDeniedError{Reason: DenyNotFound}
	ErrDeniedExpired    = &AccessDeniedError{Reason: DenyExpired}
	ErrDeniedLimit      = &AccessDeniedError{Reason: DenyLimitReached}
	ErrPasswordRequired = &AccessDeniedError{Reason: DenyPasswordRequired}
	ErrPasswordMismatch = &AccessDeniedError{Reason: DenyPasswordMismatch}
	ErrDeniedForbidden  = &AccessDeniedError{Reason: DenyForbidden}
)

// StatusClientClosedRequest is reported when the client went away mid-request.
const StatusClientClosedRequest = 499

// Classify maps err to an HTTP status and a message safe to show the client.
// Storage and consistency failures are hidden behind a generic message.
func Classify(err error) (int, string) {
	var (
		tokenErr  *TokenError
		deniedErr *AccessDeniedError
	)

	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &tokenErr):
		if tokenErr.Reason == TokenExpired {
			return http.StatusGone, "signature expired"
		}
		// used and unknown signatures look the same from outside
		return http.StatusNotFound, "signature not found"
	case errors.As(err, &deniedErr):
		return deniedStatus(deniedErr.Reason), err.Error()
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUploadLimit):
		return http.StatusRequestEntityTooLarge, ErrUploadLimit.Error()
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusForbidden, ErrQuotaExceeded.Error()
	case errors.Is(err, ErrNotOwner):
		return http.StatusForbidden, ErrNotOwner.Error()
	case errors.Is(err, ErrSlugTaken):
		return http.StatusConflict, ErrSlugTaken.Error()
	case errors.Is(err, ErrUnknownUser):
		return http.StatusNotFound, ErrUnknownUser.Error()
	case errors.Is(err, ErrShareNotFound),
		errors.Is(err, ErrFileNotFound),
		errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrIntentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func deniedStatus(reason DenyReason) int {
	switch reason {
	case DenyNotFound:
		return http.StatusNotFound
	case DenyExpired:
		return http.StatusGone
	case DenyPasswordRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}
