// Package common defines shared constants, sentinel errors and small helpers
// used across the smartwaste server. Callers should use errors.Is to match
// these values.
package common

import "errors"

// Error kinds. Every named failure below unwraps to exactly one of them so
// callers can branch on the class of a failure without knowing each sentinel.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication error")
	ErrAuthorization  = errors.New("authorization error")
	ErrTransient      = errors.New("transient error")
)

// kindError is a named failure that belongs to one kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	// Repository-level errors.
	ErrorNotFound = newError(ErrNotFound, "not found")

	// Account / credential errors.
	ErrInvalidEmail       = newError(ErrValidation, "invalid email")
	ErrInvalidRole        = newError(ErrValidation, "invalid role")
	ErrInvalidPassword    = newError(ErrValidation, "invalid password")
	ErrInvalidName        = newError(ErrValidation, "name is required")
	ErrInvalidPhone       = newError(ErrValidation, "phone number is required")
	ErrProtectedAccount   = newError(ErrValidation, "admin accounts cannot be deleted")
	ErrDuplicateEmail     = newError(ErrConflict, "email already registered")
	ErrDuplicatePhone     = newError(ErrConflict, "phone number already registered")
	ErrUnknownAccount     = newError(ErrNotFound, "unknown account")
	ErrInvalidCredentials = newError(ErrAuthentication, "incorrect email or password")
	ErrEmailNotVerified   = newError(ErrAuthentication, "email not verified")

	// One-time code errors.
	ErrNoActiveCode         = newError(ErrNotFound, "no active code")
	ErrCodeExpired          = newError(ErrAuthentication, "code expired")
	ErrCodeMismatch         = newError(ErrAuthentication, "code mismatch")
	ErrCodeAlreadyConsumed  = newError(ErrAuthentication, "code already consumed")
	ErrEmailAlreadyVerified = newError(ErrConflict, "email already verified")

	// Token errors.
	ErrTokenMalformed    = newError(ErrAuthentication, "malformed token")
	ErrTokenBadSignature = newError(ErrAuthentication, "bad token signature")
	ErrTokenExpired      = newError(ErrAuthentication, "token expired")

	// Gate errors.
	ErrUnauthenticated = newError(ErrAuthentication, "unauthenticated")
	ErrForbidden       = newError(ErrAuthorization, "forbidden")

	// Device and ingestion errors.
	ErrInvalidDeviceID     = newError(ErrValidation, "device id is required")
	ErrDuplicateDevice     = newError(ErrConflict, "device already registered")
	ErrUnknownDevice       = newError(ErrNotFound, "unknown device")
	ErrDeviceUnauthorized  = newError(ErrAuthorization, "device unauthorized")
	ErrAccountNotFound     = newError(ErrNotFound, "account not found")
	ErrInvalidWeights      = newError(ErrValidation, "invalid weights")
	ErrWasteRecordNotFound = newError(ErrNotFound, "waste record not found")

	// Collaborator errors. Throttling is transient: the same request succeeds
	// once the window rolls over.
	ErrNotifierUnavailable = newError(ErrTransient, "notification channel unavailable")
	ErrRateLimited         = newError(ErrTransient, "too many requests")
)

var kinds = []error{ErrValidation, ErrNotFound, ErrConflict, ErrAuthentication, ErrAuthorization, ErrTransient}

// KindOf returns the kind sentinel err belongs to, or nil for errors outside
// the taxonomy (storage failures, programming errors).
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
