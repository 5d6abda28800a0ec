package txn

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a transaction did not apply.
type ErrorKind string

const (
	// ErrorAuthorization: the submitting actor is not allowed to run this
	// transaction.
	ErrorAuthorization ErrorKind = "AUTHORIZATION"
	// ErrorValidation: a precondition on the request or the read records
	// failed (bad amount, insufficient balance, cooldown, threshold,
	// mismatched references, double settlement).
	ErrorValidation ErrorKind = "VALIDATION"
	// ErrorNotFound: a referenced record is absent.
	ErrorNotFound ErrorKind = "NOT_FOUND"
	// ErrorInfrastructure: the ledger port itself failed.
	ErrorInfrastructure ErrorKind = "INFRASTRUCTURE"
)

// Error is a typed transaction failure. It always carries a descriptive
// reason and, when it wraps a lower-level failure, preserves the cause.
type Error struct {
	Kind   ErrorKind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf extracts the error kind, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func authorization(cause error) *Error {
	return &Error{Kind: ErrorAuthorization, Reason: "bad transaction request", cause: cause}
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: ErrorValidation, Reason: fmt.Sprintf(format, args...)}
}

func validation(reason string, cause error) *Error {
	return &Error{Kind: ErrorValidation, Reason: reason, cause: cause}
}

func notFoundf(cause error, format string, args ...any) *Error {
	return &Error{Kind: ErrorNotFound, Reason: fmt.Sprintf(format, args...), cause: cause}
}

func infrastructure(cause error, reason string) *Error {
	return &Error{Kind: ErrorInfrastructure, Reason: reason, cause: cause}
}
