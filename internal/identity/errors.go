// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package identity

import "errors"

// Sentinel errors a Directory wraps to report a known failure.
var (
	// ErrNotFound is returned when no account is linked to a document.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned when sign-in is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailAlreadyInUse is returned by CreateAccount for a taken email.
	ErrEmailAlreadyInUse = errors.New("email already in use")

	// ErrWeakPassword is returned by CreateAccount when the provider's own
	// password policy rejects the password.
	ErrWeakPassword = errors.New("weak password")

	// ErrDocumentInUse is returned by PersistIdentity when the document is
	// already linked to a different account.
	ErrDocumentInUse = errors.New("document already in use")
)

// ErrorKind classifies failures surfaced to the user.
type ErrorKind int

// Error kinds.
const (
	// ValidationError is a local check failure. It never reaches the network.
	ValidationError ErrorKind = iota + 1
	// ConflictError means the document or email is already registered.
	ConflictError
	// NotFoundError means the document has no linked account.
	NotFoundError
	// InvalidCredentialsError means the login was rejected.
	InvalidCredentialsError
	// TransportError means the provider could not be reached or failed.
	TransportError
	// WeakPasswordError is the provider rejecting the password on creation.
	WeakPasswordError
	// EmailAlreadyInUseError is the provider rejecting the email on creation.
	EmailAlreadyInUseError
)

// String returns the kind name used in logs and metric labels.
func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation"
	case ConflictError:
		return "conflict"
	case NotFoundError:
		return "not_found"
	case InvalidCredentialsError:
		return "invalid_credentials"
	case TransportError:
		return "transport"
	case WeakPasswordError:
		return "weak_password"
	case EmailAlreadyInUseError:
		return "email_already_in_use"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by a Directory to its ErrorKind.
// Unrecognized errors, including context cancellation, are transport failures.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundError
	case errors.Is(err, ErrInvalidCredentials):
		return InvalidCredentialsError
	case errors.Is(err, ErrEmailAlreadyInUse):
		return EmailAlreadyInUseError
	case errors.Is(err, ErrWeakPassword):
		return WeakPasswordError
	case errors.Is(err, ErrDocumentInUse):
		return ConflictError
	default:
		return TransportError
	}
}
