// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package flow

import (
	"fmt"

	"github.com/oryen/oryen/internal/identity"
)

// User-facing messages.
const (
	MsgEmailConflict      = "This email is already in use. Sign in instead."
	MsgDocumentConflict   = "This CNPJ is already registered on the platform."
	MsgConnection         = "Connection error. Check your internet and try again."
	MsgPasswordMismatch   = "Passwords do not match."
	MsgInvalidCredentials = "Invalid document or password."
	MsgWeakPassword       = "The password is too weak. Use letters, numbers and symbols."
	MsgEmailInUse         = "This email is already registered to another account."
	MsgDocumentTaken      = "This document is already linked to another account."
	MsgAccountNotFound    = "No account found for this document."
	MsgFlowClosed         = "This flow has ended."
)

// Error is the failure a flow shows inline. It never propagates past the
// flow; the presentation layer renders Message.
type Error struct {
	Kind    identity.ErrorKind
	Message string
	Err     error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the directory error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind identity.ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// lookupError converts a failed existence check into an inline error.
// Every failure of a check is a connectivity problem to the user.
func lookupError(err error) *Error {
	return newError(identity.TransportError, MsgConnection, err)
}

// createError maps a CreateAccount or PersistIdentity failure.
func createError(err error) *Error {
	switch kind := identity.Classify(err); kind {
	case identity.EmailAlreadyInUseError:
		return newError(kind, MsgEmailInUse, err)
	case identity.WeakPasswordError:
		return newError(kind, MsgWeakPassword, err)
	case identity.ConflictError:
		return newError(kind, MsgDocumentTaken, err)
	default:
		return newError(identity.TransportError, MsgConnection, err)
	}
}

// loginError maps a ResolveEmailForDocument or SignIn failure. An unknown
// document and a wrong password read the same so the message does not
// reveal which one was wrong.
func loginError(err error) *Error {
	switch kind := identity.Classify(err); kind {
	case identity.NotFoundError, identity.InvalidCredentialsError:
		return newError(identity.InvalidCredentialsError, MsgInvalidCredentials, err)
	default:
		return newError(identity.TransportError, MsgConnection, err)
	}
}
