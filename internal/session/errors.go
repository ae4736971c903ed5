// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package session

import (
	"github.com/samber/oops"

	"github.com/oryen/oryen/internal/identity"
)

// MsgInvalidDocument is shown when the entered document fails validation.
const MsgInvalidDocument = "Enter a valid %s."

// ErrWrongRoute is returned when an action is not available on the current route.
func ErrWrongRoute(action string, route Route) error {
	return oops.Code("SESSION_WRONG_ROUTE").
		With("action", action).
		With("route", route.String()).
		Errorf("%s is not available on %s", action, route)
}

// ErrBusy is returned while a document lookup is in flight.
func ErrBusy() error {
	return oops.Code("SESSION_BUSY").Errorf("a lookup is already in flight")
}

// ErrNotStarted is returned by actions that need Start first.
func ErrNotStarted() error {
	return oops.Code("SESSION_NOT_STARTED").Errorf("controller has not been started")
}

// ErrClosed is returned after Close.
func ErrClosed() error {
	return oops.Code("SESSION_CLOSED").Errorf("controller is closed")
}

// ErrSignOutUnsupported is returned when the directory cannot sign out.
func ErrSignOutUnsupported() error {
	return oops.Code("SESSION_SIGNOUT_UNSUPPORTED").Errorf("identity directory does not support sign-out")
}

// ErrInvalidKind is returned by SelectKind for an unknown kind.
func ErrInvalidKind(kind identity.ActorKind) error {
	return oops.Code("SESSION_KIND_INVALID").With("kind", int(kind)).Errorf("unknown actor kind")
}
