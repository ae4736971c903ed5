// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package flow

import (
	"time"

	"github.com/oryen/oryen/internal/identity"
)

// Directory operations reported to an Observer.
const (
	OpDocumentExists  = "document_exists"
	OpEmailExists     = "email_exists"
	OpResolveEmail    = "resolve_email"
	OpSignIn          = "sign_in"
	OpCreateAccount   = "create_account"
	OpPersistIdentity = "persist_identity"
)

// ResultOK is the call result reported for a successful directory call.
const ResultOK = "ok"

// Observer receives flow events for metrics. Implementations must be safe
// for concurrent use and must not call back into the Machine.
type Observer interface {
	ObserveTransition(mode Mode, kind identity.ActorKind, step StepID, t Transition)
	ObserveCall(op, result string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveTransition(Mode, identity.ActorKind, StepID, Transition) {}
func (nopObserver) ObserveCall(string, string, time.Duration)                      {}

func callResult(err error) string {
	if err == nil {
		return ResultOK
	}
	return identity.Classify(err).String()
}
