// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package flow

import "github.com/oryen/oryen/internal/identity"

// Mode selects between the login and registration sequences.
type Mode int

// Modes.
const (
	ModeRegistration Mode = iota + 1
	ModeLogin
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRegistration:
		return "registration"
	case ModeLogin:
		return "login"
	default:
		return "unknown"
	}
}

// Transition reports what a call to Next or Previous did.
type Transition int

// Transitions.
const (
	// Advanced moved the cursor forward by one.
	Advanced Transition = iota + 1
	// Retreated moved the cursor back by one.
	Retreated
	// Stayed means the step ran a lookup or finalization that failed or
	// found a conflict. LastError explains why.
	Stayed
	// Invalid means the step predicate is false. Nothing changed.
	Invalid
	// Busy means a call is in flight. Nothing changed.
	Busy
	// Completed means the flow produced its Outcome.
	Completed
	// Abandoned means Previous was called on the first step.
	Abandoned
	// Discarded means a call resolved after the flow moved on and its
	// result was dropped.
	Discarded
	// Closed means the flow already ended. Nothing changed.
	Closed
)

// String returns the transition name used in logs and metric labels.
func (t Transition) String() string {
	switch t {
	case Advanced:
		return "advanced"
	case Retreated:
		return "retreated"
	case Stayed:
		return "stayed"
	case Invalid:
		return "invalid"
	case Busy:
		return "busy"
	case Completed:
		return "completed"
	case Abandoned:
		return "abandoned"
	case Discarded:
		return "discarded"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// OutcomeKind distinguishes a sign-in from a new registration.
type OutcomeKind int

// Outcome kinds.
const (
	AuthenticatedSession OutcomeKind = iota + 1
	RegisteredIdentity
)

// String returns the outcome kind name.
func (k OutcomeKind) String() string {
	switch k {
	case AuthenticatedSession:
		return "authenticated"
	case RegisteredIdentity:
		return "registered"
	default:
		return "unknown"
	}
}

// Outcome is the terminal value of a flow.
type Outcome struct {
	Kind    OutcomeKind
	Session identity.Session
	Actor   identity.ActorKind
	Email   string
}

// UserID is shorthand for Session.UserID.
func (o Outcome) UserID() string {
	return o.Session.UserID
}
