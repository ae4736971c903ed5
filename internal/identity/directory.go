// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package identity

import "context"

// Session identifies an authenticated account on the provider.
type Session struct {
	// UserID is the stable account id. PersistIdentity upserts on it.
	UserID string
	// Token is an opaque bearer token. Providers without tokens leave it empty.
	Token string
}

// SessionChange is pushed to subscribers on login and logout.
type SessionChange struct {
	Authenticated bool
	UserID        string
}

// Subscription is the handle returned by SubscribeSessionChanges.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() { f() }

// Directory is the identity provider as seen by the flow engine.
// Every method may block on the network and must honor ctx.
type Directory interface {
	// DocumentExists reports whether an account is registered for the document.
	DocumentExists(ctx context.Context, kind ActorKind, digits string) (bool, error)

	// EmailExists reports whether the email is taken by any account.
	EmailExists(ctx context.Context, email string) (bool, error)

	// ResolveEmailForDocument returns the email linked to the document.
	// Returns an error wrapping ErrNotFound when there is none.
	ResolveEmailForDocument(ctx context.Context, kind ActorKind, digits string) (string, error)

	// SignIn authenticates with email and password.
	// Returns an error wrapping ErrInvalidCredentials on rejection.
	SignIn(ctx context.Context, email, password string) (Session, error)

	// CreateAccount registers credentials and signs the new account in.
	// Returns an error wrapping ErrEmailAlreadyInUse or ErrWeakPassword.
	CreateAccount(ctx context.Context, email, password string) (Session, error)

	// PersistIdentity stores the finalized record under the account's
	// userID, not the signed-in session, so a retry after a failed write
	// targets the account CreateAccount returned. Repeating it for the same
	// userID overwrites the stored record. Returns an error wrapping
	// ErrDocumentInUse when another account already holds the document.
	PersistIdentity(ctx context.Context, userID string, record Record) error

	// SubscribeSessionChanges registers fn for login/logout notifications.
	// fn is called once during the call with the current state.
	SubscribeSessionChanges(fn func(SessionChange)) (Subscription, error)
}

// SignOuter is implemented by directories that can end the current session.
type SignOuter interface {
	SignOut(ctx context.Context) error
}
