// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package identity defines the contract between the authentication flow and
// the external identity provider.
//
// # Directory
//
// Directory is the only coupling to the provider. It answers existence
// questions (by document and by email), resolves the email linked to a
// document, signs in, creates accounts, stores the finalized profile and
// pushes session changes. Implementations live in the memory and postgres
// subpackages.
//
// # Errors
//
// Providers report failures by wrapping one of the sentinel errors
// (ErrNotFound, ErrInvalidCredentials, ErrEmailAlreadyInUse, ErrWeakPassword).
// Anything else is treated as a transport failure. Classify maps an error to
// its ErrorKind.
package identity
