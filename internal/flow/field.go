// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package flow

import (
	"maps"
	"strings"

	"github.com/oryen/oryen/internal/document"
	"github.com/oryen/oryen/internal/identity"
)

// Field names a value collected by a flow.
type Field string

// Fields collected across the individual, organization and login sequences.
const (
	FieldDocument        Field = "document"
	FieldName            Field = "name"
	FieldEmail           Field = "email"
	FieldPhone           Field = "phone"
	FieldBirthDate       Field = "birth_date"
	FieldLegalName       Field = "legal_name"
	FieldTradeName       Field = "trade_name"
	FieldSegment         Field = "segment"
	FieldSize            Field = "size"
	FieldRole            Field = "responsible_role"
	FieldPassword        Field = "password"
	FieldConfirmPassword Field = "confirm_password"
)

// Draft accumulates field values for one flow instance. Document and phone
// are stored masked for display; Digits returns them clean.
type Draft map[Field]string

// Get returns the value of f, or "" when unset.
func (d Draft) Get(f Field) string {
	return d[f]
}

// Trimmed returns the value of f without surrounding whitespace.
func (d Draft) Trimmed(f Field) string {
	return strings.TrimSpace(d[f])
}

// Digits returns the value of f with every non-digit removed.
func (d Draft) Digits(f Field) string {
	return document.Clean(d[f])
}

// Email returns the email trimmed and lower-cased.
func (d Draft) Email() string {
	return NormalizeEmail(d[FieldEmail])
}

// Clone returns a copy that shares nothing with d.
func (d Draft) Clone() Draft {
	return maps.Clone(d)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalize prepares a typed value for storage in the draft.
func normalize(kind identity.ActorKind, f Field, value string) string {
	switch f {
	case FieldDocument:
		return document.Format(kind, value)
	case FieldPhone:
		return document.FormatPhone(value)
	default:
		return value
	}
}
