// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/pkg/errutil"
)

func TestParseActorKind(t *testing.T) {
	tests := []struct {
		in   string
		want identity.ActorKind
	}{
		{"individual", identity.Individual},
		{"CPF", identity.Individual},
		{" client ", identity.Individual},
		{"organization", identity.Organization},
		{"company", identity.Organization},
		{"cnpj", identity.Organization},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := identity.ParseActorKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := identity.ParseActorKind("robot")
	errutil.AssertErrorCode(t, err, "ACTOR_KIND_INVALID")
}

func TestActorKind_Document(t *testing.T) {
	assert.Equal(t, 11, identity.Individual.DocumentLength())
	assert.Equal(t, 14, identity.Organization.DocumentLength())
	assert.Equal(t, 0, identity.ActorKind(0).DocumentLength())
	assert.Equal(t, "CPF", identity.Individual.DocumentLabel())
	assert.Equal(t, "CNPJ", identity.Organization.DocumentLabel())
	assert.False(t, identity.ActorKind(9).Valid())
}

func TestActorKind_TextRoundTrip(t *testing.T) {
	text, err := identity.Organization.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "organization", string(text))

	var k identity.ActorKind
	require.NoError(t, k.UnmarshalText([]byte("person")))
	assert.Equal(t, identity.Individual, k)

	_, err = identity.ActorKind(0).MarshalText()
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want identity.ErrorKind
	}{
		{"not found", oops.Code("X").Wrap(identity.ErrNotFound), identity.NotFoundError},
		{"invalid credentials", identity.ErrInvalidCredentials, identity.InvalidCredentialsError},
		{"email in use", oops.Wrap(identity.ErrEmailAlreadyInUse), identity.EmailAlreadyInUseError},
		{"weak password", identity.ErrWeakPassword, identity.WeakPasswordError},
		{"document in use", oops.Code("DIRECTORY_DOCUMENT_TAKEN").Wrap(identity.ErrDocumentInUse), identity.ConflictError},
		{"deadline", context.DeadlineExceeded, identity.TransportError},
		{"anything else", errors.New("connection refused"), identity.TransportError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identity.Classify(tt.err))
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "conflict", identity.ConflictError.String())
	assert.Equal(t, "email_already_in_use", identity.EmailAlreadyInUseError.String())
	assert.Equal(t, "unknown", identity.ErrorKind(0).String())
}

func TestRecord_Validate(t *testing.T) {
	valid := identity.Record{
		Kind:       identity.Individual,
		Document:   "11144477735",
		Email:      "ana@example.com",
		CreatedAt:  time.Now(),
		Individual: &identity.IndividualProfile{Name: "Ana"},
	}
	require.NoError(t, valid.Validate())

	missingProfile := valid
	missingProfile.Individual = nil
	errutil.AssertErrorCode(t, missingProfile.Validate(), "RECORD_INVALID")

	wrongLength := valid
	wrongLength.Document = "123"
	errutil.AssertErrorCode(t, wrongLength.Validate(), "RECORD_INVALID")

	org := identity.Record{
		Kind:     identity.Organization,
		Document: "11222333000181",
		Email:    "ops@acme.com",
	}
	errutil.AssertErrorCode(t, org.Validate(), "RECORD_INVALID")
	org.Organization = &identity.OrganizationProfile{LegalName: "Acme Ltda"}
	require.NoError(t, org.Validate())
}

func TestCompanySize(t *testing.T) {
	for _, size := range identity.CompanySizes {
		assert.True(t, size.Valid())
		assert.NotEmpty(t, size.Label())
	}
	assert.False(t, identity.CompanySize("huge").Valid())
	assert.Empty(t, identity.CompanySize("huge").Label())
}

func TestSubscriptionFunc(t *testing.T) {
	called := 0
	var sub identity.Subscription = identity.SubscriptionFunc(func() { called++ })
	sub.Unsubscribe()
	assert.Equal(t, 1, called)
}
