// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oryen/oryen/internal/identity"
)

func TestIsValidIndividual(t *testing.T) {
	tests := []struct {
		name   string
		digits string
		want   bool
	}{
		{"eleven digits", "12345678901", true},
		{"check digits not verified", "12345678900", true},
		{"repeated digits accepted", "11111111111", true},
		{"too short", "1234567890", false},
		{"too long", "123456789012", false},
		{"masked input rejected", "123.456.789-01", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidIndividual(tt.digits))
		})
	}
}

func TestIsValidOrganization(t *testing.T) {
	tests := []struct {
		name   string
		digits string
		want   bool
	}{
		{"valid", "11222333000181", true},
		{"valid second", "11444777000161", true},
		{"valid zero check digit", "04252011000110", true},
		{"wrong first check digit", "11222333000171", false},
		{"wrong second check digit", "11222333000182", false},
		{"all ones", "11111111111111", false},
		{"all zeros", "00000000000000", false},
		{"too short", "1122233300018", false},
		{"too long", "112223330001811", false},
		{"masked input rejected", "11.222.333/0001-81", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidOrganization(tt.digits))
		})
	}
}

func TestIsValidDispatchesByKind(t *testing.T) {
	assert.True(t, IsValid(identity.Individual, "12345678901"))
	assert.False(t, IsValid(identity.Individual, "11222333000181"))
	assert.True(t, IsValid(identity.Organization, "11222333000181"))
	assert.False(t, IsValid(identity.Organization, "12345678901"))
	assert.False(t, IsValid(identity.ActorKind(0), "12345678901"))
}

func TestCleanedMaskedCPFIsValid(t *testing.T) {
	digits := Clean("123.456.789-01")
	assert.Equal(t, "12345678901", digits)
	assert.True(t, IsValidIndividual(digits))
}

func FuzzIsValidOrganization(f *testing.F) {
	f.Add("11222333000181")
	f.Add("11111111111111")
	f.Add("")
	f.Add("abcdefghijklmn")

	f.Fuzz(func(t *testing.T, input string) {
		if !IsValidOrganization(input) {
			return
		}
		if len(input) != identity.CNPJLength {
			t.Fatalf("accepted %q with length %d", input, len(input))
		}
		if Clean(input) != input {
			t.Fatalf("accepted non-digit input %q", input)
		}
		if strings.Count(input, input[:1]) == len(input) {
			t.Fatalf("accepted repeated-digit input %q", input)
		}
	})
}
