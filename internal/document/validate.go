// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package document

import "github.com/oryen/oryen/internal/identity"

// IsValidIndividual reports whether digits has the shape of a CPF.
// Only the length is checked; CPF check digits are not verified.
func IsValidIndividual(digits string) bool {
	return len(digits) == identity.CPFLength && allDigits(digits)
}

// IsValidOrganization reports whether digits is a CNPJ with correct mod-11
// check digits. Sequences of a single repeated digit are rejected.
func IsValidOrganization(digits string) bool {
	if len(digits) != identity.CNPJLength || !allDigits(digits) {
		return false
	}
	if allSame(digits) {
		return false
	}
	return checkDigit(digits[:12]) == digits[12]-'0' &&
		checkDigit(digits[:13]) == digits[13]-'0'
}

// IsValid dispatches to the validator for kind. Unknown kinds are invalid.
func IsValid(kind identity.ActorKind, digits string) bool {
	switch kind {
	case identity.Individual:
		return IsValidIndividual(digits)
	case identity.Organization:
		return IsValidOrganization(digits)
	default:
		return false
	}
}

// checkDigit computes the mod-11 check digit over body. Weights cycle 2..9
// starting from the rightmost digit.
func checkDigit(body string) byte {
	sum := 0
	weight := 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return byte(11 - rem)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
