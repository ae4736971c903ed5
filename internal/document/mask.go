// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package document cleans, masks and validates Brazilian tax documents and
// phone numbers as they are typed.
package document

import (
	"strings"

	"github.com/oryen/oryen/internal/identity"
)

// Mask templates. Each '#' is a digit slot; every other rune is a literal.
const (
	MaskCPF   = "###.###.###-##"
	MaskCNPJ  = "##.###.###/####-##"
	MaskPhone = "(##) #####-####"
)

// Placeholders shown in empty document fields.
const (
	PlaceholderCPF  = "000.000.000-00"
	PlaceholderCNPJ = "00.000.000/0000-00"
)

const slot = '#'

// Clean strips every rune outside ASCII 0-9.
func Clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Slots counts the digit slots in a mask template.
func Slots(mask string) int {
	return strings.Count(mask, string(slot))
}

// Truncate cleans raw and keeps at most n digits.
func Truncate(raw string, n int) string {
	digits := Clean(raw)
	if n >= 0 && len(digits) > n {
		return digits[:n]
	}
	return digits
}

// ApplyMask lays digits over mask. Digits are cleaned and cut to the mask's
// slot count first; the walk stops as soon as either side runs out, so a
// partial entry never ends in a dangling literal.
func ApplyMask(digits, mask string) string {
	digits = Truncate(digits, Slots(mask))

	var b strings.Builder
	b.Grow(len(mask))
	next := 0
	for _, r := range mask {
		if next >= len(digits) {
			break
		}
		if r == slot {
			b.WriteByte(digits[next])
			next++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MaskFor returns the document mask for kind, or "" for an unknown kind.
func MaskFor(kind identity.ActorKind) string {
	switch kind {
	case identity.Individual:
		return MaskCPF
	case identity.Organization:
		return MaskCNPJ
	default:
		return ""
	}
}

// PlaceholderFor returns the empty-field placeholder for kind.
func PlaceholderFor(kind identity.ActorKind) string {
	switch kind {
	case identity.Individual:
		return PlaceholderCPF
	case identity.Organization:
		return PlaceholderCNPJ
	default:
		return ""
	}
}

// Format cleans raw input and masks it for kind.
func Format(kind identity.ActorKind, raw string) string {
	mask := MaskFor(kind)
	if mask == "" {
		return Clean(raw)
	}
	return ApplyMask(raw, mask)
}

// FormatPhone cleans raw input and masks it as a mobile number.
func FormatPhone(raw string) string {
	return ApplyMask(raw, MaskPhone)
}
