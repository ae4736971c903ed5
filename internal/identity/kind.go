// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package identity

import (
	"strings"

	"github.com/samber/oops"
)

// ActorKind is whether a user acts as a person or as a company.
type ActorKind int

// Actor kinds.
const (
	Individual ActorKind = iota + 1
	Organization
)

// Document lengths in digits.
const (
	CPFLength  = 11
	CNPJLength = 14
)

// String returns the lower-case name of the kind.
func (k ActorKind) String() string {
	switch k {
	case Individual:
		return "individual"
	case Organization:
		return "organization"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the declared kinds.
func (k ActorKind) Valid() bool {
	return k == Individual || k == Organization
}

// DocumentLength is the digit count of the kind's tax document.
func (k ActorKind) DocumentLength() int {
	switch k {
	case Individual:
		return CPFLength
	case Organization:
		return CNPJLength
	default:
		return 0
	}
}

// DocumentLabel is the short name of the kind's tax document.
func (k ActorKind) DocumentLabel() string {
	switch k {
	case Individual:
		return "CPF"
	case Organization:
		return "CNPJ"
	default:
		return ""
	}
}

// ParseActorKind accepts the String form plus the short aliases used on the
// command line and in seed files.
func ParseActorKind(s string) (ActorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "individual", "person", "client", "cpf":
		return Individual, nil
	case "organization", "organisation", "company", "cnpj":
		return Organization, nil
	default:
		return 0, oops.Code("ACTOR_KIND_INVALID").With("value", s).Errorf("unknown actor kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ActorKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, oops.Code("ACTOR_KIND_INVALID").With("value", int(k)).Errorf("invalid actor kind")
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ActorKind) UnmarshalText(text []byte) error {
	parsed, err := ParseActorKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
