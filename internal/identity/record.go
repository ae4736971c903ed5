// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package identity

import (
	"time"

	"github.com/samber/oops"
)

// CompanySize buckets organizations by headcount.
type CompanySize string

// Company sizes.
const (
	SizeMicro  CompanySize = "micro"
	SizeSmall  CompanySize = "small"
	SizeMedium CompanySize = "medium"
	SizeLarge  CompanySize = "large"
)

// CompanySizes lists the sizes in display order.
var CompanySizes = []CompanySize{SizeMicro, SizeSmall, SizeMedium, SizeLarge}

// Label is the human readable description of the size.
func (s CompanySize) Label() string {
	switch s {
	case SizeMicro:
		return "Micro (up to 19 employees)"
	case SizeSmall:
		return "Small (20-99 employees)"
	case SizeMedium:
		return "Medium (100-499 employees)"
	case SizeLarge:
		return "Large (500+ employees)"
	default:
		return ""
	}
}

// Valid reports whether s is one of CompanySizes.
func (s CompanySize) Valid() bool {
	for _, size := range CompanySizes {
		if s == size {
			return true
		}
	}
	return false
}

// IndividualProfile holds the fields collected from a person.
type IndividualProfile struct {
	Name      string    `json:"name" yaml:"name"`
	BirthDate time.Time `json:"birth_date" yaml:"birth_date"`
}

// OrganizationProfile holds the fields collected from a company.
type OrganizationProfile struct {
	LegalName       string      `json:"legal_name" yaml:"legal_name"`
	TradeName       string      `json:"trade_name" yaml:"trade_name"`
	Segment         string      `json:"segment" yaml:"segment"`
	Size            CompanySize `json:"size" yaml:"size"`
	ResponsibleRole string      `json:"responsible_role" yaml:"responsible_role"`
}

// Record is the finalized identity handed to the provider after registration.
// Document and Phone hold digits only; Email is trimmed and lower-cased.
type Record struct {
	Kind         ActorKind
	Document     string
	Email        string
	Phone        string
	CreatedAt    time.Time
	Individual   *IndividualProfile
	Organization *OrganizationProfile
}

// Validate checks that the profile matching Kind is present.
func (r Record) Validate() error {
	switch r.Kind {
	case Individual:
		if r.Individual == nil {
			return oops.Code("RECORD_INVALID").With("kind", r.Kind.String()).Errorf("individual profile is required")
		}
	case Organization:
		if r.Organization == nil {
			return oops.Code("RECORD_INVALID").With("kind", r.Kind.String()).Errorf("organization profile is required")
		}
	default:
		return oops.Code("RECORD_INVALID").Errorf("record kind is required")
	}
	if len(r.Document) != r.Kind.DocumentLength() {
		return oops.Code("RECORD_INVALID").
			With("kind", r.Kind.String()).
			With("length", len(r.Document)).
			Errorf("document must have %d digits", r.Kind.DocumentLength())
	}
	if r.Email == "" {
		return oops.Code("RECORD_INVALID").Errorf("email is required")
	}
	return nil
}

// Clone returns a copy of r that shares no profile pointers with it.
func (r Record) Clone() Record {
	if r.Individual != nil {
		p := *r.Individual
		r.Individual = &p
	}
	if r.Organization != nil {
		p := *r.Organization
		r.Organization = &p
	}
	return r
}
