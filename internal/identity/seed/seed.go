// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package seed loads accounts for the reference providers from YAML.
package seed

import (
	"os"
	"strings"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/oryen/oryen/internal/document"
	"github.com/oryen/oryen/internal/flow"
	"github.com/oryen/oryen/internal/identity"
)

// File is the top level of a seed file.
type File struct {
	Accounts []Account `json:"accounts" yaml:"accounts" jsonschema:"required,minItems=1"`
}

// Account is one seeded account with its identity record.
type Account struct {
	Kind     string `json:"kind" yaml:"kind" jsonschema:"required,enum=individual,enum=organization"`
	Document string `json:"document" yaml:"document" jsonschema:"required,minLength=11"`
	Email    string `json:"email" yaml:"email" jsonschema:"required,minLength=6"`
	Password string `json:"password" yaml:"password" jsonschema:"required,minLength=6"`
	Phone    string `json:"phone,omitempty" yaml:"phone,omitempty"`

	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	BirthDate string `json:"birth_date,omitempty" yaml:"birth_date,omitempty"`

	LegalName       string `json:"legal_name,omitempty" yaml:"legal_name,omitempty"`
	TradeName       string `json:"trade_name,omitempty" yaml:"trade_name,omitempty"`
	Segment         string `json:"segment,omitempty" yaml:"segment,omitempty"`
	Size            string `json:"size,omitempty" yaml:"size,omitempty" jsonschema:"enum=micro,enum=small,enum=medium,enum=large"`
	ResponsibleRole string `json:"responsible_role,omitempty" yaml:"responsible_role,omitempty"`
}

// Entry is a validated account ready to be loaded into a provider.
type Entry struct {
	Email    string
	Password string
	Record   identity.Record
}

// ReadFile reads and parses a seed file.
func ReadFile(path string, now time.Time) ([]Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	entries, err := Parse(data, now)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return entries, nil
}

// Parse validates data against the seed schema and converts every account
// into an Entry. now anchors the birth-date age check.
func Parse(data []byte, now time.Time) ([]Entry, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}

	entries := make([]Entry, 0, len(f.Accounts))
	seen := make(map[string]int, len(f.Accounts))
	for i, a := range f.Accounts {
		e, err := a.Entry(now)
		if err != nil {
			return nil, oops.With("index", i).Wrap(err)
		}
		if prev, dup := seen[e.Email]; dup {
			return nil, oops.Code("SEED_INVALID").
				With("index", i).
				With("previous", prev).
				Errorf("email %s appears twice", e.Email)
		}
		seen[e.Email] = i
		entries = append(entries, e)
	}
	return entries, nil
}

// Entry validates a and builds its identity record.
func (a Account) Entry(now time.Time) (Entry, error) {
	kind, err := identity.ParseActorKind(a.Kind)
	if err != nil {
		return Entry{}, err
	}
	digits := document.Clean(a.Document)
	if !document.IsValid(kind, digits) {
		return Entry{}, oops.Code("SEED_INVALID").
			With("kind", kind.String()).
			Errorf("invalid %s %q", kind.DocumentLabel(), a.Document)
	}
	email := flow.NormalizeEmail(a.Email)
	if !flow.ValidEmail(email) {
		return Entry{}, oops.Code("SEED_INVALID").Errorf("invalid email %q", a.Email)
	}

	rec := identity.Record{
		Kind:      kind,
		Document:  digits,
		Email:     email,
		Phone:     document.Clean(a.Phone),
		CreatedAt: now.UTC(),
	}
	switch kind {
	case identity.Individual:
		birth, ok := flow.ParseBirthDate(a.BirthDate, now)
		if a.BirthDate != "" && !ok {
			return Entry{}, oops.Code("SEED_INVALID").Errorf("invalid birth date %q", a.BirthDate)
		}
		rec.Individual = &identity.IndividualProfile{Name: strings.TrimSpace(a.Name), BirthDate: birth}
	case identity.Organization:
		size := identity.CompanySize(a.Size)
		if size == "" {
			size = identity.SizeMicro
		}
		rec.Organization = &identity.OrganizationProfile{
			LegalName:       strings.TrimSpace(a.LegalName),
			TradeName:       strings.TrimSpace(a.TradeName),
			Segment:         strings.TrimSpace(a.Segment),
			Size:            size,
			ResponsibleRole: strings.TrimSpace(a.ResponsibleRole),
		}
	}
	if err := rec.Validate(); err != nil {
		return Entry{}, err
	}
	return Entry{Email: email, Password: a.Password, Record: rec}, nil
}
