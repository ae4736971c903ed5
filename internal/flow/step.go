// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package flow

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oryen/oryen/internal/document"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/password"
)

// StepID identifies a step across all sequences.
type StepID string

// Steps.
const (
	StepName            StepID = "name"
	StepEmail           StepID = "email"
	StepPhone           StepID = "phone"
	StepBirthDate       StepID = "birth_date"
	StepPassword        StepID = "password"
	StepConfirmPassword StepID = "confirm_password"

	StepDocument    StepID = "document"
	StepBasicInfo   StepID = "basic_info"
	StepDetails     StepID = "details"
	StepContact     StepID = "contact"
	StepOrgPassword StepID = "org_password"

	StepLoginPassword StepID = "login_password"
)

// Check is the uniqueness lookup a step runs before advancing.
type Check int

// Checks.
const (
	CheckNone Check = iota
	CheckEmail
	CheckDocument
)

// String returns the check name used in logs and metrics.
func (c Check) String() string {
	switch c {
	case CheckEmail:
		return "email_exists"
	case CheckDocument:
		return "document_exists"
	default:
		return "none"
	}
}

// Field returns the draft field whose uniqueness c looks up.
func (c Check) Field() Field {
	switch c {
	case CheckEmail:
		return FieldEmail
	case CheckDocument:
		return FieldDocument
	default:
		return ""
	}
}

// Step is one screen of a sequence.
type Step struct {
	ID       StepID
	Title    string
	Subtitle string
	Fields   []Field
	Check    Check

	valid func(d Draft, now time.Time) bool
}

// Valid reports whether the draft satisfies the step at time now.
func (s Step) Valid(d Draft, now time.Time) bool {
	if s.valid == nil {
		return true
	}
	return s.valid(d, now)
}

// Sequence is the ordered list of steps for one flow. The last step is terminal.
type Sequence []Step

// Fields lists every field any step of the sequence collects.
func (s Sequence) Fields() []Field {
	var out []Field
	for _, step := range s {
		out = append(out, step.Fields...)
	}
	return out
}

// Collects reports whether some step of the sequence collects f.
func (s Sequence) Collects(f Field) bool {
	for _, step := range s {
		for _, sf := range step.Fields {
			if sf == f {
				return true
			}
		}
	}
	return false
}

// Index returns the position of id, or -1.
func (s Sequence) Index(id StepID) int {
	for i, step := range s {
		if step.ID == id {
			return i
		}
	}
	return -1
}

var individualSequence = Sequence{
	{
		ID: StepName, Title: "Let's get started", Subtitle: "What should we call you?",
		Fields: []Field{FieldName},
		valid:  func(d Draft, _ time.Time) bool { return minRunes(d.Trimmed(FieldName), 3) },
	},
	{
		ID: StepEmail, Title: "Your best email", Subtitle: "We will send important updates there.",
		Fields: []Field{FieldEmail}, Check: CheckEmail,
		valid: func(d Draft, _ time.Time) bool { return ValidEmail(d.Get(FieldEmail)) },
	},
	{
		ID: StepPhone, Title: "Phone number", Subtitle: "Used to verify your account if needed.",
		Fields: []Field{FieldPhone},
		valid:  func(d Draft, _ time.Time) bool { return ValidPhone(d.Get(FieldPhone)) },
	},
	{
		ID: StepBirthDate, Title: "Date of birth", Subtitle: "We need to confirm you are over 18.",
		Fields: []Field{FieldBirthDate},
		valid: func(d Draft, now time.Time) bool {
			_, ok := ParseBirthDate(d.Get(FieldBirthDate), now)
			return ok
		},
	},
	{
		ID: StepPassword, Title: "Security", Subtitle: "Create a strong password with letters and numbers.",
		Fields: []Field{FieldPassword},
		valid:  func(d Draft, _ time.Time) bool { return password.MeetsRegistration(d.Get(FieldPassword)) },
	},
	{
		ID: StepConfirmPassword, Title: "Confirmation", Subtitle: "Repeat the password to make sure there was no typo.",
		Fields: []Field{FieldConfirmPassword},
		valid: func(d Draft, _ time.Time) bool {
			confirm := d.Get(FieldConfirmPassword)
			return confirm != "" && confirm == d.Get(FieldPassword)
		},
	},
}

var organizationSequence = Sequence{
	{
		ID: StepDocument, Title: "Identification", Subtitle: "Start with your company's CNPJ.",
		Fields: []Field{FieldDocument}, Check: CheckDocument,
		valid: func(d Draft, _ time.Time) bool { return document.IsValidOrganization(d.Digits(FieldDocument)) },
	},
	{
		ID: StepBasicInfo, Title: "Company data", Subtitle: "Legal name and trade name.",
		Fields: []Field{FieldLegalName, FieldTradeName},
		valid: func(d Draft, _ time.Time) bool {
			return minRunes(d.Trimmed(FieldLegalName), 5) && minRunes(d.Trimmed(FieldTradeName), 2)
		},
	},
	{
		ID: StepDetails, Title: "Business details", Subtitle: "Size and line of business.",
		Fields: []Field{FieldSegment, FieldSize, FieldRole},
		valid: func(d Draft, _ time.Time) bool {
			return d.Trimmed(FieldSegment) != "" &&
				d.Trimmed(FieldRole) != "" &&
				identity.CompanySize(d.Get(FieldSize)).Valid()
		},
	},
	{
		ID: StepContact, Title: "Contact channels", Subtitle: "Corporate email and main phone.",
		Fields: []Field{FieldEmail, FieldPhone}, Check: CheckEmail,
		valid: func(d Draft, _ time.Time) bool {
			return ValidEmail(d.Get(FieldEmail)) && ValidPhone(d.Get(FieldPhone))
		},
	},
	{
		ID: StepOrgPassword, Title: "Security", Subtitle: "Create a robust password.",
		Fields: []Field{FieldPassword, FieldConfirmPassword},
		valid: func(d Draft, _ time.Time) bool {
			return password.MeetsRegistration(d.Get(FieldPassword)) && d.Get(FieldConfirmPassword) != ""
		},
	},
}

var loginSequence = Sequence{
	{
		ID: StepLoginPassword, Title: "Welcome back!", Subtitle: "Enter your password to continue.",
		Fields: []Field{FieldPassword},
		valid:  func(d Draft, _ time.Time) bool { return password.MeetsLogin(d.Get(FieldPassword)) },
	},
}

// SequenceFor returns the registration sequence for kind, or nil for an
// unknown kind. The returned slice must not be modified.
func SequenceFor(kind identity.ActorKind) Sequence {
	switch kind {
	case identity.Individual:
		return individualSequence
	case identity.Organization:
		return organizationSequence
	default:
		return nil
	}
}

// LoginSequence returns the single-step login sequence.
func LoginSequence() Sequence {
	return loginSequence
}

// ValidEmail is the local email shape check: an '@', a '.', and more than
// five characters.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	return strings.Contains(email, "@") && strings.Contains(email, ".") && utf8.RuneCountInString(email) > 5
}

// ValidPhone reports whether phone carries at least ten digits.
func ValidPhone(phone string) bool {
	return len(document.Clean(phone)) >= 10
}

// Birth date layouts accepted by ParseBirthDate.
const (
	LayoutISODate = "2006-01-02"
	LayoutBRDate  = "02/01/2006"
)

var minBirthDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseBirthDate parses raw and reports whether it falls within
// [1900-01-01, now minus 18 years], both ends inclusive.
func ParseBirthDate(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	var (
		date time.Time
		err  error
	)
	for _, layout := range []string{LayoutISODate, LayoutBRDate} {
		if date, err = time.Parse(layout, raw); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, false
	}
	return date, !date.Before(minBirthDate) && !date.After(latestBirthDate(now))
}

func latestBirthDate(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y-18, m, d, 0, 0, 0, 0, time.UTC)
}

func minRunes(s string, n int) bool {
	return utf8.RuneCountInString(s) >= n
}
