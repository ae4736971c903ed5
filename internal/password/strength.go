// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package password scores candidate passwords and gates the password steps
// of the login and registration flows.
package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxScore is the score of a password that satisfies every rule.
const MaxScore = 6

// MinLength is the shortest password accepted anywhere.
const MinLength = 6

// Symbols is the punctuation set that earns the symbol point.
const Symbols = `!@#$%^&*()_+-=[]{}|;':",./<>?€£¥₹`

// Tier is the qualitative label for a score.
type Tier int

// Tiers, weakest first.
const (
	TierWeak Tier = iota
	TierFairLow
	TierFair
	TierGood
	TierStrong
	TierExcellent
)

// String returns the label shown next to the strength bar.
func (t Tier) String() string {
	switch t {
	case TierWeak:
		return "Very weak"
	case TierFairLow:
		return "Weak"
	case TierFair:
		return "Fair"
	case TierGood:
		return "Good"
	case TierStrong:
		return "Strong"
	case TierExcellent:
		return "Excellent"
	default:
		return ""
	}
}

// Level is the three-band colour grouping of tiers.
type Level int

// Levels.
const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	default:
		return ""
	}
}

// Requirement is an item of the checklist shown under the password field.
type Requirement int

// Checklist items.
const (
	RequireMinLength Requirement = iota
	RequireDigit
	RequireUppercase
)

// Requirements lists the checklist in display order.
var Requirements = []Requirement{RequireMinLength, RequireDigit, RequireUppercase}

// String returns the checklist text.
func (r Requirement) String() string {
	switch r {
	case RequireMinLength:
		return "At least 6 characters"
	case RequireDigit:
		return "One number"
	case RequireUppercase:
		return "One uppercase letter"
	default:
		return ""
	}
}

// Strength is the evaluation of a single password.
type Strength struct {
	Score     int
	Tier      Tier
	Satisfied map[Requirement]bool
}

// Has reports whether the requirement is satisfied.
func (s Strength) Has(r Requirement) bool {
	return s.Satisfied[r]
}

// Level groups the score into a colour band.
func (s Strength) Level() Level {
	switch {
	case s.Score <= 2:
		return LevelLow
	case s.Score <= 4:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Evaluate scores pw. Lengths count runes, not bytes.
func Evaluate(pw string) Strength {
	n := utf8.RuneCountInString(pw)
	digit := strings.IndexFunc(pw, unicode.IsDigit) >= 0
	upper := strings.IndexFunc(pw, unicode.IsUpper) >= 0
	symbol := strings.ContainsAny(pw, Symbols)

	score := 0
	for _, ok := range []bool{n >= 4, n >= MinLength, n >= 8, digit, upper, symbol} {
		if ok {
			score++
		}
	}

	return Strength{
		Score: score,
		Tier:  TierFor(score),
		Satisfied: map[Requirement]bool{
			RequireMinLength: n >= MinLength,
			RequireDigit:     digit,
			RequireUppercase: upper,
		},
	}
}

// TierFor maps a score in [0, MaxScore] to its tier. Out-of-range scores clamp.
func TierFor(score int) Tier {
	switch {
	case score <= 1:
		return TierWeak
	case score == 2:
		return TierFairLow
	case score == 3:
		return TierFair
	case score == 4:
		return TierGood
	case score == 5:
		return TierStrong
	default:
		return TierExcellent
	}
}

// MeetsRegistration reports whether pw may be used to create an account.
func MeetsRegistration(pw string) bool {
	return Evaluate(pw).Score == MaxScore
}

// MeetsLogin reports whether pw may be submitted for sign-in.
func MeetsLogin(pw string) bool {
	return pw != "" && utf8.RuneCountInString(pw) >= MinLength
}
