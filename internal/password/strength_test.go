// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		pw    string
		score int
		tier  Tier
	}{
		{"empty", "", 0, TierWeak},
		{"short lowercase", "abc", 0, TierWeak},
		{"four lowercase", "abcd", 1, TierWeak},
		{"six lowercase", "abcdef", 2, TierFairLow},
		{"six with digit", "abc123", 3, TierFair},
		{"eight with digit", "abcd1234", 4, TierGood},
		{"eight with digit and upper", "Abcd1234", 5, TierStrong},
		{"everything", "Abcd123!", 6, TierExcellent},
		{"currency symbol counts", "Abcd123€", 6, TierExcellent},
		{"symbol only", "!", 1, TierWeak},
		{"runes not bytes", "ããã", 0, TierWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Evaluate(tt.pw)
			assert.Equal(t, tt.score, s.Score)
			assert.Equal(t, tt.tier, s.Tier)
		})
	}
}

func TestEvaluateChecklist(t *testing.T) {
	s := Evaluate("abc123")
	assert.True(t, s.Has(RequireMinLength))
	assert.True(t, s.Has(RequireDigit))
	assert.False(t, s.Has(RequireUppercase))

	s = Evaluate("ABC")
	assert.False(t, s.Has(RequireMinLength))
	assert.False(t, s.Has(RequireDigit))
	assert.True(t, s.Has(RequireUppercase))
}

func TestGates(t *testing.T) {
	assert.Equal(t, 3, Evaluate("abc123").Score)
	assert.False(t, MeetsRegistration("abc123"))
	assert.True(t, MeetsLogin("abc123"))

	assert.True(t, MeetsRegistration("Abcd123!"))
	assert.False(t, MeetsLogin(""))
	assert.False(t, MeetsLogin("abc12"))
	assert.True(t, MeetsLogin("ããããããã"))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, LevelLow, Strength{Score: 0}.Level())
	assert.Equal(t, LevelLow, Strength{Score: 2}.Level())
	assert.Equal(t, LevelMedium, Strength{Score: 3}.Level())
	assert.Equal(t, LevelMedium, Strength{Score: 4}.Level())
	assert.Equal(t, LevelHigh, Strength{Score: 5}.Level())
	assert.Equal(t, LevelHigh, Strength{Score: 6}.Level())
}

func TestTierForClamps(t *testing.T) {
	assert.Equal(t, TierWeak, TierFor(-3))
	assert.Equal(t, TierExcellent, TierFor(42))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "Excellent", TierExcellent.String())
	assert.Equal(t, "Very weak", TierWeak.String())
	assert.Empty(t, Tier(99).String())
	assert.Equal(t, "high", LevelHigh.String())
	assert.Equal(t, "One number", RequireDigit.String())
	assert.Len(t, Requirements, 3)
}

// FuzzEvaluateMonotonic appends a rune that satisfies some rule and checks
// the score never drops.
func FuzzEvaluateMonotonic(f *testing.F) {
	f.Add("", "A")
	f.Add("abc", "1")
	f.Add("abc123", "!")
	f.Add("Abcd123", "€")

	f.Fuzz(func(t *testing.T, pw, suffix string) {
		before := Evaluate(pw)
		after := Evaluate(pw + suffix)
		if before.Score > MaxScore || before.Score < 0 {
			t.Fatalf("score %d out of range for %q", before.Score, pw)
		}
		if after.Score < before.Score {
			t.Fatalf("appending %q to %q dropped score %d -> %d", suffix, pw, before.Score, after.Score)
		}
	})
}
