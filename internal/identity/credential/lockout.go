// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package credential

import "time"

// Lockout settings.
const (
	// LockoutThreshold is the number of consecutive failures that locks an account.
	LockoutThreshold = 7

	// LockoutDuration is how long a locked account rejects sign-in.
	LockoutDuration = 15 * time.Minute
)

// Lockout tracks consecutive sign-in failures for one account.
type Lockout struct {
	Failures    int
	LockedUntil time.Time
}

// Locked reports whether the account rejects sign-in at now.
func (l Lockout) Locked(now time.Time) bool {
	return !l.LockedUntil.IsZero() && l.LockedUntil.After(now)
}

// RecordFailure counts a failed attempt and locks the account once the
// threshold is reached. The counter restarts after a lock expires.
func (l *Lockout) RecordFailure(now time.Time) {
	if !l.LockedUntil.IsZero() && !l.Locked(now) {
		*l = Lockout{}
	}
	l.Failures++
	if l.Failures >= LockoutThreshold {
		l.LockedUntil = now.Add(LockoutDuration)
	}
}

// RecordSuccess clears the failure count.
func (l *Lockout) RecordSuccess() {
	*l = Lockout{}
}
