// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package identity

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewID returns a new ULID string. IDs generated by one process sort in
// creation order.
func NewID() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ParseID checks that s is a ULID and returns its canonical form.
func ParseID(s string) (string, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return "", oops.Code("ID_INVALID").With("value", s).Wrap(err)
	}
	return id.String(), nil
}
