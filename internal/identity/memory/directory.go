// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package memory is an in-process identity provider. It backs the CLI when
// no database is configured and serves as the reference Directory in tests.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/oryen/oryen/internal/document"
	"github.com/oryen/oryen/internal/flow"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/identity/credential"
	"github.com/oryen/oryen/internal/identity/seed"
)

// MinPasswordLength is the provider's own password policy for CreateAccount.
const MinPasswordLength = 6

type docKey struct {
	kind   identity.ActorKind
	digits string
}

type account struct {
	id      string
	email   string
	hash    string
	record  *identity.Record
	lockout credential.Lockout
}

// Directory is an identity.Directory kept entirely in memory.
type Directory struct {
	hasher  *credential.Hasher
	clock   func() time.Time
	latency time.Duration
	logger  *slog.Logger
	changes *identity.Broadcaster

	mu         sync.Mutex
	accounts   map[string]*account
	byEmail    map[string]string
	byDocument map[docKey]string
	sessions   map[string]string
	current    identity.Session
	failures   map[string]error
}

// Option configures a Directory.
type Option func(*Directory)

// WithParams sets the argon2id parameters used for stored passwords.
func WithParams(p credential.Params) Option {
	return func(d *Directory) { d.hasher = credential.NewHasher(p) }
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(d *Directory) { d.clock = clock }
}

// WithLatency delays every call by latency, or until its context ends.
func WithLatency(latency time.Duration) Option {
	return func(d *Directory) { d.latency = latency }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

// New creates an empty Directory.
func New(opts ...Option) *Directory {
	d := &Directory{
		hasher:     credential.NewHasher(credential.DefaultParams),
		clock:      time.Now,
		logger:     slog.Default(),
		accounts:   make(map[string]*account),
		byEmail:    make(map[string]string),
		byDocument: make(map[docKey]string),
		sessions:   make(map[string]string),
		failures:   make(map[string]error),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.changes = identity.NewBroadcaster(d.logger)
	return d
}

// Fail makes every later call of op return err until cleared with a nil err.
// op is one of the flow.Op names.
func (d *Directory) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Seed loads accounts with their identity records. A seeded account is
// not signed in.
func (d *Directory) Seed(ctx context.Context, entries []seed.Entry) error {
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return oops.Code("DIRECTORY_SEED_FAILED").Wrap(err)
		}
		hash, err := d.hasher.Hash(e.Password)
		if err != nil {
			return oops.Code("DIRECTORY_SEED_FAILED").With("index", i).Wrap(err)
		}
		d.mu.Lock()
		acct, err := d.insertLocked(e.Email, hash)
		if err == nil {
			if err = d.linkLocked(acct, e.Record); err != nil {
				delete(d.accounts, acct.id)
				delete(d.byEmail, acct.email)
			}
		}
		d.mu.Unlock()
		if err != nil {
			return oops.Code("DIRECTORY_SEED_FAILED").With("index", i).With("email", e.Email).Wrap(err)
		}
	}
	d.logger.Info("seeded accounts", "count", len(entries))
	return nil
}

// DocumentExists implements identity.Directory.
func (d *Directory) DocumentExists(ctx context.Context, kind identity.ActorKind, digits string) (bool, error) {
	if err := d.enter(ctx, flow.OpDocumentExists); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.byDocument[docKey{kind, document.Clean(digits)}]
	return ok, nil
}

// EmailExists implements identity.Directory.
func (d *Directory) EmailExists(ctx context.Context, email string) (bool, error) {
	if err := d.enter(ctx, flow.OpEmailExists); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.byEmail[flow.NormalizeEmail(email)]
	return ok, nil
}

// ResolveEmailForDocument implements identity.Directory.
func (d *Directory) ResolveEmailForDocument(ctx context.Context, kind identity.ActorKind, digits string) (string, error) {
	if err := d.enter(ctx, flow.OpResolveEmail); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byDocument[docKey{kind, document.Clean(digits)}]
	if !ok {
		return "", oops.Code("DIRECTORY_NOT_FOUND").
			With("kind", kind.String()).
			Wrap(identity.ErrNotFound)
	}
	return d.accounts[id].email, nil
}

// SignIn implements identity.Directory. Unknown emails are verified against
// a dummy hash so they take as long as a wrong password.
func (d *Directory) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	if err := d.enter(ctx, flow.OpSignIn); err != nil {
		return identity.Session{}, err
	}
	email = flow.NormalizeEmail(email)

	d.mu.Lock()
	id, exists := d.byEmail[email]
	target := credential.DummyHash
	if exists {
		target = d.accounts[id].hash
	}
	d.mu.Unlock()

	valid, err := d.hasher.Verify(password, target)
	if err != nil && exists {
		return identity.Session{}, oops.Code("DIRECTORY_SIGN_IN_FAILED").Wrap(err)
	}
	if !exists {
		return identity.Session{}, invalidCredentials()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[id]
	if !ok {
		return identity.Session{}, invalidCredentials()
	}
	now := d.clock()
	if acct.lockout.Locked(now) {
		return identity.Session{}, oops.Code("DIRECTORY_ACCOUNT_LOCKED").
			With("locked_until", acct.lockout.LockedUntil).
			Wrap(identity.ErrInvalidCredentials)
	}
	if !valid {
		acct.lockout.RecordFailure(now)
		return identity.Session{}, invalidCredentials()
	}
	acct.lockout.RecordSuccess()
	return d.startSessionLocked(acct)
}

// CreateAccount implements identity.Directory.
func (d *Directory) CreateAccount(ctx context.Context, email, password string) (identity.Session, error) {
	if err := d.enter(ctx, flow.OpCreateAccount); err != nil {
		return identity.Session{}, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return identity.Session{}, oops.Code("DIRECTORY_WEAK_PASSWORD").
			With("min_length", MinPasswordLength).
			Wrap(identity.ErrWeakPassword)
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return identity.Session{}, oops.Code("DIRECTORY_CREATE_FAILED").Wrap(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	acct, err := d.insertLocked(flow.NormalizeEmail(email), hash)
	if err != nil {
		return identity.Session{}, err
	}
	d.logger.InfoContext(ctx, "account created", "user_id", acct.id)
	return d.startSessionLocked(acct)
}

// PersistIdentity implements identity.Directory. It replaces any record
// already stored for userID.
func (d *Directory) PersistIdentity(ctx context.Context, userID string, record identity.Record) error {
	if err := d.enter(ctx, flow.OpPersistIdentity); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[userID]
	if !ok {
		return oops.Code("DIRECTORY_UNKNOWN_USER").With("user_id", userID).Errorf("no account %s", userID)
	}
	return d.linkLocked(acct, record)
}

// SubscribeSessionChanges implements identity.Directory.
func (d *Directory) SubscribeSessionChanges(fn func(identity.SessionChange)) (identity.Subscription, error) {
	return d.changes.Subscribe(fn), nil
}

// SignOut ends the current session and notifies subscribers.
func (d *Directory) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("DIRECTORY_SIGN_OUT_FAILED").Wrap(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current.UserID == "" {
		return nil
	}
	delete(d.sessions, credential.HashToken(d.current.Token))
	d.logger.InfoContext(ctx, "signed out", "user_id", d.current.UserID)
	d.current = identity.Session{}
	d.changes.Publish(identity.SessionChange{})
	return nil
}

// Current returns the signed-in session, if any.
func (d *Directory) Current() (identity.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.current.UserID != ""
}

// Validate returns the user id a session token belongs to.
func (d *Directory) Validate(token string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.sessions[credential.HashToken(token)]
	return id, ok
}

// Record returns a copy of the identity record stored for userID.
func (d *Directory) Record(userID string) (identity.Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[userID]
	if !ok || acct.record == nil {
		return identity.Record{}, false
	}
	return acct.record.Clone(), true
}

// Close stops session change delivery.
func (d *Directory) Close() {
	d.changes.Close()
}

// enter applies the configured latency and any injected failure for op.
func (d *Directory) enter(ctx context.Context, op string) error {
	if d.latency > 0 {
		timer := time.NewTimer(d.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return oops.Code("DIRECTORY_CANCELED").With("op", op).Wrap(ctx.Err())
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return oops.Code("DIRECTORY_CANCELED").With("op", op).Wrap(err)
	}
	d.mu.Lock()
	err := d.failures[op]
	d.mu.Unlock()
	return err
}

func (d *Directory) insertLocked(email, hash string) (*account, error) {
	if _, taken := d.byEmail[email]; taken {
		return nil, oops.Code("DIRECTORY_EMAIL_TAKEN").Wrap(identity.ErrEmailAlreadyInUse)
	}
	acct := &account{id: identity.NewID(), email: email, hash: hash}
	d.accounts[acct.id] = acct
	d.byEmail[email] = acct.id
	return acct, nil
}

func (d *Directory) linkLocked(acct *account, record identity.Record) error {
	key := docKey{record.Kind, record.Document}
	if owner, ok := d.byDocument[key]; ok && owner != acct.id {
		return oops.Code("DIRECTORY_DOCUMENT_TAKEN").
			With("kind", record.Kind.String()).
			Wrapf(identity.ErrDocumentInUse, "document is linked to another account")
	}
	if acct.record != nil {
		delete(d.byDocument, docKey{acct.record.Kind, acct.record.Document})
	}
	rec := record.Clone()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = d.clock().UTC()
	}
	acct.record = &rec
	d.byDocument[key] = acct.id
	return nil
}

func (d *Directory) startSessionLocked(acct *account) (identity.Session, error) {
	token, hash, err := credential.GenerateToken()
	if err != nil {
		return identity.Session{}, oops.Code("DIRECTORY_SESSION_FAILED").Wrap(err)
	}
	if d.current.Token != "" {
		delete(d.sessions, credential.HashToken(d.current.Token))
	}
	d.sessions[hash] = acct.id
	d.current = identity.Session{UserID: acct.id, Token: token}
	d.changes.Publish(identity.SessionChange{Authenticated: true, UserID: acct.id})
	return d.current, nil
}

func invalidCredentials() error {
	return oops.Code("DIRECTORY_INVALID_CREDENTIALS").Wrap(identity.ErrInvalidCredentials)
}
