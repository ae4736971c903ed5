// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package postgres is the PostgreSQL identity provider.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/oryen/oryen/internal/document"
	"github.com/oryen/oryen/internal/flow"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/identity/credential"
	"github.com/oryen/oryen/internal/identity/seed"
)

// MinPasswordLength is the provider's own password policy for CreateAccount.
const MinPasswordLength = 6

// Pool is the subset of *pgxpool.Pool the Directory uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Directory is an identity.Directory backed by PostgreSQL.
type Directory struct {
	pool       Pool
	closePool  func()
	hasher     *credential.Hasher
	clock      func() time.Time
	logger     *slog.Logger
	retries    uint64
	retryDelay time.Duration
	lookups    singleflight.Group
	changes    *identity.Broadcaster

	mu      sync.Mutex
	current identity.Session
}

// Option configures a Directory.
type Option func(*Directory)

// WithParams sets the argon2id parameters for new password hashes.
func WithParams(p credential.Params) Option {
	return func(d *Directory) { d.hasher = credential.NewHasher(p) }
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(d *Directory) { d.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) { d.logger = logger }
}

// WithRetry sets how many times read-only lookups are retried on
// connection errors and the initial backoff between attempts.
func WithRetry(retries uint64, delay time.Duration) Option {
	return func(d *Directory) {
		d.retries = retries
		d.retryDelay = delay
	}
}

// New creates a Directory over an existing pool. The caller owns the pool.
func New(pool Pool, opts ...Option) *Directory {
	d := &Directory{
		pool:       pool,
		hasher:     credential.NewHasher(credential.DefaultParams),
		clock:      time.Now,
		logger:     slog.Default(),
		retries:    2,
		retryDelay: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.changes = identity.NewBroadcaster(d.logger)
	return d
}

// Open connects to dsn and returns a Directory that owns the pool.
func Open(ctx context.Context, dsn string, opts ...Option) (*Directory, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	d := New(pool, opts...)
	d.closePool = pool.Close
	return d, nil
}

// Close stops session change delivery and closes an owned pool.
func (d *Directory) Close() {
	d.changes.Close()
	if d.closePool != nil {
		d.closePool()
	}
}

// DocumentExists implements identity.Directory. Concurrent lookups of the
// same document share one query.
func (d *Directory) DocumentExists(ctx context.Context, kind identity.ActorKind, digits string) (bool, error) {
	digits = document.Clean(digits)
	key := fmt.Sprintf("doc:%d:%s", kind, digits)
	return d.exists(ctx, key, `SELECT EXISTS (SELECT 1 FROM identities WHERE kind = $1 AND document = $2)`,
		int16(kind), digits)
}

// EmailExists implements identity.Directory.
func (d *Directory) EmailExists(ctx context.Context, email string) (bool, error) {
	email = flow.NormalizeEmail(email)
	return d.exists(ctx, "email:"+email, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email)
}

// ResolveEmailForDocument implements identity.Directory.
func (d *Directory) ResolveEmailForDocument(ctx context.Context, kind identity.ActorKind, digits string) (string, error) {
	digits = document.Clean(digits)
	var email string
	err := d.retry(ctx, func(ctx context.Context) error {
		return d.pool.QueryRow(ctx,
			`SELECT a.email FROM identities i JOIN accounts a ON a.id = i.user_id
			 WHERE i.kind = $1 AND i.document = $2`,
			int16(kind), digits).Scan(&email)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("DIRECTORY_NOT_FOUND").With("kind", kind.String()).Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("DIRECTORY_QUERY_FAILED").With("op", flow.OpResolveEmail).Wrap(err)
	}
	return email, nil
}

// SignIn implements identity.Directory. Unknown emails are verified against
// a dummy hash so they take as long as a wrong password.
func (d *Directory) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	email = flow.NormalizeEmail(email)

	var (
		id          string
		hash        string
		failures    int
		lockedUntil pgtype.Timestamptz
	)
	err := d.pool.QueryRow(ctx,
		`SELECT id, password_hash, failed_attempts, locked_until FROM accounts WHERE email = $1`,
		email).Scan(&id, &hash, &failures, &lockedUntil)
	exists := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return identity.Session{}, oops.Code("DIRECTORY_QUERY_FAILED").With("op", flow.OpSignIn).Wrap(err)
	}
	if !exists {
		hash = credential.DummyHash
	}

	valid, err := d.hasher.Verify(password, hash)
	if err != nil && exists {
		return identity.Session{}, oops.Code("DIRECTORY_SIGN_IN_FAILED").Wrap(err)
	}
	if !exists {
		return identity.Session{}, invalidCredentials()
	}

	now := d.clock()
	lockout := credential.Lockout{Failures: failures}
	if lockedUntil.Valid {
		lockout.LockedUntil = lockedUntil.Time
	}
	if lockout.Locked(now) {
		return identity.Session{}, oops.Code("DIRECTORY_ACCOUNT_LOCKED").
			With("locked_until", lockout.LockedUntil).
			Wrap(identity.ErrInvalidCredentials)
	}
	if !valid {
		after, err := d.recordFailure(ctx, id, now)
		switch {
		case err != nil:
			d.logger.WarnContext(ctx, "failed to record sign-in failure", "user_id", id, "error", err)
		case after.Locked(now):
			d.logger.InfoContext(ctx, "account locked", "user_id", id, "failures", after.Failures)
		}
		return identity.Session{}, invalidCredentials()
	}
	if failures > 0 || lockedUntil.Valid {
		if err := d.resetLockout(ctx, id); err != nil {
			d.logger.WarnContext(ctx, "failed to reset sign-in failures", "user_id", id, "error", err)
		}
	}

	sess, tokenHash, err := newSession(id)
	if err != nil {
		return identity.Session{}, err
	}
	if _, err := d.pool.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, created_at) VALUES ($1, $2, $3)`,
		tokenHash, id, now.UTC()); err != nil {
		return identity.Session{}, oops.Code("DIRECTORY_SESSION_FAILED").Wrap(err)
	}
	d.setCurrent(sess)
	return sess, nil
}

// CreateAccount implements identity.Directory. The account and its first
// session are written in one transaction.
func (d *Directory) CreateAccount(ctx context.Context, email, password string) (identity.Session, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return identity.Session{}, oops.Code("DIRECTORY_WEAK_PASSWORD").
			With("min_length", MinPasswordLength).
			Wrap(identity.ErrWeakPassword)
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return identity.Session{}, oops.Code("DIRECTORY_CREATE_FAILED").Wrap(err)
	}

	id := identity.NewID()
	sess, tokenHash, err := newSession(id)
	if err != nil {
		return identity.Session{}, err
	}
	now := d.clock().UTC()

	err = d.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertAccount(ctx, tx, id, flow.NormalizeEmail(email), hash, now); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO sessions (token_hash, user_id, created_at) VALUES ($1, $2, $3)`,
			tokenHash, id, now)
		return err
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailAlreadyInUse) {
			return identity.Session{}, err
		}
		return identity.Session{}, oops.Code("DIRECTORY_CREATE_FAILED").Wrap(err)
	}

	d.logger.InfoContext(ctx, "account created", "user_id", id)
	d.setCurrent(sess)
	return sess, nil
}

// PersistIdentity implements identity.Directory as an upsert keyed on userID.
func (d *Directory) PersistIdentity(ctx context.Context, userID string, record identity.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if err := upsertIdentity(ctx, d.pool, userID, record, d.clock()); err != nil {
		return err
	}
	return nil
}

// SubscribeSessionChanges implements identity.Directory. Changes are those
// made through this Directory.
func (d *Directory) SubscribeSessionChanges(fn func(identity.SessionChange)) (identity.Subscription, error) {
	return d.changes.Subscribe(fn), nil
}

// SignOut deletes the current session and notifies subscribers.
func (d *Directory) SignOut(ctx context.Context) error {
	d.mu.Lock()
	current := d.current
	d.mu.Unlock()
	if current.UserID == "" {
		return nil
	}
	if _, err := d.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`,
		credential.HashToken(current.Token)); err != nil {
		return oops.Code("DIRECTORY_SIGN_OUT_FAILED").Wrap(err)
	}

	d.mu.Lock()
	if d.current == current {
		d.current = identity.Session{}
		d.changes.Publish(identity.SessionChange{})
	}
	d.mu.Unlock()
	d.logger.InfoContext(ctx, "signed out", "user_id", current.UserID)
	return nil
}

// Validate returns the user id a session token belongs to.
func (d *Directory) Validate(ctx context.Context, token string) (string, error) {
	var userID string
	err := d.pool.QueryRow(ctx, `SELECT user_id FROM sessions WHERE token_hash = $1`,
		credential.HashToken(token)).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("DIRECTORY_SESSION_INVALID").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("DIRECTORY_QUERY_FAILED").Wrap(err)
	}
	return userID, nil
}

// Record loads the identity record stored for userID.
func (d *Directory) Record(ctx context.Context, userID string) (identity.Record, error) {
	var (
		rec   identity.Record
		kind  int16
		birth pgtype.Date
		ind   identity.IndividualProfile
		org   identity.OrganizationProfile
		size  string
	)
	err := d.pool.QueryRow(ctx,
		`SELECT i.kind, i.document, a.email, i.phone, i.created_at,
		        i.name, i.birth_date, i.legal_name, i.trade_name, i.segment, i.company_size, i.responsible_role
		 FROM identities i JOIN accounts a ON a.id = i.user_id
		 WHERE i.user_id = $1`,
		userID).Scan(&kind, &rec.Document, &rec.Email, &rec.Phone, &rec.CreatedAt,
		&ind.Name, &birth, &org.LegalName, &org.TradeName, &org.Segment, &size, &org.ResponsibleRole)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.Record{}, oops.Code("DIRECTORY_NOT_FOUND").With("user_id", userID).Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return identity.Record{}, oops.Code("DIRECTORY_QUERY_FAILED").Wrap(err)
	}

	rec.Kind = identity.ActorKind(kind)
	switch rec.Kind {
	case identity.Individual:
		if birth.Valid {
			ind.BirthDate = birth.Time
		}
		rec.Individual = &ind
	case identity.Organization:
		org.Size = identity.CompanySize(size)
		rec.Organization = &org
	}
	return rec, nil
}

// Seed loads accounts with their identity records. Accounts whose email is
// already present are skipped, which makes seeding repeatable. It returns
// how many accounts were created.
func (d *Directory) Seed(ctx context.Context, entries []seed.Entry) (int, error) {
	created := 0
	for i, e := range entries {
		hash, err := d.hasher.Hash(e.Password)
		if err != nil {
			return created, oops.Code("DIRECTORY_SEED_FAILED").With("index", i).Wrap(err)
		}
		id := identity.NewID()
		now := d.clock().UTC()
		err = d.inTx(ctx, func(tx pgx.Tx) error {
			if err := insertAccount(ctx, tx, id, e.Email, hash, now); err != nil {
				return err
			}
			return upsertIdentity(ctx, tx, id, e.Record, now)
		})
		if errors.Is(err, identity.ErrEmailAlreadyInUse) {
			d.logger.InfoContext(ctx, "seed account already exists, skipping", "email", e.Email)
			continue
		}
		if err != nil {
			return created, oops.Code("DIRECTORY_SEED_FAILED").With("index", i).With("email", e.Email).Wrap(err)
		}
		created++
	}
	d.logger.InfoContext(ctx, "seeded accounts", "created", created, "total", len(entries))
	return created, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAccount(ctx context.Context, db execer, id, email, hash string, now time.Time) error {
	_, err := db.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		id, email, hash, now)
	if isUniqueViolation(err) {
		return oops.Code("DIRECTORY_EMAIL_TAKEN").Wrap(identity.ErrEmailAlreadyInUse)
	}
	return err
}

func upsertIdentity(ctx context.Context, db execer, userID string, r identity.Record, now time.Time) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	var (
		ind   identity.IndividualProfile
		org   identity.OrganizationProfile
		birth pgtype.Date
	)
	if r.Individual != nil {
		ind = *r.Individual
		birth = pgtype.Date{Time: ind.BirthDate, Valid: !ind.BirthDate.IsZero()}
	}
	if r.Organization != nil {
		org = *r.Organization
	}

	_, err := db.Exec(ctx,
		`INSERT INTO identities (user_id, kind, document, phone, name, birth_date,
		                         legal_name, trade_name, segment, company_size, responsible_role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (user_id) DO UPDATE SET
		     kind = EXCLUDED.kind,
		     document = EXCLUDED.document,
		     phone = EXCLUDED.phone,
		     name = EXCLUDED.name,
		     birth_date = EXCLUDED.birth_date,
		     legal_name = EXCLUDED.legal_name,
		     trade_name = EXCLUDED.trade_name,
		     segment = EXCLUDED.segment,
		     company_size = EXCLUDED.company_size,
		     responsible_role = EXCLUDED.responsible_role`,
		userID, int16(r.Kind), r.Document, r.Phone, ind.Name, birth,
		org.LegalName, org.TradeName, org.Segment, string(org.Size), org.ResponsibleRole, createdAt.UTC())

	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return oops.Code("DIRECTORY_DOCUMENT_TAKEN").
			With("kind", r.Kind.String()).
			Wrapf(identity.ErrDocumentInUse, "document is linked to another account")
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation:
		return oops.Code("DIRECTORY_UNKNOWN_USER").With("user_id", userID).Wrap(err)
	default:
		return oops.Code("DIRECTORY_PERSIST_FAILED").With("user_id", userID).Wrap(err)
	}
}

// recordFailure counts a failed sign-in in a single statement so that
// concurrent failures are never lost. It mirrors credential.Lockout: an
// expired lock restarts the count, and reaching the threshold locks.
func (d *Directory) recordFailure(ctx context.Context, id string, now time.Time) (credential.Lockout, error) {
	var (
		failures    int
		lockedUntil pgtype.Timestamptz
	)
	err := d.pool.QueryRow(ctx,
		`UPDATE accounts SET
		     failed_attempts = CASE WHEN locked_until <= $2 THEN 1 ELSE failed_attempts + 1 END,
		     locked_until = CASE
		         WHEN (CASE WHEN locked_until <= $2 THEN 1 ELSE failed_attempts + 1 END) >= $3 THEN $4
		         WHEN locked_until <= $2 THEN NULL
		         ELSE locked_until
		     END
		 WHERE id = $1
		 RETURNING failed_attempts, locked_until`,
		id, now.UTC(), credential.LockoutThreshold, now.Add(credential.LockoutDuration).UTC()).
		Scan(&failures, &lockedUntil)
	if err != nil {
		return credential.Lockout{}, err
	}
	l := credential.Lockout{Failures: failures}
	if lockedUntil.Valid {
		l.LockedUntil = lockedUntil.Time
	}
	return l, nil
}

func (d *Directory) resetLockout(ctx context.Context, id string) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE accounts SET failed_attempts = 0, locked_until = NULL WHERE id = $1`, id)
	return err
}

// exists runs a single-boolean query, collapsing concurrent calls with the
// same key. A caller whose ctx ends stops waiting without canceling the
// shared query.
func (d *Directory) exists(ctx context.Context, key, sql string, args ...any) (bool, error) {
	ch := d.lookups.DoChan(key, func() (any, error) {
		var ok bool
		err := d.retry(context.WithoutCancel(ctx), func(ctx context.Context) error {
			return d.pool.QueryRow(ctx, sql, args...).Scan(&ok)
		})
		return ok, err
	})
	select {
	case <-ctx.Done():
		return false, oops.Code("DIRECTORY_CANCELED").With("key", key).Wrap(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return false, oops.Code("DIRECTORY_QUERY_FAILED").With("key", key).Wrap(res.Err)
		}
		return res.Val.(bool), nil
	}
}

// retry runs fn, retrying connection-level failures with exponential backoff.
func (d *Directory) retry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(d.retries, retry.NewExponential(d.retryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if transient(err) {
			d.logger.DebugContext(ctx, "retrying query", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (d *Directory) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // the original error is what matters
		return err
	}
	return tx.Commit(ctx)
}

func (d *Directory) setCurrent(sess identity.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = sess
	d.changes.Publish(identity.SessionChange{Authenticated: true, UserID: sess.UserID})
}

func newSession(userID string) (identity.Session, string, error) {
	token, hash, err := credential.GenerateToken()
	if err != nil {
		return identity.Session{}, "", oops.Code("DIRECTORY_SESSION_FAILED").Wrap(err)
	}
	return identity.Session{UserID: userID, Token: token}, hash, nil
}

func transient(err error) bool {
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code)
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func invalidCredentials() error {
	return oops.Code("DIRECTORY_INVALID_CREDENTIALS").Wrap(identity.ErrInvalidCredentials)
}
