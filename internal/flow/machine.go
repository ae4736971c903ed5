// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oryen/oryen/internal/document"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/logging"
	"github.com/oryen/oryen/internal/password"
	"github.com/oryen/oryen/pkg/errutil"
)

var tracer = otel.Tracer("oryen/flow")

// MsgReviewStep is shown when finalization finds an earlier step no longer
// valid because a field was edited after the step was passed.
const MsgReviewStep = "Please review the %q step."

// MsgReviewDetails is shown when the assembled record fails validation.
const MsgReviewDetails = "Please review your details."

// MsgUnknownField is returned by Update for a field the sequence does not collect.
const MsgUnknownField = "Field %q is not part of this flow."

// StepState describes the active step to the presentation layer.
type StepState struct {
	ID       StepID
	Title    string
	Subtitle string
	Fields   []Field
	Check    Check
	Position int
	Total    int
	Terminal bool
}

// State is a point-in-time copy of a Machine.
type State struct {
	ID        string
	Kind      identity.ActorKind
	Mode      Mode
	Step      StepState
	Fields    Draft
	Valid     bool
	Loading   bool
	LastError *Error
	Strength  password.Strength
	Outcome   *Outcome
	Closed    bool
}

// Option configures a Machine during construction.
type Option func(*Machine)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver reports transitions and directory calls to o.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithClock overrides the time source used for birth-date checks and
// record timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithID sets the flow instance id. The default is a new ULID.
func WithID(id string) Option {
	return func(m *Machine) {
		if id != "" {
			m.id = id
		}
	}
}

// WithOnChange registers fn to be called after every state change. fn runs
// without the Machine lock held and may call Snapshot.
func WithOnChange(fn func()) Option {
	return func(m *Machine) {
		m.onChange = fn
	}
}

// WithEmail supplies an email already resolved for the login document, so
// finalization goes straight to sign-in.
func WithEmail(email string) Option {
	return func(m *Machine) {
		m.email = NormalizeEmail(email)
	}
}

// Machine drives one login or registration flow. It is safe for concurrent
// use; directory calls run without the lock held and at most one is in
// flight at a time. Previous and Close hide loading and discard the pending
// result, but Next reports Busy until the abandoned call has returned.
type Machine struct {
	mu sync.Mutex

	id       string
	kind     identity.ActorKind
	mode     Mode
	seq      Sequence
	dir      identity.Directory
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
	onChange func()

	cursor     int
	draft      Draft
	loading    bool
	inflight   bool
	lastErr    *Error
	outcome    *Outcome
	generation uint64
	closed     bool

	// email is the login email, resolved or supplied.
	email string
	// created is the account made by a finalization whose PersistIdentity
	// failed. A retry persists against it instead of creating again.
	created      *identity.Session
	createdEmail string
}

// NewRegistration starts a registration flow for kind. Individuals must
// supply a valid CPF. Organizations may supply a CNPJ already checked for
// existence; when it is valid the flow starts past the document step.
func NewRegistration(dir identity.Directory, kind identity.ActorKind, doc string, opts ...Option) (*Machine, error) {
	if dir == nil {
		return nil, ErrNilDirectory()
	}
	seq := SequenceFor(kind)
	if seq == nil {
		return nil, oops.Code("FLOW_KIND_INVALID").With("kind", int(kind)).Errorf("unknown actor kind")
	}

	m := newMachine(dir, kind, ModeRegistration, seq, opts)
	digits := document.Clean(doc)
	switch kind {
	case identity.Individual:
		if !document.IsValidIndividual(digits) {
			return nil, ErrInvalidDocument(kind, digits)
		}
		m.draft[FieldDocument] = document.Format(kind, digits)
	case identity.Organization:
		m.draft[FieldSize] = string(identity.SizeMicro)
		if digits != "" {
			m.draft[FieldDocument] = document.Format(kind, digits)
			if document.IsValidOrganization(digits) {
				m.cursor = seq.Index(StepBasicInfo)
			}
		}
	}

	m.logger.Debug("registration flow started", "step", m.seq[m.cursor].ID)
	return m, nil
}

// NewLogin starts the one-step login flow for a document known to exist.
func NewLogin(dir identity.Directory, kind identity.ActorKind, doc string, opts ...Option) (*Machine, error) {
	if dir == nil {
		return nil, ErrNilDirectory()
	}
	digits := document.Clean(doc)
	if !document.IsValid(kind, digits) {
		return nil, ErrInvalidDocument(kind, digits)
	}

	m := newMachine(dir, kind, ModeLogin, LoginSequence(), opts)
	m.draft[FieldDocument] = document.Format(kind, digits)

	m.logger.Debug("login flow started", "email_resolved", m.email != "")
	return m, nil
}

func newMachine(dir identity.Directory, kind identity.ActorKind, mode Mode, seq Sequence, opts []Option) *Machine {
	m := &Machine{
		id:       identity.NewID(),
		kind:     kind,
		mode:     mode,
		seq:      seq,
		dir:      dir,
		logger:   slog.Default(),
		observer: nopObserver{},
		now:      time.Now,
		draft:    Draft{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("flow_id", m.id, "mode", mode.String(), "kind", kind.String())
	return m
}

// ErrNilDirectory is returned when a flow is built without a directory.
func ErrNilDirectory() error {
	return oops.Code("FLOW_NIL_DIRECTORY").Errorf("identity directory is required")
}

// ErrInvalidDocument is returned when a flow is built with a malformed document.
func ErrInvalidDocument(kind identity.ActorKind, digits string) error {
	return oops.Code("FLOW_DOCUMENT_INVALID").
		With("kind", kind.String()).
		With("length", len(digits)).
		Errorf("invalid %s", kind.DocumentLabel())
}

// ID returns the flow instance id.
func (m *Machine) ID() string {
	return m.id
}

// Kind returns the actor kind of the flow.
func (m *Machine) Kind() identity.ActorKind {
	return m.kind
}

// Mode returns whether this is a login or registration flow.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Next validates the active step and moves forward. Async steps and the
// terminal step call the directory and block until it returns.
func (m *Machine) Next(ctx context.Context) Transition {
	m.mu.Lock()
	step := m.seq[m.cursor]
	switch {
	case m.ended():
		m.mu.Unlock()
		return m.emit(step.ID, Closed, false)
	case m.loading || m.inflight:
		m.mu.Unlock()
		return m.emit(step.ID, Busy, false)
	case !step.Valid(m.draft, m.now()):
		m.mu.Unlock()
		return m.emit(step.ID, Invalid, false)
	}

	if m.cursor == len(m.seq)-1 {
		if m.mode == ModeLogin {
			return m.signInLocked(ctx, step)
		}
		return m.registerLocked(ctx, step)
	}
	if step.Check != CheckNone {
		return m.checkLocked(ctx, step)
	}

	m.advanceLocked()
	m.mu.Unlock()
	return m.emit(step.ID, Advanced, true)
}

// Previous moves back one step, or reports Abandoned on the first step.
// Draft fields are kept. A call in flight is abandoned and its result will
// be discarded; Next stays Busy until that call returns.
func (m *Machine) Previous() Transition {
	m.mu.Lock()
	step := m.seq[m.cursor]
	if m.ended() {
		m.mu.Unlock()
		return m.emit(step.ID, Closed, false)
	}

	wasLoading := m.loading
	m.generation++
	m.loading = false

	if m.cursor == 0 {
		m.mu.Unlock()
		return m.emit(step.ID, Abandoned, wasLoading)
	}
	m.cursor--
	m.lastErr = nil
	m.mu.Unlock()
	return m.emit(step.ID, Retreated, true)
}

// Update stores a field value and clears the visible error. Document and
// phone values are cleaned, truncated and masked. A call in flight is not
// cancelled. Changing a field whose uniqueness an earlier step already
// checked moves the cursor back to that step so the check runs again.
func (m *Machine) Update(f Field, value string) error {
	m.mu.Lock()
	if m.ended() {
		m.mu.Unlock()
		return newError(identity.ValidationError, MsgFlowClosed, nil)
	}
	if !m.seq.Collects(f) {
		m.mu.Unlock()
		return newError(identity.ValidationError, fmt.Sprintf(MsgUnknownField, f), nil)
	}
	value = normalize(m.kind, f, value)
	if lookupKey(f, value) != lookupKey(f, m.draft[f]) {
		m.rewindLocked(f)
	}
	m.draft[f] = value
	m.lastErr = nil
	m.mu.Unlock()

	m.changed()
	return nil
}

// Close ends the flow, drops the draft and discards any call in flight.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.generation++
	m.loading = false
	m.draft = Draft{}
	m.mu.Unlock()

	m.logger.Debug("flow closed")
	m.changed()
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	step := m.seq[m.cursor]
	s := State{
		ID:   m.id,
		Kind: m.kind,
		Mode: m.mode,
		Step: StepState{
			ID:       step.ID,
			Title:    step.Title,
			Subtitle: step.Subtitle,
			Fields:   step.Fields,
			Check:    step.Check,
			Position: m.cursor,
			Total:    len(m.seq),
			Terminal: m.cursor == len(m.seq)-1,
		},
		Fields:   m.draft.Clone(),
		Valid:    step.Valid(m.draft, m.now()),
		Loading:  m.loading,
		Strength: password.Evaluate(m.draft.Get(FieldPassword)),
		Closed:   m.closed,
	}
	if m.lastErr != nil {
		e := *m.lastErr
		s.LastError = &e
	}
	if m.outcome != nil {
		o := *m.outcome
		s.Outcome = &o
	}
	return s
}

func (m *Machine) checkLocked(ctx context.Context, step Step) Transition {
	gen := m.beginLocked()
	email := m.draft.Email()
	digits := m.draft.Digits(FieldDocument)
	m.mu.Unlock()
	m.changed()

	var (
		exists   bool
		err      error
		conflict string
	)
	switch step.Check {
	case CheckEmail:
		conflict = MsgEmailConflict
		err = m.call(ctx, OpEmailExists, func(ctx context.Context) (err error) {
			exists, err = m.dir.EmailExists(ctx, email)
			return err
		})
	case CheckDocument:
		conflict = MsgDocumentConflict
		err = m.call(ctx, OpDocumentExists, func(ctx context.Context) (err error) {
			exists, err = m.dir.DocumentExists(ctx, m.kind, digits)
			return err
		})
	}

	m.mu.Lock()
	m.inflight = false
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return m.emit(step.ID, Discarded, false)
	}
	m.loading = false
	var t Transition
	switch {
	case err != nil:
		m.lastErr = lookupError(err)
		t = Stayed
	case exists:
		m.lastErr = newError(identity.ConflictError, conflict, nil)
		t = Stayed
	default:
		m.advanceLocked()
		t = Advanced
	}
	m.mu.Unlock()

	if err != nil {
		errutil.LogWarn(m.logger, "existence check failed", err)
	}
	return m.emit(step.ID, t, true)
}

func (m *Machine) registerLocked(ctx context.Context, step Step) Transition {
	if m.draft.Get(FieldPassword) != m.draft.Get(FieldConfirmPassword) {
		m.lastErr = newError(identity.ValidationError, MsgPasswordMismatch, nil)
		m.mu.Unlock()
		return m.emit(step.ID, Stayed, true)
	}
	now := m.now()
	for _, prior := range m.seq[:m.cursor] {
		if !prior.Valid(m.draft, now) {
			m.lastErr = newError(identity.ValidationError, fmt.Sprintf(MsgReviewStep, prior.Title), nil)
			m.mu.Unlock()
			return m.emit(step.ID, Stayed, true)
		}
	}
	record := m.recordLocked(now)
	if err := record.Validate(); err != nil {
		m.lastErr = newError(identity.ValidationError, MsgReviewDetails, err)
		m.mu.Unlock()
		errutil.LogError(m.logger, "registration record invalid", err)
		return m.emit(step.ID, Stayed, true)
	}

	gen := m.beginLocked()
	pw := m.draft.Get(FieldPassword)
	var sess identity.Session
	created := m.created != nil && m.createdEmail == record.Email
	if created {
		sess = *m.created
	}
	m.mu.Unlock()
	m.changed()

	var err error
	if !created {
		err = m.call(ctx, OpCreateAccount, func(ctx context.Context) (err error) {
			sess, err = m.dir.CreateAccount(ctx, record.Email, pw)
			return err
		})
	}
	if err == nil {
		err = m.call(ctx, OpPersistIdentity, func(ctx context.Context) error {
			return m.dir.PersistIdentity(ctx, sess.UserID, record)
		})
		if err != nil {
			m.mu.Lock()
			m.created, m.createdEmail = &sess, record.Email
			m.mu.Unlock()
		}
	}

	m.mu.Lock()
	m.inflight = false
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return m.emit(step.ID, Discarded, false)
	}
	m.loading = false
	if err != nil {
		m.lastErr = createError(err)
		m.mu.Unlock()
		errutil.LogWarn(m.logger, "registration failed", err)
		return m.emit(step.ID, Stayed, true)
	}
	m.completeLocked(Outcome{Kind: RegisteredIdentity, Session: sess, Actor: m.kind, Email: record.Email})
	m.mu.Unlock()

	m.logger.Info("registration completed", "user_id", sess.UserID)
	return m.emit(step.ID, Completed, true)
}

func (m *Machine) signInLocked(ctx context.Context, step Step) Transition {
	gen := m.beginLocked()
	email := m.email
	digits := m.draft.Digits(FieldDocument)
	pw := m.draft.Get(FieldPassword)
	m.mu.Unlock()
	m.changed()

	var err error
	if email == "" {
		err = m.call(ctx, OpResolveEmail, func(ctx context.Context) (err error) {
			email, err = m.dir.ResolveEmailForDocument(ctx, m.kind, digits)
			email = NormalizeEmail(email)
			return err
		})
	}
	var sess identity.Session
	if err == nil {
		err = m.call(ctx, OpSignIn, func(ctx context.Context) (err error) {
			sess, err = m.dir.SignIn(ctx, email, pw)
			return err
		})
	}

	m.mu.Lock()
	m.inflight = false
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return m.emit(step.ID, Discarded, false)
	}
	m.loading = false
	if email != "" {
		m.email = email
	}
	if err != nil {
		m.lastErr = loginError(err)
		m.mu.Unlock()
		errutil.LogWarn(m.logger, "sign-in failed", err)
		return m.emit(step.ID, Stayed, true)
	}
	m.completeLocked(Outcome{Kind: AuthenticatedSession, Session: sess, Actor: m.kind, Email: email})
	m.mu.Unlock()

	m.logger.Info("sign-in completed", "user_id", sess.UserID)
	return m.emit(step.ID, Completed, true)
}

// call runs one directory operation under a span and reports it to the observer.
func (m *Machine) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx = logging.WithFlowID(ctx, m.id)
	ctx, span := tracer.Start(ctx, "flow."+op, trace.WithAttributes(
		attribute.String("flow.id", m.id),
		attribute.String("flow.mode", m.mode.String()),
		attribute.String("actor.kind", m.kind.String()),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	m.observer.ObserveCall(op, callResult(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *Machine) recordLocked(now time.Time) identity.Record {
	r := identity.Record{
		Kind:      m.kind,
		Document:  m.draft.Digits(FieldDocument),
		Email:     m.draft.Email(),
		Phone:     m.draft.Digits(FieldPhone),
		CreatedAt: now.UTC(),
	}
	switch m.kind {
	case identity.Individual:
		birth, _ := ParseBirthDate(m.draft.Get(FieldBirthDate), now)
		r.Individual = &identity.IndividualProfile{
			Name:      m.draft.Trimmed(FieldName),
			BirthDate: birth,
		}
	case identity.Organization:
		r.Organization = &identity.OrganizationProfile{
			LegalName:       m.draft.Trimmed(FieldLegalName),
			TradeName:       m.draft.Trimmed(FieldTradeName),
			Segment:         m.draft.Trimmed(FieldSegment),
			Size:            identity.CompanySize(m.draft.Get(FieldSize)),
			ResponsibleRole: m.draft.Trimmed(FieldRole),
		}
	}
	return r
}

func (m *Machine) beginLocked() uint64 {
	m.loading = true
	m.inflight = true
	m.lastErr = nil
	return m.generation
}

func (m *Machine) currentLocked(gen uint64) bool {
	return !m.closed && gen == m.generation
}

// rewindLocked moves the cursor back to the passed step whose check owns f.
// A result still in flight for a later step is discarded.
func (m *Machine) rewindLocked(f Field) {
	for i, step := range m.seq[:m.cursor] {
		if step.Check == CheckNone || step.Check.Field() != f {
			continue
		}
		m.logger.Debug("checked field edited, rewinding", "field", f, "step", step.ID)
		m.cursor = i
		m.generation++
		m.loading = false
		return
	}
}

// lookupKey is the form of a field value that existence checks query.
func lookupKey(f Field, value string) string {
	switch f {
	case FieldEmail:
		return NormalizeEmail(value)
	case FieldDocument:
		return document.Clean(value)
	default:
		return value
	}
}

func (m *Machine) advanceLocked() {
	m.cursor++
	m.lastErr = nil
}

func (m *Machine) completeLocked(o Outcome) {
	m.outcome = &o
	m.draft = Draft{}
	m.created = nil
}

func (m *Machine) ended() bool {
	return m.closed || m.outcome != nil
}

func (m *Machine) emit(step StepID, t Transition, changed bool) Transition {
	m.observer.ObserveTransition(m.mode, m.kind, step, t)
	m.logger.Debug("flow transition", "step", step, "transition", t.String())
	if changed {
		m.changed()
	}
	return t
}

func (m *Machine) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}
