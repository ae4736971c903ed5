// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

// Package session routes a user from launch to an authenticated session:
// splash, onboarding, kind selection, document entry, then login or
// registration.
package session

import (
	"context"
	"errors"
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
	"github.com/oryen/oryen/internal/flow"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/onboarding"
	"github.com/oryen/oryen/pkg/errutil"
)

var tracer = otel.Tracer("oryen/session")

// OnboardingState describes the onboarding page being shown.
type OnboardingState struct {
	Page     onboarding.Page
	Index    int
	Total    int
	Button   string
	ShowSkip bool
}

// State is a point-in-time copy of a Controller.
type State struct {
	Route         Route
	Kind          identity.ActorKind
	Document      string
	DocumentValid bool
	Loading       bool
	LastError     *flow.Error
	Authenticated bool
	UserID        string
	Outcome       *flow.Outcome
	Onboarding    OnboardingState
	// Flow is the active login or registration machine, if any.
	Flow *flow.State
}

// Option configures a Controller during construction.
type Option func(*Controller)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver reports flow transitions and directory calls to o.
func WithObserver(o flow.Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithClock overrides the time source handed to flows.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithOnboardingSeen skips onboarding when seen is true.
func WithOnboardingSeen(seen bool) Option {
	return func(c *Controller) {
		c.seenOnboarding = seen
	}
}

// WithPages replaces the onboarding pages.
func WithPages(pages []onboarding.Page) Option {
	return func(c *Controller) {
		c.pages = pages
	}
}

// WithOnChange registers fn to be called after every state change,
// including changes inside the active flow. fn runs without locks held.
func WithOnChange(fn func()) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller owns top-level routing and the authenticated flag. It is safe
// for concurrent use.
type Controller struct {
	mu sync.Mutex

	dir      identity.Directory
	logger   *slog.Logger
	observer flow.Observer
	now      func() time.Time
	onChange func()
	pages    []onboarding.Page

	route          Route
	seenOnboarding bool
	pager          *onboarding.Pager
	kind           identity.ActorKind
	document       string
	loading        bool
	inflight       bool
	lastErr        *flow.Error
	generation     uint64
	machine        *flow.Machine

	authenticated bool
	userID        string
	outcome       *flow.Outcome

	sub     identity.Subscription
	started bool
	closed  bool
}

// NewController creates a Controller on the splash route. Call Start to
// subscribe to session changes.
func NewController(dir identity.Directory, opts ...Option) (*Controller, error) {
	if dir == nil {
		return nil, flow.ErrNilDirectory()
	}
	c := &Controller{
		dir:    dir,
		logger: slog.Default(),
		route:  RouteSplash,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pager = onboarding.NewPager(c.pages)
	return c, nil
}

// Start subscribes to the directory's session changes. The directory
// reports the current state during the call.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed()
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	sub, err := c.dir.SubscribeSessionChanges(c.handleSessionChange)
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return oops.Code("SESSION_SUBSCRIBE_FAILED").Wrap(err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.Unsubscribe()
		return ErrClosed()
	}
	c.sub = sub
	authenticated := c.authenticated
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "session controller started", "authenticated", authenticated)
	return nil
}

// Close unsubscribes from session changes and closes the active flow.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.loading = false
	sub, m := c.sub, c.machine
	c.sub, c.machine = nil, nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if m != nil {
		m.Close()
	}
}

func (c *Controller) handleSessionChange(ch identity.SessionChange) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.authenticated = ch.Authenticated
	c.userID = ch.UserID
	loggedOut := !ch.Authenticated && c.route == RouteAuthenticated
	if loggedOut {
		c.route = RouteKindSelection
		c.outcome = nil
	}
	c.mu.Unlock()

	c.logger.Debug("session change", "authenticated", ch.Authenticated, "user_id", ch.UserID)
	c.changed()
}

// FinishSplash leaves the splash screen.
func (c *Controller) FinishSplash() (Route, error) {
	c.mu.Lock()
	if c.route != RouteSplash {
		defer c.mu.Unlock()
		return c.route, ErrWrongRoute("finish splash", c.route)
	}
	if !c.seenOnboarding {
		c.route = RouteOnboarding
	} else {
		c.route = c.landingLocked()
	}
	r := c.route
	c.mu.Unlock()

	c.changed()
	return r, nil
}

// AdvanceOnboarding handles the onboarding main button. On the last page
// it finishes onboarding.
func (c *Controller) AdvanceOnboarding() (Route, error) {
	c.mu.Lock()
	if c.route != RouteOnboarding {
		defer c.mu.Unlock()
		return c.route, ErrWrongRoute("advance onboarding", c.route)
	}
	if c.pager.Advance() {
		c.finishOnboardingLocked()
	}
	r := c.route
	c.mu.Unlock()

	c.changed()
	return r, nil
}

// SkipOnboarding jumps to the last onboarding page.
func (c *Controller) SkipOnboarding() error {
	c.mu.Lock()
	if c.route != RouteOnboarding {
		defer c.mu.Unlock()
		return ErrWrongRoute("skip onboarding", c.route)
	}
	c.pager.SkipToEnd()
	c.mu.Unlock()

	c.changed()
	return nil
}

// FinishOnboarding marks onboarding seen and routes on.
func (c *Controller) FinishOnboarding() (Route, error) {
	c.mu.Lock()
	if c.route != RouteOnboarding {
		defer c.mu.Unlock()
		return c.route, ErrWrongRoute("finish onboarding", c.route)
	}
	c.finishOnboardingLocked()
	r := c.route
	c.mu.Unlock()

	c.changed()
	return r, nil
}

func (c *Controller) finishOnboardingLocked() {
	c.seenOnboarding = true
	c.route = c.landingLocked()
}

// landingLocked is where a user lands after the introduction.
func (c *Controller) landingLocked() Route {
	if c.authenticated {
		return RouteAuthenticated
	}
	return RouteKindSelection
}

// SelectKind chooses the actor kind and moves to document entry.
func (c *Controller) SelectKind(kind identity.ActorKind) error {
	if !kind.Valid() {
		return ErrInvalidKind(kind)
	}
	c.mu.Lock()
	if c.route != RouteKindSelection {
		defer c.mu.Unlock()
		return ErrWrongRoute("select kind", c.route)
	}
	c.kind = kind
	c.document = ""
	c.lastErr = nil
	c.route = RouteDocumentEntry
	c.mu.Unlock()

	c.changed()
	return nil
}

// UpdateDocument stores a keystroke on the document entry screen.
func (c *Controller) UpdateDocument(raw string) error {
	c.mu.Lock()
	if c.route != RouteDocumentEntry {
		defer c.mu.Unlock()
		return ErrWrongRoute("update document", c.route)
	}
	c.document = document.Truncate(raw, c.kind.DocumentLength())
	c.lastErr = nil
	c.mu.Unlock()

	c.changed()
	return nil
}

// SubmitDocument checks whether an account exists for the document and
// routes to login or registration. An empty raw submits the document
// entered with UpdateDocument. A malformed document or a failed lookup
// is reported through State.LastError and leaves the route unchanged.
func (c *Controller) SubmitDocument(ctx context.Context, raw string) error {
	c.mu.Lock()
	switch {
	case c.route != RouteDocumentEntry:
		defer c.mu.Unlock()
		return ErrWrongRoute("submit document", c.route)
	case c.loading || c.inflight:
		// A lookup abandoned by Back may still be running.
		c.mu.Unlock()
		return ErrBusy()
	}
	if raw == "" {
		raw = c.document
	}
	kind := c.kind
	digits := document.Truncate(raw, kind.DocumentLength())
	c.document = digits
	if !document.IsValid(kind, digits) {
		c.lastErr = &flow.Error{
			Kind:    identity.ValidationError,
			Message: fmt.Sprintf(MsgInvalidDocument, kind.DocumentLabel()),
		}
		c.mu.Unlock()
		c.changed()
		return nil
	}
	c.loading = true
	c.inflight = true
	c.lastErr = nil
	gen := c.generation
	c.mu.Unlock()
	c.changed()

	var (
		exists bool
		email  string
	)
	err := c.call(ctx, flow.OpDocumentExists, kind, func(ctx context.Context) (err error) {
		exists, err = c.dir.DocumentExists(ctx, kind, digits)
		return err
	})
	if err == nil && exists {
		err = c.call(ctx, flow.OpResolveEmail, kind, func(ctx context.Context) (err error) {
			email, err = c.dir.ResolveEmailForDocument(ctx, kind, digits)
			return err
		})
	}

	c.mu.Lock()
	c.inflight = false
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	c.loading = false

	var (
		m        *flow.Machine
		buildErr error
	)
	notFound := errors.Is(err, identity.ErrNotFound)
	switch {
	case err != nil && !notFound:
		c.lastErr = &flow.Error{Kind: identity.TransportError, Message: flow.MsgConnection, Err: err}
	case exists && !notFound:
		m, buildErr = flow.NewLogin(c.dir, kind, digits, append(c.flowOptions(), flow.WithEmail(email))...)
		c.route = RouteLogin
	default:
		// Unknown document, or a document with no linked email.
		m, buildErr = flow.NewRegistration(c.dir, kind, digits, c.flowOptions()...)
		c.route = RouteRegistration
	}
	if buildErr != nil {
		c.route = RouteDocumentEntry
		c.lastErr = &flow.Error{Kind: identity.ValidationError, Message: fmt.Sprintf(MsgInvalidDocument, kind.DocumentLabel()), Err: buildErr}
		err = buildErr
	}
	c.machine = m
	route := c.route
	c.mu.Unlock()

	if err != nil && !notFound {
		errutil.LogWarn(c.logger, "document lookup failed", err)
	} else {
		c.logger.Debug("document routed", "kind", kind.String(), "route", route.String())
	}
	c.changed()
	return nil
}

// Back leaves the current screen: document entry returns to kind
// selection, and login or registration are abandoned to document entry.
func (c *Controller) Back() (Route, error) {
	c.mu.Lock()
	var m *flow.Machine
	switch c.route {
	case RouteDocumentEntry:
		c.generation++
		c.loading = false
		c.lastErr = nil
		c.route = RouteKindSelection
	case RouteLogin, RouteRegistration:
		m = c.machine
		c.machine = nil
		c.route = RouteDocumentEntry
	default:
		defer c.mu.Unlock()
		return c.route, ErrWrongRoute("back", c.route)
	}
	r := c.route
	c.mu.Unlock()

	if m != nil {
		m.Close()
	}
	c.changed()
	return r, nil
}

// Next advances the active login or registration flow.
func (c *Controller) Next(ctx context.Context) (flow.Transition, error) {
	m, err := c.activeMachine("next")
	if err != nil {
		return 0, err
	}
	t := m.Next(ctx)
	c.settle(m, t)
	return t, nil
}

// Previous steps back in the active flow. On the first step the flow is
// abandoned and the route returns to document entry.
func (c *Controller) Previous() (flow.Transition, error) {
	m, err := c.activeMachine("previous")
	if err != nil {
		return 0, err
	}
	t := m.Previous()
	c.settle(m, t)
	return t, nil
}

// Update sets a field of the active flow.
func (c *Controller) Update(f flow.Field, value string) error {
	m, err := c.activeMachine("update")
	if err != nil {
		return err
	}
	return m.Update(f, value)
}

// SignOut ends the provider session when the directory supports it.
func (c *Controller) SignOut(ctx context.Context) error {
	so, ok := c.dir.(identity.SignOuter)
	if !ok {
		return ErrSignOutUnsupported()
	}
	if err := so.SignOut(ctx); err != nil {
		return oops.Code("SESSION_SIGNOUT_FAILED").Wrap(err)
	}
	// The directory also pushes a change; applying it here keeps the
	// route consistent for directories that deliver asynchronously.
	c.handleSessionChange(identity.SessionChange{})
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	s := State{
		Route:         c.route,
		Kind:          c.kind,
		Document:      document.Format(c.kind, c.document),
		DocumentValid: document.IsValid(c.kind, c.document),
		Loading:       c.loading,
		Authenticated: c.authenticated,
		UserID:        c.userID,
		Onboarding: OnboardingState{
			Page:     c.pager.Current(),
			Index:    c.pager.Index(),
			Total:    c.pager.Len(),
			Button:   c.pager.ButtonLabel(),
			ShowSkip: c.pager.ShowSkip(),
		},
	}
	if c.lastErr != nil {
		e := *c.lastErr
		s.LastError = &e
	}
	if c.outcome != nil {
		o := *c.outcome
		s.Outcome = &o
	}
	m := c.machine
	c.mu.Unlock()

	if m != nil {
		fs := m.Snapshot()
		s.Flow = &fs
	}
	return s
}

func (c *Controller) activeMachine(action string) (*flow.Machine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed()
	}
	if c.machine == nil {
		return nil, ErrWrongRoute(action, c.route)
	}
	return c.machine, nil
}

// settle applies a flow's terminal transitions to the route.
func (c *Controller) settle(m *flow.Machine, t flow.Transition) {
	if t != flow.Completed && t != flow.Abandoned {
		return
	}
	outcome := m.Snapshot().Outcome

	c.mu.Lock()
	if c.machine != m {
		c.mu.Unlock()
		return
	}
	c.machine = nil
	switch t {
	case flow.Completed:
		c.outcome = outcome
		c.authenticated = true
		if outcome != nil {
			c.userID = outcome.UserID()
		}
		c.route = RouteAuthenticated
	case flow.Abandoned:
		c.route = RouteDocumentEntry
	}
	c.mu.Unlock()

	m.Close()
	c.changed()
}

func (c *Controller) flowOptions() []flow.Option {
	opts := []flow.Option{
		flow.WithLogger(c.logger),
		flow.WithOnChange(c.changed),
	}
	if c.observer != nil {
		opts = append(opts, flow.WithObserver(c.observer))
	}
	if c.now != nil {
		opts = append(opts, flow.WithClock(c.now))
	}
	return opts
}

func (c *Controller) call(ctx context.Context, op string, kind identity.ActorKind, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "session."+op, trace.WithAttributes(
		attribute.String("actor.kind", kind.String()),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if c.observer != nil {
		result := flow.ResultOK
		if err != nil {
			result = identity.Classify(err).String()
		}
		c.observer.ObserveCall(op, result, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
