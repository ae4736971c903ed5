// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/oryen/oryen/internal/flow"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/password"
	"github.com/oryen/oryen/internal/session"
)

const replHelp = `commands:
  continue               leave the splash screen
  next                   next onboarding page, or submit the current step
  skip                   jump to the last onboarding page
  start                  finish onboarding
  kind <individual|organization>
  doc <document>         submit a CPF or CNPJ
  set <field> <value>    fill a field of the current step
  prev                   previous step
  back                   leave the current screen
  signout                end the session
  status                 show the current screen
  quit`

// repl drives a session.Controller from text commands.
type repl struct {
	ctrl    *session.Controller
	out     io.Writer
	timeout time.Duration

	// routed is called with every new route.
	routed func(session.Route)
	// onboarded is called once onboarding is left.
	onboarded func()
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.render()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			if err := scanner.Err(); err != nil {
				return oops.Code("INPUT_FAILED").Wrap(err)
			}
			return nil
		}
		quit, err := r.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

// exec runs one command line. It reports whether the session should end.
func (r *repl) exec(ctx context.Context, line string) (bool, error) {
	verb, args, _ := strings.Cut(strings.TrimLeft(line, " \t"), " ")
	verb = strings.TrimSpace(verb)
	rest := strings.TrimSpace(args)

	before := r.ctrl.Snapshot().Route
	var err error
	switch verb {
	case "":
		return false, nil
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(r.out, replHelp)
		return false, nil
	case "status":
	case "continue":
		_, err = r.ctrl.FinishSplash()
	case "next":
		err = r.next(ctx, before)
	case "skip":
		err = r.ctrl.SkipOnboarding()
	case "start":
		_, err = r.ctrl.FinishOnboarding()
	case "kind":
		var kind identity.ActorKind
		if kind, err = identity.ParseActorKind(rest); err == nil {
			err = r.ctrl.SelectKind(kind)
		}
	case "doc":
		err = r.withTimeout(ctx, func(ctx context.Context) error {
			return r.ctrl.SubmitDocument(ctx, rest)
		})
	case "set":
		// Only the separator after the field name is dropped from secrets.
		field, value, _ := strings.Cut(strings.TrimLeft(args, " \t"), " ")
		if !isSecret(flow.Field(field)) {
			value = strings.TrimSpace(value)
		}
		err = r.ctrl.Update(flow.Field(field), value)
	case "prev":
		_, err = r.ctrl.Previous()
	case "back":
		_, err = r.ctrl.Back()
	case "signout":
		err = r.withTimeout(ctx, r.ctrl.SignOut)
	default:
		return false, oops.Code("UNKNOWN_COMMAND").With("command", verb).Errorf("unknown command %q, try help", verb)
	}
	if err != nil {
		return false, err
	}

	after := r.render()
	if after != before {
		if r.routed != nil {
			r.routed(after)
		}
		if before == session.RouteOnboarding && r.onboarded != nil {
			r.onboarded()
		}
	}
	return false, nil
}

func (r *repl) next(ctx context.Context, route session.Route) error {
	if route == session.RouteOnboarding {
		_, err := r.ctrl.AdvanceOnboarding()
		return err
	}
	return r.withTimeout(ctx, func(ctx context.Context) error {
		_, err := r.ctrl.Next(ctx)
		return err
	})
}

func (r *repl) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}

// render prints the current screen and returns its route.
func (r *repl) render() session.Route {
	s := r.ctrl.Snapshot()
	w := r.out

	switch s.Route {
	case session.RouteSplash:
		fmt.Fprintln(w, "[splash] Oryen. Type 'continue'.")
	case session.RouteOnboarding:
		o := s.Onboarding
		fmt.Fprintf(w, "[onboarding %d/%d] %s\n  %s\n", o.Index+1, o.Total, o.Page.Title, o.Page.Description)
		hint := fmt.Sprintf("  next: %s", o.Button)
		if o.ShowSkip {
			hint += "  skip: Skip"
		}
		fmt.Fprintln(w, hint)
	case session.RouteKindSelection:
		fmt.Fprintln(w, "[kind selection]")
		for _, opt := range session.KindOptions {
			fmt.Fprintf(w, "  kind %-12s %s: %s\n", opt.Kind, opt.Title, opt.Description)
		}
	case session.RouteDocumentEntry:
		fmt.Fprintf(w, "[document entry] %s: %s\n", s.Kind.DocumentLabel(), s.Document)
	case session.RouteLogin, session.RouteRegistration:
		renderFlow(w, s.Flow)
	case session.RouteAuthenticated:
		fmt.Fprintf(w, "[authenticated] user %s\n", s.UserID)
		if s.Outcome != nil {
			fmt.Fprintf(w, "  %s %s %s\n", s.Outcome.Kind, s.Outcome.Actor, s.Outcome.Email)
		}
	}
	if s.LastError != nil {
		fmt.Fprintf(w, "  ! %s\n", s.LastError.Message)
	}
	return s.Route
}

func isSecret(f flow.Field) bool {
	return f == flow.FieldPassword || f == flow.FieldConfirmPassword
}

func renderFlow(w io.Writer, fs *flow.State) {
	if fs == nil {
		return
	}
	fmt.Fprintf(w, "[%s %s %d/%d] %s\n", fs.Mode, fs.Kind, fs.Step.Position+1, fs.Step.Total, fs.Step.Title)
	if fs.Step.Subtitle != "" {
		fmt.Fprintf(w, "  %s\n", fs.Step.Subtitle)
	}
	for _, f := range fs.Step.Fields {
		value := fs.Fields.Get(f)
		if isSecret(f) {
			value = strings.Repeat("*", len([]rune(value)))
		}
		fmt.Fprintf(w, "  set %-18s %s\n", f, value)
	}
	if fs.Mode == flow.ModeRegistration && slices.Contains(fs.Step.Fields, flow.FieldPassword) {
		renderStrength(w, fs.Strength)
	}
	if fs.LastError != nil {
		fmt.Fprintf(w, "  ! %s\n", fs.LastError.Message)
	}
}

func renderStrength(w io.Writer, s password.Strength) {
	fmt.Fprintf(w, "  strength: %s (%d/%d, %s)\n", s.Tier, s.Score, password.MaxScore, s.Level())
	for _, req := range password.Requirements {
		mark := " "
		if s.Has(req) {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s\n", mark, req)
	}
}
