// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package session

import (
	"fmt"

	"github.com/oryen/oryen/internal/document"
	"github.com/oryen/oryen/internal/identity"
)

// Route is the screen the presentation layer should show.
type Route int

// Routes, in the order a first launch visits them.
const (
	RouteSplash Route = iota + 1
	RouteOnboarding
	RouteKindSelection
	RouteDocumentEntry
	RouteLogin
	RouteRegistration
	RouteAuthenticated
)

// String returns the route name.
func (r Route) String() string {
	switch r {
	case RouteSplash:
		return "splash"
	case RouteOnboarding:
		return "onboarding"
	case RouteKindSelection:
		return "kind_selection"
	case RouteDocumentEntry:
		return "document_entry"
	case RouteLogin:
		return "login"
	case RouteRegistration:
		return "registration"
	case RouteAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// KindOption is one choice on the kind selection screen.
type KindOption struct {
	Kind        identity.ActorKind
	Title       string
	Description string
}

// KindOptions lists the kind selection choices in display order.
var KindOptions = []KindOption{
	{
		Kind:        identity.Individual,
		Title:       "I'm a customer",
		Description: "File new complaints and follow the status of your requests.",
	},
	{
		Kind:        identity.Organization,
		Title:       "I'm a company",
		Description: "Manage feedback, analyse metrics and answer your customers.",
	},
}

// DocumentPrompt is the document entry title for kind.
func DocumentPrompt(kind identity.ActorKind) string {
	return fmt.Sprintf("Enter your %s", kind.DocumentLabel())
}

// DocumentPlaceholder is the empty document field text for kind.
func DocumentPlaceholder(kind identity.ActorKind) string {
	return document.PlaceholderFor(kind)
}
