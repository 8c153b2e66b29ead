// Package guard decides whether a navigation target may be rendered for the
// current session state.
package guard

import (
	"github.com/scansetu/scansetu/pkg/authctx"
)

// Requirement is the capability a route needs.
type Requirement int

const (
	None Requirement = iota
	Authenticated
	Admin
)

func (r Requirement) String() string {
	switch r {
	case None:
		return "none"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "role=admin"
	default:
		return "unknown"
	}
}

// Outcome is what the presentation layer should do with a route.
type Outcome int

const (
	Render Outcome = iota
	// Wait means neither render nor redirect: state is still loading.
	Wait
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the result of Visible.
type Decision struct {
	Outcome    Outcome
	RedirectTo string
}

// Redirect targets.
const (
	AnonymousPath = "/"
	NonAdminPath  = "/student"
)

// Visible is a pure function of state and requirement. A nil profile counts
// as non-admin.
func Visible(state authctx.State, req Requirement) Decision {
	if state.Loading {
		return Decision{Outcome: Wait}
	}
	switch req {
	case Authenticated:
		if state.Session == nil {
			return Decision{Outcome: Redirect, RedirectTo: AnonymousPath}
		}
	case Admin:
		if state.Session == nil || !state.Profile.IsAdmin() {
			return Decision{Outcome: Redirect, RedirectTo: NonAdminPath}
		}
	}
	return Decision{Outcome: Render}
}
