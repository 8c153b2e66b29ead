package guard

import (
	"errors"
	"fmt"

	"github.com/scansetu/scansetu/pkg/authctx"
)

// ErrUnknownRoute is returned for paths missing from the route table.
var ErrUnknownRoute = errors.New("unknown route")

// ErrTooManyRedirects is returned when Navigate keeps bouncing between routes.
var ErrTooManyRedirects = errors.New("too many redirects")

const maxHops = 4

// Route binds a path to the capability it needs.
type Route struct {
	Path        string
	Requirement Requirement
}

// Routes is the application route table.
var Routes = []Route{
	{Path: "/", Requirement: None},
	{Path: "/student", Requirement: Authenticated},
	{Path: "/dashboard", Requirement: Admin},
}

// Lookup returns the route registered for path.
func Lookup(path string) (Route, error) {
	for _, r := range Routes {
		if r.Path == path {
			return r, nil
		}
	}
	return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, path)
}

// Resolve looks path up and applies Visible to it.
func Resolve(state authctx.State, path string) (Decision, error) {
	r, err := Lookup(path)
	if err != nil {
		return Decision{}, err
	}
	return Visible(state, r.Requirement), nil
}

// Navigate follows redirects from path until a route renders or waits and
// returns the final path with its decision.
func Navigate(state authctx.State, path string) (string, Decision, error) {
	for hop := 0; hop <= maxHops; hop++ {
		d, err := Resolve(state, path)
		if err != nil {
			return path, Decision{}, err
		}
		if d.Outcome != Redirect {
			return path, d, nil
		}
		path = d.RedirectTo
	}
	return path, Decision{}, ErrTooManyRedirects
}
