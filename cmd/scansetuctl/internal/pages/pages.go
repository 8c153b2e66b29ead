// Package pages resolves a path through the route guard and renders the
// page it lands on.
package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/session"
	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/views"
	"github.com/scansetu/scansetu/pkg/authctx"
	"github.com/scansetu/scansetu/pkg/guard"
)

const readyTimeout = 20 * time.Second

// Show waits for the session to settle, asks the guard where path leads and
// renders that page.
func Show(ctx context.Context, sess *session.Session, path string) error {
	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone().Start("Loading session...")
	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	state, err := sess.Manager.WaitReady(readyCtx)
	cancel()
	if err != nil {
		spinner.Fail("Session did not finish loading")
		return fmt.Errorf("waiting for session: %w", err)
	}
	_ = spinner.Stop()

	landed, decision, err := guard.Navigate(state, path)
	if err != nil {
		return err
	}
	if decision.Outcome == guard.Wait {
		return fmt.Errorf("session still loading")
	}
	if landed != path {
		pterm.Warning.Printf("%s requires %s; showing %s instead\n", path, requirementOf(path), landed)
	}
	return render(ctx, sess, state, landed)
}

func requirementOf(path string) guard.Requirement {
	r, err := guard.Lookup(path)
	if err != nil {
		return guard.None
	}
	return r.Requirement
}

func render(ctx context.Context, sess *session.Session, state authctx.State, path string) error {
	switch path {
	case "/dashboard":
		return showDashboard(ctx, sess, state)
	case "/student":
		return showStudent(ctx, sess, state)
	default:
		return views.RenderLanding(state.Session != nil)
	}
}

func showDashboard(ctx context.Context, sess *session.Session, state authctx.State) error {
	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone().Start("Fetching inventory...")
	stats, statsErr := sess.Inventory.Stats(ctx)
	activity, activityErr := sess.Inventory.RecentActivity(ctx, 6, "")
	_ = spinner.Stop()

	if statsErr != nil || activityErr != nil {
		pterm.Warning.Println("Live inventory unavailable, showing fallback data.")
	}
	d := views.BuildDashboard(stats, statsErr, activity, activityErr)
	return views.RenderDashboard(d, displayName(state))
}

func showStudent(ctx context.Context, sess *session.Session, state authctx.State) error {
	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone().Start("Fetching your items...")
	items, err := sess.Inventory.MyAssignments(ctx)
	_ = spinner.Stop()

	return views.RenderStudent(views.BuildStudent(items, err, time.Now()), displayName(state))
}

func displayName(state authctx.State) string {
	if state.Profile != nil && state.Profile.FullName != "" {
		return state.Profile.FullName
	}
	if state.Session != nil {
		return state.Session.User.Email
	}
	return ""
}
