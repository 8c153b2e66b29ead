// Package views renders the three ScanSetu pages to the terminal.
package views

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/scansetu/scansetu/pkg/sdk"
)

const (
	activityLimit = 6
	timeLayout    = "2006-01-02 15:04"
)

// Stats are the four admin dashboard counters.
type Stats struct {
	TotalProducts   int64
	ItemsInStock    int64
	CurrentlyIssued int64
	Overdue         int64
}

// ActivityRow is one line of the recent activity table, already formatted.
type ActivityRow struct {
	Code    string
	Product string
	Holder  string
	Status  string
	Updated string
}

// Dashboard is everything the admin page shows.
type Dashboard struct {
	Stats    Stats
	Activity []ActivityRow
}

// PlaceholderDashboard is shown until (and unless) live data arrives.
func PlaceholderDashboard() Dashboard {
	rows := make([]ActivityRow, activityLimit)
	for i := range rows {
		holder, status := "Rohan Kumar", "Issued"
		if i%2 == 1 {
			holder, status = "Priya Singh", "In Stock"
		}
		rows[i] = ActivityRow{
			Code:    fmt.Sprintf("objA%d", i+1),
			Product: "Spanner Set A",
			Holder:  holder,
			Status:  status,
			Updated: "2025-09-18 13:20",
		}
	}
	return Dashboard{
		Stats:    Stats{TotalProducts: 24, ItemsInStock: 168, CurrentlyIssued: 27, Overdue: 2},
		Activity: rows,
	}
}

// BuildDashboard merges live results over the placeholders. A stats error
// keeps every placeholder count; a count the server left out keeps its own.
// Activity replaces the placeholder rows only when it loaded and is
// non-empty.
func BuildDashboard(stats *sdk.InventoryStats, statsErr error, activity []sdk.Activity, activityErr error) Dashboard {
	d := PlaceholderDashboard()
	if statsErr == nil && stats != nil {
		pick(&d.Stats.TotalProducts, stats.TotalProducts)
		pick(&d.Stats.ItemsInStock, stats.ItemsInStock)
		pick(&d.Stats.CurrentlyIssued, stats.CurrentlyIssued)
		pick(&d.Stats.Overdue, stats.Overdue)
	}
	if activityErr == nil && len(activity) > 0 {
		rows := make([]ActivityRow, 0, len(activity))
		for _, a := range activity {
			rows = append(rows, activityRow(a))
		}
		d.Activity = rows
	}
	return d
}

func pick(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func activityRow(a sdk.Activity) ActivityRow {
	holder := a.Holder
	if holder == "" {
		holder = "-"
	}
	status := "In Stock"
	if a.Status == "issued" {
		status = "Issued"
	}
	return ActivityRow{
		Code:    a.Code,
		Product: a.Product,
		Holder:  holder,
		Status:  status,
		Updated: a.Updated.Local().Format(timeLayout),
	}
}

// RenderDashboard prints the admin page.
func RenderDashboard(d Dashboard, signedInAs string) error {
	pterm.DefaultSection.Println("Admin Dashboard")
	if signedInAs != "" {
		pterm.Info.Printf("Signed in as %s\n", signedInAs)
	}

	cards := pterm.TableData{
		{"Total Products", "Items in Stock", "Currently Issued", "Overdue"},
		{
			fmt.Sprint(d.Stats.TotalProducts),
			fmt.Sprint(d.Stats.ItemsInStock),
			fmt.Sprint(d.Stats.CurrentlyIssued),
			fmt.Sprint(d.Stats.Overdue),
		},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(cards).Render(); err != nil {
		return err
	}

	pterm.DefaultSection.WithLevel(2).Println("Recent Activity")
	table := pterm.TableData{{"CODE", "PRODUCT", "HOLDER", "STATUS", "UPDATED"}}
	for _, r := range d.Activity {
		status := pterm.Green(r.Status)
		if r.Status == "Issued" {
			status = pterm.Yellow(r.Status)
		}
		table = append(table, []string{r.Code, r.Product, r.Holder, status, r.Updated})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
