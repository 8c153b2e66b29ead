package views

import (
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/scansetu/scansetu/pkg/sdk"
)

// AssignmentRow is one of the caller's items, already formatted.
type AssignmentRow struct {
	Code     string
	Product  string
	Status   string
	IssuedAt string
	DueAt    string
	Overdue  bool
}

// Student is the student dashboard: counts, rows, or the load error.
type Student struct {
	MyItems int
	Overdue int
	Rows    []AssignmentRow
	Err     string
}

// BuildStudent summarises the caller's assignments as of now.
func BuildStudent(items []sdk.Assignment, err error, now time.Time) Student {
	if err != nil {
		return Student{Err: err.Error()}
	}
	s := Student{Rows: make([]AssignmentRow, 0, len(items))}
	for _, it := range items {
		overdue := it.Overdue(now)
		if it.Status == "issued" {
			s.MyItems++
		}
		if overdue {
			s.Overdue++
		}
		issued := it.IssuedAt
		s.Rows = append(s.Rows, AssignmentRow{
			Code:     it.Code,
			Product:  it.Product,
			Status:   titleStatus(it.Status),
			IssuedAt: formatTime(&issued),
			DueAt:    formatTime(it.DueAt),
			Overdue:  overdue,
		})
	}
	return s
}

func titleStatus(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ToUpper(s[:1]) + strings.ReplaceAll(s[1:], "_", " ")
}

// RenderStudent prints the student page.
func RenderStudent(s Student, signedInAs string) error {
	pterm.DefaultSection.Println("My Items")
	if signedInAs != "" {
		pterm.Info.Printf("Signed in as %s\n", signedInAs)
	}
	if s.Err != "" {
		pterm.Warning.Println(s.Err)
		return nil
	}

	counts := pterm.TableData{{"My Items", "Overdue"}, {strconv.Itoa(s.MyItems), strconv.Itoa(s.Overdue)}}
	if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(counts).Render(); err != nil {
		return err
	}
	if len(s.Rows) == 0 {
		pterm.Info.Println("No items issued to you yet.")
		return nil
	}

	table := pterm.TableData{{"CODE", "PRODUCT", "STATUS", "ISSUED", "DUE"}}
	for _, r := range s.Rows {
		due := r.DueAt
		if r.Overdue {
			due = pterm.Red(due)
		}
		table = append(table, []string{r.Code, r.Product, r.Status, r.IssuedAt, due})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}
