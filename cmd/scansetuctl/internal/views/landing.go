package views

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

type blurb struct {
	title string
	desc  string
}

var features = []blurb{
	{"Role-based Access", "Admins manage stock; users issue/return with audit trail."},
	{"Barcode Generation", "Auto-generate per-item codes (objA1…objA10)."},
	{"Scan Anywhere", "Use phone camera or USB barcode scanners."},
	{"Issue & Return", "Track who has what and when; return to stock in one scan."},
}

var steps = []blurb{
	{"Admin adds products", "Create products and auto-generate barcodes for each item."},
	{"User scans to issue", "After Google login, scanning assigns the item to the user."},
	{"Admin scans to return", "See who had it last, then mark as returned to stock."},
}

// RenderLanding prints the public landing page.
func RenderLanding(signedIn bool) error {
	if err := pterm.DefaultBigText.WithLetters(putils.LettersFromString("ScanSetu")).Render(); err != nil {
		return err
	}
	pterm.DefaultHeader.WithFullWidth().Println("Barcode-based Inventory for Labs & Workshops")
	pterm.Println("Issue and return items with Google login, barcodes, and real-time tracking.")
	pterm.Println("Works with phone cameras and USB barcode scanners.")

	pterm.DefaultSection.Println("Features")
	items := make([]pterm.BulletListItem, 0, len(features))
	for _, f := range features {
		items = append(items, pterm.BulletListItem{Level: 0, Text: fmt.Sprintf("%s: %s", pterm.Bold.Sprint(f.title), f.desc)})
	}
	if err := pterm.DefaultBulletList.WithItems(items).Render(); err != nil {
		return err
	}

	pterm.DefaultSection.Println("How it works")
	for i, s := range steps {
		pterm.Printf("%d. %s\n   %s\n", i+1, pterm.Bold.Sprint(s.title), s.desc)
	}

	pterm.Println()
	if signedIn {
		pterm.Info.Println("Run `scansetuctl dashboard` or `scansetuctl student` to continue.")
	} else {
		pterm.Info.Println("Run `scansetuctl auth login` or `scansetuctl auth google` to get started.")
	}
	return nil
}
