package sdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// InventoryStats are the admin dashboard counters. A nil field means the
// server could not compute that count.
type InventoryStats struct {
	TotalProducts   *int64 `json:"total_products,omitempty"`
	ItemsInStock    *int64 `json:"items_in_stock,omitempty"`
	CurrentlyIssued *int64 `json:"currently_issued,omitempty"`
	Overdue         *int64 `json:"overdue,omitempty"`
}

// Activity is one row of the recent activity view.
type Activity struct {
	Code    string    `json:"code"`
	Product string    `json:"product"`
	Holder  string    `json:"holder"`
	Status  string    `json:"status"`
	Updated time.Time `json:"updated"`
}

// Assignment is an item issued to the signed-in user.
type Assignment struct {
	ID       string     `json:"id"`
	Code     string     `json:"code"`
	Product  string     `json:"product"`
	Status   string     `json:"status"`
	IssuedAt time.Time  `json:"issued_at"`
	DueAt    *time.Time `json:"due_at,omitempty"`
}

// Overdue reports whether the item is still out past its due date.
func (a Assignment) Overdue(now time.Time) bool {
	return a.Status == "issued" && a.DueAt != nil && a.DueAt.Before(now)
}

// Inventory reads dashboard data.
type Inventory struct {
	client *Client
}

func NewInventory(client *Client) *Inventory {
	return &Inventory{client: client}
}

// Stats returns the admin counters.
func (i *Inventory) Stats(ctx context.Context) (*InventoryStats, error) {
	var out InventoryStats
	if err := i.client.do(ctx, i.client.authed, http.MethodGet, "/rest/v1/inventory/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentActivity returns up to limit rows, newest first. filter is an
// optional boolean expression over row fields, e.g. `status == "Issued"`.
func (i *Inventory) RecentActivity(ctx context.Context, limit int, filter string) ([]Activity, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if filter != "" {
		q.Set("filter", filter)
	}
	var out []Activity
	if err := i.client.do(ctx, i.client.authed, http.MethodGet, "/rest/v1/inventory/recent-activity", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyAssignments returns the caller's assignments.
func (i *Inventory) MyAssignments(ctx context.Context) ([]Assignment, error) {
	var out []Assignment
	if err := i.client.do(ctx, i.client.authed, http.MethodGet, "/rest/v1/me/assignments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
