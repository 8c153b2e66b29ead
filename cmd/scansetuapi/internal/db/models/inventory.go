package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Item and assignment statuses.
const (
	ItemInStock = "in_stock"
	ItemIssued  = "issued"

	AssignmentIssued   = "issued"
	AssignmentReturned = "returned"
)

type Product struct {
	bun.BaseModel `bun:"table:products,alias:prod"`

	ID        string    `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type Item struct {
	bun.BaseModel `bun:"table:items,alias:it"`

	ID        string    `bun:"id,pk,type:uuid"`
	ProductID string    `bun:"product_id,notnull,type:uuid"`
	Code      string    `bun:"code,notnull,unique"`
	Status    string    `bun:"status,notnull,default:'in_stock'"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

type Assignment struct {
	bun.BaseModel `bun:"table:assignments,alias:asg"`

	ID         string     `bun:"id,pk,type:uuid"`
	ItemID     string     `bun:"item_id,notnull,type:uuid"`
	UserID     string     `bun:"user_id,notnull,type:uuid"`
	Status     string     `bun:"status,notnull,default:'issued'"`
	IssuedAt   time.Time  `bun:"issued_at,notnull,default:current_timestamp"`
	DueAt      *time.Time `bun:"due_at"`
	ReturnedAt *time.Time `bun:"returned_at"`
}

// RecentActivity is a row of the recent_activity view.
type RecentActivity struct {
	bun.BaseModel `bun:"table:recent_activity,alias:ra"`

	Code    string    `bun:"code" json:"code"`
	Product string    `bun:"product" json:"product"`
	Holder  string    `bun:"holder" json:"holder"`
	Status  string    `bun:"status" json:"status"`
	Updated time.Time `bun:"updated" json:"updated"`
}

// MyAssignment is an assignment joined with its item and product.
type MyAssignment struct {
	ID       string     `bun:"id" json:"id"`
	Code     string     `bun:"code" json:"code"`
	Product  string     `bun:"product" json:"product"`
	Status   string     `bun:"status" json:"status"`
	IssuedAt time.Time  `bun:"issued_at" json:"issued_at"`
	DueAt    *time.Time `bun:"due_at" json:"due_at,omitempty"`
}
