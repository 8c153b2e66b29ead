package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile roles.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Profile extends a user with role and display metadata. There is at most
// one row per user id.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID        string    `bun:"id,pk,type:uuid"`
	Email     string    `bun:"email,nullzero"`
	FullName  string    `bun:"full_name,nullzero"`
	Role      string    `bun:"role,notnull,default:'student'"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// AdminEmail is an entry in the admin allow-list.
type AdminEmail struct {
	bun.BaseModel `bun:"table:admin_emails,alias:ae"`

	Email     string    `bun:"email,pk"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
