package bunx

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered UUID for primary keys. Both dialects get
// their ids from here rather than a database default.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
