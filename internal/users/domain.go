// Package users manages the user directory and the per-user
// authorization assignments exposed to administrators.
package users

import "time"

// User is the directory record backing a principal.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
