package auth

import "time"

// User represents an operator account.
type User struct {
	ID           int64
	Username     string
	Name         string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
