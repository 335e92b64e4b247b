package database

import "time"

// User is an account allowed to view the portal.
type User struct {
	ID           int64
	Username     string
	Email        *string
	PasswordHash string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalUsers   int
	ActiveUsers  int
	LastSignupAt *time.Time
}
