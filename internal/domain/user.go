package domain

import "time"

// User is an account allowed to drive the gateway API.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
