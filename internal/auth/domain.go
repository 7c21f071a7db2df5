package auth

import "time"

// User represents a back-office or cashier account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         string
	OutletID     int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
