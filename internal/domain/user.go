package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role controls which commands a user may invoke.
type Role string

const (
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// User represents a driver (or admin) account keyed by Telegram chat id.
// Users are created on first interaction and never deleted.
type User struct {
	ID            int64
	Username      string
	FirstName     string
	Role          Role
	MonthlySalary decimal.Decimal
	Balance       decimal.Decimal
	WorkedTotal   time.Duration
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayName returns the friendliest available handle for chat replies.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "user"
}
