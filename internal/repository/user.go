package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"clockledger/internal/domain"
)

// UserRepository defines persistence operations for driver accounts.
// Balance mutations are per-user atomic increments.
type UserRepository interface {
	Init(ctx context.Context) error
	// Ensure creates the user on first interaction or refreshes the
	// mutable profile fields (username, name, role) of an existing one.
	Ensure(ctx context.Context, user *domain.User) error
	// Get returns domain.ErrUserNotFound for unknown ids.
	Get(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	// AddBalance atomically adds delta (may be negative) to the user's
	// balance. Returns domain.ErrUserNotFound for unknown ids.
	AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error
	SetMonthlySalary(ctx context.Context, id int64, salary decimal.Decimal) error
}
