package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"clockledger/internal/domain"
)

// SessionRepository persists clock sessions and off days. The open-session
// check-and-create is a single atomic operation so concurrent /clockin from
// the same user cannot produce two open sessions.
type SessionRepository interface {
	Init(ctx context.Context) error
	// Open creates a new open session; returns domain.ErrAlreadyClockedIn
	// if the user already has one.
	Open(ctx context.Context, userID int64, at time.Time) (*domain.ClockSession, error)
	// Close ends the user's open session, records the pay earned at the
	// given hourly rate on the session, and credits it to the user's
	// balance in the same operation. Returns domain.ErrNotClockedIn if no
	// session is open.
	Close(ctx context.Context, userID int64, at time.Time, rate decimal.Decimal) (*domain.ClockSession, error)
	// ListByUser returns the user's sessions, newest first. limit <= 0
	// means no limit.
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.ClockSession, error)
	// MarkOffDay records date as a rest day; returns
	// domain.ErrDuplicateOffDay when the (user, date) pair already exists.
	MarkOffDay(ctx context.Context, userID int64, date string) error
	ListOffDays(ctx context.Context, userID int64) ([]domain.OffDay, error)
}
