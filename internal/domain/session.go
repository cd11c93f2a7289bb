package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the civil-date key used for off days and daily records.
const DateLayout = "2006-01-02"

// ClockSession is a single work session. EndAt is nil while the session is
// open; at most one open session exists per user at any time. Pay is the
// amount credited for the session, recorded together with the close.
type ClockSession struct {
	ID       int64
	UserID   int64
	StartAt  time.Time
	EndAt    *time.Time
	Duration time.Duration
	Pay      decimal.Decimal
}

// Open reports whether the session has not been clocked out yet.
func (s *ClockSession) Open() bool {
	return s.EndAt == nil
}

// OffDay marks a whole date as a rest day. Unique per (user, date).
type OffDay struct {
	UserID    int64
	Date      string
	CreatedAt time.Time
}
