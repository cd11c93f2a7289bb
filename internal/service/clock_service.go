package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"clockledger/internal/domain"
)

// Payroll holds the accrual parameters. Hourly rate is derived as
// monthly salary / (working days * working hours).
type Payroll struct {
	DefaultMonthlySalary decimal.Decimal
	WorkingDaysPerMonth  int
	WorkingHoursPerDay   int
}

// HourlyRate computes the pay rate for a given monthly salary, rounded to
// cents.
func (p Payroll) HourlyRate(monthly decimal.Decimal) decimal.Decimal {
	hours := decimal.NewFromInt(int64(p.WorkingDaysPerMonth * p.WorkingHoursPerDay))
	if hours.IsZero() {
		return decimal.Zero
	}
	return monthly.DivRound(hours, 4)
}

// ClockService drives the per-user session state machine and the payroll
// accrual on clock-out.
type ClockService struct {
	deps    *Deps
	payroll Payroll
	loc     *time.Location
	now     func() time.Time
}

func NewClockService(deps *Deps, payroll Payroll, loc *time.Location) *ClockService {
	if loc == nil {
		loc = time.UTC
	}
	return &ClockService{deps: deps, payroll: payroll, loc: loc, now: time.Now}
}

func (s *ClockService) ClockIn(ctx context.Context, userID int64) (*domain.ClockSession, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	sess, err := s.deps.Store.Sessions().Open(ctx, userID, s.now())
	if err != nil {
		return nil, classify(err)
	}
	s.deps.Log.WithFields(logrus.Fields{"user_id": userID, "start_at": sess.StartAt}).Info("clocked in")
	return sess, nil
}

// ClockOut closes the open session and credits pay for the worked hours.
// The user is read first so a lookup failure leaves the session open and the
// command retryable; the close itself records and credits the pay in one
// store operation. Returns the closed session and the accrued amount.
func (s *ClockService) ClockOut(ctx context.Context, userID int64) (*domain.ClockSession, decimal.Decimal, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	user, err := s.deps.Store.Users().Get(ctx, userID)
	if err != nil {
		return nil, decimal.Zero, classify(err)
	}

	sess, err := s.deps.Store.Sessions().Close(ctx, userID, s.now(), s.payroll.HourlyRate(user.MonthlySalary))
	if err != nil {
		return nil, decimal.Zero, classify(err)
	}

	s.deps.Log.WithFields(logrus.Fields{
		"user_id":  userID,
		"duration": sess.Duration,
		"pay":      sess.Pay,
	}).Info("clocked out")
	return sess, sess.Pay, nil
}

// OffDay marks today (in the bot's timezone) as a rest day when date is
// empty, otherwise the given YYYY-MM-DD date.
func (s *ClockService) OffDay(ctx context.Context, userID int64, date string) (string, error) {
	if date == "" {
		date = s.now().In(s.loc).Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return "", fmt.Errorf("parse off day date: %w", err)
	}

	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	if err := s.deps.Store.Sessions().MarkOffDay(ctx, userID, date); err != nil {
		return "", classify(err)
	}
	s.deps.Log.WithFields(logrus.Fields{"user_id": userID, "date": date}).Info("off day recorded")
	return date, nil
}

// Check returns the caller's sessions from the last seven days, newest first.
func (s *ClockService) Check(ctx context.Context, userID int64) ([]domain.ClockSession, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	sessions, err := s.deps.Store.Sessions().ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, classify(err)
	}

	cutoff := s.now().Add(-7 * 24 * time.Hour)
	var recent []domain.ClockSession
	for _, sess := range sessions {
		if sess.StartAt.Before(cutoff) {
			break
		}
		recent = append(recent, sess)
	}
	return recent, nil
}
