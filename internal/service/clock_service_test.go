package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"clockledger/internal/domain"
	"clockledger/internal/repository/memory"
)

func testDeps(t *testing.T) (*Deps, *memory.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := memory.NewStore()
	return &Deps{Store: store, Log: log, Timeout: 5 * time.Second}, store
}

func testPayroll() Payroll {
	return Payroll{
		DefaultMonthlySalary: decimal.NewFromInt(3500),
		WorkingDaysPerMonth:  22,
		WorkingHoursPerDay:   8,
	}
}

func ensureDriver(t *testing.T, deps *Deps, id int64) {
	t.Helper()
	accounts := NewAccountService(deps, testPayroll())
	_, err := accounts.EnsureUser(context.Background(), id, "driver", "Ali", domain.RoleDriver)
	require.NoError(t, err)
}

func TestClockOutAccruesPay(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)

	svc := NewClockService(deps, testPayroll(), time.UTC)
	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	_, err := svc.ClockIn(context.Background(), 1)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(8 * time.Hour) }
	sess, pay, err := svc.ClockOut(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 8*time.Hour, sess.Duration)

	// 3500 / (22*8) = 19.8864/h, times 8 hours, rounded to cents
	require.Equal(t, "159.09", pay.StringFixed(2))

	user, err := deps.Store.Users().Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "159.09", user.Balance.StringFixed(2))
	require.Equal(t, 8*time.Hour, user.WorkedTotal)
}

func TestClockInWhileClockedIn(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewClockService(deps, testPayroll(), time.UTC)

	_, err := svc.ClockIn(context.Background(), 1)
	require.NoError(t, err)
	_, err = svc.ClockIn(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrAlreadyClockedIn)
}

func TestClockOutWithoutSession(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewClockService(deps, testPayroll(), time.UTC)

	_, _, err := svc.ClockOut(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrNotClockedIn)

	// clocked-in then double clock-out
	_, err = svc.ClockIn(context.Background(), 1)
	require.NoError(t, err)
	_, _, err = svc.ClockOut(context.Background(), 1)
	require.NoError(t, err)
	_, _, err = svc.ClockOut(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrNotClockedIn)
}

func TestConcurrentClockInOneWins(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewClockService(deps, testPayroll(), time.UTC)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ClockIn(context.Background(), 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, succeeded)
}

func TestOffDayDuplicate(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewClockService(deps, testPayroll(), time.UTC)

	date, err := svc.OffDay(context.Background(), 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, date)

	_, err = svc.OffDay(context.Background(), 1, date)
	require.ErrorIs(t, err, domain.ErrDuplicateOffDay)
}

func TestCheckReturnsLastSevenDays(t *testing.T) {
	deps, store := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewClockService(deps, testPayroll(), time.UTC)

	ctx := context.Background()
	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	_, err := store.Sessions().Open(ctx, 1, old)
	require.NoError(t, err)
	_, err = store.Sessions().Close(ctx, 1, old.Add(4*time.Hour), decimal.Zero)
	require.NoError(t, err)

	recentStart := time.Now().UTC().Add(-2 * time.Hour)
	_, err = store.Sessions().Open(ctx, 1, recentStart)
	require.NoError(t, err)

	sessions, err := svc.Check(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.True(t, sessions[0].StartAt.Equal(recentStart))
}
