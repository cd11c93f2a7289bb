package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"clockledger/internal/domain"
)

func TestTopupCreditsBalance(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewAccountService(deps, testPayroll())

	topup, err := svc.Topup(context.Background(), 9, 1, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.Equal(t, int64(9), topup.AdminID)
	require.NotEmpty(t, topup.ID)

	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "50.00", balance.StringFixed(2))

	topups, err := deps.Store.Claims().ListTopups(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, topups, 1)
}

func TestTopupRejectsBadInput(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewAccountService(deps, testPayroll())

	_, err := svc.Topup(context.Background(), 9, 1, decimal.Zero)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.Topup(context.Background(), 9, 1, decimal.NewFromInt(-10))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Topup(context.Background(), 9, 404, decimal.NewFromInt(10))
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	// nothing was credited along the way
	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}

func TestSetSalary(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewAccountService(deps, testPayroll())

	require.ErrorIs(t, svc.SetSalary(context.Background(), 1, decimal.Zero), domain.ErrInvalidAmount)
	require.ErrorIs(t, svc.SetSalary(context.Background(), 404, decimal.NewFromInt(4000)), domain.ErrUserNotFound)

	require.NoError(t, svc.SetSalary(context.Background(), 1, decimal.NewFromInt(4400)))
	user, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "4400.00", user.MonthlySalary.StringFixed(2))
}

func TestEnsureUserDefaultsAndRefresh(t *testing.T) {
	deps, _ := testDeps(t)
	svc := NewAccountService(deps, testPayroll())

	user, err := svc.EnsureUser(context.Background(), 1, "ali", "Ali", domain.RoleDriver)
	require.NoError(t, err)
	require.Equal(t, "3500.00", user.MonthlySalary.StringFixed(2))
	require.True(t, user.Balance.IsZero())

	// second contact refreshes the profile but keeps ledger fields
	require.NoError(t, svc.SetSalary(context.Background(), 1, decimal.NewFromInt(4000)))
	user, err = svc.EnsureUser(context.Background(), 1, "ali_new", "Ali", domain.RoleDriver)
	require.NoError(t, err)
	require.Equal(t, "ali_new", user.Username)
	require.Equal(t, "4000.00", user.MonthlySalary.StringFixed(2))
}
