package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"clockledger/internal/domain"
)

// AccountService manages driver accounts, balances, and the admin-side
// topup/salary operations.
type AccountService struct {
	deps    *Deps
	payroll Payroll
}

func NewAccountService(deps *Deps, payroll Payroll) *AccountService {
	return &AccountService{deps: deps, payroll: payroll}
}

// EnsureUser registers the sender on first contact and refreshes profile
// fields afterwards. New accounts start with the default monthly salary and a
// zero balance.
func (s *AccountService) EnsureUser(ctx context.Context, id int64, username, firstName string, role domain.Role) (*domain.User, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	user := &domain.User{
		ID:            id,
		Username:      username,
		FirstName:     firstName,
		Role:          role,
		MonthlySalary: s.payroll.DefaultMonthlySalary,
		Balance:       decimal.Zero,
	}
	if err := s.deps.Store.Users().Ensure(ctx, user); err != nil {
		return nil, classify(err)
	}
	stored, err := s.deps.Store.Users().Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return stored, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	user, err := s.deps.Store.Users().Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return user, nil
}

func (s *AccountService) Balance(ctx context.Context, id int64) (decimal.Decimal, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// Drivers lists all registered users, for admin pick lists.
func (s *AccountService) Drivers(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	users, err := s.deps.Store.Users().List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return users, nil
}

// Topup credits amount to the target's balance and appends a topup record.
func (s *AccountService) Topup(ctx context.Context, adminID, targetID int64, amount decimal.Decimal) (*domain.Topup, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	topup := &domain.Topup{
		ID:        uuid.NewString(),
		UserID:    targetID,
		Amount:    amount,
		AdminID:   adminID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Store.Claims().AddTopup(ctx, topup); err != nil {
		return nil, classify(err)
	}

	s.deps.Log.WithFields(logrus.Fields{
		"admin_id": adminID,
		"user_id":  targetID,
		"amount":   amount,
	}).Info("topup recorded")
	return topup, nil
}

// SetSalary updates the monthly salary used by clock-out accrual.
func (s *AccountService) SetSalary(ctx context.Context, targetID int64, monthly decimal.Decimal) error {
	if !monthly.IsPositive() {
		return domain.ErrInvalidAmount
	}

	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	if err := s.deps.Store.Users().SetMonthlySalary(ctx, targetID, monthly); err != nil {
		return classify(err)
	}
	s.deps.Log.WithFields(logrus.Fields{"user_id": targetID, "salary": monthly}).Info("salary updated")
	return nil
}
