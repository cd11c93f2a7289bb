package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"clockledger/internal/domain"
)

// Internal document shapes. Amounts travel as Decimal128 so balance updates
// can use atomic $inc on the server.

type userDoc struct {
	ID            int64                `bson:"_id"`
	Username      string               `bson:"username"`
	FirstName     string               `bson:"first_name"`
	Role          string               `bson:"role"`
	MonthlySalary primitive.Decimal128 `bson:"monthly_salary"`
	Balance       primitive.Decimal128 `bson:"balance"`
	WorkedNs      int64                `bson:"worked_ns"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

type sessionDoc struct {
	UserID     int64                `bson:"user_id"`
	StartAt    time.Time            `bson:"start_at"`
	EndAt      *time.Time           `bson:"end_at"`
	DurationNs int64                `bson:"duration_ns"`
	Pay        primitive.Decimal128 `bson:"pay"`
}

type offDayDoc struct {
	UserID    int64     `bson:"user_id"`
	Date      string    `bson:"date"`
	CreatedAt time.Time `bson:"created_at"`
}

type claimDoc struct {
	ID          string               `bson:"_id"`
	UserID      int64                `bson:"user_id"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Kind        string               `bson:"kind"`
	Description string               `bson:"description"`
	EvidenceRef string               `bson:"evidence_ref"`
	Status      string               `bson:"status"`
	CreatedAt   time.Time            `bson:"created_at"`
}

type topupDoc struct {
	ID        string               `bson:"_id"`
	UserID    int64                `bson:"user_id"`
	Amount    primitive.Decimal128 `bson:"amount"`
	AdminID   int64                `bson:"admin_id"`
	CreatedAt time.Time            `bson:"created_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	out, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal: %w", err)
	}
	return out, nil
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	out, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode decimal: %w", err)
	}
	return out, nil
}

func (d *userDoc) toDomain() (*domain.User, error) {
	salary, err := fromDecimal128(d.MonthlySalary)
	if err != nil {
		return nil, err
	}
	balance, err := fromDecimal128(d.Balance)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:            d.ID,
		Username:      d.Username,
		FirstName:     d.FirstName,
		Role:          domain.Role(d.Role),
		MonthlySalary: salary,
		Balance:       balance,
		WorkedTotal:   time.Duration(d.WorkedNs),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func (d *sessionDoc) toDomain() (domain.ClockSession, error) {
	pay, err := fromDecimal128(d.Pay)
	if err != nil {
		return domain.ClockSession{}, err
	}
	sess := domain.ClockSession{
		ID:       d.StartAt.UnixNano(),
		UserID:   d.UserID,
		StartAt:  d.StartAt,
		Duration: time.Duration(d.DurationNs),
		Pay:      pay,
	}
	if d.EndAt != nil {
		end := *d.EndAt
		sess.EndAt = &end
	}
	return sess, nil
}

func (d *claimDoc) toDomain() (domain.Claim, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return domain.Claim{}, err
	}
	return domain.Claim{
		ID:          d.ID,
		UserID:      d.UserID,
		Amount:      amount,
		Kind:        d.Kind,
		Description: d.Description,
		EvidenceRef: d.EvidenceRef,
		Status:      domain.ClaimStatus(d.Status),
		CreatedAt:   d.CreatedAt,
	}, nil
}

func (d *topupDoc) toDomain() (domain.Topup, error) {
	amount, err := fromDecimal128(d.Amount)
	if err != nil {
		return domain.Topup{}, err
	}
	return domain.Topup{
		ID:        d.ID,
		UserID:    d.UserID,
		Amount:    amount,
		AdminID:   d.AdminID,
		CreatedAt: d.CreatedAt,
	}, nil
}
