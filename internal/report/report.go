package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
	"clockledger/internal/service"
)

// Data is everything a ledger report shows for one driver: the clock table,
// claims, topups, and the pay summary.
type Data struct {
	User        domain.User
	Sessions    []domain.ClockSession
	OffDays     []domain.OffDay
	Claims      []domain.Claim
	Topups      []domain.Topup
	HourlyRate  decimal.Decimal
	GrossPay    decimal.Decimal
	TotalTopups decimal.Decimal
	TotalClaims decimal.Decimal
	GeneratedAt time.Time
	Location    *time.Location
}

// Renderer turns report data into a document artifact.
type Renderer interface {
	Render(data *Data) ([]byte, error)
}

// DataSource assembles report data for a user.
type DataSource interface {
	BuildReport(ctx context.Context, userID int64) (*Data, error)
}

// Builder reads the ledger store and derives the report figures.
type Builder struct {
	store   repository.Store
	payroll service.Payroll
	loc     *time.Location
}

func NewBuilder(store repository.Store, payroll service.Payroll, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{store: store, payroll: payroll, loc: loc}
}

func (b *Builder) BuildReport(ctx context.Context, userID int64) (*Data, error) {
	user, err := b.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := b.store.Sessions().ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("report sessions: %w", err)
	}
	offDays, err := b.store.Sessions().ListOffDays(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("report off days: %w", err)
	}
	claims, err := b.store.Claims().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("report claims: %w", err)
	}
	topups, err := b.store.Claims().ListTopups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("report topups: %w", err)
	}

	data := &Data{
		User:        *user,
		Sessions:    sessions,
		OffDays:     offDays,
		Claims:      claims,
		Topups:      topups,
		HourlyRate:  b.payroll.HourlyRate(user.MonthlySalary),
		GeneratedAt: time.Now().In(b.loc),
		Location:    b.loc,
	}

	hours := decimal.NewFromFloat(user.WorkedTotal.Hours())
	data.GrossPay = data.HourlyRate.Mul(hours).Round(2)
	for _, topup := range topups {
		data.TotalTopups = data.TotalTopups.Add(topup.Amount)
	}
	for _, claim := range claims {
		data.TotalClaims = data.TotalClaims.Add(claim.Amount)
	}
	return data, nil
}

var _ DataSource = (*Builder)(nil)
