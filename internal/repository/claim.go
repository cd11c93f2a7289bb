package repository

import (
	"context"

	"clockledger/internal/domain"
)

// ClaimRepository persists expense claims and topups. Creating a claim
// debits the owner's balance and recording a topup credits it, both in the
// same atomic write as the history append.
type ClaimRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, claim *domain.Claim) error
	// ListByUser returns the user's claims ordered by creation time ascending.
	ListByUser(ctx context.Context, userID int64) ([]domain.Claim, error)
	AddTopup(ctx context.Context, topup *domain.Topup) error
	ListTopups(ctx context.Context, userID int64) ([]domain.Topup, error)
}
