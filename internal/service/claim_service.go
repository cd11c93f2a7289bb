package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"clockledger/internal/domain"
)

// EvidenceStore is where claim proof photos end up. Satisfied by the S3
// object store.
type EvidenceStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// ClaimService records expense claims with photo evidence and exposes the
// claim history.
type ClaimService struct {
	deps     *Deps
	evidence EvidenceStore
}

func NewClaimService(deps *Deps, evidence EvidenceStore) *ClaimService {
	return &ClaimService{deps: deps, evidence: evidence}
}

// SubmitClaim validates the claim, stores the proof photo, and records the
// claim with an atomic balance debit. The claim stays pending until both the
// evidence upload and the ledger write succeed.
func (s *ClaimService) SubmitClaim(ctx context.Context, userID int64, kind, description string, amount decimal.Decimal, evidence []byte, contentType string) (*domain.Claim, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if len(evidence) == 0 {
		return nil, domain.ErrMissingEvidence
	}

	claim := &domain.Claim{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		Status:      domain.ClaimStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	claim.EvidenceRef = "claims/" + claim.ID

	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	if err := s.evidence.Put(ctx, claim.EvidenceRef, bytes.NewReader(evidence), int64(len(evidence)), contentType); err != nil {
		return nil, fmt.Errorf("store claim evidence: %w", err)
	}

	claim.Status = domain.ClaimStatusRecorded
	if err := s.deps.Store.Claims().Create(ctx, claim); err != nil {
		// the uploaded photo must not outlive a rejected claim
		if delErr := s.evidence.Delete(ctx, claim.EvidenceRef); delErr != nil {
			s.deps.Log.WithField("key", claim.EvidenceRef).Warnf("remove orphaned evidence: %v", delErr)
		}
		return nil, classify(err)
	}

	s.deps.Log.WithFields(logrus.Fields{
		"user_id":  userID,
		"claim_id": claim.ID,
		"kind":     kind,
		"amount":   amount,
	}).Info("claim recorded")
	return claim, nil
}

// Claims returns the caller's claims oldest first as a lazy sequence. Each
// iteration re-reads the store, so the sequence is restartable.
func (s *ClaimService) Claims(ctx context.Context, userID int64) iter.Seq2[domain.Claim, error] {
	return func(yield func(domain.Claim, error) bool) {
		opCtx, cancel := s.deps.opCtx(ctx)
		defer cancel()

		claims, err := s.deps.Store.Claims().ListByUser(opCtx, userID)
		if err != nil {
			yield(domain.Claim{}, classify(err))
			return
		}
		for _, claim := range claims {
			if !yield(claim, nil) {
				return
			}
		}
	}
}

// Topups returns the target's topup history oldest first.
func (s *ClaimService) Topups(ctx context.Context, userID int64) ([]domain.Topup, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	topups, err := s.deps.Store.Claims().ListTopups(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return topups, nil
}
