package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

type fakeEvidence struct {
	objects map[string][]byte
}

func newFakeEvidence() *fakeEvidence {
	return &fakeEvidence{objects: make(map[string][]byte)}
}

func (f *fakeEvidence) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeEvidence) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func TestSubmitClaimDebitsBalance(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	accounts := NewAccountService(deps, testPayroll())
	_, err := accounts.Topup(context.Background(), 9, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	evidence := newFakeEvidence()
	svc := NewClaimService(deps, evidence)

	claim, err := svc.SubmitClaim(context.Background(), 1, "toll", "", decimal.NewFromInt(30), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, domain.ClaimStatusRecorded, claim.Status)
	require.Equal(t, []byte("jpeg-bytes"), evidence.objects[claim.EvidenceRef])

	balance, err := accounts.Balance(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "70.00", balance.StringFixed(2))
}

func TestSubmitClaimValidation(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewClaimService(deps, newFakeEvidence())

	_, err := svc.SubmitClaim(context.Background(), 1, "toll", "", decimal.Zero, []byte("x"), "image/jpeg")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.SubmitClaim(context.Background(), 1, "toll", "", decimal.NewFromInt(10), nil, "")
	require.ErrorIs(t, err, domain.ErrMissingEvidence)
}

type brokenClaimsStore struct {
	repository.Store
}

type brokenClaims struct {
	repository.ClaimRepository
}

func (s brokenClaimsStore) Claims() repository.ClaimRepository {
	return brokenClaims{s.Store.Claims()}
}

func (brokenClaims) Create(context.Context, *domain.Claim) error {
	return errors.New("disk full")
}

func TestSubmitClaimRemovesEvidenceWhenRecordFails(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	deps.Store = brokenClaimsStore{Store: deps.Store}

	evidence := newFakeEvidence()
	svc := NewClaimService(deps, evidence)

	_, err := svc.SubmitClaim(context.Background(), 1, "toll", "", decimal.NewFromInt(10), []byte("jpeg-bytes"), "image/jpeg")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	require.Empty(t, evidence.objects, "the uploaded photo must not outlive the rejected claim")
}

func TestClaimsSequenceOrderedAndRestartable(t *testing.T) {
	deps, _ := testDeps(t)
	ensureDriver(t, deps, 1)
	svc := NewClaimService(deps, newFakeEvidence())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"c1", "c2", "c3"} {
		err := deps.Store.Claims().Create(context.Background(), &domain.Claim{
			ID: id, UserID: 1, Amount: decimal.NewFromInt(int64(i + 1)),
			Kind: "toll", Status: domain.ClaimStatusRecorded,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	collect := func(limit int) []string {
		var ids []string
		for claim, err := range svc.Claims(context.Background(), 1) {
			require.NoError(t, err)
			ids = append(ids, claim.ID)
			if limit > 0 && len(ids) == limit {
				break
			}
		}
		return ids
	}

	require.Equal(t, []string{"c1", "c2", "c3"}, collect(0))
	// breaking early and restarting yields the same prefix
	require.Equal(t, []string{"c1", "c2"}, collect(2))
	require.Equal(t, []string{"c1", "c2", "c3"}, collect(0))
}
