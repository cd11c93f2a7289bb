package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
	"clockledger/internal/repository/memory"
)

func normalizeSnap(snap *domain.Snapshot) *domain.Snapshot {
	out := *snap
	out.TakenAt = time.Time{}
	out.Sessions = make([]domain.ClockSession, len(snap.Sessions))
	copy(out.Sessions, snap.Sessions)
	for i := range out.Sessions {
		out.Sessions[i].ID = 0
	}
	return &out
}

func seedLedger(t *testing.T, deps *Deps) {
	t.Helper()
	ctx := context.Background()
	ensureDriver(t, deps, 1)
	ensureDriver(t, deps, 2)

	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	_, err := deps.Store.Sessions().Open(ctx, 1, start)
	require.NoError(t, err)
	_, err = deps.Store.Sessions().Close(ctx, 1, start.Add(8*time.Hour), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, deps.Store.Sessions().MarkOffDay(ctx, 2, "2026-08-21"))
	require.NoError(t, deps.Store.Claims().AddTopup(ctx, &domain.Topup{
		ID: "t1", UserID: 1, Amount: decimal.NewFromInt(100), AdminID: 9, CreatedAt: start,
	}))
	require.NoError(t, deps.Store.Claims().Create(ctx, &domain.Claim{
		ID: "c1", UserID: 1, Amount: decimal.NewFromInt(25), Kind: "petrol",
		Status: domain.ClaimStatusRecorded, CreatedAt: start.Add(time.Hour),
	}))
}

func TestExportProducesDocuments(t *testing.T) {
	deps, _ := testDeps(t)
	live := repository.NewSwitching(deps.Store)
	deps.Store = live
	seedLedger(t, deps)

	svc := NewExportService(deps, live, memory.NewStore())
	exportID, docs, err := svc.Export(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, exportID)
	require.Len(t, docs, 3)

	names := []string{docs[0].Name, docs[1].Name, docs[2].Name}
	require.Equal(t, []string{"users.json", "sessions.json", "claims.json"}, names)
	for _, doc := range docs {
		require.True(t, json.Valid(doc.Data), "document %s must be valid JSON", doc.Name)
	}
}

func TestMigrateMovesStateAndSwitchesTraffic(t *testing.T) {
	deps, _ := testDeps(t)
	live := repository.NewSwitching(deps.Store)
	deps.Store = live
	seedLedger(t, deps)

	durable := memory.NewStore()
	svc := NewExportService(deps, live, durable)

	before, err := live.Snapshot(context.Background())
	require.NoError(t, err)

	_, err = svc.Migrate(context.Background())
	require.NoError(t, err)

	after, err := live.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, normalizeSnap(before), normalizeSnap(after))

	// writes after migration land in the durable store
	accounts := NewAccountService(deps, testPayroll())
	_, err = accounts.Topup(context.Background(), 9, 1, decimal.NewFromInt(10))
	require.NoError(t, err)

	user, err := durable.Users().Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "110.00", user.Balance.StringFixed(2))
}

func TestMigrateIsIdempotent(t *testing.T) {
	deps, _ := testDeps(t)
	live := repository.NewSwitching(deps.Store)
	deps.Store = live
	seedLedger(t, deps)

	durable := memory.NewStore()
	svc := NewExportService(deps, live, durable)

	_, err := svc.Migrate(context.Background())
	require.NoError(t, err)
	first, err := durable.Snapshot(context.Background())
	require.NoError(t, err)

	_, err = svc.Migrate(context.Background())
	require.NoError(t, err)
	second, err := durable.Snapshot(context.Background())
	require.NoError(t, err)

	require.Equal(t, normalizeSnap(first), normalizeSnap(second))
}
