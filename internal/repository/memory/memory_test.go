package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"clockledger/internal/domain"
)

func seedUser(t *testing.T, store *Store, id int64) {
	t.Helper()
	err := store.Users().Ensure(context.Background(), &domain.User{
		ID:            id,
		Username:      "driver",
		Role:          domain.RoleDriver,
		MonthlySalary: decimal.NewFromInt(3500),
	})
	require.NoError(t, err)
}

func TestSingleOpenSession(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, 1)

	start := time.Now().UTC()
	sess, err := store.Sessions().Open(ctx, 1, start)
	require.NoError(t, err)
	require.True(t, sess.Open())

	_, err = store.Sessions().Open(ctx, 1, start.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrAlreadyClockedIn)

	closed, err := store.Sessions().Close(ctx, 1, start.Add(2*time.Hour), decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, closed.Duration)
	require.Equal(t, "20.00", closed.Pay.StringFixed(2))

	// the pay lands on the balance in the same operation as the close
	user, err := store.Users().Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "20.00", user.Balance.StringFixed(2))
	require.Equal(t, 2*time.Hour, user.WorkedTotal)

	_, err = store.Sessions().Close(ctx, 1, start.Add(3*time.Hour), decimal.Zero)
	require.ErrorIs(t, err, domain.ErrNotClockedIn)
}

func TestConcurrentOpenOneWins(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Sessions().Open(ctx, 7, time.Now().UTC()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, succeeded)

	sessions, err := store.Sessions().ListByUser(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestOffDayUnique(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Sessions().MarkOffDay(ctx, 1, "2026-08-25"))
	err := store.Sessions().MarkOffDay(ctx, 1, "2026-08-25")
	require.ErrorIs(t, err, domain.ErrDuplicateOffDay)

	// other users and other dates are unaffected
	require.NoError(t, store.Sessions().MarkOffDay(ctx, 2, "2026-08-25"))
	require.NoError(t, store.Sessions().MarkOffDay(ctx, 1, "2026-08-26"))
}

func TestTopupAndClaimMoveBalance(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	seedUser(t, store, 1)

	err := store.Claims().AddTopup(ctx, &domain.Topup{
		ID: "t1", UserID: 1, Amount: decimal.NewFromInt(50), AdminID: 9, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	user, err := store.Users().Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, user.Balance.Equal(decimal.NewFromInt(50)))

	err = store.Claims().Create(ctx, &domain.Claim{
		ID: "c1", UserID: 1, Amount: decimal.NewFromInt(20), Kind: "toll",
		Status: domain.ClaimStatusRecorded, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	user, err = store.Users().Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, user.Balance.Equal(decimal.NewFromInt(30)))

	err = store.Claims().AddTopup(ctx, &domain.Topup{ID: "t2", UserID: 404, Amount: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func normalize(snap *domain.Snapshot) *domain.Snapshot {
	out := *snap
	out.TakenAt = time.Time{}
	out.Sessions = make([]domain.ClockSession, len(snap.Sessions))
	copy(out.Sessions, snap.Sessions)
	for i := range out.Sessions {
		out.Sessions[i].ID = 0
	}
	return &out
}

func TestSnapshotImportIdempotent(t *testing.T) {
	src := NewStore()
	ctx := context.Background()
	seedUser(t, src, 1)
	seedUser(t, src, 2)

	start := time.Now().UTC().Truncate(time.Second)
	_, err := src.Sessions().Open(ctx, 1, start)
	require.NoError(t, err)
	_, err = src.Sessions().Close(ctx, 1, start.Add(8*time.Hour), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, src.Sessions().MarkOffDay(ctx, 2, "2026-08-20"))
	require.NoError(t, src.Claims().AddTopup(ctx, &domain.Topup{
		ID: "t1", UserID: 1, Amount: decimal.NewFromInt(100), AdminID: 9, CreatedAt: start,
	}))
	require.NoError(t, src.Claims().Create(ctx, &domain.Claim{
		ID: "c1", UserID: 1, Amount: decimal.NewFromInt(30), Kind: "petrol",
		Status: domain.ClaimStatusRecorded, CreatedAt: start,
	}))

	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)

	dst := NewStore()
	require.NoError(t, dst.Import(ctx, snap))
	require.NoError(t, dst.Import(ctx, snap))

	got, err := dst.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, normalize(snap), normalize(got))
}
