package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"clockledger/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id int64) {
	t.Helper()
	err := store.Users().Ensure(context.Background(), &domain.User{
		ID:            id,
		Username:      "driver",
		Role:          domain.RoleDriver,
		MonthlySalary: decimal.NewFromInt(3500),
		Balance:       decimal.Zero,
	})
	require.NoError(t, err)
}

func TestOpenSessionRejectsSecond(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	start := time.Now().UTC()
	sess, err := store.Sessions().Open(ctx, 1, start)
	require.NoError(t, err)
	require.True(t, sess.Open())

	_, err = store.Sessions().Open(ctx, 1, start.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrAlreadyClockedIn)

	// another user is not affected
	_, err = store.Sessions().Open(ctx, 2, start)
	require.NoError(t, err)
}

func TestConcurrentOpenOneWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	start := time.Now().UTC()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// distinct start times, so only the open-session index can
			// reject the insert
			_, errs[i] = store.Sessions().Open(ctx, 1, start.Add(time.Duration(i)*time.Millisecond))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrAlreadyClockedIn)
	}
	require.Equal(t, 1, succeeded)

	sessions, err := store.Sessions().ListByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestCloseCreditsPayOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	start := time.Now().UTC().Truncate(time.Second)
	_, err := store.Sessions().Open(ctx, 1, start)
	require.NoError(t, err)

	closed, err := store.Sessions().Close(ctx, 1, start.Add(2*time.Hour), decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, closed.Duration)
	require.Equal(t, "20.00", closed.Pay.StringFixed(2))

	user, err := store.Users().Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "20.00", user.Balance.StringFixed(2))
	require.Equal(t, 2*time.Hour, user.WorkedTotal)

	// the session row carries the pay
	sessions, err := store.Sessions().ListByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "20.00", sessions[0].Pay.StringFixed(2))

	_, err = store.Sessions().Close(ctx, 1, start.Add(3*time.Hour), decimal.NewFromInt(10))
	require.ErrorIs(t, err, domain.ErrNotClockedIn)

	user, err = store.Users().Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "20.00", user.Balance.StringFixed(2), "a rejected clock-out must not credit again")
}

func TestCloseWithoutOpenSession(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, 1)

	_, err := store.Sessions().Close(context.Background(), 1, time.Now().UTC(), decimal.Zero)
	require.ErrorIs(t, err, domain.ErrNotClockedIn)
}

func TestOffDayUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Sessions().MarkOffDay(ctx, 1, "2026-08-25"))
	err := store.Sessions().MarkOffDay(ctx, 1, "2026-08-25")
	require.ErrorIs(t, err, domain.ErrDuplicateOffDay)

	require.NoError(t, store.Sessions().MarkOffDay(ctx, 2, "2026-08-25"))
	require.NoError(t, store.Sessions().MarkOffDay(ctx, 1, "2026-08-26"))
}

func TestTopupAndClaimMoveBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	err := store.Claims().AddTopup(ctx, &domain.Topup{
		ID: "t1", UserID: 1, Amount: decimal.NewFromInt(50), AdminID: 9, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	user, err := store.Users().Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "50.00", user.Balance.StringFixed(2))

	err = store.Claims().Create(ctx, &domain.Claim{
		ID: "c1", UserID: 1, Amount: decimal.NewFromInt(20), Kind: "toll",
		Status: domain.ClaimStatusRecorded, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	user, err = store.Users().Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "30.00", user.Balance.StringFixed(2))
}
