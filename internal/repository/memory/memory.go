package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

// Store is the process-wide in-memory ledger used before /migrate moves
// state into durable storage. It starts empty and is populated lazily on
// first command per user. All operations share one mutex, which makes
// every read-modify-write atomic.
type Store struct {
	st       *state
	users    *userRepo
	sessions *sessionRepo
	claims   *claimRepo
}

type state struct {
	mu sync.Mutex

	users    map[int64]*domain.User
	sessions map[int64][]*domain.ClockSession
	offDays  map[int64]map[string]domain.OffDay
	claims   map[int64][]domain.Claim
	topups   map[int64][]domain.Topup

	nextSessionID int64
}

func NewStore() *Store {
	st := &state{
		users:    make(map[int64]*domain.User),
		sessions: make(map[int64][]*domain.ClockSession),
		offDays:  make(map[int64]map[string]domain.OffDay),
		claims:   make(map[int64][]domain.Claim),
		topups:   make(map[int64][]domain.Topup),
	}
	return &Store{
		st:       st,
		users:    &userRepo{st: st},
		sessions: &sessionRepo{st: st},
		claims:   &claimRepo{st: st},
	}
}

func (s *Store) Users() repository.UserRepository       { return s.users }
func (s *Store) Sessions() repository.SessionRepository { return s.sessions }
func (s *Store) Claims() repository.ClaimRepository     { return s.claims }
func (s *Store) Close() error                           { return nil }

// Snapshot copies the whole store with deterministic ordering so that two
// snapshots of equal state compare structurally equal.
func (s *Store) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	snap := &domain.Snapshot{TakenAt: time.Now().UTC()}

	for _, u := range st.users {
		snap.Users = append(snap.Users, *u)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })

	for _, sessions := range st.sessions {
		for _, sess := range sessions {
			snap.Sessions = append(snap.Sessions, copySession(sess))
		}
	}
	sort.Slice(snap.Sessions, func(i, j int) bool {
		a, b := snap.Sessions[i], snap.Sessions[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.StartAt.Before(b.StartAt)
	})

	for _, days := range st.offDays {
		for _, day := range days {
			snap.OffDays = append(snap.OffDays, day)
		}
	}
	sort.Slice(snap.OffDays, func(i, j int) bool {
		a, b := snap.OffDays[i], snap.OffDays[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.Date < b.Date
	})

	for _, topups := range st.topups {
		snap.Topups = append(snap.Topups, topups...)
	}
	sort.Slice(snap.Topups, func(i, j int) bool { return snap.Topups[i].ID < snap.Topups[j].ID })

	for _, claims := range st.claims {
		snap.Claims = append(snap.Claims, claims...)
	}
	sort.Slice(snap.Claims, func(i, j int) bool { return snap.Claims[i].ID < snap.Claims[j].ID })

	return snap, nil
}

// Import upserts snapshot records by natural keys: users by id, sessions by
// (user, start), off days by (user, date), topups and claims by id.
func (s *Store) Import(ctx context.Context, snap *domain.Snapshot) error {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	for i := range snap.Users {
		u := snap.Users[i]
		st.users[u.ID] = &u
	}

	for i := range snap.Sessions {
		in := snap.Sessions[i]
		replaced := false
		for _, sess := range st.sessions[in.UserID] {
			if sess.StartAt.Equal(in.StartAt) {
				sess.EndAt = copyTime(in.EndAt)
				sess.Duration = in.Duration
				sess.Pay = in.Pay
				replaced = true
				break
			}
		}
		if !replaced {
			st.nextSessionID++
			c := copySession(&in)
			c.ID = st.nextSessionID
			st.sessions[in.UserID] = append(st.sessions[in.UserID], &c)
		}
	}

	for _, day := range snap.OffDays {
		days, ok := st.offDays[day.UserID]
		if !ok {
			days = make(map[string]domain.OffDay)
			st.offDays[day.UserID] = days
		}
		days[day.Date] = day
	}

	for _, topup := range snap.Topups {
		if !containsTopup(st.topups[topup.UserID], topup.ID) {
			st.topups[topup.UserID] = append(st.topups[topup.UserID], topup)
		}
	}

	for _, claim := range snap.Claims {
		if !containsClaim(st.claims[claim.UserID], claim.ID) {
			st.claims[claim.UserID] = append(st.claims[claim.UserID], claim)
		}
	}

	return nil
}

type userRepo struct{ st *state }

func (r *userRepo) Init(ctx context.Context) error { return nil }

func (r *userRepo) Ensure(ctx context.Context, user *domain.User) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.st.users[user.ID]
	if !ok {
		u := *user
		u.CreatedAt = now
		u.UpdatedAt = now
		r.st.users[user.ID] = &u
		return nil
	}
	existing.Username = user.Username
	existing.FirstName = user.FirstName
	existing.Role = user.Role
	existing.UpdatedAt = now
	return nil
}

func (r *userRepo) Get(ctx context.Context, id int64) (*domain.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (r *userRepo) List(ctx context.Context) ([]domain.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	users := make([]domain.User, 0, len(r.st.users))
	for _, u := range r.st.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *userRepo) AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Balance = user.Balance.Add(delta)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) SetMonthlySalary(ctx context.Context, id int64, salary decimal.Decimal) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.MonthlySalary = salary
	user.UpdatedAt = time.Now().UTC()
	return nil
}

type sessionRepo struct{ st *state }

func (r *sessionRepo) Init(ctx context.Context) error { return nil }

func (r *sessionRepo) Open(ctx context.Context, userID int64, at time.Time) (*domain.ClockSession, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for _, sess := range r.st.sessions[userID] {
		if sess.Open() {
			return nil, domain.ErrAlreadyClockedIn
		}
	}

	r.st.nextSessionID++
	sess := &domain.ClockSession{
		ID:      r.st.nextSessionID,
		UserID:  userID,
		StartAt: at,
	}
	r.st.sessions[userID] = append(r.st.sessions[userID], sess)

	out := copySession(sess)
	return &out, nil
}

// Close and the pay credit happen under the same mutex, so a clock-out can
// never leave the session closed with the pay missing.
func (r *sessionRepo) Close(ctx context.Context, userID int64, at time.Time, rate decimal.Decimal) (*domain.ClockSession, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for _, sess := range r.st.sessions[userID] {
		if sess.Open() {
			user, ok := r.st.users[userID]
			if !ok {
				return nil, domain.ErrUserNotFound
			}
			end := at
			sess.EndAt = &end
			sess.Duration = end.Sub(sess.StartAt)
			sess.Pay = rate.Mul(decimal.NewFromFloat(sess.Duration.Hours())).Round(2)
			user.Balance = user.Balance.Add(sess.Pay)
			user.WorkedTotal += sess.Duration
			user.UpdatedAt = time.Now().UTC()
			out := copySession(sess)
			return &out, nil
		}
	}
	return nil, domain.ErrNotClockedIn
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.ClockSession, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	src := r.st.sessions[userID]
	out := make([]domain.ClockSession, 0, len(src))
	for _, sess := range src {
		out = append(out, copySession(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *sessionRepo) MarkOffDay(ctx context.Context, userID int64, date string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	days, ok := r.st.offDays[userID]
	if !ok {
		days = make(map[string]domain.OffDay)
		r.st.offDays[userID] = days
	}
	if _, exists := days[date]; exists {
		return domain.ErrDuplicateOffDay
	}
	days[date] = domain.OffDay{UserID: userID, Date: date, CreatedAt: time.Now().UTC()}
	return nil
}

func (r *sessionRepo) ListOffDays(ctx context.Context, userID int64) ([]domain.OffDay, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	out := make([]domain.OffDay, 0, len(r.st.offDays[userID]))
	for _, day := range r.st.offDays[userID] {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

type claimRepo struct{ st *state }

func (r *claimRepo) Init(ctx context.Context) error { return nil }

func (r *claimRepo) Create(ctx context.Context, claim *domain.Claim) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[claim.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	r.st.claims[claim.UserID] = append(r.st.claims[claim.UserID], *claim)
	user.Balance = user.Balance.Sub(claim.Amount)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *claimRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Claim, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	out := make([]domain.Claim, len(r.st.claims[userID]))
	copy(out, r.st.claims[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *claimRepo) AddTopup(ctx context.Context, topup *domain.Topup) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[topup.UserID]
	if !ok {
		return domain.ErrUserNotFound
	}
	r.st.topups[topup.UserID] = append(r.st.topups[topup.UserID], *topup)
	user.Balance = user.Balance.Add(topup.Amount)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *claimRepo) ListTopups(ctx context.Context, userID int64) ([]domain.Topup, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	out := make([]domain.Topup, len(r.st.topups[userID]))
	copy(out, r.st.topups[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func copySession(sess *domain.ClockSession) domain.ClockSession {
	out := *sess
	out.EndAt = copyTime(sess.EndAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func containsTopup(topups []domain.Topup, id string) bool {
	for _, t := range topups {
		if t.ID == id {
			return true
		}
	}
	return false
}

func containsClaim(claims []domain.Claim, id string) bool {
	for _, c := range claims {
		if c.ID == id {
			return true
		}
	}
	return false
}

var _ repository.Store = (*Store)(nil)
