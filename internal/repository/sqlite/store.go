package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

// Store bundles the sqlite-backed ledger repositories.
type Store struct {
	db       *sql.DB
	users    *UserRepository
	sessions *SessionRepository
	claims   *ClaimRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		users:    NewUserRepository(db),
		sessions: NewSessionRepository(db),
		claims:   NewClaimRepository(db),
	}
}

func (s *Store) Init(ctx context.Context) error {
	if err := s.users.Init(ctx); err != nil {
		return err
	}
	if err := s.sessions.Init(ctx); err != nil {
		return err
	}
	return s.claims.Init(ctx)
}

func (s *Store) Users() repository.UserRepository       { return s.users }
func (s *Store) Sessions() repository.SessionRepository { return s.sessions }
func (s *Store) Claims() repository.ClaimRepository     { return s.claims }
func (s *Store) Close() error                           { return s.db.Close() }

func (s *Store) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{TakenAt: time.Now().UTC()}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	snap.Users = users

	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, start_at, end_at, duration_ns, pay
FROM clock_sessions
ORDER BY user_id, start_at`)
	if err != nil {
		return nil, fmt.Errorf("snapshot sessions: %w", err)
	}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		snap.Sessions = append(snap.Sessions, sess)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
SELECT user_id, date, created_at FROM off_days ORDER BY user_id, date`)
	if err != nil {
		return nil, fmt.Errorf("snapshot off days: %w", err)
	}
	for rows.Next() {
		var day domain.OffDay
		if err := rows.Scan(&day.UserID, &day.Date, &day.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan off day: %w", err)
		}
		snap.OffDays = append(snap.OffDays, day)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
SELECT id, user_id, amount, admin_id, created_at FROM topups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot topups: %w", err)
	}
	for rows.Next() {
		var (
			topup  domain.Topup
			amount string
		)
		if err := rows.Scan(&topup.ID, &topup.UserID, &amount, &topup.AdminID, &topup.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan topup: %w", err)
		}
		if topup.Amount, err = decimal.NewFromString(amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse topup amount: %w", err)
		}
		snap.Topups = append(snap.Topups, topup)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
SELECT id, user_id, amount, kind, description, evidence_ref, status, created_at
FROM claims ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot claims: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			claim  domain.Claim
			amount string
			status string
		)
		if err := rows.Scan(
			&claim.ID,
			&claim.UserID,
			&amount,
			&claim.Kind,
			&claim.Description,
			&claim.EvidenceRef,
			&status,
			&claim.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		if claim.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse claim amount: %w", err)
		}
		claim.Status = domain.ClaimStatus(status)
		snap.Claims = append(snap.Claims, claim)
	}
	return snap, rows.Err()
}

// Import upserts a snapshot by natural keys inside one transaction, so
// importing the same snapshot twice produces no duplicate records.
func (s *Store) Import(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, user := range snap.Users {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO users (id, username, first_name, role, monthly_salary, balance, worked_ns, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	username = excluded.username,
	first_name = excluded.first_name,
	role = excluded.role,
	monthly_salary = excluded.monthly_salary,
	balance = excluded.balance,
	worked_ns = excluded.worked_ns,
	updated_at = excluded.updated_at`,
			user.ID,
			user.Username,
			user.FirstName,
			string(user.Role),
			user.MonthlySalary.String(),
			user.Balance.String(),
			int64(user.WorkedTotal),
			user.CreatedAt.UTC(),
			user.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("import user %d: %w", user.ID, err)
		}
	}

	for _, sess := range snap.Sessions {
		var endAt any
		if sess.EndAt != nil {
			endAt = sess.EndAt.UTC()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO clock_sessions (user_id, start_at, end_at, duration_ns, pay)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id, start_at) DO UPDATE SET
	end_at = excluded.end_at,
	duration_ns = excluded.duration_ns,
	pay = excluded.pay`,
			sess.UserID,
			sess.StartAt.UTC(),
			endAt,
			int64(sess.Duration),
			sess.Pay.String(),
		); err != nil {
			return fmt.Errorf("import session for user %d: %w", sess.UserID, err)
		}
	}

	for _, day := range snap.OffDays {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO off_days (user_id, date, created_at) VALUES (?, ?, ?)`,
			day.UserID,
			day.Date,
			day.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("import off day for user %d: %w", day.UserID, err)
		}
	}

	for _, topup := range snap.Topups {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO topups (id, user_id, amount, admin_id, created_at)
VALUES (?, ?, ?, ?, ?)`,
			topup.ID,
			topup.UserID,
			topup.Amount.String(),
			topup.AdminID,
			topup.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("import topup %s: %w", topup.ID, err)
		}
	}

	for _, claim := range snap.Claims {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO claims (id, user_id, amount, kind, description, evidence_ref, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET status = excluded.status`,
			claim.ID,
			claim.UserID,
			claim.Amount.String(),
			claim.Kind,
			claim.Description,
			claim.EvidenceRef,
			string(claim.Status),
			claim.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("import claim %s: %w", claim.ID, err)
		}
	}

	return tx.Commit()
}

var _ repository.Store = (*Store)(nil)
