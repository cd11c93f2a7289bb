package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

const createSessionsSchema = `
CREATE TABLE IF NOT EXISTS clock_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	start_at DATETIME NOT NULL,
	end_at DATETIME NULL,
	duration_ns INTEGER NOT NULL DEFAULT 0,
	pay TEXT NOT NULL DEFAULT '0',
	UNIQUE(user_id, start_at)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_single_open
	ON clock_sessions (user_id) WHERE end_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_sessions_user_start
	ON clock_sessions (user_id, start_at);

CREATE TABLE IF NOT EXISTS off_days (
	user_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, date)
);
`

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSessionsSchema); err != nil {
		return fmt.Errorf("create sessions schema: %w", err)
	}
	return nil
}

// Open relies on the partial unique index over open sessions: a second open
// session for the same user fails the insert, so concurrent /clockin cannot
// both succeed.
func (r *SessionRepository) Open(ctx context.Context, userID int64, at time.Time) (*domain.ClockSession, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO clock_sessions (user_id, start_at, end_at, duration_ns)
VALUES (?, ?, NULL, 0)`,
		userID,
		at.UTC(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, domain.ErrAlreadyClockedIn
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session last insert id: %w", err)
	}
	return &domain.ClockSession{ID: id, UserID: userID, StartAt: at.UTC()}, nil
}

// Close ends the open session and credits the earned pay to the user inside
// one transaction, so the ledger never holds a closed session whose pay was
// not accounted.
func (r *SessionRepository) Close(ctx context.Context, userID int64, at time.Time, rate decimal.Decimal) (*domain.ClockSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin clock out: %w", err)
	}
	defer tx.Rollback()

	var (
		id      int64
		startAt time.Time
	)
	err = tx.QueryRowContext(ctx, `
SELECT id, start_at FROM clock_sessions WHERE user_id = ? AND end_at IS NULL`,
		userID,
	).Scan(&id, &startAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotClockedIn
		}
		return nil, fmt.Errorf("find open session: %w", err)
	}

	end := at.UTC()
	duration := end.Sub(startAt)
	pay := rate.Mul(decimal.NewFromFloat(duration.Hours())).Round(2)

	if _, err := tx.ExecContext(ctx, `
UPDATE clock_sessions SET end_at = ?, duration_ns = ?, pay = ? WHERE id = ? AND end_at IS NULL`,
		end,
		int64(duration),
		pay.String(),
		id,
	); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}

	user, err := scanUser(tx.QueryRowContext(ctx, `
SELECT id, username, first_name, role, monthly_salary, balance, worked_ns, created_at, updated_at
FROM users
WHERE id = ?`,
		userID,
	))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE users SET balance = ?, worked_ns = ?, updated_at = ? WHERE id = ?`,
		user.Balance.Add(pay).String(),
		int64(user.WorkedTotal+duration),
		time.Now().UTC(),
		userID,
	); err != nil {
		return nil, fmt.Errorf("credit session pay: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit clock out: %w", err)
	}

	return &domain.ClockSession{
		ID:       id,
		UserID:   userID,
		StartAt:  startAt,
		EndAt:    &end,
		Duration: duration,
		Pay:      pay,
	}, nil
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.ClockSession, error) {
	query := `
SELECT id, user_id, start_at, end_at, duration_ns, pay
FROM clock_sessions
WHERE user_id = ?
ORDER BY start_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ClockSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) MarkOffDay(ctx context.Context, userID int64, date string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO off_days (user_id, date, created_at) VALUES (?, ?, ?)`,
		userID,
		date,
		time.Now().UTC(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return domain.ErrDuplicateOffDay
		}
		return fmt.Errorf("insert off day: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListOffDays(ctx context.Context, userID int64) ([]domain.OffDay, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT user_id, date, created_at FROM off_days WHERE user_id = ? ORDER BY date`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list off days: %w", err)
	}
	defer rows.Close()

	var days []domain.OffDay
	for rows.Next() {
		var day domain.OffDay
		if err := rows.Scan(&day.UserID, &day.Date, &day.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan off day: %w", err)
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

func scanSession(row interface {
	Scan(dest ...any) error
}) (domain.ClockSession, error) {
	var (
		sess       domain.ClockSession
		endAt      sql.NullTime
		durationNs int64
		pay        string
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.StartAt, &endAt, &durationNs, &pay); err != nil {
		return domain.ClockSession{}, fmt.Errorf("scan session: %w", err)
	}
	if endAt.Valid {
		end := endAt.Time
		sess.EndAt = &end
	}
	sess.Duration = time.Duration(durationNs)

	var err error
	if sess.Pay, err = decimal.NewFromString(pay); err != nil {
		return domain.ClockSession{}, fmt.Errorf("parse session pay: %w", err)
	}
	return sess, nil
}

var _ repository.SessionRepository = (*SessionRepository)(nil)
