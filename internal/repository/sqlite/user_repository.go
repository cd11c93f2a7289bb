package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	monthly_salary TEXT NOT NULL,
	balance TEXT NOT NULL,
	worked_ns INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Ensure(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, username, first_name, role, monthly_salary, balance, worked_ns, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	username = excluded.username,
	first_name = excluded.first_name,
	role = excluded.role,
	updated_at = excluded.updated_at`,
		user.ID,
		user.Username,
		user.FirstName,
		string(user.Role),
		user.MonthlySalary.String(),
		user.Balance.String(),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, first_name, role, monthly_salary, balance, worked_ns, created_at, updated_at
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, username, first_name, role, monthly_salary, balance, worked_ns, created_at, updated_at
FROM users
ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	return r.adjust(ctx, id, func(user *domain.User) {
		user.Balance = user.Balance.Add(delta)
	})
}

func (r *UserRepository) SetMonthlySalary(ctx context.Context, id int64, salary decimal.Decimal) error {
	return r.adjust(ctx, id, func(user *domain.User) {
		user.MonthlySalary = salary
	})
}

// adjust runs a read-modify-write of one user row inside a transaction.
func (r *UserRepository) adjust(ctx context.Context, id int64, mutate func(*domain.User)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user update: %w", err)
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRowContext(ctx, `
SELECT id, username, first_name, role, monthly_salary, balance, worked_ns, created_at, updated_at
FROM users
WHERE id = ?`,
		id,
	))
	if err != nil {
		return err
	}

	mutate(user)

	if _, err := tx.ExecContext(ctx, `
UPDATE users SET monthly_salary = ?, balance = ?, worked_ns = ?, updated_at = ? WHERE id = ?`,
		user.MonthlySalary.String(),
		user.Balance.String(),
		int64(user.WorkedTotal),
		time.Now().UTC(),
		id,
	); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return tx.Commit()
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user     domain.User
		role     string
		salary   string
		balance  string
		workedNs int64
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&role,
		&salary,
		&balance,
		&workedNs,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Role = domain.Role(role)
	user.WorkedTotal = time.Duration(workedNs)

	var err error
	if user.MonthlySalary, err = decimal.NewFromString(salary); err != nil {
		return nil, fmt.Errorf("parse monthly salary: %w", err)
	}
	if user.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return &user, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
