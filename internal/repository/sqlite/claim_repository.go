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

const createClaimsSchema = `
CREATE TABLE IF NOT EXISTS claims (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	amount TEXT NOT NULL,
	kind TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	evidence_ref TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_claims_user_created ON claims (user_id, created_at);

CREATE TABLE IF NOT EXISTS topups (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	amount TEXT NOT NULL,
	admin_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_topups_user_created ON topups (user_id, created_at);
`

type ClaimRepository struct {
	db *sql.DB
}

func NewClaimRepository(db *sql.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createClaimsSchema); err != nil {
		return fmt.Errorf("create claims schema: %w", err)
	}
	return nil
}

// Create appends the claim and debits the owner's balance in one transaction.
func (r *ClaimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	return r.applyEntry(ctx, claim.UserID, claim.Amount.Neg(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO claims (id, user_id, amount, kind, description, evidence_ref, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			claim.ID,
			claim.UserID,
			claim.Amount.String(),
			claim.Kind,
			claim.Description,
			claim.EvidenceRef,
			string(claim.Status),
			claim.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		return nil
	})
}

func (r *ClaimRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Claim, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, amount, kind, description, evidence_ref, status, created_at
FROM claims
WHERE user_id = ?
ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.Claim
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
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// AddTopup appends the topup and credits the balance in one transaction.
func (r *ClaimRepository) AddTopup(ctx context.Context, topup *domain.Topup) error {
	return r.applyEntry(ctx, topup.UserID, topup.Amount, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO topups (id, user_id, amount, admin_id, created_at)
VALUES (?, ?, ?, ?, ?)`,
			topup.ID,
			topup.UserID,
			topup.Amount.String(),
			topup.AdminID,
			topup.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert topup: %w", err)
		}
		return nil
	})
}

func (r *ClaimRepository) ListTopups(ctx context.Context, userID int64) ([]domain.Topup, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, amount, admin_id, created_at
FROM topups
WHERE user_id = ?
ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list topups: %w", err)
	}
	defer rows.Close()

	var topups []domain.Topup
	for rows.Next() {
		var (
			topup  domain.Topup
			amount string
		)
		if err := rows.Scan(&topup.ID, &topup.UserID, &amount, &topup.AdminID, &topup.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan topup: %w", err)
		}
		if topup.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse topup amount: %w", err)
		}
		topups = append(topups, topup)
	}
	return topups, rows.Err()
}

func (r *ClaimRepository) applyEntry(ctx context.Context, userID int64, balanceDelta decimal.Decimal, insert func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger entry: %w", err)
	}
	defer tx.Rollback()

	var balance string
	err = tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("read balance: %w", err)
	}
	current, err := decimal.NewFromString(balance)
	if err != nil {
		return fmt.Errorf("parse balance: %w", err)
	}

	if err := insert(tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = ?, updated_at = ? WHERE id = ?`,
		current.Add(balanceDelta).String(),
		time.Now().UTC(),
		userID,
	); err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}

	return tx.Commit()
}

var _ repository.ClaimRepository = (*ClaimRepository)(nil)
