package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusRecorded ClaimStatus = "recorded"
)

// Claim is an expense reimbursement request with photo evidence. Claims are
// immutable after creation apart from the pending -> recorded transition.
type Claim struct {
	ID          string
	UserID      int64
	Amount      decimal.Decimal
	Kind        string
	Description string
	EvidenceRef string
	Status      ClaimStatus
	CreatedAt   time.Time
}

// Topup is an admin-initiated balance credit.
type Topup struct {
	ID        string
	UserID    int64
	Amount    decimal.Decimal
	AdminID   int64
	CreatedAt time.Time
}

// LedgerEntryKind tags a balance-affecting event in export views.
type LedgerEntryKind string

const (
	LedgerEntryTopup   LedgerEntryKind = "topup"
	LedgerEntryAccrual LedgerEntryKind = "accrual"
	LedgerEntryClaim   LedgerEntryKind = "claim"
)

// LedgerEntry is a derived, immutable view of one balance-affecting event.
// It is an aggregation used for exports and reports, never stored directly.
type LedgerEntry struct {
	Kind   LedgerEntryKind
	UserID int64
	Amount decimal.Decimal
	Note   string
	At     time.Time
}
