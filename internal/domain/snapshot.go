package domain

import "time"

// Snapshot is a full, structurally comparable copy of the ledger store,
// used by /export and as the unit of transfer for /migrate.
type Snapshot struct {
	TakenAt  time.Time      `json:"taken_at"`
	Users    []User         `json:"users"`
	Sessions []ClockSession `json:"sessions"`
	OffDays  []OffDay       `json:"off_days"`
	Topups   []Topup        `json:"topups"`
	Claims   []Claim        `json:"claims"`
}
