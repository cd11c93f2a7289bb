package repository

import (
	"context"
	"sync/atomic"

	"clockledger/internal/domain"
)

// Store aggregates the ledger repositories behind one handle so callers can
// be switched between backends (in-memory bootstrap vs durable) atomically.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	Claims() ClaimRepository

	// Snapshot returns a full, structurally comparable copy of the store.
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
	// Import upserts a snapshot by natural keys; importing the same snapshot
	// twice produces no duplicate records.
	Import(ctx context.Context, snap *domain.Snapshot) error
	Close() error
}

// Switching is a Store whose backing store can be swapped at runtime.
// All reads and writes go to the current store; Swap is used once by
// /migrate to move live traffic from the bootstrap store to durable storage.
type Switching struct {
	current atomic.Pointer[storeBox]
}

type storeBox struct{ s Store }

func NewSwitching(initial Store) *Switching {
	sw := &Switching{}
	sw.current.Store(&storeBox{s: initial})
	return sw
}

func (sw *Switching) store() Store { return sw.current.Load().s }

// Swap routes all subsequent operations to next.
func (sw *Switching) Swap(next Store) { sw.current.Store(&storeBox{s: next}) }

func (sw *Switching) Users() UserRepository       { return sw.store().Users() }
func (sw *Switching) Sessions() SessionRepository { return sw.store().Sessions() }
func (sw *Switching) Claims() ClaimRepository     { return sw.store().Claims() }

func (sw *Switching) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	return sw.store().Snapshot(ctx)
}

func (sw *Switching) Import(ctx context.Context, snap *domain.Snapshot) error {
	return sw.store().Import(ctx, snap)
}

func (sw *Switching) Close() error { return sw.store().Close() }

var _ Store = (*Switching)(nil)
