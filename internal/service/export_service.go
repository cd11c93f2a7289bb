package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"clockledger/internal/domain"
	"clockledger/internal/repository"
)

// ExportDocument is one JSON file of an export bundle.
type ExportDocument struct {
	Name string
	Data []byte
}

// ExportService serializes the ledger for /export and moves bootstrap state
// into durable storage for /migrate.
type ExportService struct {
	deps    *Deps
	live    *repository.Switching
	durable repository.Store
}

// NewExportService takes the switchable live store and the durable backend
// that /migrate flushes into. durable may equal the current live backend when
// the bot starts directly on durable storage; Migrate is then a no-op flush.
func NewExportService(deps *Deps, live *repository.Switching, durable repository.Store) *ExportService {
	return &ExportService{deps: deps, live: live, durable: durable}
}

// Export snapshots the full ledger and renders it as three JSON documents:
// users, sessions (with off days), and claims (with topups).
func (s *ExportService) Export(ctx context.Context) (string, []ExportDocument, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	snap, err := s.live.Snapshot(ctx)
	if err != nil {
		return "", nil, classify(err)
	}

	exportID := uuid.NewString()
	docs := make([]ExportDocument, 0, 3)
	for _, part := range []struct {
		name string
		body any
	}{
		{"users.json", struct {
			ExportID string        `json:"export_id"`
			Users    []domain.User `json:"users"`
		}{exportID, snap.Users}},
		{"sessions.json", struct {
			ExportID string                `json:"export_id"`
			Sessions []domain.ClockSession `json:"sessions"`
			OffDays  []domain.OffDay       `json:"off_days"`
		}{exportID, snap.Sessions, snap.OffDays}},
		{"claims.json", struct {
			ExportID string         `json:"export_id"`
			Claims   []domain.Claim `json:"claims"`
			Topups   []domain.Topup `json:"topups"`
		}{exportID, snap.Claims, snap.Topups}},
	} {
		data, err := json.MarshalIndent(part.body, "", "  ")
		if err != nil {
			return "", nil, fmt.Errorf("marshal %s: %w", part.name, err)
		}
		docs = append(docs, ExportDocument{Name: part.name, Data: data})
	}

	s.deps.Log.WithFields(logrus.Fields{
		"export_id": exportID,
		"users":     len(snap.Users),
		"sessions":  len(snap.Sessions),
		"claims":    len(snap.Claims),
	}).Info("ledger exported")
	return exportID, docs, nil
}

// Migrate flushes the current live state into the durable backend and routes
// all subsequent traffic there. Upserts by natural keys make repeated
// migrations harmless.
func (s *ExportService) Migrate(ctx context.Context) (*domain.Snapshot, error) {
	ctx, cancel := s.deps.opCtx(ctx)
	defer cancel()

	snap, err := s.live.Snapshot(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.durable.Import(ctx, snap); err != nil {
		return nil, classify(err)
	}
	s.live.Swap(s.durable)

	s.deps.Log.WithFields(logrus.Fields{
		"users":    len(snap.Users),
		"sessions": len(snap.Sessions),
		"claims":   len(snap.Claims),
		"topups":   len(snap.Topups),
	}).Info("migrated to durable storage")
	return snap, nil
}
