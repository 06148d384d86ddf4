package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"momentum/internal/common"
	"momentum/internal/event"
	"momentum/internal/repository"
)

const SnapshotVersion = 1

// BackupService exports and restores the whole store as one JSON document.
type BackupService struct {
	repo     *repository.SnapshotRepository
	bus      *event.Bus
	settings Settings
	log      *zap.Logger
}

func NewBackupService(repo *repository.SnapshotRepository, bus *event.Bus, settings Settings, log *zap.Logger) *BackupService {
	return &BackupService{repo: repo, bus: bus, settings: settings.withDefaults(), log: log}
}

func (s *BackupService) Export(ctx context.Context, w io.Writer) error {
	snap, err := s.repo.Dump(ctx)
	if err != nil {
		return err
	}
	snap.Version = SnapshotVersion
	snap.ExportDate = s.settings.Clock.Now()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.log.Info("snapshot exported", zap.Int("users", len(snap.Users)), zap.Int("tasks", len(snap.Tasks)))
	return nil
}

// Import replaces every table with the snapshot contents.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*repository.Snapshot, error) {
	var snap repository.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidSnapshot, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", common.ErrInvalidSnapshot, snap.Version)
	}
	if snap.Users == nil || snap.Tasks == nil {
		return nil, fmt.Errorf("%w: users and tasks are required", common.ErrInvalidSnapshot)
	}

	if err := s.repo.Restore(ctx, &snap); err != nil {
		return nil, err
	}
	s.log.Info("snapshot imported",
		zap.Int("users", len(snap.Users)),
		zap.Int("tasks", len(snap.Tasks)),
		zap.Int("occurrences", len(snap.Occurrences)),
	)
	for _, u := range snap.Users {
		s.bus.Publish(event.Event{Type: event.TasksChanged, UserID: u.ID})
		s.bus.Publish(event.Event{Type: event.ProgressChanged, UserID: u.ID})
	}
	return &snap, nil
}
