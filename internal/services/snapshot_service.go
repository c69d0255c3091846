package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/internal/repositories"
	"bakery_ops_backend/pkg/utils"
)

// SnapshotService reads the append-only snapshot archive.
type SnapshotService interface {
	List(ctx context.Context, actor models.Actor, entityType, entityID string) ([]models.ArchivedSnapshot, error)
}

type snapshotService struct {
	archive repositories.SnapshotArchive
	db      *sql.DB
}

// NewSnapshotService creates a new instance of SnapshotService.
func NewSnapshotService(archive repositories.SnapshotArchive, db *sql.DB) SnapshotService {
	return &snapshotService{archive: archive, db: db}
}

func (s *snapshotService) List(ctx context.Context, actor models.Actor, entityType, entityID string) ([]models.ArchivedSnapshot, error) {
	switch entityType {
	case models.SnapshotEntityRecipe, models.SnapshotEntityProductionSheet:
	default:
		return nil, validationError("entity_type must be %q or %q", models.SnapshotEntityRecipe, models.SnapshotEntityProductionSheet)
	}
	if utils.IsEmpty(entityID) {
		return nil, validationError("entity_id is required")
	}
	return s.archive.List(ctx, s.db, actor.BakeryID, entityType, entityID)
}

// archiveSnapshot appends payload as the next version of an entity.
func archiveSnapshot(ctx context.Context, ex repositories.SQLExecutor, archive repositories.SnapshotArchive,
	actor models.Actor, entityType, entityID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s snapshot: %w", entityType, err)
	}
	return archive.Append(ctx, ex, &models.ArchivedSnapshot{
		BakeryID:   actor.BakeryID,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    raw,
		CreatedBy:  actor.UserID,
	})
}
