package repositories

import (
	"context"
	"errors"
	"fmt"

	"bakery_ops_backend/internal/database"
	"bakery_ops_backend/internal/models"
	"bakery_ops_backend/pkg/utils"
)

// SnapshotArchive is the append-only history of recipe and production
// sheet snapshots. Versions start at 1 per entity.
type SnapshotArchive interface {
	Append(ctx context.Context, executor SQLExecutor, snapshot *models.ArchivedSnapshot) error
	List(ctx context.Context, executor SQLExecutor, bakeryID, entityType, entityID string) ([]models.ArchivedSnapshot, error)
}

type snapshotRepository struct {
	dialect database.Dialect
}

// NewSnapshotRepository creates a SnapshotArchive backed by the snapshot_archive table.
func NewSnapshotRepository(dialect database.Dialect) SnapshotArchive {
	return &snapshotRepository{dialect: dialect}
}

func (r *snapshotRepository) Append(ctx context.Context, executor SQLExecutor, snapshot *models.ArchivedSnapshot) error {
	err := executor.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshot_archive WHERE entity_type = $1 AND entity_id = $2`),
		snapshot.EntityType, snapshot.EntityID).Scan(&snapshot.Version)
	if err != nil {
		return fmt.Errorf("%w: reading snapshot version: %v", ErrDatabaseError, err)
	}
	snapshot.ID = utils.NewID()
	snapshot.CreatedAt = now()

	_, err = executor.ExecContext(ctx, r.dialect.Rebind(`
	    INSERT INTO snapshot_archive (id, bakery_id, entity_type, entity_id, version, payload, created_by, created_at)
	    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		snapshot.ID, snapshot.BakeryID, snapshot.EntityType, snapshot.EntityID, snapshot.Version,
		string(snapshot.Payload), snapshot.CreatedBy, snapshot.CreatedAt)
	if err != nil {
		if errors.Is(constraintError(err), ErrDuplicateKey) {
			return fmt.Errorf("%w: snapshot version %d of %s %s", ErrDuplicateKey, snapshot.Version, snapshot.EntityType, snapshot.EntityID)
		}
		return fmt.Errorf("%w: appending snapshot: %v", ErrDatabaseError, err)
	}
	return nil
}

// List returns the versions of one entity, oldest first.
func (r *snapshotRepository) List(ctx context.Context, executor SQLExecutor, bakeryID, entityType, entityID string) ([]models.ArchivedSnapshot, error) {
	rows, err := executor.QueryContext(ctx, r.dialect.Rebind(`
	    SELECT id, bakery_id, entity_type, entity_id, version, payload, created_by, created_at
	    FROM snapshot_archive
	    WHERE bakery_id = $1 AND entity_type = $2 AND entity_id = $3
	    ORDER BY version`), bakeryID, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing snapshots: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	snapshots := []models.ArchivedSnapshot{}
	for rows.Next() {
		var (
			s       models.ArchivedSnapshot
			payload string
		)
		if err := rows.Scan(&s.ID, &s.BakeryID, &s.EntityType, &s.EntityID, &s.Version, &payload, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning snapshot: %v", ErrDatabaseError, err)
		}
		s.Payload = []byte(payload)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating snapshots: %v", ErrDatabaseError, err)
	}
	return snapshots, nil
}
