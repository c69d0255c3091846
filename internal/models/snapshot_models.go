package models

import (
	"encoding/json"
	"time"
)

// Entity types recorded in the snapshot archive.
const (
	SnapshotEntityRecipe          = "recipe"
	SnapshotEntityProductionSheet = "production_sheet"
)

// ArchivedSnapshot is an append-only, versioned copy of an entity.
type ArchivedSnapshot struct {
	ID         string          `json:"id" db:"id"`
	BakeryID   string          `json:"bakery_id" db:"bakery_id"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   string          `json:"entity_id" db:"entity_id"`
	Version    int             `json:"version" db:"version"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	CreatedBy  string          `json:"created_by" db:"created_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
