package model

import "encoding/json"

// RecycleRecord is a soft-deleted LIMS record as stored by the backend.
type RecycleRecord struct {
	ID           string          `json:"id"`
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	Name         string          `json:"name,omitempty"`
	OriginalPath string          `json:"original_path,omitempty"`
	Data         json.RawMessage `json:"data"`
	DeletedAt    string          `json:"deleted_at"`
	CreatedBy    string          `json:"created_by,omitempty"`
}

type RecycleQuery struct {
	EntityType string
}
