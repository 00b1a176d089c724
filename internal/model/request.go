package model

import "encoding/json"

// CreateRecycleRequest is the body of POST /recycle.
type CreateRecycleRequest struct {
	EntityType   string          `json:"entityType"`
	EntityID     string          `json:"entityId"`
	Name         string          `json:"name,omitempty"`
	OriginalPath string          `json:"originalPath,omitempty"`
	Data         json.RawMessage `json:"data"`
	DeletedAt    string          `json:"deletedAt,omitempty"`
	CreatedBy    string          `json:"createdBy,omitempty"`
}
