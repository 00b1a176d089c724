package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Progenics2025/LIMS-sub003/internal/model"
)

// RecycleStore is the persistence the recycle service needs.
type RecycleStore interface {
	Create(ctx context.Context, record model.RecycleRecord, deletedAt time.Time) (model.RecycleRecord, error)
	List(ctx context.Context, query model.RecycleQuery) ([]model.RecycleRecord, error)
	FindByID(ctx context.Context, id string) (model.RecycleRecord, error)
	Delete(ctx context.Context, id string) error
}

type RecycleService struct {
	store RecycleStore
	now   func() time.Time
}

func NewRecycleService(store RecycleStore) *RecycleService {
	return &RecycleService{store: store, now: time.Now}
}

func (s *RecycleService) List(ctx context.Context, query model.RecycleQuery) ([]model.RecycleRecord, error) {
	query.EntityType = strings.TrimSpace(query.EntityType)
	return s.store.List(ctx, query)
}

func (s *RecycleService) Get(ctx context.Context, id string) (model.RecycleRecord, error) {
	return s.store.FindByID(ctx, strings.TrimSpace(id))
}

// Create records a soft delete. The server assigns the id and, unless the
// caller knows the original deletion time, the timestamp.
func (s *RecycleService) Create(ctx context.Context, req model.CreateRecycleRequest, actorID string) (model.RecycleRecord, error) {
	record := model.RecycleRecord{
		ID:           uuid.NewString(),
		EntityType:   strings.TrimSpace(req.EntityType),
		EntityID:     strings.TrimSpace(req.EntityID),
		Name:         strings.TrimSpace(req.Name),
		OriginalPath: strings.TrimSpace(req.OriginalPath),
		Data:         req.Data,
		CreatedBy:    strings.TrimSpace(req.CreatedBy),
	}
	if record.CreatedBy == "" {
		record.CreatedBy = strings.TrimSpace(actorID)
	}

	if record.EntityType == "" {
		return model.RecycleRecord{}, fmt.Errorf("%w: entityType is required", model.ErrInvalidInput)
	}
	if record.EntityID == "" {
		return model.RecycleRecord{}, fmt.Errorf("%w: entityId is required", model.ErrInvalidInput)
	}

	if len(record.Data) == 0 || string(record.Data) == "null" {
		record.Data = json.RawMessage(`{}`)
	}
	if !json.Valid(record.Data) {
		return model.RecycleRecord{}, fmt.Errorf("%w: data must be JSON", model.ErrInvalidInput)
	}

	deletedAt := s.now().UTC()
	if raw := strings.TrimSpace(req.DeletedAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return model.RecycleRecord{}, fmt.Errorf("%w: deletedAt must be an RFC 3339 timestamp", model.ErrInvalidInput)
		}
		deletedAt = parsed.UTC()
	}

	return s.store.Create(ctx, record, deletedAt)
}

func (s *RecycleService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", model.ErrInvalidInput)
	}
	return s.store.Delete(ctx, id)
}
