package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Progenics2025/LIMS-sub003/internal/model"
)

type memoryRecycleRow struct {
	record    model.RecycleRecord
	deletedAt time.Time
	seq       uint64
}

// MemoryRecycleRepository keeps recycle entries in process memory. The server
// uses it when no DATABASE_URL is configured; contents are lost on restart.
type MemoryRecycleRepository struct {
	mu   sync.RWMutex
	rows map[string]memoryRecycleRow
	seq  uint64
}

func NewMemoryRecycleRepository() *MemoryRecycleRepository {
	return &MemoryRecycleRepository{rows: map[string]memoryRecycleRow{}}
}

func (r *MemoryRecycleRepository) Create(_ context.Context, record model.RecycleRecord, deletedAt time.Time) (model.RecycleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	record.Data = slices.Clone(record.Data)
	record.DeletedAt = deletedAt.UTC().Format(time.RFC3339Nano)
	r.rows[record.ID] = memoryRecycleRow{record: record, deletedAt: deletedAt, seq: r.seq}

	return record, nil
}

// List orders like the SQL repository: newest deletion first, then newest
// insert first.
func (r *MemoryRecycleRepository) List(_ context.Context, query model.RecycleQuery) ([]model.RecycleRecord, error) {
	r.mu.RLock()
	rows := make([]memoryRecycleRow, 0, len(r.rows))
	for _, row := range r.rows {
		if query.EntityType != "" && row.record.EntityType != query.EntityType {
			continue
		}
		rows = append(rows, row)
	}
	r.mu.RUnlock()

	slices.SortFunc(rows, func(a, b memoryRecycleRow) int {
		if c := b.deletedAt.Compare(a.deletedAt); c != 0 {
			return c
		}
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		default:
			return 0
		}
	})

	records := make([]model.RecycleRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record)
	}
	return records, nil
}

func (r *MemoryRecycleRepository) FindByID(_ context.Context, id string) (model.RecycleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return model.RecycleRecord{}, model.ErrRecycleEntryNotFound
	}
	return row.record, nil
}

func (r *MemoryRecycleRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return model.ErrRecycleEntryNotFound
	}
	delete(r.rows, id)
	return nil
}
