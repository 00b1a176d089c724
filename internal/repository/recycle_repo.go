package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Progenics2025/LIMS-sub003/internal/model"
)

// DBTX is the subset of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type RecycleRepository struct {
	db DBTX
}

func NewRecycleRepository(db DBTX) *RecycleRepository {
	return &RecycleRepository{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const recycleColumns = `id, entity_type, entity_id, COALESCE(name, ''), COALESCE(original_path, ''),
	data, deleted_at, COALESCE(created_by, '')`

func (r *RecycleRepository) Create(ctx context.Context, record model.RecycleRecord, deletedAt time.Time) (model.RecycleRecord, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO recycle_entries
		 (id, entity_type, entity_id, name, original_path, data, deleted_at, created_by)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, NULLIF($8, ''))
		 RETURNING `+recycleColumns,
		record.ID, record.EntityType, record.EntityID, record.Name, record.OriginalPath,
		[]byte(record.Data), deletedAt, record.CreatedBy)

	created, err := scanRecycleRecord(row)
	if err != nil {
		return model.RecycleRecord{}, fmt.Errorf("create recycle entry: %w", err)
	}
	return created, nil
}

// List returns records newest deletion first, optionally of one entity type.
func (r *RecycleRepository) List(ctx context.Context, query model.RecycleQuery) ([]model.RecycleRecord, error) {
	builder := psql.Select(recycleColumns).
		From("recycle_entries").
		OrderBy("deleted_at DESC", "created_at DESC")
	if query.EntityType != "" {
		builder = builder.Where(squirrel.Eq{"entity_type": query.EntityType})
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recycle list query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list recycle entries: %w", err)
	}
	defer rows.Close()

	records := make([]model.RecycleRecord, 0)
	for rows.Next() {
		record, err := scanRecycleRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recycle entry: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *RecycleRepository) FindByID(ctx context.Context, id string) (model.RecycleRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recycleColumns+` FROM recycle_entries WHERE id = $1`, id)

	record, err := scanRecycleRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RecycleRecord{}, model.ErrRecycleEntryNotFound
	}
	if err != nil {
		return model.RecycleRecord{}, fmt.Errorf("find recycle entry: %w", err)
	}
	return record, nil
}

func (r *RecycleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recycle_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recycle entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRecycleEntryNotFound
	}
	return nil
}

func scanRecycleRecord(row pgx.Row) (model.RecycleRecord, error) {
	var record model.RecycleRecord
	var data []byte
	var deletedAt time.Time

	if err := row.Scan(
		&record.ID, &record.EntityType, &record.EntityID, &record.Name,
		&record.OriginalPath, &data, &deletedAt, &record.CreatedBy,
	); err != nil {
		return model.RecycleRecord{}, err
	}

	record.Data = data
	record.DeletedAt = deletedAt.UTC().Format(time.RFC3339Nano)
	return record, nil
}
