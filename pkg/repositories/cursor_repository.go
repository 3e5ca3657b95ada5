package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/driftline/signal-engine/pkg/database"
	"github.com/driftline/signal-engine/pkg/models"
)

// CursorRepository provides access to the per-entity-type sync watermarks.
type CursorRepository interface {
	// Get returns the cursor for an entity type, or nil when no sync has
	// completed yet.
	Get(ctx context.Context, entityType string) (*models.SyncCursor, error)

	// Upsert records the watermark and processed count after a sync batch.
	Upsert(ctx context.Context, entityType string, lastSyncedAt time.Time, recordsSynced int64) error
}

type cursorRepository struct {
	db *database.DB
}

// NewCursorRepository creates a new CursorRepository.
func NewCursorRepository(db *database.DB) CursorRepository {
	return &cursorRepository{db: db}
}

var _ CursorRepository = (*cursorRepository)(nil)

func (r *cursorRepository) Get(ctx context.Context, entityType string) (*models.SyncCursor, error) {
	query := `
		SELECT entity_type, last_synced_at, records_synced, updated_at
		FROM sync_cursors
		WHERE entity_type = $1`

	var cursor models.SyncCursor
	err := r.db.QueryRow(ctx, query, entityType).Scan(
		&cursor.EntityType,
		&cursor.LastSyncedAt,
		&cursor.RecordsSynced,
		&cursor.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get sync cursor for %s", entityType, err)
	}

	return &cursor, nil
}

func (r *cursorRepository) Upsert(ctx context.Context, entityType string, lastSyncedAt time.Time, recordsSynced int64) error {
	query := `
		INSERT INTO sync_cursors (entity_type, last_synced_at, records_synced, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (entity_type) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			records_synced = EXCLUDED.records_synced,
			updated_at = now()`

	if _, err := r.db.Exec(ctx, query, entityType, lastSyncedAt, recordsSynced); err != nil {
		return storeErr("upsert sync cursor for %s", entityType, err)
	}

	return nil
}
