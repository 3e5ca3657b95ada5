package models

import "time"

// SyncCursor is the per-entity-type watermark tracking the last successful
// incremental sync. Mutated only by the sync routine.
type SyncCursor struct {
	EntityType    string    `json:"entity_type"` // 'company' or 'contact'
	LastSyncedAt  time.Time `json:"last_synced_at"`
	RecordsSynced int64     `json:"records_synced"`
	UpdatedAt     time.Time `json:"updated_at"`
}
