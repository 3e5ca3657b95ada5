package services

import (
	"context"
	"time"

	"github.com/driftline/signal-engine/pkg/models"
	"github.com/driftline/signal-engine/pkg/repositories"
)

// mockCompanyRepo is a configurable CompanyRepository mock.
type mockCompanyRepo struct {
	searchFunc      func(ctx context.Context, vector []float32, floor float64, limit int) ([]models.EntityMatch, error)
	upsertBatchFunc func(ctx context.Context, records []*repositories.CompanyRecord) error

	searchCalls      int
	upsertBatchCalls int
	upserted         []*repositories.CompanyRecord
}

func (m *mockCompanyRepo) Upsert(ctx context.Context, record *repositories.CompanyRecord) error {
	m.upserted = append(m.upserted, record)
	return nil
}

func (m *mockCompanyRepo) UpsertBatch(ctx context.Context, records []*repositories.CompanyRecord) error {
	m.upsertBatchCalls++
	if m.upsertBatchFunc != nil {
		if err := m.upsertBatchFunc(ctx, records); err != nil {
			return err
		}
	}
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockCompanyRepo) Search(ctx context.Context, vector []float32, floor float64, limit int) ([]models.EntityMatch, error) {
	m.searchCalls++
	if m.searchFunc != nil {
		return m.searchFunc(ctx, vector, floor, limit)
	}
	return nil, nil
}

func (m *mockCompanyRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.upserted)), nil
}

var _ repositories.CompanyRepository = (*mockCompanyRepo)(nil)

// mockContactRepo is a configurable ContactRepository mock.
type mockContactRepo struct {
	searchFunc      func(ctx context.Context, vector []float32, floor float64, limit int) ([]models.EntityMatch, error)
	upsertBatchFunc func(ctx context.Context, records []*repositories.ContactRecord) error

	searchCalls      int
	upsertBatchCalls int
	upserted         []*repositories.ContactRecord
}

func (m *mockContactRepo) Upsert(ctx context.Context, record *repositories.ContactRecord) error {
	m.upserted = append(m.upserted, record)
	return nil
}

func (m *mockContactRepo) UpsertBatch(ctx context.Context, records []*repositories.ContactRecord) error {
	m.upsertBatchCalls++
	if m.upsertBatchFunc != nil {
		if err := m.upsertBatchFunc(ctx, records); err != nil {
			return err
		}
	}
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockContactRepo) Search(ctx context.Context, vector []float32, floor float64, limit int) ([]models.EntityMatch, error) {
	m.searchCalls++
	if m.searchFunc != nil {
		return m.searchFunc(ctx, vector, floor, limit)
	}
	return nil, nil
}

func (m *mockContactRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.upserted)), nil
}

var _ repositories.ContactRepository = (*mockContactRepo)(nil)

// mockMatchRepo records decisions in memory.
type mockMatchRepo struct {
	createFunc func(ctx context.Context, decision *models.MatchDecision) error

	decisions []*models.MatchDecision
}

func (m *mockMatchRepo) Create(ctx context.Context, decision *models.MatchDecision) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, decision); err != nil {
			return err
		}
	}
	decision.ID = int64(len(m.decisions) + 1)
	decision.CreatedAt = time.Now().UTC()
	m.decisions = append(m.decisions, decision)
	return nil
}

func (m *mockMatchRepo) GetBySignal(ctx context.Context, signalID string) ([]*models.MatchDecision, error) {
	var out []*models.MatchDecision
	for _, d := range m.decisions {
		if d.SignalID == signalID {
			out = append(out, d)
		}
	}
	return out, nil
}

var _ repositories.MatchRepository = (*mockMatchRepo)(nil)

// mockCursorRepo stores cursors in memory.
type mockCursorRepo struct {
	upsertFunc func(ctx context.Context, entityType string, lastSyncedAt time.Time, recordsSynced int64) error

	cursors     map[string]*models.SyncCursor
	upsertCalls int
}

func newMockCursorRepo() *mockCursorRepo {
	return &mockCursorRepo{cursors: make(map[string]*models.SyncCursor)}
}

func (m *mockCursorRepo) Get(ctx context.Context, entityType string) (*models.SyncCursor, error) {
	return m.cursors[entityType], nil
}

func (m *mockCursorRepo) Upsert(ctx context.Context, entityType string, lastSyncedAt time.Time, recordsSynced int64) error {
	m.upsertCalls++
	if m.upsertFunc != nil {
		if err := m.upsertFunc(ctx, entityType, lastSyncedAt, recordsSynced); err != nil {
			return err
		}
	}
	m.cursors[entityType] = &models.SyncCursor{
		EntityType:    entityType,
		LastSyncedAt:  lastSyncedAt,
		RecordsSynced: recordsSynced,
		UpdatedAt:     time.Now().UTC(),
	}
	return nil
}

var _ repositories.CursorRepository = (*mockCursorRepo)(nil)
