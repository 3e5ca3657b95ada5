package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftline/signal-engine/pkg/config"
	"github.com/driftline/signal-engine/pkg/embeddings"
	"github.com/driftline/signal-engine/pkg/hubspot"
	"github.com/driftline/signal-engine/pkg/models"
)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{BatchSize: 50}
}

type syncFixture struct {
	crm         *hubspot.MockAPI
	embedder    *embeddings.MockEmbedder
	companyRepo *mockCompanyRepo
	contactRepo *mockContactRepo
	cursorRepo  *mockCursorRepo
	svc         SyncService
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		crm:         hubspot.NewMockAPI(),
		embedder:    embeddings.NewMockEmbedder(),
		companyRepo: &mockCompanyRepo{},
		contactRepo: &mockContactRepo{},
		cursorRepo:  newMockCursorRepo(),
	}
	f.svc = NewSyncService(
		f.crm, f.embedder, f.companyRepo, f.contactRepo, f.cursorRepo,
		testSyncConfig(), zap.NewNop())
	return f
}

func TestSyncAll_CompaniesUpsertedAndCursorAdvanced(t *testing.T) {
	f := newSyncFixture()
	newest := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		assert.True(t, modifiedAfter.IsZero(), "first sync pulls everything")
		return &hubspot.CompanyPage{Companies: []*models.Company{
			{HubSpotID: "900", Name: "Acme Corp", Domain: "acme.com", UpdatedAt: newest.Add(-time.Hour)},
			{HubSpotID: "901", Name: "Beta Inc", UpdatedAt: newest},
		}}, nil
	}

	report, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.CompaniesSynced)
	assert.Equal(t, 0, report.ContactsSynced)
	require.Len(t, f.companyRepo.upserted, 2)
	assert.Equal(t, "Company: Acme Corp | Domain: acme.com", f.companyRepo.upserted[0].Text)
	assert.Len(t, f.companyRepo.upserted[0].Embedding, 1536)

	cursor := f.cursorRepo.cursors[models.EntityTypeCompany]
	require.NotNil(t, cursor)
	assert.True(t, cursor.LastSyncedAt.Equal(newest))
	assert.Equal(t, int64(2), cursor.RecordsSynced)
	assert.Equal(t, 1, f.cursorRepo.upsertCalls)
}

func TestSyncAll_IncrementalUsesStoredCursor(t *testing.T) {
	f := newSyncFixture()
	watermark := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.cursorRepo.Upsert(context.Background(), models.EntityTypeCompany, watermark, 10))

	var sawSince time.Time
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		sawSince = modifiedAfter
		return &hubspot.CompanyPage{}, nil
	}

	_, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true})
	require.NoError(t, err)
	assert.True(t, sawSince.Equal(watermark))
}

func TestSyncAll_FullIgnoresCursor(t *testing.T) {
	f := newSyncFixture()
	watermark := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, f.cursorRepo.Upsert(context.Background(), models.EntityTypeCompany, watermark, 10))

	var sawSince time.Time
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		sawSince = modifiedAfter
		return &hubspot.CompanyPage{}, nil
	}

	_, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true, Full: true})
	require.NoError(t, err)
	assert.True(t, sawSince.IsZero())
}

func TestSyncAll_Pagination(t *testing.T) {
	f := newSyncFixture()
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		switch after {
		case "":
			return &hubspot.CompanyPage{
				Companies: []*models.Company{{HubSpotID: "900", Name: "First"}},
				After:     "cursor-2",
			}, nil
		case "cursor-2":
			return &hubspot.CompanyPage{
				Companies: []*models.Company{{HubSpotID: "901", Name: "Second"}},
			}, nil
		default:
			return nil, errors.New("unexpected page cursor " + after)
		}
	}

	report, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.CompaniesSynced)
	assert.Equal(t, 2, f.crm.ListCompaniesCalls)
}

func TestSyncAll_EmptyTextRecordsSkipped(t *testing.T) {
	f := newSyncFixture()
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		return &hubspot.CompanyPage{Companies: []*models.Company{
			{HubSpotID: "900", Name: "Acme Corp"},
			{HubSpotID: "901"}, // no name, no domain
		}}, nil
	}

	var embedded []string
	f.embedder.EmbedBatchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		embedded = texts
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = make([]float32, 1536)
		}
		return vectors, nil
	}

	report, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.CompaniesSynced)
	assert.Equal(t, 1, report.CompaniesSkipped)
	assert.Equal(t, []string{"Company: Acme Corp"}, embedded)
	require.Len(t, f.companyRepo.upserted, 1)
}

func TestSyncAll_BatchSizeSplitsEmbedding(t *testing.T) {
	f := newSyncFixture()
	companies := make([]*models.Company, 5)
	for i := range companies {
		companies[i] = &models.Company{
			HubSpotID: string(rune('a' + i)),
			Name:      "Company " + string(rune('A'+i)),
			UpdatedAt: time.Date(2026, 2, 1, 10, i, 0, 0, time.UTC),
		}
	}
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		return &hubspot.CompanyPage{Companies: companies}, nil
	}

	report, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true, BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, report.CompaniesSynced)
	// 5 records at batch size 2 means three embedding calls.
	assert.Equal(t, 3, f.embedder.EmbedBatchCalls)
	assert.Equal(t, 3, f.companyRepo.upsertBatchCalls)
}

func TestSyncAll_CursorNotAdvancedPastFailedBatch(t *testing.T) {
	f := newSyncFixture()
	watermark := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.cursorRepo.Upsert(context.Background(), models.EntityTypeCompany, watermark, 0))

	firstBatchNewest := watermark.Add(time.Hour)
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		return &hubspot.CompanyPage{Companies: []*models.Company{
			{HubSpotID: "900", Name: "First", UpdatedAt: firstBatchNewest},
			{HubSpotID: "901", Name: "Second", UpdatedAt: firstBatchNewest.Add(time.Hour)},
		}}, nil
	}
	calls := 0
	f.embedder.EmbedBatchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("provider unavailable")
		}
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = make([]float32, 1536)
		}
		return vectors, nil
	}

	_, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true, BatchSize: 1})
	require.Error(t, err)

	// The cursor reflects the last batch that fully persisted.
	cursor := f.cursorRepo.cursors[models.EntityTypeCompany]
	require.NotNil(t, cursor)
	assert.True(t, cursor.LastSyncedAt.Equal(firstBatchNewest))
	assert.Equal(t, int64(1), cursor.RecordsSynced)
}

func TestSyncAll_ResyncWithNoChangesLeavesCursorUnchanged(t *testing.T) {
	f := newSyncFixture()
	start := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.cursorRepo.Upsert(context.Background(), models.EntityTypeCompany, start, 0))

	t1 := start.Add(time.Hour)
	t2 := start.Add(2 * time.Hour)
	companies := []*models.Company{
		{HubSpotID: "900", Name: "First", UpdatedAt: t1},
		{HubSpotID: "901", Name: "Second", UpdatedAt: t2},
	}
	// The CRM search filter is inclusive, so the watermark record itself
	// comes back on the next pull.
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		page := &hubspot.CompanyPage{}
		for _, company := range companies {
			if !company.UpdatedAt.Before(modifiedAfter) {
				page.Companies = append(page.Companies, company)
			}
		}
		return page, nil
	}

	report, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.CompaniesSynced)

	cursor := f.cursorRepo.cursors[models.EntityTypeCompany]
	require.NotNil(t, cursor)
	assert.True(t, cursor.LastSyncedAt.Equal(t2))
	assert.Equal(t, int64(2), cursor.RecordsSynced)
	firstRunUpserts := f.cursorRepo.upsertCalls

	// A second run with no CRM changes re-pulls only the boundary record
	// and must leave the cursor exactly as the first run wrote it.
	report, err = f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.CompaniesSynced)

	cursor = f.cursorRepo.cursors[models.EntityTypeCompany]
	require.NotNil(t, cursor)
	assert.True(t, cursor.LastSyncedAt.Equal(t2))
	assert.Equal(t, int64(2), cursor.RecordsSynced)
	assert.Equal(t, firstRunUpserts, f.cursorRepo.upsertCalls, "no cursor write on a no-op resync")
}

func TestSyncAll_UnfilteredPullCommitsCursorOnce(t *testing.T) {
	f := newSyncFixture()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	// The basic list endpoint returns id order, not modification order.
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		return &hubspot.CompanyPage{Companies: []*models.Company{
			{HubSpotID: "900", Name: "First", UpdatedAt: base.Add(2 * time.Hour)},
			{HubSpotID: "901", Name: "Second", UpdatedAt: base},
			{HubSpotID: "902", Name: "Third", UpdatedAt: base.Add(time.Hour)},
		}}, nil
	}

	report, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, report.CompaniesSynced)

	assert.Equal(t, 1, f.cursorRepo.upsertCalls, "unordered pull commits only after the collection completes")
	cursor := f.cursorRepo.cursors[models.EntityTypeCompany]
	require.NotNil(t, cursor)
	assert.True(t, cursor.LastSyncedAt.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, int64(3), cursor.RecordsSynced)
}

func TestSyncAll_UnfilteredPullFailureLeavesCursorUnset(t *testing.T) {
	f := newSyncFixture()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		return &hubspot.CompanyPage{Companies: []*models.Company{
			{HubSpotID: "900", Name: "First", UpdatedAt: base.Add(time.Hour)},
			{HubSpotID: "901", Name: "Second", UpdatedAt: base},
		}}, nil
	}

	calls := 0
	f.embedder.EmbedBatchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("provider unavailable")
		}
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = make([]float32, 1536)
		}
		return vectors, nil
	}

	_, err := f.svc.SyncAll(context.Background(), SyncOptions{CompaniesOnly: true, BatchSize: 1})
	require.Error(t, err)

	// An unordered pull that did not finish must not move the cursor: the
	// persisted batch may carry a newer timestamp than records that were
	// never written.
	assert.Nil(t, f.cursorRepo.cursors[models.EntityTypeCompany])
	assert.Equal(t, 0, f.cursorRepo.upsertCalls)
}

func TestSyncAll_ContactsSynced(t *testing.T) {
	f := newSyncFixture()
	f.crm.ListContactsFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.ContactPage, error) {
		return &hubspot.ContactPage{Contacts: []*models.Contact{
			{HubSpotID: "300", FirstName: "Dana", LastName: "Reyes", Company: "Acme Corp",
				UpdatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)},
		}}, nil
	}

	report, err := f.svc.SyncAll(context.Background(), SyncOptions{ContactsOnly: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ContactsSynced)
	assert.Equal(t, 0, f.crm.ListCompaniesCalls)
	require.Len(t, f.contactRepo.upserted, 1)
	assert.Equal(t, "Person: Dana Reyes | Company: Acme Corp", f.contactRepo.upserted[0].Text)

	cursor := f.cursorRepo.cursors[models.EntityTypeContact]
	require.NotNil(t, cursor)
}

func TestSyncAll_ListFailureReturnsPartialReport(t *testing.T) {
	f := newSyncFixture()
	f.crm.ListCompaniesFunc = func(ctx context.Context, after string, modifiedAfter time.Time) (*hubspot.CompanyPage, error) {
		return nil, errors.New("CRM down")
	}

	report, err := f.svc.SyncAll(context.Background(), SyncOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, report.CompaniesSynced)
	// Contacts are not attempted once companies fail.
	assert.Equal(t, 0, f.crm.ListContactsCalls)
}
