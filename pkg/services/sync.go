package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signal-engine/pkg/config"
	"github.com/driftline/signal-engine/pkg/embeddings"
	"github.com/driftline/signal-engine/pkg/hubspot"
	"github.com/driftline/signal-engine/pkg/models"
	"github.com/driftline/signal-engine/pkg/repositories"
)

// SyncOptions tunes one sync invocation.
type SyncOptions struct {
	// Full ignores stored cursors and resyncs every record.
	Full bool

	// CompaniesOnly and ContactsOnly restrict the sync to one collection.
	CompaniesOnly bool
	ContactsOnly  bool

	// BatchSize overrides the configured batch size when > 0.
	BatchSize int
}

// SyncReport summarizes one sync invocation.
type SyncReport struct {
	CompaniesSynced  int `json:"companies_synced"`
	CompaniesSkipped int `json:"companies_skipped"`
	ContactsSynced   int `json:"contacts_synced"`
	ContactsSkipped  int `json:"contacts_skipped"`
}

// SyncService mirrors CRM companies and contacts into the entity store,
// embedding each record's text along the way.
type SyncService interface {
	// SyncAll syncs the selected collections. Each collection advances
	// its cursor only after a batch is fully persisted, so an interrupted
	// sync resumes without losing records.
	SyncAll(ctx context.Context, opts SyncOptions) (*SyncReport, error)
}

type syncService struct {
	crm         hubspot.API
	embedder    embeddings.Embedder
	companyRepo repositories.CompanyRepository
	contactRepo repositories.ContactRepository
	cursorRepo  repositories.CursorRepository
	cfg         config.SyncConfig
	logger      *zap.Logger
}

func NewSyncService(
	crm hubspot.API,
	embedder embeddings.Embedder,
	companyRepo repositories.CompanyRepository,
	contactRepo repositories.ContactRepository,
	cursorRepo repositories.CursorRepository,
	cfg config.SyncConfig,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		crm:         crm,
		embedder:    embedder,
		companyRepo: companyRepo,
		contactRepo: contactRepo,
		cursorRepo:  cursorRepo,
		cfg:         cfg,
		logger:      logger.Named("sync"),
	}
}

var _ SyncService = (*syncService)(nil)

func (s *syncService) SyncAll(ctx context.Context, opts SyncOptions) (*SyncReport, error) {
	batchSize := s.cfg.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}

	report := &SyncReport{}

	if !opts.ContactsOnly {
		synced, skipped, err := s.syncCompanies(ctx, opts.Full, batchSize)
		report.CompaniesSynced = synced
		report.CompaniesSkipped = skipped
		if err != nil {
			return report, fmt.Errorf("sync companies: %w", err)
		}
	}
	if !opts.CompaniesOnly {
		synced, skipped, err := s.syncContacts(ctx, opts.Full, batchSize)
		report.ContactsSynced = synced
		report.ContactsSkipped = skipped
		if err != nil {
			return report, fmt.Errorf("sync contacts: %w", err)
		}
	}

	s.logger.Info("Sync complete",
		zap.Int("companies_synced", report.CompaniesSynced),
		zap.Int("companies_skipped", report.CompaniesSkipped),
		zap.Int("contacts_synced", report.ContactsSynced),
		zap.Int("contacts_skipped", report.ContactsSkipped))

	return report, nil
}

// cursorStart resolves the modification time to pull from. A full sync or a
// missing cursor pulls everything.
func (s *syncService) cursorStart(ctx context.Context, entityType string, full bool) (time.Time, error) {
	if full {
		return time.Time{}, nil
	}
	cursor, err := s.cursorRepo.Get(ctx, entityType)
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s cursor: %w", entityType, err)
	}
	if cursor == nil {
		return time.Time{}, nil
	}
	return cursor.LastSyncedAt, nil
}

// cursorTracker decides when a collection's sync cursor may advance.
// Incremental pulls arrive in ascending modification order, so the cursor
// advances after each persisted batch; unfiltered pulls come id-ordered, so
// the cursor commits only once the whole collection has persisted. The
// watermark never moves unless a batch carried a strictly newer timestamp,
// which keeps a boundary re-pull (the GTE filter re-returns the watermark
// record) from rewriting the cursor on a no-op resync.
type cursorTracker struct {
	repo        repositories.CursorRepository
	entityType  string
	incremental bool
	watermark   time.Time
	maxSeen     time.Time
	total       int64
}

func newCursorTracker(repo repositories.CursorRepository, entityType string, since time.Time) *cursorTracker {
	return &cursorTracker{
		repo:        repo,
		entityType:  entityType,
		incremental: !since.IsZero(),
		watermark:   since,
	}
}

func (t *cursorTracker) observe(updatedAt time.Time) {
	if updatedAt.After(t.maxSeen) {
		t.maxSeen = updatedAt
	}
}

func (t *cursorTracker) batchPersisted(ctx context.Context, count int) error {
	t.total += int64(count)
	if !t.incremental {
		return nil
	}
	return t.commit(ctx)
}

func (t *cursorTracker) finish(ctx context.Context) error {
	if t.incremental {
		return nil
	}
	return t.commit(ctx)
}

func (t *cursorTracker) commit(ctx context.Context) error {
	if !t.maxSeen.After(t.watermark) {
		return nil
	}
	if err := t.repo.Upsert(ctx, t.entityType, t.maxSeen, t.total); err != nil {
		return fmt.Errorf("advance %s cursor: %w", t.entityType, err)
	}
	t.watermark = t.maxSeen
	return nil
}

func (s *syncService) syncCompanies(ctx context.Context, full bool, batchSize int) (int, int, error) {
	log := s.logger.With(zap.String("entity_type", models.EntityTypeCompany))

	since, err := s.cursorStart(ctx, models.EntityTypeCompany, full)
	if err != nil {
		return 0, 0, err
	}
	log.Info("Starting company sync", zap.Time("since", since), zap.Bool("full", full))

	var (
		synced, skipped int
		after           string
		batch           []*models.Company
	)
	tracker := newCursorTracker(s.cursorRepo, models.EntityTypeCompany, since)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, sk, err := s.persistCompanyBatch(ctx, batch)
		synced += n
		skipped += sk
		if err != nil {
			return err
		}
		for _, company := range batch {
			tracker.observe(company.UpdatedAt)
		}
		if err := tracker.batchPersisted(ctx, n); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		page, err := s.crm.ListCompanies(ctx, after, since)
		if err != nil {
			return synced, skipped, fmt.Errorf("list companies: %w", err)
		}
		for _, company := range page.Companies {
			batch = append(batch, company)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return synced, skipped, err
				}
			}
		}
		if page.After == "" {
			break
		}
		after = page.After
	}
	if err := flush(); err != nil {
		return synced, skipped, err
	}
	if err := tracker.finish(ctx); err != nil {
		return synced, skipped, err
	}

	log.Info("Company sync finished", zap.Int("synced", synced), zap.Int("skipped", skipped))
	return synced, skipped, nil
}

func (s *syncService) persistCompanyBatch(ctx context.Context, batch []*models.Company) (int, int, error) {
	texts := make([]string, 0, len(batch))
	usable := make([]*models.Company, 0, len(batch))
	skipped := 0
	for _, company := range batch {
		text := company.EmbeddingText()
		if text == "" {
			// Nothing to embed, nothing to match against.
			skipped++
			continue
		}
		texts = append(texts, text)
		usable = append(usable, company)
	}
	if len(usable) == 0 {
		return 0, skipped, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, skipped, fmt.Errorf("embed company batch: %w", err)
	}

	records := make([]*repositories.CompanyRecord, len(usable))
	for i, company := range usable {
		records[i] = &repositories.CompanyRecord{
			Company:   company,
			Text:      texts[i],
			Embedding: vectors[i],
		}
	}
	if err := s.companyRepo.UpsertBatch(ctx, records); err != nil {
		return 0, skipped, fmt.Errorf("upsert company batch: %w", err)
	}
	return len(usable), skipped, nil
}

func (s *syncService) syncContacts(ctx context.Context, full bool, batchSize int) (int, int, error) {
	log := s.logger.With(zap.String("entity_type", models.EntityTypeContact))

	since, err := s.cursorStart(ctx, models.EntityTypeContact, full)
	if err != nil {
		return 0, 0, err
	}
	log.Info("Starting contact sync", zap.Time("since", since), zap.Bool("full", full))

	var (
		synced, skipped int
		after           string
		batch           []*models.Contact
	)
	tracker := newCursorTracker(s.cursorRepo, models.EntityTypeContact, since)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, sk, err := s.persistContactBatch(ctx, batch)
		synced += n
		skipped += sk
		if err != nil {
			return err
		}
		for _, contact := range batch {
			tracker.observe(contact.UpdatedAt)
		}
		if err := tracker.batchPersisted(ctx, n); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		page, err := s.crm.ListContacts(ctx, after, since)
		if err != nil {
			return synced, skipped, fmt.Errorf("list contacts: %w", err)
		}
		for _, contact := range page.Contacts {
			batch = append(batch, contact)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return synced, skipped, err
				}
			}
		}
		if page.After == "" {
			break
		}
		after = page.After
	}
	if err := flush(); err != nil {
		return synced, skipped, err
	}
	if err := tracker.finish(ctx); err != nil {
		return synced, skipped, err
	}

	log.Info("Contact sync finished", zap.Int("synced", synced), zap.Int("skipped", skipped))
	return synced, skipped, nil
}

func (s *syncService) persistContactBatch(ctx context.Context, batch []*models.Contact) (int, int, error) {
	texts := make([]string, 0, len(batch))
	usable := make([]*models.Contact, 0, len(batch))
	skipped := 0
	for _, contact := range batch {
		text := contact.EmbeddingText()
		if text == "" {
			skipped++
			continue
		}
		texts = append(texts, text)
		usable = append(usable, contact)
	}
	if len(usable) == 0 {
		return 0, skipped, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, skipped, fmt.Errorf("embed contact batch: %w", err)
	}

	records := make([]*repositories.ContactRecord, len(usable))
	for i, contact := range usable {
		records[i] = &repositories.ContactRecord{
			Contact:   contact,
			Text:      texts[i],
			Embedding: vectors[i],
		}
	}
	if err := s.contactRepo.UpsertBatch(ctx, records); err != nil {
		return 0, skipped, fmt.Errorf("upsert contact batch: %w", err)
	}
	return len(usable), skipped, nil
}
