package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/driftline/signal-engine/pkg/apperrors"
	"github.com/driftline/signal-engine/pkg/database"
	"github.com/driftline/signal-engine/pkg/models"
)

// CompanyRecord pairs a company with its embedding for upsert.
type CompanyRecord struct {
	Company   *models.Company
	Text      string
	Embedding []float32
}

// CompanyRepository provides data access for the company collection of the
// entity store.
type CompanyRepository interface {
	// Upsert inserts or replaces a single company row.
	Upsert(ctx context.Context, record *CompanyRecord) error

	// UpsertBatch inserts or replaces multiple company rows in one round trip.
	UpsertBatch(ctx context.Context, records []*CompanyRecord) error

	// Search returns up to limit companies ranked by cosine similarity to
	// the query vector, keeping only candidates at or above floor. Rows
	// without an embedding are never returned.
	Search(ctx context.Context, vector []float32, floor float64, limit int) ([]models.EntityMatch, error)

	// Count returns the number of company rows.
	Count(ctx context.Context) (int64, error)
}

type companyRepository struct {
	db *database.DB
}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository(db *database.DB) CompanyRepository {
	return &companyRepository{db: db}
}

var _ CompanyRepository = (*companyRepository)(nil)

const upsertCompanyQuery = `
	INSERT INTO companies (hubspot_id, name, domain, embedded_text, embedding, source_updated_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (hubspot_id) DO UPDATE SET
		name = EXCLUDED.name,
		domain = EXCLUDED.domain,
		embedded_text = EXCLUDED.embedded_text,
		embedding = EXCLUDED.embedding,
		source_updated_at = EXCLUDED.source_updated_at,
		updated_at = now()`

func (r *companyRepository) Upsert(ctx context.Context, record *CompanyRecord) error {
	c := record.Company
	_, err := r.db.Exec(ctx, upsertCompanyQuery,
		c.HubSpotID, c.Name, c.Domain, record.Text,
		pgvector.NewVector(record.Embedding), nullableTime(c.UpdatedAt))
	if err != nil {
		return storeErr("upsert company %s", c.HubSpotID, err)
	}
	return nil
}

func (r *companyRepository) UpsertBatch(ctx context.Context, records []*CompanyRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		c := record.Company
		batch.Queue(upsertCompanyQuery,
			c.HubSpotID, c.Name, c.Domain, record.Text,
			pgvector.NewVector(record.Embedding), nullableTime(c.UpdatedAt))
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return storeErr("batch upsert company %s", records[i].Company.HubSpotID, err)
		}
	}

	return nil
}

func (r *companyRepository) Search(ctx context.Context, vector []float32, floor float64, limit int) ([]models.EntityMatch, error) {
	query := `
		SELECT hubspot_id, name, 1 - (embedding <=> $1) AS similarity
		FROM companies
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, pgvector.NewVector(vector), floor, limit)
	if err != nil {
		return nil, storeErr("search companies", "", err)
	}
	defer rows.Close()

	var matches []models.EntityMatch
	for rows.Next() {
		match := models.EntityMatch{EntityType: models.EntityTypeCompany}
		if err := rows.Scan(&match.EntityID, &match.Name, &match.Similarity); err != nil {
			return nil, storeErr("scan company match", "", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate company matches", "", err)
	}

	return matches, nil
}

func (r *companyRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM companies`).Scan(&count); err != nil {
		return 0, storeErr("count companies", "", err)
	}
	return count, nil
}

// storeErr wraps a database failure with the retryable store sentinel.
func storeErr(op, id string, err error) error {
	if id != "" {
		op = fmt.Sprintf(op, id)
	}
	return fmt.Errorf("%s: %v: %w", op, err, apperrors.ErrStoreUnavailable)
}

// nullableTime maps zero timestamps to NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
