package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/driftline/signal-engine/pkg/database"
	"github.com/driftline/signal-engine/pkg/models"
)

// ContactRecord pairs a contact with its embedding for upsert.
type ContactRecord struct {
	Contact   *models.Contact
	Text      string
	Embedding []float32
}

// ContactRepository provides data access for the contact collection of the
// entity store.
type ContactRepository interface {
	Upsert(ctx context.Context, record *ContactRecord) error
	UpsertBatch(ctx context.Context, records []*ContactRecord) error
	Search(ctx context.Context, vector []float32, floor float64, limit int) ([]models.EntityMatch, error)
	Count(ctx context.Context) (int64, error)
}

type contactRepository struct {
	db *database.DB
}

// NewContactRepository creates a new ContactRepository.
func NewContactRepository(db *database.DB) ContactRepository {
	return &contactRepository{db: db}
}

var _ ContactRepository = (*contactRepository)(nil)

const upsertContactQuery = `
	INSERT INTO contacts (hubspot_id, first_name, last_name, company, embedded_text, embedding, source_updated_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (hubspot_id) DO UPDATE SET
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		company = EXCLUDED.company,
		embedded_text = EXCLUDED.embedded_text,
		embedding = EXCLUDED.embedding,
		source_updated_at = EXCLUDED.source_updated_at,
		updated_at = now()`

func (r *contactRepository) Upsert(ctx context.Context, record *ContactRecord) error {
	c := record.Contact
	_, err := r.db.Exec(ctx, upsertContactQuery,
		c.HubSpotID, c.FirstName, c.LastName, c.Company, record.Text,
		pgvector.NewVector(record.Embedding), nullableTime(c.UpdatedAt))
	if err != nil {
		return storeErr("upsert contact %s", c.HubSpotID, err)
	}
	return nil
}

func (r *contactRepository) UpsertBatch(ctx context.Context, records []*ContactRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		c := record.Contact
		batch.Queue(upsertContactQuery,
			c.HubSpotID, c.FirstName, c.LastName, c.Company, record.Text,
			pgvector.NewVector(record.Embedding), nullableTime(c.UpdatedAt))
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return storeErr("batch upsert contact %s", records[i].Contact.HubSpotID, err)
		}
	}

	return nil
}

func (r *contactRepository) Search(ctx context.Context, vector []float32, floor float64, limit int) ([]models.EntityMatch, error) {
	query := `
		SELECT hubspot_id, trim(first_name || ' ' || last_name), 1 - (embedding <=> $1) AS similarity
		FROM contacts
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, pgvector.NewVector(vector), floor, limit)
	if err != nil {
		return nil, storeErr("search contacts", "", err)
	}
	defer rows.Close()

	var matches []models.EntityMatch
	for rows.Next() {
		match := models.EntityMatch{EntityType: models.EntityTypeContact}
		if err := rows.Scan(&match.EntityID, &match.Name, &match.Similarity); err != nil {
			return nil, storeErr("scan contact match", "", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate contact matches", "", err)
	}

	return matches, nil
}

func (r *contactRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM contacts`).Scan(&count); err != nil {
		return 0, storeErr("count contacts", "", err)
	}
	return count, nil
}
