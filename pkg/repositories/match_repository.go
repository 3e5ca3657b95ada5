package repositories

import (
	"context"
	"time"

	"github.com/driftline/signal-engine/pkg/database"
	"github.com/driftline/signal-engine/pkg/models"
)

// MatchRepository provides access to the append-only match decision audit
// log.
type MatchRepository interface {
	// Create inserts a new match decision. Decisions are immutable once
	// written.
	Create(ctx context.Context, decision *models.MatchDecision) error

	// GetBySignal returns all decisions recorded for a signal, oldest first.
	GetBySignal(ctx context.Context, signalID string) ([]*models.MatchDecision, error)
}

type matchRepository struct {
	db *database.DB
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(db *database.DB) MatchRepository {
	return &matchRepository{db: db}
}

var _ MatchRepository = (*matchRepository)(nil)

func (r *matchRepository) Create(ctx context.Context, decision *models.MatchDecision) error {
	decision.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO match_decisions (signal_id, entity_type, entity_id, similarity, association_created, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		decision.SignalID,
		decision.EntityType,
		decision.EntityID,
		decision.Similarity,
		decision.AssociationCreated,
		decision.CreatedAt,
	).Scan(&decision.ID)
	if err != nil {
		return storeErr("create match decision for signal %s", decision.SignalID, err)
	}

	return nil
}

func (r *matchRepository) GetBySignal(ctx context.Context, signalID string) ([]*models.MatchDecision, error) {
	query := `
		SELECT id, signal_id, entity_type, entity_id, similarity, association_created, created_at
		FROM match_decisions
		WHERE signal_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, signalID)
	if err != nil {
		return nil, storeErr("query match decisions for signal %s", signalID, err)
	}
	defer rows.Close()

	var decisions []*models.MatchDecision
	for rows.Next() {
		var d models.MatchDecision
		if err := rows.Scan(&d.ID, &d.SignalID, &d.EntityType, &d.EntityID,
			&d.Similarity, &d.AssociationCreated, &d.CreatedAt); err != nil {
			return nil, storeErr("scan match decision", "", err)
		}
		decisions = append(decisions, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate match decisions", "", err)
	}

	return decisions, nil
}
