package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftline/signal-engine/pkg/apperrors"
	"github.com/driftline/signal-engine/pkg/config"
	"github.com/driftline/signal-engine/pkg/embeddings"
	"github.com/driftline/signal-engine/pkg/hubspot"
	"github.com/driftline/signal-engine/pkg/logging"
	"github.com/driftline/signal-engine/pkg/models"
	"github.com/driftline/signal-engine/pkg/repositories"
	"github.com/driftline/signal-engine/pkg/slack"
)

// MatchOptions tunes a single matching invocation.
type MatchOptions struct {
	// DryRun evaluates candidates without creating associations or audit
	// rows.
	DryRun bool

	// FloorOverride replaces the configured association floor when > 0.
	FloorOverride float64
}

// ProcessReport summarizes one ProcessAll invocation.
type ProcessReport struct {
	SignalsProcessed    int                    `json:"signals_processed"`
	SignalsFailed       int                    `json:"signals_failed"`
	AssociationsCreated int                    `json:"associations_created"`
	Outcomes            []*models.MatchOutcome `json:"outcomes"`
}

// MatcherService matches signals against the synced entity collections and
// writes associations back to the CRM.
type MatcherService interface {
	// MatchSignal fetches a signal, embeds its query text, searches the
	// targeted collections, records a decision for every retrieved
	// candidate, and associates candidates at or above the floor.
	MatchSignal(ctx context.Context, signalID string, opts MatchOptions) (*models.MatchOutcome, error)

	// ProcessAll runs MatchSignal over every unassociated signal, up to
	// limit. A failure on one signal does not stop the rest.
	ProcessAll(ctx context.Context, limit int, opts MatchOptions) (*ProcessReport, error)
}

type matcherService struct {
	crm         hubspot.API
	embedder    embeddings.Embedder
	companyRepo repositories.CompanyRepository
	contactRepo repositories.ContactRepository
	matchRepo   repositories.MatchRepository
	notifier    *slack.Notifier
	cfg         config.MatchingConfig
	logger      *zap.Logger
}

func NewMatcherService(
	crm hubspot.API,
	embedder embeddings.Embedder,
	companyRepo repositories.CompanyRepository,
	contactRepo repositories.ContactRepository,
	matchRepo repositories.MatchRepository,
	notifier *slack.Notifier,
	cfg config.MatchingConfig,
	logger *zap.Logger,
) MatcherService {
	return &matcherService{
		crm:         crm,
		embedder:    embedder,
		companyRepo: companyRepo,
		contactRepo: contactRepo,
		matchRepo:   matchRepo,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger.Named("matcher"),
	}
}

var _ MatcherService = (*matcherService)(nil)

func (s *matcherService) MatchSignal(ctx context.Context, signalID string, opts MatchOptions) (*models.MatchOutcome, error) {
	runID := uuid.New().String()
	log := s.logger.With(zap.String("run_id", runID), zap.String("signal_id", signalID))

	signal, err := s.crm.GetSignal(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("fetch signal %s: %w", signalID, err)
	}

	queryText := signal.QueryText()
	if queryText == "" {
		return nil, fmt.Errorf("signal %s has no description or citation: %w",
			signalID, apperrors.ErrInsufficientInput)
	}

	// One embedding call per invocation, shared across both collections.
	vector, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		log.Error("Embedding failed, no decisions recorded",
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("embed signal %s: %v: %w",
			signalID, err, apperrors.ErrEmbeddingUnavailable)
	}

	floor := s.cfg.SimilarityFloor
	if opts.FloorOverride > 0 {
		floor = opts.FloorOverride
	}

	outcome := &models.MatchOutcome{
		SignalID:   signal.ID,
		SignalType: signal.Type,
		DryRun:     opts.DryRun,
	}

	if signal.TargetsCompanies() {
		outcome.Companies, err = s.evaluateCollection(ctx, log, signal, models.EntityTypeCompany, vector, floor, opts.DryRun)
		if err != nil {
			return nil, err
		}
	}
	if signal.TargetsContacts() {
		outcome.Contacts, err = s.evaluateCollection(ctx, log, signal, models.EntityTypeContact, vector, floor, opts.DryRun)
		if err != nil {
			return nil, err
		}
	}

	for _, r := range outcome.Companies {
		if r.AssociationCreated {
			outcome.AssociationsCreated++
		}
	}
	for _, r := range outcome.Contacts {
		if r.AssociationCreated {
			outcome.AssociationsCreated++
		}
	}

	log.Info("Signal matched",
		zap.String("signal_type", signal.Type),
		zap.Int("candidates", outcome.TotalCandidates()),
		zap.Int("associations_created", outcome.AssociationsCreated),
		zap.Bool("dry_run", opts.DryRun))

	s.notify(ctx, log, signal, outcome)

	return outcome, nil
}

// evaluateCollection searches one entity collection and handles every
// retrieved candidate. Retrieval uses the candidate floor so near misses
// still produce audit rows; only candidates at or above floor are associated.
func (s *matcherService) evaluateCollection(
	ctx context.Context,
	log *zap.Logger,
	signal *models.Signal,
	entityType string,
	vector []float32,
	floor float64,
	dryRun bool,
) ([]models.CandidateResult, error) {
	// An override below the candidate floor widens retrieval too, so the
	// caller-chosen floor always sees its candidates.
	retrievalFloor := s.cfg.CandidateFloor
	if floor < retrievalFloor {
		retrievalFloor = floor
	}

	var (
		matches []models.EntityMatch
		err     error
	)
	switch entityType {
	case models.EntityTypeCompany:
		matches, err = s.companyRepo.Search(ctx, vector, retrievalFloor, s.cfg.Limit)
	case models.EntityTypeContact:
		matches, err = s.contactRepo.Search(ctx, vector, retrievalFloor, s.cfg.Limit)
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	if err != nil {
		return nil, fmt.Errorf("search %s candidates: %w", entityType, err)
	}

	results := make([]models.CandidateResult, 0, len(matches))
	for _, match := range matches {
		result := models.CandidateResult{Match: match}

		// Candidates the signal already links to are skipped without an
		// audit row, so re-running a signal never duplicates work.
		if signal.IsAssociatedWith(entityType, match.EntityID) {
			result.Skipped = true
			results = append(results, result)
			continue
		}

		accept := match.Similarity >= floor

		if dryRun {
			result.AssociationCreated = false
			results = append(results, result)
			continue
		}

		if accept {
			if err := s.crm.CreateAssociation(ctx, signal.ID, entityType, match.EntityID); err != nil {
				// One candidate's write failure must not block the rest.
				result.Error = logging.SanitizeError(err)
				log.Error("Association write failed",
					zap.String("entity_type", entityType),
					zap.String("entity_id", match.EntityID),
					zap.String("error", result.Error))
			} else {
				result.AssociationCreated = true
			}
		}

		decision := &models.MatchDecision{
			SignalID:           signal.ID,
			EntityType:         entityType,
			EntityID:           match.EntityID,
			Similarity:         match.Similarity,
			AssociationCreated: result.AssociationCreated,
		}
		if err := s.matchRepo.Create(ctx, decision); err != nil {
			return nil, fmt.Errorf("record decision for %s %s: %w", entityType, match.EntityID, err)
		}

		results = append(results, result)
	}

	return results, nil
}

func (s *matcherService) ProcessAll(ctx context.Context, limit int, opts MatchOptions) (*ProcessReport, error) {
	signals, err := s.crm.ListUnassociatedSignals(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unassociated signals: %w", err)
	}

	report := &ProcessReport{}
	for _, signal := range signals {
		outcome, err := s.MatchSignal(ctx, signal.ID, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			report.SignalsFailed++
			s.logger.Error("Signal processing failed",
				zap.String("signal_id", signal.ID),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		report.SignalsProcessed++
		report.AssociationsCreated += outcome.AssociationsCreated
		report.Outcomes = append(report.Outcomes, outcome)
	}

	s.logger.Info("Processed unassociated signals",
		zap.Int("processed", report.SignalsProcessed),
		zap.Int("failed", report.SignalsFailed),
		zap.Int("associations_created", report.AssociationsCreated))

	return report, nil
}

func (s *matcherService) notify(ctx context.Context, log *zap.Logger, signal *models.Signal, outcome *models.MatchOutcome) {
	if s.notifier == nil || !s.notifier.Enabled() || outcome.DryRun {
		return
	}

	var err error
	if outcome.AssociationsCreated > 0 {
		err = s.notifier.NotifySignalMatched(ctx, signal, outcome)
	} else {
		err = s.notifier.NotifySignalNoMatch(ctx, signal)
	}
	if err != nil {
		// Notifications are best effort.
		log.Warn("Slack notification failed",
			zap.String("error", logging.SanitizeError(err)))
	}
}
