package hubspot

import (
	"context"
	"time"

	"github.com/driftline/signal-engine/pkg/models"
)

// API is the CRM interface used for dependency injection. Use this to mock
// HubSpot in tests.
type API interface {
	// GetSignal fetches a Signal with properties and existing associations.
	GetSignal(ctx context.Context, signalID string) (*models.Signal, error)

	// ListUnassociatedSignals returns up to limit signals with no company
	// or contact associations.
	ListUnassociatedSignals(ctx context.Context, limit int) ([]*models.Signal, error)

	// ListCompanies returns one page of companies, optionally filtered by
	// last modification time.
	ListCompanies(ctx context.Context, after string, modifiedAfter time.Time) (*CompanyPage, error)

	// ListContacts returns one page of contacts, optionally filtered by
	// last modification time.
	ListContacts(ctx context.Context, after string, modifiedAfter time.Time) (*ContactPage, error)

	// CreateAssociation creates a bidirectional link between a Signal and
	// a Company or Contact.
	CreateAssociation(ctx context.Context, signalID, entityType, entityID string) error
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)
