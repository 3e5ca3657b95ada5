package hubspot

import (
	"context"
	"time"

	"github.com/driftline/signal-engine/pkg/models"
)

// MockAPI is a configurable mock for testing. Set the function fields to
// control behavior.
type MockAPI struct {
	// GetSignalFunc is called when GetSignal is invoked. If nil, returns
	// ErrNotFound behavior via a nil signal and nil error.
	GetSignalFunc func(ctx context.Context, signalID string) (*models.Signal, error)

	// ListUnassociatedSignalsFunc is called when ListUnassociatedSignals is
	// invoked. If nil, returns an empty list.
	ListUnassociatedSignalsFunc func(ctx context.Context, limit int) ([]*models.Signal, error)

	// ListCompaniesFunc is called when ListCompanies is invoked. If nil,
	// returns an empty final page.
	ListCompaniesFunc func(ctx context.Context, after string, modifiedAfter time.Time) (*CompanyPage, error)

	// ListContactsFunc is called when ListContacts is invoked. If nil,
	// returns an empty final page.
	ListContactsFunc func(ctx context.Context, after string, modifiedAfter time.Time) (*ContactPage, error)

	// CreateAssociationFunc is called when CreateAssociation is invoked.
	// If nil, succeeds.
	CreateAssociationFunc func(ctx context.Context, signalID, entityType, entityID string) error

	// Call tracking for verification
	GetSignalCalls         int
	ListCompaniesCalls     int
	ListContactsCalls      int
	CreateAssociationCalls int

	// AssociationsCreated records every successful CreateAssociation call
	// as "signalID/entityType/entityID".
	AssociationsCreated []string
}

// NewMockAPI creates a new mock.
func NewMockAPI() *MockAPI {
	return &MockAPI{}
}

// GetSignal implements API.
func (m *MockAPI) GetSignal(ctx context.Context, signalID string) (*models.Signal, error) {
	m.GetSignalCalls++
	if m.GetSignalFunc != nil {
		return m.GetSignalFunc(ctx, signalID)
	}
	return &models.Signal{ID: signalID}, nil
}

// ListUnassociatedSignals implements API.
func (m *MockAPI) ListUnassociatedSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	if m.ListUnassociatedSignalsFunc != nil {
		return m.ListUnassociatedSignalsFunc(ctx, limit)
	}
	return nil, nil
}

// ListCompanies implements API.
func (m *MockAPI) ListCompanies(ctx context.Context, after string, modifiedAfter time.Time) (*CompanyPage, error) {
	m.ListCompaniesCalls++
	if m.ListCompaniesFunc != nil {
		return m.ListCompaniesFunc(ctx, after, modifiedAfter)
	}
	return &CompanyPage{}, nil
}

// ListContacts implements API.
func (m *MockAPI) ListContacts(ctx context.Context, after string, modifiedAfter time.Time) (*ContactPage, error) {
	m.ListContactsCalls++
	if m.ListContactsFunc != nil {
		return m.ListContactsFunc(ctx, after, modifiedAfter)
	}
	return &ContactPage{}, nil
}

// CreateAssociation implements API.
func (m *MockAPI) CreateAssociation(ctx context.Context, signalID, entityType, entityID string) error {
	m.CreateAssociationCalls++
	if m.CreateAssociationFunc != nil {
		if err := m.CreateAssociationFunc(ctx, signalID, entityType, entityID); err != nil {
			return err
		}
	}
	m.AssociationsCreated = append(m.AssociationsCreated, signalID+"/"+entityType+"/"+entityID)
	return nil
}

var _ API = (*MockAPI)(nil)
