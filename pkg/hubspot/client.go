// Package hubspot wraps the HubSpot CRM REST API: reading Signals,
// Companies, and Contacts, and creating Signal associations.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signal-engine/pkg/apperrors"
	"github.com/driftline/signal-engine/pkg/models"
	"github.com/driftline/signal-engine/pkg/retry"
)

// maxPageSize is HubSpot's per-page record cap.
const maxPageSize = 100

var signalProperties = []string{
	"signal_name",
	"signal_description",
	"signal_citation",
	"signal_type",
	"signal_status",
}

// Client calls the HubSpot CRM REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string

	signalObjectType string // numeric type ID, e.g. "2-54609655"
	signalObjectName string // schema name used in v4 URL paths, e.g. "signals"

	companyAssociationType int
	contactAssociationType int

	retryCfg *retry.Config
	logger   *zap.Logger
}

// Config holds configuration for creating a HubSpot client.
type Config struct {
	AccessToken            string
	BaseURL                string
	SignalObjectType       string
	SignalObjectName       string
	CompanyAssociationType int
	ContactAssociationType int
}

// NewClient creates a new HubSpot client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("hubspot access token: %w", apperrors.ErrMissingCredentials)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.hubapi.com"
	}

	return &Client{
		httpClient:             &http.Client{Timeout: 30 * time.Second},
		baseURL:                baseURL,
		token:                  cfg.AccessToken,
		signalObjectType:       cfg.SignalObjectType,
		signalObjectName:       cfg.SignalObjectName,
		companyAssociationType: cfg.CompanyAssociationType,
		contactAssociationType: cfg.ContactAssociationType,
		retryCfg:               retry.DefaultConfig(),
		logger:                 logger.Named("hubspot"),
	}, nil
}

// objectRecord is the wire shape of a CRM object with properties and
// associations.
type objectRecord struct {
	ID           string            `json:"id"`
	Properties   map[string]string `json:"properties"`
	Associations map[string]struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	} `json:"associations"`
}

type listResponse struct {
	Results []objectRecord `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func (r *listResponse) nextAfter() string {
	if r.Paging != nil && r.Paging.Next != nil {
		return r.Paging.Next.After
	}
	return ""
}

// GetSignal fetches a Signal by ID with its properties and existing
// associations.
func (c *Client) GetSignal(ctx context.Context, signalID string) (*models.Signal, error) {
	query := url.Values{}
	for _, p := range signalProperties {
		query.Add("properties", p)
	}
	query.Add("associations", "companies")
	query.Add("associations", "contacts")

	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/%s?%s",
		c.baseURL, c.signalObjectType, url.PathEscape(signalID), query.Encode())

	var record objectRecord
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &record); err != nil {
		return nil, fmt.Errorf("get signal %s: %w", signalID, err)
	}

	return signalFromRecord(&record), nil
}

// ListSignalsPage returns one page of signals with existing associations.
func (c *Client) ListSignalsPage(ctx context.Context, limit int, after string) ([]*models.Signal, string, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	query := url.Values{}
	for _, p := range signalProperties {
		query.Add("properties", p)
	}
	query.Add("associations", "companies")
	query.Add("associations", "contacts")
	query.Set("limit", fmt.Sprintf("%d", limit))
	if after != "" {
		query.Set("after", after)
	}

	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s?%s", c.baseURL, c.signalObjectType, query.Encode())

	var resp listResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, "", fmt.Errorf("list signals: %w", err)
	}

	signals := make([]*models.Signal, 0, len(resp.Results))
	for i := range resp.Results {
		signals = append(signals, signalFromRecord(&resp.Results[i]))
	}

	return signals, resp.nextAfter(), nil
}

// ListUnassociatedSignals pages through signals and returns up to limit that
// have no company or contact associations yet.
func (c *Client) ListUnassociatedSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	var unassociated []*models.Signal
	after := ""

	for len(unassociated) < limit {
		signals, next, err := c.ListSignalsPage(ctx, maxPageSize, after)
		if err != nil {
			return nil, err
		}

		for _, signal := range signals {
			if len(signal.CompanyIDs) == 0 && len(signal.ContactIDs) == 0 {
				unassociated = append(unassociated, signal)
				if len(unassociated) >= limit {
					break
				}
			}
		}

		if next == "" {
			break
		}
		after = next
	}

	return unassociated, nil
}

// CompanyPage is one page of companies from a list or search call.
type CompanyPage struct {
	Companies []*models.Company
	After     string // empty when this is the last page
}

// ListCompanies returns one page of companies. When modifiedAfter is
// non-zero the CRM search API filters on last modification time.
func (c *Client) ListCompanies(ctx context.Context, after string, modifiedAfter time.Time) (*CompanyPage, error) {
	props := []string{"name", "domain", "hs_lastmodifieddate"}

	resp, err := c.listObjects(ctx, "companies", props, after, modifiedAfter)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	page := &CompanyPage{After: resp.nextAfter()}
	for _, record := range resp.Results {
		page.Companies = append(page.Companies, &models.Company{
			HubSpotID: record.ID,
			Name:      record.Properties["name"],
			Domain:    record.Properties["domain"],
			UpdatedAt: parseTimestamp(record.Properties["hs_lastmodifieddate"]),
		})
	}

	return page, nil
}

// ContactPage is one page of contacts from a list or search call.
type ContactPage struct {
	Contacts []*models.Contact
	After    string
}

// ListContacts returns one page of contacts, optionally filtered by last
// modification time.
func (c *Client) ListContacts(ctx context.Context, after string, modifiedAfter time.Time) (*ContactPage, error) {
	props := []string{"firstname", "lastname", "company", "hs_lastmodifieddate"}

	resp, err := c.listObjects(ctx, "contacts", props, after, modifiedAfter)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	page := &ContactPage{After: resp.nextAfter()}
	for _, record := range resp.Results {
		page.Contacts = append(page.Contacts, &models.Contact{
			HubSpotID: record.ID,
			FirstName: record.Properties["firstname"],
			LastName:  record.Properties["lastname"],
			Company:   record.Properties["company"],
			UpdatedAt: parseTimestamp(record.Properties["hs_lastmodifieddate"]),
		})
	}

	return page, nil
}

// listObjects fetches one page of an object collection. Unfiltered listing
// uses the basic paging endpoint; modification-time filtering requires the
// search API.
func (c *Client) listObjects(ctx context.Context, objectName string, props []string, after string, modifiedAfter time.Time) (*listResponse, error) {
	var resp listResponse

	if modifiedAfter.IsZero() {
		query := url.Values{}
		for _, p := range props {
			query.Add("properties", p)
		}
		query.Set("limit", fmt.Sprintf("%d", maxPageSize))
		if after != "" {
			query.Set("after", after)
		}

		endpoint := fmt.Sprintf("%s/crm/v3/objects/%s?%s", c.baseURL, objectName, query.Encode())
		if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}

	if after == "" {
		after = "0"
	}
	// Ascending modification order lets callers advance their sync cursor
	// batch by batch without skipping older unseen records.
	body := map[string]any{
		"filterGroups": []map[string]any{{
			"filters": []map[string]any{{
				"propertyName": "hs_lastmodifieddate",
				"operator":     "GTE",
				"value":        fmt.Sprintf("%d", modifiedAfter.UnixMilli()),
			}},
		}},
		"sorts": []map[string]any{{
			"propertyName": "hs_lastmodifieddate",
			"direction":    "ASCENDING",
		}},
		"properties": props,
		"limit":      maxPageSize,
		"after":      after,
	}

	endpoint := fmt.Sprintf("%s/crm/v3/objects/%s/search", c.baseURL, objectName)
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateAssociation creates a bidirectional association between a Signal
// and a Company or Contact.
func (c *Client) CreateAssociation(ctx context.Context, signalID, entityType, entityID string) error {
	var objectName string
	var associationType int
	switch entityType {
	case models.EntityTypeCompany:
		objectName = "companies"
		associationType = c.companyAssociationType
	case models.EntityTypeContact:
		objectName = "contacts"
		associationType = c.contactAssociationType
	default:
		return fmt.Errorf("unknown entity type %q", entityType)
	}

	// v4 association endpoints take object schema names, not numeric IDs.
	endpoint := fmt.Sprintf("%s/crm/v4/objects/%s/%s/associations/%s/%s",
		c.baseURL, c.signalObjectName, url.PathEscape(signalID), objectName, url.PathEscape(entityID))

	body := []map[string]any{{
		"associationCategory": "HUBSPOT_DEFINED",
		"associationTypeId":   associationType,
	}}

	// The PUT is idempotent, so transient CRM failures are safe to retry.
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		return c.doJSON(ctx, http.MethodPut, endpoint, body, nil)
	})
	if err != nil {
		return fmt.Errorf("associate signal %s with %s %s: %v: %w",
			signalID, entityType, entityID, err, apperrors.ErrAssociationWriteFailed)
	}

	c.logger.Debug("association created",
		zap.String("signal_id", signalID),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID))

	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hubspot API status %d: %s", resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func signalFromRecord(record *objectRecord) *models.Signal {
	signal := &models.Signal{
		ID:          record.ID,
		Name:        record.Properties["signal_name"],
		Type:        record.Properties["signal_type"],
		Status:      record.Properties["signal_status"],
		Description: record.Properties["signal_description"],
		Citation:    record.Properties["signal_citation"],
	}

	for key, assoc := range record.Associations {
		lower := strings.ToLower(key)
		for _, result := range assoc.Results {
			switch {
			case strings.Contains(lower, "compan"):
				signal.CompanyIDs = append(signal.CompanyIDs, result.ID)
			case strings.Contains(lower, "contact"):
				signal.ContactIDs = append(signal.ContactIDs, result.ID)
			}
		}
	}

	return signal
}

// parseTimestamp reads HubSpot modification timestamps, which arrive either
// as RFC3339 strings or millisecond epochs.
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil && millis > 0 {
		return time.UnixMilli(millis).UTC()
	}
	return time.Time{}
}
