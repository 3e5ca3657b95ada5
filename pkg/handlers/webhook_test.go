package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftline/signal-engine/pkg/models"
	"github.com/driftline/signal-engine/pkg/services"
)

// mockMatcher captures MatchSignal invocations.
type mockMatcher struct {
	mu      sync.Mutex
	matched []string
	done    chan struct{}
}

func newMockMatcher() *mockMatcher {
	return &mockMatcher{done: make(chan struct{}, 8)}
}

func (m *mockMatcher) MatchSignal(ctx context.Context, signalID string, opts services.MatchOptions) (*models.MatchOutcome, error) {
	m.mu.Lock()
	m.matched = append(m.matched, signalID)
	m.mu.Unlock()
	m.done <- struct{}{}
	return &models.MatchOutcome{SignalID: signalID}, nil
}

func (m *mockMatcher) ProcessAll(ctx context.Context, limit int, opts services.MatchOptions) (*services.ProcessReport, error) {
	return &services.ProcessReport{}, nil
}

var _ services.MatcherService = (*mockMatcher)(nil)

func TestSignalWebhook_Accepted(t *testing.T) {
	matcher := newMockMatcher()
	handler := NewWebhookHandler(matcher, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/signal",
		strings.NewReader(`{"signalId":"12345"}`))
	rec := httptest.NewRecorder()
	handler.SignalCreated(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "12345")

	select {
	case <-matcher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("matching was not triggered")
	}

	matcher.mu.Lock()
	defer matcher.mu.Unlock()
	require.Len(t, matcher.matched, 1)
	assert.Equal(t, "12345", matcher.matched[0])
}

func TestSignalWebhook_RejectsGet(t *testing.T) {
	handler := NewWebhookHandler(newMockMatcher(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/webhooks/signal", nil)
	rec := httptest.NewRecorder()
	handler.SignalCreated(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, codeMethodNotAllowed, body.Error)
}

func TestSignalWebhook_RejectsMalformedBody(t *testing.T) {
	handler := NewWebhookHandler(newMockMatcher(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/signal",
		strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	handler.SignalCreated(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignalWebhook_RequiresSignalID(t *testing.T) {
	matcher := newMockMatcher()
	handler := NewWebhookHandler(matcher, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/signal",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.SignalCreated(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, matcher.matched)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, codeInvalidRequest, body.Error)
	assert.Equal(t, "signalId is required", body.Message)
}
