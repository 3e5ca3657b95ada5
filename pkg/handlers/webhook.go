package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signal-engine/pkg/logging"
	"github.com/driftline/signal-engine/pkg/services"
)

// matchTimeout bounds one background matching run triggered by a webhook.
const matchTimeout = 2 * time.Minute

// SignalWebhookRequest is the payload HubSpot workflow webhooks send when a
// new signal is created.
type SignalWebhookRequest struct {
	SignalID string `json:"signalId"`
}

// WebhookHandler accepts CRM webhook notifications and triggers matching.
type WebhookHandler struct {
	matcher services.MatcherService
	logger  *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(matcher services.MatcherService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{matcher: matcher, logger: logger.Named("webhook")}
}

// RegisterRoutes registers the webhook handler's routes on the given mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/signal", h.SignalCreated)
}

// SignalCreated handles POST /webhooks/signal requests. Matching runs in the
// background so the webhook responds within the CRM's delivery timeout.
func (h *WebhookHandler) SignalCreated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "use POST")
		return
	}

	var req SignalWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, codeInvalidRequest, "malformed JSON body")
		return
	}
	if req.SignalID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, codeInvalidRequest, "signalId is required")
		return
	}

	h.logger.Info("Signal webhook received", zap.String("signal_id", req.SignalID))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), matchTimeout)
		defer cancel()

		if _, err := h.matcher.MatchSignal(ctx, req.SignalID, services.MatchOptions{}); err != nil {
			h.logger.Error("Webhook-triggered matching failed",
				zap.String("signal_id", req.SignalID),
				zap.String("error", logging.SanitizeError(err)))
		}
	}()

	if err := WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"signalId": req.SignalID,
	}); err != nil {
		h.logger.Error("Failed to encode webhook response", zap.Error(err))
	}
}
