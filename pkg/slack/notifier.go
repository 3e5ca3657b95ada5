// Package slack sends match notifications through an incoming webhook.
// Notifications are best-effort and never fail the pipeline.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/signal-engine/pkg/logging"
	"github.com/driftline/signal-engine/pkg/models"
)

// Notifier posts Block Kit messages to a Slack incoming webhook. A Notifier
// with an empty webhook URL is a no-op.
type Notifier struct {
	httpClient *http.Client
	webhookURL string
	logger     *zap.Logger
}

// NewNotifier creates a new Notifier. An empty webhookURL disables
// notifications.
func NewNotifier(webhookURL string, logger *zap.Logger) *Notifier {
	n := &Notifier{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		logger:     logger.Named("slack"),
	}
	if webhookURL == "" {
		n.logger.Info("no webhook URL configured, notifications disabled")
	}
	return n
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

type block map[string]any

func section(text string) block {
	return block{"type": "section", "text": map[string]string{"type": "mrkdwn", "text": text}}
}

// NotifySignalMatched sends a notification for a completed match with at
// least one created association.
func (n *Notifier) NotifySignalMatched(ctx context.Context, signal *models.Signal, outcome *models.MatchOutcome) error {
	if !n.Enabled() {
		return nil
	}

	name := signal.Name
	if name == "" {
		name = signal.ID
	}

	blocks := []block{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": "Signal Matched: " + name, "emoji": true},
		},
		section(fmt.Sprintf("*Signal ID:* %s\n*Associations created:* %d of %d candidates",
			signal.ID, outcome.AssociationsCreated, outcome.TotalCandidates())),
	}

	if preview := logging.TruncateText(signal.Description, 150); preview != "" {
		blocks = append(blocks, section("*Description:*\n>"+preview))
	}

	for _, result := range append(outcome.Companies, outcome.Contacts...) {
		if !result.AssociationCreated {
			continue
		}
		blocks = append(blocks, section(fmt.Sprintf("%s *%s* (%.0f%% match)",
			result.Match.EntityType, result.Match.Name, result.Match.Similarity*100)))
	}
	blocks = append(blocks, block{"type": "divider"})

	summary := fmt.Sprintf("Signal %q matched with %d associations", name, outcome.AssociationsCreated)
	return n.send(ctx, summary, blocks)
}

// NotifySignalNoMatch sends a notification when a signal produced no
// qualifying candidates.
func (n *Notifier) NotifySignalNoMatch(ctx context.Context, signal *models.Signal) error {
	if !n.Enabled() {
		return nil
	}

	name := signal.Name
	if name == "" {
		name = signal.ID
	}

	blocks := []block{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": "Signal Not Matched: " + name, "emoji": true},
		},
		section("*Signal ID:* " + signal.ID),
	}
	if preview := logging.TruncateText(signal.Description, 150); preview != "" {
		blocks = append(blocks, section("*Description:*\n>"+preview))
	}
	blocks = append(blocks, block{"type": "divider"})

	return n.send(ctx, fmt.Sprintf("Signal %q could not be matched", name), blocks)
}

func (n *Notifier) send(ctx context.Context, text string, blocks []block) error {
	payload, err := json.Marshal(map[string]any{
		"text":   text,
		"blocks": blocks,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}

	return nil
}
