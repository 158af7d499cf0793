// Package slack sends escalation notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/caseq/internal/alerts"
)

const (
	maxDescriptionLen = 1500
	httpTimeout       = 10 * time.Second
)

// Notifier posts escalated alerts to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Escalated is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Escalated posts an escalation notice to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Escalated(ctx context.Context, a *alerts.Alert, analyst string) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(a, analyst)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(a *alerts.Alert, analyst string) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(a),
			{"type": "divider"},
			fieldsBlock(a, analyst),
			{"type": "divider"},
			descriptionBlock(a),
			{"type": "divider"},
			contextBlock(a),
		},
	}
}

func headerBlock(a *alerts.Alert) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Alert Escalated: %s", riskEmoji(a.RiskScore), a.Code),
		},
	}
}

func fieldsBlock(a *alerts.Alert, analyst string) map[string]any {
	amount := "n/a"
	if a.FlaggedAmount != nil {
		amount = a.FlaggedAmount.StringFixed(2)
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Typology:* %s", a.Typology),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Risk score:* %d", a.RiskScore),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Escalated by:* %s", analyst),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Flagged amount:* %s", amount),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Flagged transactions:* %d", a.FlaggedTxCount),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func descriptionBlock(a *alerts.Alert) map[string]any {
	text := truncate(a.Description, maxDescriptionLen)
	if text == "" {
		text = "_No description available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s*\n\n%s", a.Title, text),
		},
	}
}

func contextBlock(a *alerts.Alert) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("caseq • alert %s • triggered %s", a.ID, a.TriggeredAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func riskEmoji(score int) string {
	switch {
	case score >= 70:
		return "\U0001f534" // red circle
	case score >= 40:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
