package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// IdentityNames is the fallback name resolver: the identity is the name.
// A platform adapter with a real member directory replaces this.
type IdentityNames struct{}

func (IdentityNames) ResolveDisplayName(_ context.Context, identity, _ string) string {
	return identity
}

// WebhookModerator forwards the suspension to an external moderation
// endpoint. With no endpoint configured it degrades to a log line, which
// keeps local runs working.
type WebhookModerator struct {
	url    string
	client *http.Client
}

func NewWebhookModerator(url string) *WebhookModerator {
	return &WebhookModerator{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type penaltyRequest struct {
	Identity string `json:"identity"`
	GroupID  string `json:"group_id"`
	Duration int    `json:"duration_seconds"`
}

func (m *WebhookModerator) ApplyPenalty(ctx context.Context, identity, groupID string, durationSeconds int) error {
	if m.url == "" {
		log.Printf("[ApplyPenalty] no moderation endpoint, would suspend %s in %s for %ds",
			identity, groupID, durationSeconds)
		return nil
	}

	payload, err := json.Marshal(penaltyRequest{
		Identity: identity,
		GroupID:  groupID,
		Duration: durationSeconds,
	})
	if err != nil {
		return fmt.Errorf("marshal penalty request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build penalty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("post penalty: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("moderation endpoint returned %d", resp.StatusCode)
	}
	return nil
}
