package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"spindb/api/internal/store"
)

// Button styles.
const (
	styleSuccess = 3
	styleDanger  = 4
)

const embedColorPending = 0xF1C40F

// Notifier pushes moderation prompts to a Discord webhook. Delivery is
// best-effort: a failed push never blocks the submission that triggered it.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// ErrNoWebhook means the webhook URL was never configured. Callers that
// require notifications should treat this as a deployment defect.
var ErrNoWebhook = errors.New("discord: webhook URL not configured")

// NewNotifier creates a webhook notifier. url may be empty; calls will then
// return ErrNoWebhook.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		webhookURL: url,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Embeds     []embed     `json:"embeds"`
	Components []actionRow `json:"components"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type actionRow struct {
	Type       int      `json:"type"`
	Components []button `json:"components"`
}

type button struct {
	Type     int    `json:"type"`
	Style    int    `json:"style"`
	Label    string `json:"label"`
	CustomID string `json:"custom_id"`
}

// NotifyNewReview announces a freshly submitted review with approve/reject
// buttons. Returns false (without error) when delivery fails.
func (n *Notifier) NotifyNewReview(ctx context.Context, review store.Review, equipmentName string) (bool, error) {
	if n.webhookURL == "" {
		return false, ErrNoWebhook
	}
	payload := webhookPayload{
		Embeds: []embed{{
			Title:       "New review awaiting moderation",
			Description: review.Title,
			Color:       embedColorPending,
			Fields: []embedField{
				{Name: "Equipment", Value: equipmentName, Inline: true},
				{Name: "Rating", Value: fmt.Sprintf("%d/10", review.Rating), Inline: true},
				{Name: "Submitted by", Value: review.SubmitterID, Inline: true},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
		Components: []actionRow{{
			Type: 1,
			Components: []button{
				{Type: 2, Style: styleSuccess, Label: "Approve", CustomID: "approve_" + review.ID},
				{Type: 2, Style: styleDanger, Label: "Reject", CustomID: "reject_" + review.ID},
			},
		}},
	}
	return n.deliver(ctx, payload)
}

// NotifyNewPlayerEdit announces a pending player-profile edit with
// approve/reject buttons.
func (n *Notifier) NotifyNewPlayerEdit(ctx context.Context, edit store.PlayerEdit, playerName string) (bool, error) {
	if n.webhookURL == "" {
		return false, ErrNoWebhook
	}

	keys := make([]string, 0, len(edit.Fields))
	for k := range edit.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]embedField, 0, len(keys)+1)
	fields = append(fields, embedField{Name: "Player", Value: playerName, Inline: true})
	for _, k := range keys {
		fields = append(fields, embedField{Name: k, Value: edit.Fields[k], Inline: true})
	}

	payload := webhookPayload{
		Embeds: []embed{{
			Title:       "Player edit awaiting moderation",
			Description: fmt.Sprintf("Submitted by %s", edit.SubmitterID),
			Color:       embedColorPending,
			Fields:      fields,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
		Components: []actionRow{{
			Type: 1,
			Components: []button{
				{Type: 2, Style: styleSuccess, Label: "Approve", CustomID: "approve_player_edit_" + edit.ID},
				{Type: 2, Style: styleDanger, Label: "Reject", CustomID: "reject_player_edit_" + edit.ID},
			},
		}},
	}
	return n.deliver(ctx, payload)
}

func (n *Notifier) deliver(ctx context.Context, payload webhookPayload) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("discord: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("discord: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("discord: webhook delivery failed: %v", err)
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("discord: webhook returned %d", resp.StatusCode)
		return false, nil
	}
	return true, nil
}
