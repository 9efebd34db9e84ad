// Package discord posts run summaries to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"

	"lol-match-crawler/internal/collector"
	"lol-match-crawler/internal/riot"
)

const (
	// Colors for Discord embeds
	colorRed   = 15158332 // 0xE74C3C
	colorGreen = 5763719  // 0x57F287

	defaultWebhookTimeout = 10 * time.Second

	// Max attempts when Discord rate limits us
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// RunSummary is what gets reported when a crawl ends.
type RunSummary struct {
	State      string
	Successful bool
	Samples    int
	Target     int
	Players    int
	Runtime    time.Duration
	ErrorKind  string
	Output     string
	APIKey     string
	FinishedAt time.Time
}

// NewRunFinishedPayload builds the embed for a finished run: green when the
// run succeeded, red otherwise.
func NewRunFinishedPayload(s RunSummary) WebhookPayload {
	embed := Embed{
		Title: "Crawl " + s.State,
		Color: colorGreen,
		Fields: []EmbedField{
			{Name: "Samples", Value: fmt.Sprintf("%s / %s", humanize.Comma(int64(s.Samples)), humanize.Comma(int64(s.Target))), Inline: true},
			{Name: "Players Expanded", Value: humanize.Comma(int64(s.Players)), Inline: true},
			{Name: "Runtime", Value: collector.FormatDuration(s.Runtime), Inline: true},
		},
	}
	if !s.Successful {
		embed.Color = colorRed
	}
	if s.ErrorKind != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Error", Value: s.ErrorKind, Inline: true})
	}
	if s.Output != "" {
		embed.Description = "Output: `" + s.Output + "`"
	}
	if s.APIKey != "" {
		embed.Footer = &EmbedFooter{Text: "Key " + riot.MaskKey(s.APIKey)}
	}
	if !s.FinishedAt.IsZero() {
		embed.Timestamp = s.FinishedAt.UTC().Format(time.RFC3339)
	}

	payload := WebhookPayload{Embeds: []Embed{embed}}
	if s.ErrorKind == "AuthRejected" {
		payload.Content = "@here API key rejected"
	}
	return payload
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
		sleep: sleepCtx,
	}
}

// SendRunSummary posts the end-of-run embed.
func (c *WebhookClient) SendRunSummary(ctx context.Context, s RunSummary) error {
	return c.sendPayload(ctx, NewRunFinishedPayload(s))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt == maxRetries-1 {
				break
			}
			if err := c.sleep(ctx, retryAfter(resp.Header, body)); err != nil {
				return err
			}
			continue
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// retryAfter reads the wait from the Retry-After header, then from the
// retry_after body field (seconds, may be fractional). Defaults to one second.
func retryAfter(header http.Header, body []byte) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	var rl struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(body, &rl) == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	return time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
