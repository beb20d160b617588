package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kryptoscreener/upordown/internal/domain"
)

// Embed sidebar colors per outcome.
const (
	discordGreen = 0x2ecc71
	discordRed   = 0xe74c3c
	discordGrey  = 0x95a5a6
)

// DiscordSender delivers game events via a Discord webhook, as embeds
// colored by outcome.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Send posts the event to the webhook. Events with no rendering are skipped.
func (d *DiscordSender) Send(ctx context.Context, ev domain.GameEvent) error {
	embed, ok := discordRender(ev)
	if !ok {
		return nil
	}

	body, err := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// discordRender builds the embed for an event: won predictions are green,
// lost ones red, everything else grey.
func discordRender(ev domain.GameEvent) (discordEmbed, bool) {
	title := headline(ev)
	if title == "" {
		return discordEmbed{}, false
	}

	color := discordGrey
	if ev.Type == domain.EventSessionResolved {
		if ev.Session.Outcome == domain.OutcomeWin {
			color = discordGreen
		} else {
			color = discordRed
		}
	}

	return discordEmbed{
		Title:       title,
		Description: strings.Join(describe(ev), "\n"),
		Color:       color,
	}, true
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
