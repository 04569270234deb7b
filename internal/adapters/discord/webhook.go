package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	webhookUsername  = "Hoyolab Auto Login"
	webhookAvatarURL = "https://avatars.githubusercontent.com/u/38610216?size=128"
	thumbnailURL     = "https://media.discordapp.net/stickers/1098094222432800909.webp?size=160"

	errorColor = "E86D82"
)

// Webhook delivers a finished session report to a Discord webhook.
// Delivery failures are returned to the caller for logging; they are
// never retried and never affect already-computed outcomes.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Configured() bool { return w != nil && w.url != "" }

// Field is one embed field.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// GameEmbed is the per-game presentation block: the game's own title,
// color and author branding around the claim result fields.
type GameEmbed struct {
	Title       string
	Description string
	Color       string
	AuthorName  string
	AuthorURL   string
	AuthorIcon  string
	Thumbnail   string
	Fields      []Field
}

type embedAuthor struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Author      *embedAuthor `json:"author,omitempty"`
	Thumbnail   embedImage   `json:"thumbnail"`
	Fields      []Field      `json:"fields,omitempty"`
}

type allowedMentions struct {
	Users []string `json:"users"`
}

type webhookPayload struct {
	Username        string           `json:"username"`
	AvatarURL       string           `json:"avatar_url"`
	Content         string           `json:"content,omitempty"`
	AllowedMentions *allowedMentions `json:"allowed_mentions,omitempty"`
	Embeds          []embed          `json:"embeds"`
}

// Send posts one message for the cookie: one embed per game in
// discovery order, plus a trailing error embed when errorLines is
// non-empty. Errors trigger the mention of discordID when present.
func (w *Webhook) Send(ctx context.Context, cookieNum string, games []GameEmbed, errorLines []string, discordID string) error {
	if !w.Configured() {
		return fmt.Errorf("webhook url not configured")
	}

	embeds := make([]embed, 0, len(games)+1)
	for _, g := range games {
		e := embed{
			Title:       g.Title,
			Description: g.Description,
			Color:       colorValue(g.Color),
			Fields:      g.Fields,
		}
		if g.AuthorName != "" || g.AuthorURL != "" || g.AuthorIcon != "" {
			e.Author = &embedAuthor{
				Name:    g.AuthorName,
				URL:     g.AuthorURL,
				IconURL: g.AuthorIcon,
			}
		}
		e.Thumbnail.URL = g.Thumbnail
		if e.Thumbnail.URL == "" {
			e.Thumbnail.URL = thumbnailURL
		}
		embeds = append(embeds, e)
	}

	if len(errorLines) > 0 {
		e := embed{
			Title: fmt.Sprintf("Error(s) for Cookie %s", cookieNum),
			Color: colorValue(errorColor),
			Fields: []Field{{
				Name:  "Error(s) encountered",
				Value: strings.Join(errorLines, "\n"),
			}},
		}
		e.Thumbnail.URL = thumbnailURL
		embeds = append(embeds, e)
	}

	payload := webhookPayload{
		Username:  webhookUsername,
		AvatarURL: webhookAvatarURL,
		Embeds:    embeds,
	}
	if len(errorLines) > 0 && discordID != "" {
		payload.Content = fmt.Sprintf("There was an error while running your script, <@%s>", discordID)
		payload.AllowedMentions = &allowedMentions{Users: []string{discordID}}
	}

	return w.postJSON(ctx, payload)
}

func (w *Webhook) postJSON(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request error: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		resBody, _ := io.ReadAll(res.Body)
		return fmt.Errorf("webhook status %s body=%s", res.Status, strings.TrimSpace(string(resBody)))
	}
	return nil
}

func colorValue(hexColor string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hexColor, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
