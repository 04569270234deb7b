package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookConfigured(t *testing.T) {
	if NewWebhook("").Configured() {
		t.Error("empty url must not be configured")
	}
	if !NewWebhook("https://discord.com/api/webhooks/1/x").Configured() {
		t.Error("non-empty url must be configured")
	}

	var nilHook *Webhook
	if nilHook.Configured() {
		t.Error("nil webhook must not be configured")
	}
}

func TestSendGameEmbeds(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL)
	games := []GameEmbed{{
		Title:      "Genshin Impact Daily Login",
		Color:      "E86D82",
		AuthorName: "Paimon",
		AuthorIcon: "https://example.com/paimon.png",
		Thumbnail:  "https://example.com/primogem.png",
		Fields:     []Field{{Name: "Status", Value: "✅ Claimed 60x Primogem"}},
	}}

	if err := hook.Send(context.Background(), "1/2", games, nil, "123"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(payload.Embeds) != 1 {
		t.Fatalf("got %d embeds, want 1", len(payload.Embeds))
	}
	e := payload.Embeds[0]
	if e.Title != "Genshin Impact Daily Login" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Color != 0xE86D82 {
		t.Errorf("color = %06X, want the game color", e.Color)
	}
	if e.Author == nil || e.Author.Name != "Paimon" {
		t.Errorf("author = %+v", e.Author)
	}
	if e.Thumbnail.URL != "https://example.com/primogem.png" {
		t.Errorf("thumbnail = %q, want the reward icon", e.Thumbnail.URL)
	}
	if len(e.Fields) != 1 || e.Fields[0].Name != "Status" {
		t.Errorf("fields = %+v", e.Fields)
	}
	if payload.Content != "" || payload.AllowedMentions != nil {
		t.Error("no mention without errors")
	}
	if payload.Username != webhookUsername {
		t.Errorf("username = %q", payload.Username)
	}
}

func TestSendErrorEmbedMentionsUser(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL)
	games := []GameEmbed{{Title: "Honkai Star Rail Daily Login", Color: "E0D463"}}
	errorLines := []string{"Honkai: Star Rail: ❌ Blocked by challenge, no solver configured"}

	if err := hook.Send(context.Background(), "1/1", games, errorLines, "987654"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(payload.Embeds) != 2 {
		t.Fatalf("got %d embeds, want game embed plus error embed", len(payload.Embeds))
	}
	errEmbed := payload.Embeds[1]
	if errEmbed.Color != 0xE86D82 {
		t.Errorf("error embed color = %06X, want E86D82", errEmbed.Color)
	}
	if !strings.Contains(errEmbed.Title, "Cookie 1/1") {
		t.Errorf("error embed title = %q", errEmbed.Title)
	}
	if len(errEmbed.Fields) != 1 || !strings.Contains(errEmbed.Fields[0].Value, "Blocked by challenge") {
		t.Errorf("error field = %+v", errEmbed.Fields)
	}
	if !strings.Contains(payload.Content, "<@987654>") {
		t.Errorf("content %q must mention the user", payload.Content)
	}
	if payload.AllowedMentions == nil || len(payload.AllowedMentions.Users) != 1 || payload.AllowedMentions.Users[0] != "987654" {
		t.Errorf("allowed_mentions = %+v", payload.AllowedMentions)
	}
}

func TestSendErrorWithoutDiscordID(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL)
	if err := hook.Send(context.Background(), "1/1", nil, []string{"something broke"}, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload.Content != "" {
		t.Errorf("content %q must stay empty without a Discord ID", payload.Content)
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("got %d embeds, want the error embed alone", len(payload.Embeds))
	}
}

func TestSendDefaultThumbnail(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL)
	if err := hook.Send(context.Background(), "1/1", []GameEmbed{{Title: "t"}}, nil, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload.Embeds[0].Thumbnail.URL != thumbnailURL {
		t.Errorf("thumbnail = %q, want default", payload.Embeds[0].Thumbnail.URL)
	}
	if payload.Embeds[0].Author != nil {
		t.Errorf("author = %+v, want omitted without author metadata", payload.Embeds[0].Author)
	}
}

func TestSendSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Invalid Webhook Token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL)
	err := hook.Send(context.Background(), "1/1", []GameEmbed{{Title: "t"}}, nil, "")
	if err == nil || !strings.Contains(err.Error(), "Invalid Webhook Token") {
		t.Fatalf("err = %v, want body surfaced", err)
	}
}
