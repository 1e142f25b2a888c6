package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// telegramServer mimics the Bot API and records every message text.
func telegramServer(t *testing.T, texts *[]string, response map[string]interface{}, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/bottest-token/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		if payload.ChatID != "12345" {
			t.Errorf("chat_id = %q, want 12345", payload.ChatID)
		}
		*texts = append(*texts, payload.Text)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response) // nolint:errcheck
	}))

	original := telegramAPIBaseURL
	telegramAPIBaseURL = server.URL + "/bot"
	t.Cleanup(func() {
		telegramAPIBaseURL = original
		server.Close()
	})
	return server
}

func TestTelegramNotifier(t *testing.T) {
	var texts []string
	telegramServer(t, &texts, map[string]interface{}{"ok": true}, http.StatusOK)

	n, err := NewTelegramNotifier("test-token", "12345", "", testLoc, time.Second)
	if err != nil {
		t.Fatalf("NewTelegramNotifier() error: %v", err)
	}

	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify(nil) error: %v", err)
	}
	if len(texts) != 0 {
		t.Errorf("empty batch sent %d messages, want 0", len(texts))
	}

	if err := n.Notify(context.Background(), sampleRows()); err != nil {
		t.Fatalf("Notify() unexpected error: %v", err)
	}
	if len(texts) != 1 || !strings.Contains(texts[0], "AI Demo Night") {
		t.Errorf("messages = %q", texts)
	}
}

func TestTelegramNotifier_SplitsLongDigest(t *testing.T) {
	var texts []string
	telegramServer(t, &texts, map[string]interface{}{"ok": true}, http.StatusOK)

	var rows []reconcile.Row
	for i := 0; i < 80; i++ {
		rows = append(rows, reconcile.Row{
			Title:     strings.Repeat("Long Event Title ", 4),
			Start:     at(12, 18),
			Location:  "1871, 222 W Merchandise Mart Plaza, Chicago",
			SourceURL: "https://lu.ma/some-event-slug",
		})
	}

	n, err := NewTelegramNotifier("test-token", "12345", "", testLoc, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), rows); err != nil {
		t.Fatalf("Notify() unexpected error: %v", err)
	}
	if len(texts) < 2 {
		t.Fatalf("sent %d messages, want the digest split into several", len(texts))
	}
	for i, text := range texts {
		if len(text) > telegramMaxMessage {
			t.Errorf("message %d is %d bytes, limit %d", i, len(text), telegramMaxMessage)
		}
	}
}

func TestTelegramNotifier_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]interface{}
		status   int
		wantErr  string
	}{
		{
			name:     "API error",
			response: map[string]interface{}{"ok": false, "description": "Bad Request: chat not found"},
			status:   http.StatusOK,
			wantErr:  "Bad Request",
		},
		{
			name:     "HTTP error",
			response: map[string]interface{}{"ok": false},
			status:   http.StatusInternalServerError,
			wantErr:  "status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var texts []string
			telegramServer(t, &texts, tt.response, tt.status)

			n, err := NewTelegramNotifier("test-token", "12345", "", testLoc, time.Second)
			if err != nil {
				t.Fatal(err)
			}
			err = n.Notify(context.Background(), sampleRows())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Notify() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewTelegramNotifier_Validation(t *testing.T) {
	if _, err := NewTelegramNotifier("", "12345", "", testLoc, 0); err == nil {
		t.Error("expected error for missing bot token")
	}
	if _, err := NewTelegramNotifier("token", "", "", testLoc, 0); err == nil {
		t.Error("expected error for missing chat ID")
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"fits", "one\ntwo", 20, []string{"one\ntwo"}},
		{"splits on lines", "aaaa\nbbbb\ncccc", 10, []string{"aaaa\nbbbb", "cccc"}},
		{"cuts long line", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"keeps runes whole", "ééé", 3, []string{"é", "é", "é"}},
		{"empty", "", 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitMessage(tt.text, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("splitMessage(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, []reconcile.Row) error { return f.err }

func TestMulti(t *testing.T) {
	errA := errors.New("webhook down")
	var texts []string
	telegramServer(t, &texts, map[string]interface{}{"ok": true}, http.StatusOK)
	tg, err := NewTelegramNotifier("test-token", "12345", "", testLoc, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	err = Multi{failingNotifier{errA}, tg}.Notify(context.Background(), sampleRows())
	if !errors.Is(err, errA) {
		t.Errorf("Multi.Notify() error = %v, want %v", err, errA)
	}
	if len(texts) != 1 {
		t.Errorf("later notifiers should still run after a failure, got %d messages", len(texts))
	}
}
