package report

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/config"
)

func TestBrevoMailer_Send(t *testing.T) {
	var got brevoPayload
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId":"<1@brevo>"}`)) //nolint:errcheck // Test server
	}))
	defer srv.Close()

	m := NewBrevoMailer(config.MailConfig{
		Endpoint: srv.URL,
		APIKey:   "xkeysib-test",
		From:     "alerts@example.test",
		FromName: "Tank levels",
		To:       []string{"ops@example.test", " ", "plant@example.test"},
	})
	err := m.Send(context.Background(), Message{Subject: "S", Text: "T", HTML: "<p>H</p>"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotKey != "xkeysib-test" {
		t.Errorf("api-key header = %q", gotKey)
	}
	if got.Sender.Email != "alerts@example.test" || got.Sender.Name != "Tank levels" {
		t.Errorf("sender = %+v", got.Sender)
	}
	if len(got.To) != 2 || got.To[1].Email != "plant@example.test" {
		t.Errorf("to = %+v", got.To)
	}
	if got.Subject != "S" || got.TextContent != "T" || got.HTMLContent != "<p>H</p>" {
		t.Errorf("payload = %+v", got)
	}
}

func TestBrevoMailer_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewBrevoMailer(config.MailConfig{Endpoint: srv.URL, APIKey: "k", From: "a@b.c", To: []string{"d@e.f"}})
	err := m.Send(context.Background(), Message{Subject: "S"})
	if !errors.Is(err, ErrMailRejected) {
		t.Fatalf("Send() error = %v, want ErrMailRejected", err)
	}
}

func TestBrevoMailer_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MailConfig
	}{
		{"no key", config.MailConfig{From: "a@b.c", To: []string{"d@e.f"}}},
		{"no sender", config.MailConfig{APIKey: "k", To: []string{"d@e.f"}}},
		{"no recipients", config.MailConfig{APIKey: "k", From: "a@b.c", To: []string{""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBrevoMailer(tt.cfg).Send(context.Background(), Message{})
			if !errors.Is(err, ErrMailDisabled) {
				t.Errorf("Send() error = %v, want ErrMailDisabled", err)
			}
		})
	}
}
