package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tankwatch/tankwatch-core/internal/infrastructure/config"
)

// DefaultBrevoEndpoint is the transactional email endpoint.
const DefaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

const (
	defaultMailTimeout = 30 * time.Second

	// maxErrorBody caps how much of a rejection body ends up in the error.
	maxErrorBody = 512
)

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// BrevoMailer sends through the Brevo HTTP API.
type BrevoMailer struct {
	endpoint string
	apiKey   string
	from     string
	fromName string
	to       []string
	client   *http.Client
}

// NewBrevoMailer creates a mailer from configuration. An incomplete
// configuration is accepted; Send then returns ErrMailDisabled.
func NewBrevoMailer(cfg config.MailConfig) *BrevoMailer {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultBrevoEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultMailTimeout
	}
	var to []string
	for _, addr := range cfg.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return &BrevoMailer{
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		from:     strings.TrimSpace(cfg.From),
		fromName: strings.TrimSpace(cfg.FromName),
		to:       to,
		client:   &http.Client{Timeout: timeout},
	}
}

// Configured returns nil when the mailer can send, or an ErrMailDisabled
// naming what is missing.
func (m *BrevoMailer) Configured() error {
	switch {
	case m.apiKey == "":
		return fmt.Errorf("%w: missing API key", ErrMailDisabled)
	case m.from == "":
		return fmt.Errorf("%w: missing sender address", ErrMailDisabled)
	case len(m.to) == 0:
		return fmt.Errorf("%w: no recipients", ErrMailDisabled)
	}
	return nil
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoPayload struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	TextContent string         `json:"textContent"`
	HTMLContent string         `json:"htmlContent,omitempty"`
}

// Send posts msg to every recipient in one request.
func (m *BrevoMailer) Send(ctx context.Context, msg Message) error {
	if err := m.Configured(); err != nil {
		return err
	}

	payload := brevoPayload{
		Sender:      brevoAddress{Email: m.from, Name: m.fromName},
		Subject:     msg.Subject,
		TextContent: msg.Text,
		HTMLContent: msg.HTML,
	}
	for _, addr := range m.to {
		payload.To = append(payload.To, brevoAddress{Email: addr})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // Best-effort detail
		return fmt.Errorf("%w: status %d: %s", ErrMailRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // Drain for connection reuse
	return nil
}
