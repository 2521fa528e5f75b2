// Package twiliowhatsapp wraps the Twilio API as an alternative WhatsApp transport for Avotech.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	lookupsV2 "github.com/twilio/twilio-go/rest/lookups/v2"
)

// maxMediaBytes bounds a downloaded media attachment.
const maxMediaBytes = 16 << 20

// TwilioWhatsAppSender is the client surface used by the messaging service (real or mock).
type TwilioWhatsAppSender interface {
	SendMessage(ctx context.Context, to string, body string) error
	IsRegistered(ctx context.Context, phone string) (bool, error)
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string // sender in "whatsapp:+1234567890" format
	HTTPClient *http.Client
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// WithHTTPClient sets the HTTP client used for media downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// resolve fills unset fields from TWILIO_* variables and checks what remains.
func (o *Opts) resolve() error {
	for _, f := range []struct {
		dst *string
		env string
	}{
		{&o.AccountSID, "TWILIO_ACCOUNT_SID"},
		{&o.AuthToken, "TWILIO_AUTH_TOKEN"},
		{&o.FromWhats, "TWILIO_FROM_NUMBER"},
	} {
		if *f.dst == "" {
			*f.dst = strings.TrimSpace(os.Getenv(f.env))
		}
	}

	var errs []error
	if o.AccountSID == "" {
		errs = append(errs, errors.New("twilio account SID is required"))
	}
	if o.AuthToken == "" {
		errs = append(errs, errors.New("twilio auth token is required"))
	}
	if o.FromWhats == "" {
		errs = append(errs, errors.New("twilio sender number is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if !strings.HasPrefix(o.FromWhats, "whatsapp:") {
		o.FromWhats = "whatsapp:" + E164(o.FromWhats)
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return nil
}

// Client wraps the Twilio REST API for WhatsApp.
type Client struct {
	rest *twilio.RestClient
	cfg  Opts
}

// NewClient builds a client from options, falling back to TWILIO_* environment variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.resolve(); err != nil {
		return nil, fmt.Errorf("twilio client: %w", err)
	}
	slog.Debug("Twilio client configured", "from", cfg.FromWhats)

	return &Client{
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		cfg: cfg,
	}, nil
}

// E164 renders a digits-only phone as "+<digits>".
func E164(phone string) string {
	return "+" + strings.TrimPrefix(phone, "+")
}

// SendMessage sends a WhatsApp message using the Twilio API.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + E164(to))
	params.SetFrom(c.cfg.FromWhats)
	params.SetBody(body)

	if _, err := c.rest.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// IsRegistered asks Lookups v2 whether the number is a valid, reachable line.
// Twilio has no WhatsApp-presence lookup, so validity is the closest signal.
func (c *Client) IsRegistered(ctx context.Context, phone string) (bool, error) {
	resp, err := c.rest.LookupsV2.FetchPhoneNumber(E164(phone), &lookupsV2.FetchPhoneNumberParams{})
	if err != nil {
		slog.Error("Twilio lookup failed", "phone", phone, "error", err)
		return false, fmt.Errorf("failed to look up %s: %w", phone, err)
	}
	valid := resp != nil && resp.Valid
	slog.Debug("Twilio lookup result", "phone", phone, "valid", valid)
	return valid, nil
}

// DownloadMedia fetches an inbound media attachment. Twilio media URLs
// require the account credentials as basic auth.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	return data, nil
}

// MockClient implements TwilioWhatsAppSender in memory for tests. It is safe
// for concurrent use.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Registered   map[string]bool
	Media        map[string][]byte
	SendErr      error
}

// SentMessage is a message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{
		Registered: make(map[string]bool),
		Media:      make(map[string][]byte),
	}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockClient) IsRegistered(ctx context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Registered[phone], nil
}

func (m *MockClient) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.Media[mediaURL]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("media %s not found", mediaURL)
}
