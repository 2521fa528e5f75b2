// Package whatsapp wraps the Whatsmeow client for Avotech's WhatsApp channel.
//
// It handles device login, sending text, registration lookups and voice note
// downloads.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/paulosouza-ec/Avotech/internal/store"
)

const (
	// DefaultSQLitePath is the default path for the whatsmeow device database.
	DefaultSQLitePath = "/var/lib/avotech/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID server for regular users.
	JIDSuffix = "s.whatsapp.net"
)

// ErrNotInitialized is returned by Client methods before NewClient succeeded.
var ErrNotInitialized = errors.New("whatsapp client not initialized")

// WhatsAppSender is the client surface used by the messaging service (real or mock).
type WhatsAppSender interface {
	SendMessage(ctx context.Context, to string, body string) error
	IsRegistered(ctx context.Context, phone string) (bool, error)
}

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // print the raw login code instead of a QR code
	LogLevel    string // whatsmeow log level (DEBUG, INFO, WARN, ERROR)
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput writes the login QR code to path instead of stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode prints the login code as text instead of a QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// WithLogLevel sets the whatsmeow internal log level.
func WithLogLevel(level string) Option {
	return func(o *Opts) {
		o.LogLevel = level
	}
}

// Client wraps the Whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
}

// driverFor picks the database/sql driver for a DSN and warns about SQLite
// databases without foreign keys, which whatsmeow relies on.
func driverFor(dsn string) string {
	if store.DetectDSNType(dsn) == "postgres" {
		return "postgres"
	}
	if !strings.Contains(dsn, "foreign_keys") {
		slog.Warn("SQLite database for WhatsApp does not appear to have foreign keys enabled; "+
			"consider adding '?_foreign_keys=on' to the connection string",
			"dsn_example", "file:"+dsn+"?_foreign_keys=on")
	}
	return "sqlite3"
}

// NewClient opens the device store, logs in if needed and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := Opts{LogLevel: "INFO", DBDSN: DefaultSQLitePath}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DBDSN == "" {
		cfg.DBDSN = DefaultSQLitePath
	}

	container, err := sqlstore.New(ctx, driverFor(cfg.DBDSN), cfg.DBDSN, waLog.Stdout("Database", cfg.LogLevel, true))
	if err != nil {
		slog.Error("WhatsApp device store unavailable", "error", err)
		return nil, fmt.Errorf("whatsapp device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp device store: load device: %w", err)
	}

	c := &Client{waClient: whatsmeow.NewClient(device, waLog.Stdout("Client", cfg.LogLevel, true))}
	if c.waClient.Store.ID == nil {
		err = c.pair(ctx, cfg)
	} else {
		err = c.waClient.Connect()
	}
	if err != nil {
		slog.Error("WhatsApp connection failed", "error", err, "paired", device.ID != nil)
		return nil, fmt.Errorf("whatsapp connect: %w", err)
	}
	slog.Info("WhatsApp client connected", "paired", device.ID != nil)
	return c, nil
}

// codeSink renders a pairing code for the operator, either as a terminal QR
// code or as plain text.
func codeSink(w io.Writer, numeric bool) func(code string) {
	if numeric {
		return func(code string) { fmt.Fprintln(w, code) }
	}
	return func(code string) { qrterminal.GenerateHalfBlock(code, qrterminal.L, w) }
}

// pair links a new device by streaming pairing codes until WhatsApp reports
// success, timeout or error.
func (c *Client) pair(ctx context.Context, cfg Opts) error {
	qrChan, err := c.waClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("open pairing channel: %w", err)
	}
	if err := c.waClient.Connect(); err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return fmt.Errorf("create pairing code file: %w", err)
		}
		defer f.Close()
		out = f
	}
	show := codeSink(out, cfg.NumericCode)

	slog.Info("WhatsApp pairing required", "code_file", cfg.QRPath, "numeric", cfg.NumericCode)
	for evt := range qrChan {
		if evt.Event == "code" {
			show(evt.Code)
			continue
		}
		slog.Info("WhatsApp pairing event", "event", evt.Event)
	}
	return nil
}

// SendMessage sends a text message to a phone number (digits only).
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	switch {
	case c.waClient == nil || c.waClient.Store == nil:
		return ErrNotInitialized
	case to == "":
		return errors.New("recipient cannot be empty")
	case body == "":
		return errors.New("message body cannot be empty")
	}

	jid := types.NewJID(to, JIDSuffix)
	msg := &waE2E.Message{Conversation: &body}
	if _, err := c.waClient.SendMessage(ctx, jid, msg); err != nil {
		slog.Error("Failed to send WhatsApp message", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("WhatsApp message sent successfully", "to", to, "body_length", len(body))
	return nil
}

// IsRegistered reports whether phone has a WhatsApp account.
func (c *Client) IsRegistered(ctx context.Context, phone string) (bool, error) {
	_, ok, err := c.ResolveAddress(ctx, phone)
	return ok, err
}

// ResolveAddress looks phone up on WhatsApp and returns the user part of the
// JID the account is registered under. It can differ from phone: older
// Brazilian mobile accounts are registered without the ninth digit.
func (c *Client) ResolveAddress(ctx context.Context, phone string) (string, bool, error) {
	if c.waClient == nil {
		return "", false, ErrNotInitialized
	}
	resp, err := c.waClient.IsOnWhatsApp([]string{"+" + strings.TrimPrefix(phone, "+")})
	if err != nil {
		return "", false, fmt.Errorf("failed to check registration of %s: %w", phone, err)
	}
	for _, r := range resp {
		if r.IsIn {
			slog.Debug("WhatsApp number registered", "phone", phone, "jid", r.JID.String())
			if r.JID.User == "" {
				return phone, true, nil
			}
			return r.JID.User, true, nil
		}
	}
	return "", false, nil
}

// DownloadAudio fetches and decrypts the media of an audio message.
func (c *Client) DownloadAudio(ctx context.Context, audio *waE2E.AudioMessage) ([]byte, error) {
	if c.waClient == nil {
		return nil, ErrNotInitialized
	}
	data, err := c.waClient.Download(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	return data, nil
}

// GetClient returns the underlying whatsmeow client for event handling.
func (c *Client) GetClient() *whatsmeow.Client {
	return c.waClient
}

// Disconnect closes the WhatsApp connection.
func (c *Client) Disconnect() {
	if c.waClient != nil {
		c.waClient.Disconnect()
	}
}

// MockClient implements WhatsAppSender without a connection (for tests).
// Numbers listed in Registered are reported as registered; Aliases maps a
// registered number to the JID user WhatsApp would resolve it to.
type MockClient struct {
	mu           sync.Mutex
	Registered   map[string]bool
	Aliases      map[string]string
	SentMessages []SentMessage
	SendErr      error
}

// SentMessage is a message recorded by MockClient.
type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{Registered: make(map[string]bool), Aliases: make(map[string]string)}
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

func (m *MockClient) ResolveAddress(ctx context.Context, phone string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Registered[phone] {
		return "", false, nil
	}
	if alias, ok := m.Aliases[phone]; ok {
		return alias, true, nil
	}
	return phone, true, nil
}

// Messages returns a snapshot of the sent messages.
func (m *MockClient) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
