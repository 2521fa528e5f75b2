package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/twiliowhatsapp"
)

// TwilioService implements the Service interface using the Twilio API.
// Inbound events arrive through TwilioWebhookHandler.
type TwilioService struct {
	*eventBus
	client twiliowhatsapp.TwilioWhatsAppSender
}

// NewTwilioService creates a new TwilioService around a real or mock Twilio client.
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender) *TwilioService {
	return &TwilioService{
		eventBus: newEventBus("TwilioService"),
		client:   client,
	}
}

// ValidateAndCanonicalizeRecipient returns the digits-only form of a WhatsApp number.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalizeRecipient(strings.TrimPrefix(recipient, "whatsapp:"))
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op; Twilio pushes events to the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *TwilioService) Stop() error {
	if s.close() {
		slog.Info("TwilioService stopped and channels closed")
	}
	return nil
}

// SendMessage sends a message via Twilio and emits a receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isClosed() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// IsRegistered delegates to the Twilio Lookups check.
func (s *TwilioService) IsRegistered(ctx context.Context, phone string) (bool, error) {
	return s.client.IsRegistered(ctx, phone)
}

// mediaKind classifies a Twilio media content type. WhatsApp voice notes
// arrive as audio/ogg.
func mediaKind(contentType string) models.MediaKind {
	switch {
	case strings.HasPrefix(contentType, "audio/ogg"):
		return models.MediaKindVoice
	case strings.HasPrefix(contentType, "audio/"):
		return models.MediaKindAudio
	default:
		return models.MediaKindOther
	}
}

// emptyTwiML acknowledges a webhook without sending an automatic reply.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

var (
	errWebhookMissingSender  = errors.New("missing From")
	errWebhookMissingContent = errors.New("missing Body and media")
)

// inboundFromForm converts a Twilio webhook form. Only the first media item
// is kept; WhatsApp delivers one attachment per message.
func (s *TwilioService) inboundFromForm(form url.Values) (models.InboundMessage, error) {
	from := form.Get("From")
	if from == "" {
		return models.InboundMessage{}, errWebhookMissingSender
	}
	body := form.Get("Body")
	numMedia, _ := strconv.Atoi(form.Get("NumMedia"))
	if body == "" && numMedia <= 0 {
		return models.InboundMessage{}, errWebhookMissingContent
	}
	sender, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		return models.InboundMessage{}, fmt.Errorf("invalid sender: %w", err)
	}

	msg := models.InboundMessage{From: sender, Body: body, Time: time.Now().Unix()}
	if numMedia > 0 {
		mediaURL, contentType := form.Get("MediaUrl0"), form.Get("MediaContentType0")
		msg.Media = &models.Media{
			Kind:     mediaKind(contentType),
			MimeType: contentType,
			Download: func(ctx context.Context) ([]byte, error) {
				return s.client.DownloadMedia(ctx, mediaURL)
			},
		}
	}
	return msg, nil
}

// TwilioWebhookHandler accepts inbound Twilio webhook posts and queues them
// on Responses(). Replies go out through the REST API, so the TwiML answer
// is always empty.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("TwilioService webhook: unparsable form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	msg, err := s.inboundFromForm(r.PostForm)
	if err != nil {
		slog.Warn("TwilioService webhook: rejected", "error", err, "from", r.PostForm.Get("From"))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Info("TwilioService webhook: inbound message", "from", msg.From, "body_length", len(msg.Body), "has_media", msg.HasMedia())
	s.emitResponse(msg)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(emptyTwiML)); err != nil {
		slog.Debug("TwilioService webhook: ack write failed", "error", err)
	}
}
