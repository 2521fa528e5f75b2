package messaging

import (
	"context"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	*eventBus
	client   whatsapp.WhatsAppSender
	waClient *whatsapp.Client // nil for mocks
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given WhatsAppSender.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	service := &WhatsAppService{
		eventBus: newEventBus("WhatsAppService"),
		client:   client,
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// ValidateAndCanonicalizeRecipient returns the digits-only form of a WhatsApp number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizeRecipient(recipient)
}

// Start registers the event handler on the underlying client.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		case *events.Receipt:
			s.handleMessageReceipt(v)
		case *events.Connected:
			slog.Info("WhatsAppService connected")
		case *events.Disconnected:
			slog.Warn("WhatsAppService disconnected")
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop closes the event channels.
func (s *WhatsAppService) Stop() error {
	if s.close() {
		slog.Info("WhatsAppService stopped and channels closed")
	}
	return nil
}

// SendMessage sends a message and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if s.isClosed() {
		return ErrServiceStopped
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	slog.Debug("WhatsAppService message sent", "to", canonicalTo, "body_length", len(body))
	return nil
}

// IsRegistered asks WhatsApp whether the number has an account.
func (s *WhatsAppService) IsRegistered(ctx context.Context, phone string) (bool, error) {
	return s.client.IsRegistered(ctx, phone)
}

type addressResolver interface {
	ResolveAddress(ctx context.Context, phone string) (string, bool, error)
}

// ResolveAddress returns the address WhatsApp knows phone by, so that sends
// and the sender of later replies agree. Clients without resolution keep
// phone as is.
func (s *WhatsAppService) ResolveAddress(ctx context.Context, phone string) (string, bool, error) {
	if r, ok := s.client.(addressResolver); ok {
		return r.ResolveAddress(ctx, phone)
	}
	registered, err := s.client.IsRegistered(ctx, phone)
	if err != nil || !registered {
		return "", false, err
	}
	return phone, true, nil
}

// senderAddress returns the phone number of the sender, preferring the phone
// JID when WhatsApp addressed the message by its hidden LID.
func senderAddress(src types.MessageSource) string {
	if src.Sender.Server == types.HiddenUserServer && src.SenderAlt.User != "" {
		return src.SenderAlt.User
	}
	return src.Sender.User
}

// inboundFromEvent converts a whatsmeow message event. The second result is
// false for events that carry neither text nor media.
func (s *WhatsAppService) inboundFromEvent(evt *events.Message) (models.InboundMessage, bool) {
	if evt.Message == nil {
		return models.InboundMessage{}, false
	}
	msg := models.InboundMessage{
		From:    senderAddress(evt.Info.MessageSource),
		Time:    evt.Info.Timestamp.Unix(),
		FromMe:  evt.Info.IsFromMe,
		IsGroup: evt.Info.IsGroup,
	}

	m := evt.Message
	switch {
	case m.GetConversation() != "":
		msg.Body = m.GetConversation()
	case m.GetExtendedTextMessage().GetText() != "":
		msg.Body = m.GetExtendedTextMessage().GetText()
	case m.GetAudioMessage() != nil:
		msg.Media = s.audioMedia(m.GetAudioMessage())
	case m.GetImageMessage() != nil:
		msg.Body = m.GetImageMessage().GetCaption()
		msg.Media = &models.Media{Kind: models.MediaKindOther, MimeType: m.GetImageMessage().GetMimetype()}
	case m.GetDocumentMessage() != nil:
		msg.Body = m.GetDocumentMessage().GetCaption()
		msg.Media = &models.Media{Kind: models.MediaKindOther, MimeType: m.GetDocumentMessage().GetMimetype()}
	case m.GetVideoMessage() != nil:
		msg.Body = m.GetVideoMessage().GetCaption()
		msg.Media = &models.Media{Kind: models.MediaKindOther, MimeType: m.GetVideoMessage().GetMimetype()}
	default:
		return models.InboundMessage{}, false
	}
	return msg, true
}

func (s *WhatsAppService) audioMedia(audio *waE2E.AudioMessage) *models.Media {
	kind := models.MediaKindAudio
	if audio.GetPTT() {
		kind = models.MediaKindVoice
	}
	return &models.Media{
		Kind:     kind,
		MimeType: audio.GetMimetype(),
		Download: func(ctx context.Context) ([]byte, error) {
			return s.waClient.DownloadAudio(ctx, audio)
		},
	}
}

func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	msg, ok := s.inboundFromEvent(evt)
	if !ok {
		slog.Debug("WhatsAppService ignoring unsupported message", "from", evt.Info.Sender.String())
		return
	}
	s.emitResponse(msg)
}

func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case types.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		slog.Debug("WhatsAppService ignoring receipt type", "type", evt.Type)
		return
	}
	s.emitReceipt(models.Receipt{
		To:     senderAddress(evt.MessageSource),
		Status: status,
		Time:   evt.Timestamp.Unix(),
	})
}
