package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/twiliowhatsapp"
)

func postForm(t *testing.T, h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestTwilioWebhook_Text(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	rec := postForm(t, svc.TwilioWebhookHandler, url.Values{
		"From": {"whatsapp:+5511987654321"},
		"Body": {"dipirona"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" || !strings.Contains(rec.Body.String(), "<Response>") {
		t.Errorf("expected an empty TwiML ack, got %q %q", ct, rec.Body.String())
	}
	select {
	case msg := <-svc.Responses():
		if msg.From != "5511987654321" || msg.Body != "dipirona" || msg.HasMedia() {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("expected inbound message")
	}
}

func TestTwilioWebhook_VoiceMedia(t *testing.T) {
	client := twiliowhatsapp.NewMockClient()
	client.Media["https://api.twilio.com/media/ME1"] = []byte("OggS")
	svc := NewTwilioService(client)

	rec := postForm(t, svc.TwilioWebhookHandler, url.Values{
		"From":              {"whatsapp:+5511987654321"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"audio/ogg"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	msg := <-svc.Responses()
	if msg.Media == nil || msg.Media.Kind != models.MediaKindVoice {
		t.Fatalf("expected voice media, got %+v", msg.Media)
	}
	data, err := msg.Media.Download(context.Background())
	if err != nil || string(data) != "OggS" {
		t.Errorf("download = %q, %v", data, err)
	}
}

func TestTwilioWebhook_MissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if rec := postForm(t, svc.TwilioWebhookHandler, url.Values{"Body": {"oi"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without From, got %d", rec.Code)
	}
	if rec := postForm(t, svc.TwilioWebhookHandler, url.Values{"From": {"whatsapp:+5511987654321"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without body or media, got %d", rec.Code)
	}
}

func TestTwilioService_SendAndStop(t *testing.T) {
	client := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(client)
	if err := svc.SendMessage(context.Background(), "whatsapp:+5511987654321", "olá"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(client.SentMessages) != 1 || client.SentMessages[0].To != "5511987654321" {
		t.Errorf("unexpected sent messages: %+v", client.SentMessages)
	}
	if r := <-svc.Receipts(); r.Status != models.MessageStatusSent {
		t.Errorf("expected sent receipt, got %+v", r)
	}

	_ = svc.Stop()
	if err := svc.SendMessage(context.Background(), "5511987654321", "x"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestMediaKind(t *testing.T) {
	if mediaKind("audio/ogg") != models.MediaKindVoice {
		t.Error("ogg should be a voice note")
	}
	if mediaKind("audio/mpeg") != models.MediaKindAudio {
		t.Error("mpeg should be audio")
	}
	if mediaKind("image/jpeg") != models.MediaKindOther {
		t.Error("image should be other")
	}
}

func TestTwilioWebhook_InvalidSender(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	rec := postForm(t, svc.TwilioWebhookHandler, url.Values{"From": {"whatsapp:+12"}, "Body": {"oi"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a short sender, got %d", rec.Code)
	}
}

func TestEventBus_DropsAfterClose(t *testing.T) {
	b := newEventBus("test")
	if !b.close() {
		t.Fatal("first close should report true")
	}
	if b.close() {
		t.Error("second close should be a no-op")
	}
	// Must not panic on closed channels.
	b.emitReceipt(models.Receipt{To: "5511987654321"})
	b.emitResponse(models.InboundMessage{From: "5511987654321"})
	if _, ok := <-b.Responses(); ok {
		t.Error("responses channel should be closed and empty")
	}
}
