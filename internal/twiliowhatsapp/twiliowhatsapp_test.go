package twiliowhatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "5511987654321", "Olá"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].Body != "Olá" {
		t.Errorf("expected body %q, got %q", "Olá", mock.SentMessages[0].Body)
	}
}

func TestMockClient_IsRegistered(t *testing.T) {
	mock := NewMockClient()
	mock.Registered["5511987654321"] = true

	if ok, _ := mock.IsRegistered(context.Background(), "5511987654321"); !ok {
		t.Error("expected registered number")
	}
	if ok, _ := mock.IsRegistered(context.Background(), "5511000000000"); ok {
		t.Error("expected unregistered number")
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	_, err := NewClient()
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	for _, want := range []string{"account SID", "auth token", "sender number"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without sender number")
	}

	c, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("+14155238886"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.cfg.FromWhats != "whatsapp:+14155238886" {
		t.Errorf("expected whatsapp: prefix, got %q", c.cfg.FromWhats)
	}

	t.Setenv("TWILIO_FROM_NUMBER", " 14155238886 ")
	c, err = NewClient(WithAccountSID("AC1"), WithAuthToken("tok"))
	if err != nil {
		t.Fatalf("env fallback failed: %v", err)
	}
	if c.cfg.FromWhats != "whatsapp:+14155238886" {
		t.Errorf("expected env sender normalized to E.164, got %q", c.cfg.FromWhats)
	}
}

func TestE164(t *testing.T) {
	if got := E164("5511987654321"); got != "+5511987654321" {
		t.Errorf("E164 = %q", got)
	}
	if got := E164("+5511987654321"); got != "+5511987654321" {
		t.Errorf("E164 should not double the plus: %q", got)
	}
}

func TestDownloadMedia_UsesBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "audio/ogg")
		_, _ = w.Write([]byte("OggS"))
	}))
	defer srv.Close()

	c, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("whatsapp:+1"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := c.DownloadMedia(context.Background(), srv.URL+"/media/1")
	if err != nil {
		t.Fatalf("DownloadMedia failed: %v", err)
	}
	if string(data) != "OggS" {
		t.Errorf("unexpected media body %q", data)
	}

	bad, _ := NewClient(WithAccountSID("AC1"), WithAuthToken("wrong"), WithFromWhats("whatsapp:+1"), WithHTTPClient(srv.Client()))
	if _, err := bad.DownloadMedia(context.Background(), srv.URL+"/media/1"); err == nil {
		t.Error("expected error on unauthorized download")
	}
}
