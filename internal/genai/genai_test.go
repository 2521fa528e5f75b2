package genai

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// mockTranscriptionService implements transcriptionService for testing.
type mockTranscriptionService struct {
	resp   *openai.Transcription
	err    error
	params openai.AudioTranscriptionNewParams
	body   []byte
}

func (m *mockTranscriptionService) New(ctx context.Context, params openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error) {
	m.params = params
	if params.File != nil {
		m.body, _ = io.ReadAll(params.File)
	}
	return m.resp, m.err
}

func newTestClient(svc transcriptionService) *Client {
	return &Client{transcriptions: svc, model: DefaultModel, language: DefaultLanguage}
}

func TestTranscribe_Success(t *testing.T) {
	svc := &mockTranscriptionService{resp: &openai.Transcription{Text: "  Preciso de Dipirona "}}
	c := newTestClient(svc)

	text, err := c.Transcribe(context.Background(), Audio{Data: []byte("OggS..."), MimeType: "audio/ogg; codecs=opus", SampleRate: 16000})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "preciso de dipirona" {
		t.Errorf("expected normalized transcript, got %q", text)
	}
	if string(svc.body) != "OggS..." {
		t.Errorf("audio bytes not uploaded, got %q", svc.body)
	}
	if svc.params.Model != openai.AudioModelWhisper1 {
		t.Errorf("unexpected model %q", svc.params.Model)
	}
	named, ok := svc.params.File.(interface{ Filename() string })
	if !ok || named.Filename() != "voice.ogg" {
		t.Errorf("expected voice.ogg upload name")
	}
}

func TestTranscribe_EmptyTranscriptIsUnintelligible(t *testing.T) {
	c := newTestClient(&mockTranscriptionService{resp: &openai.Transcription{Text: "   "}})
	_, err := c.Transcribe(context.Background(), Audio{Data: []byte{1, 2, 3}})
	if !errors.Is(err, models.ErrUnintelligible) {
		t.Errorf("expected ErrUnintelligible, got %v", err)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	svc := &mockTranscriptionService{}
	c := newTestClient(svc)
	_, err := c.Transcribe(context.Background(), Audio{})
	if !errors.Is(err, models.ErrUnintelligible) {
		t.Errorf("expected ErrUnintelligible, got %v", err)
	}
	if svc.params.File != nil {
		t.Error("service must not be called for empty audio")
	}
}

func TestTranscribe_ServiceError(t *testing.T) {
	c := newTestClient(&mockTranscriptionService{err: errors.New("service failure")})
	_, err := c.Transcribe(context.Background(), Audio{Data: []byte{1}})
	if !errors.Is(err, models.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
	if errors.Is(err, models.ErrUnintelligible) {
		t.Error("service errors are not unintelligible audio")
	}
}

func TestTranscribe_DebugMode(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(&mockTranscriptionService{resp: &openai.Transcription{Text: "sim"}})
	c.debugMode = true
	c.stateDir = dir

	if _, err := c.Transcribe(context.Background(), Audio{Data: []byte{1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files, err := os.ReadDir(filepath.Join(dir, "debug"))
	if err != nil {
		t.Fatalf("debug dir not created: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 debug file, got %d", len(files))
	}
}

func TestAudioFileInfo(t *testing.T) {
	tests := []struct {
		mime     string
		wantType string
		wantName string
	}{
		{"audio/ogg; codecs=opus", "audio/ogg", "voice.ogg"},
		{"audio/mpeg", "audio/mpeg", "voice.mp3"},
		{"audio/mp4", "audio/mp4", "voice.m4a"},
		{"", "audio/ogg", "voice.ogg"},
	}
	for _, tt := range tests {
		gotType, gotName := audioFileInfo(tt.mime)
		if gotType != tt.wantType || gotName != tt.wantName {
			t.Errorf("audioFileInfo(%q) = (%q, %q), want (%q, %q)", tt.mime, gotType, gotName, tt.wantType, tt.wantName)
		}
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithLanguage("pt"), WithModel("whisper-1"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil || cli.model != "whisper-1" {
		t.Errorf("unexpected client %+v", cli)
	}
}
