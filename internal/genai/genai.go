// Package genai transcribes voice messages with the OpenAI audio API.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// Defaults for the transcription request.
const (
	DefaultModel      = string(openai.AudioModelWhisper1)
	DefaultLanguage   = "pt"
	DefaultSampleRate = 16000
	DefaultTimeout    = 30 * time.Second
)

// transcriptionService is the subset of the OpenAI client used here.
type transcriptionService interface {
	New(ctx context.Context, body openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error)
}

// Audio is a recorded clip to transcribe.
type Audio struct {
	Data       []byte
	MimeType   string
	SampleRate int
}

// Opts holds configuration options for the transcription client.
type Opts struct {
	APIKey    string
	BaseURL   string
	Model     string
	Language  string
	Timeout   time.Duration
	DebugMode bool
	StateDir  string
}

// Option defines a configuration option for the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithLanguage sets the ISO-639-1 language hint.
func WithLanguage(lang string) Option {
	return func(o *Opts) { o.Language = lang }
}

// WithTimeout bounds each transcription request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithDebugMode saves every transcription result under stateDir/debug.
func WithDebugMode(enabled bool, stateDir string) Option {
	return func(o *Opts) {
		o.DebugMode = enabled
		o.StateDir = stateDir
	}
}

// Client transcribes audio clips.
type Client struct {
	transcriptions transcriptionService
	model          string
	language       string
	timeout        time.Duration
	debugMode      bool
	stateDir       string
}

// NewClient creates a transcription client. An API key is required, either as
// an option or through OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:    DefaultModel,
		Language: DefaultLanguage,
		Timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)

	slog.Debug("GenAI NewClient created", "model", cfg.Model, "language", cfg.Language, "debug", cfg.DebugMode)
	return &Client{
		transcriptions: &cli.Audio.Transcriptions,
		model:          cfg.Model,
		language:       cfg.Language,
		timeout:        cfg.Timeout,
		debugMode:      cfg.DebugMode,
		stateDir:       cfg.StateDir,
	}, nil
}

// Transcribe converts speech to lower-cased, trimmed text. It returns an error
// wrapping models.ErrUnintelligible when nothing could be recognized.
func (c *Client) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", fmt.Errorf("empty audio clip: %w", models.ErrUnintelligible)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contentType, filename := audioFileInfo(audio.MimeType)
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio.Data), filename, contentType),
		Model: openai.AudioModel(c.model),
	}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}

	slog.Debug("GenAI Transcribe request", "bytes", len(audio.Data), "mime", contentType, "sample_rate", audio.SampleRate)
	start := time.Now()
	resp, err := c.transcriptions.New(ctx, params)
	if err != nil {
		slog.Error("GenAI Transcribe failed", "error", err)
		return "", fmt.Errorf("transcription request failed: %w: %w", models.ErrServiceUnavailable, err)
	}

	text := strings.ToLower(strings.TrimSpace(resp.Text))
	c.saveDebug(audio, text, time.Since(start))
	if text == "" {
		return "", fmt.Errorf("empty transcript: %w", models.ErrUnintelligible)
	}
	slog.Debug("GenAI Transcribe done", "text_length", len(text), "duration", time.Since(start))
	return text, nil
}

// audioFileInfo derives the upload content type and a filename whose
// extension the API uses to detect the format.
func audioFileInfo(mimeType string) (string, string) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil || mediaType == "" {
		mediaType = "audio/ogg"
	}
	ext := ".ogg"
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		ext = ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a", "audio/aac":
		ext = ".m4a"
	case "audio/wav", "audio/x-wav", "audio/wave":
		ext = ".wav"
	case "audio/webm":
		ext = ".webm"
	case "audio/amr":
		ext = ".amr"
	}
	return mediaType, "voice" + ext
}

type debugRecord struct {
	Time       time.Time `json:"time"`
	Model      string    `json:"model"`
	MimeType   string    `json:"mime_type"`
	Bytes      int       `json:"bytes"`
	SampleRate int       `json:"sample_rate"`
	Transcript string    `json:"transcript"`
	DurationMS int64     `json:"duration_ms"`
}

func (c *Client) saveDebug(audio Audio, text string, took time.Duration) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("GenAI debug dir creation failed", "error", err)
		return
	}
	rec := debugRecord{
		Time:       time.Now(),
		Model:      c.model,
		MimeType:   audio.MimeType,
		Bytes:      len(audio.Data),
		SampleRate: audio.SampleRate,
		Transcript: text,
		DurationMS: took.Milliseconds(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	name := filepath.Join(dir, fmt.Sprintf("transcription_%d.json", rec.Time.UnixNano()))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		slog.Warn("GenAI debug write failed", "error", err)
	}
}
