package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/genai"
	"github.com/paulosouza-ec/Avotech/internal/metrics"
	"github.com/paulosouza-ec/Avotech/internal/models"
)

// Replies sent when a voice message cannot be turned into text.
const (
	MsgUnintelligibleAudio = "❌ Não consegui entender o áudio. Tente novamente."
	MsgAudioError          = "⚠️ Ocorreu um erro ao processar seu áudio. Tente novamente ou digite sua resposta."
)

// InputHandler interprets one normalized user input and returns the reply,
// or "" for no reply.
type InputHandler interface {
	HandleInput(ctx context.Context, userID, rawInput string, isVoice bool) string
}

// ReplyWatcher inspects every inbound event and reports whether it consumed it.
type ReplyWatcher interface {
	Observe(ctx context.Context, msg models.InboundMessage) bool
}

// Transcriber turns a voice clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio genai.Audio) (string, error)
}

// ResponseRecorder keeps an audit copy of inbound text.
type ResponseRecorder interface {
	AddResponse(r models.Response) error
}

// HandlerOpts configures a ResponseHandler.
type HandlerOpts struct {
	Watcher     ReplyWatcher
	Transcriber Transcriber
	Recorder    ResponseRecorder
	Metrics     *metrics.Metrics
}

// HandlerOption defines a configuration option for the ResponseHandler.
type HandlerOption func(*HandlerOpts)

// WithReplyWatcher offers every inbound event to w before routing it.
func WithReplyWatcher(w ReplyWatcher) HandlerOption {
	return func(o *HandlerOpts) { o.Watcher = w }
}

// WithTranscriber enables voice message handling.
func WithTranscriber(t Transcriber) HandlerOption {
	return func(o *HandlerOpts) { o.Transcriber = t }
}

// WithResponseRecorder stores inbound text in an audit log.
func WithResponseRecorder(r ResponseRecorder) HandlerOption {
	return func(o *HandlerOpts) { o.Recorder = r }
}

// WithHandlerMetrics records inbound and reply counters.
func WithHandlerMetrics(m *metrics.Metrics) HandlerOption {
	return func(o *HandlerOpts) { o.Metrics = m }
}

// mailbox is the FIFO queue of one user. A single goroutine drains it while
// running is set, so inputs of the same user are handled in arrival order.
type mailbox struct {
	queue   []models.InboundMessage
	running bool
}

// ResponseHandler routes inbound events to the reply watcher and the dialogue.
type ResponseHandler struct {
	msgService Service
	input      InputHandler
	opts       HandlerOpts

	mu    sync.Mutex
	boxes map[string]*mailbox
	wg    sync.WaitGroup
}

// NewResponseHandler creates a ResponseHandler that replies through msgService.
func NewResponseHandler(msgService Service, input InputHandler, opts ...HandlerOption) *ResponseHandler {
	var cfg HandlerOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ResponseHandler{
		msgService: msgService,
		input:      input,
		opts:       cfg,
		boxes:      make(map[string]*mailbox),
	}
}

// Start consumes the service's inbound channel until ctx is done or the channel closes.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting response processing")
	go func() {
		defer slog.Info("ResponseHandler stopped response processing")
		for {
			select {
			case msg, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Debug("ResponseHandler responses channel closed")
					return
				}
				rh.ProcessResponse(ctx, msg)
			case <-ctx.Done():
				slog.Debug("ResponseHandler stopping due to context cancellation")
				return
			}
		}
	}()
}

// ProcessResponse handles a single inbound event. User inputs are queued and
// processed asynchronously; call Wait to block until queues drain.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, msg models.InboundMessage) {
	if msg.Body != "" && rh.opts.Recorder != nil {
		if err := rh.opts.Recorder.AddResponse(models.Response{From: msg.From, Body: msg.Body, Time: msg.Time}); err != nil {
			slog.Error("ResponseHandler failed to record response", "error", err, "from", msg.From)
		}
	}

	// Group traffic is never a pharmacy reply, even from a pharmacy's number.
	switch {
	case msg.FromMe:
		rh.opts.Metrics.Inbound("own")
		return
	case msg.IsGroup:
		rh.opts.Metrics.Inbound("group")
		return
	}

	if rh.opts.Watcher != nil && rh.opts.Watcher.Observe(ctx, msg) {
		rh.opts.Metrics.Inbound("pharmacy_reply")
		return
	}

	switch {
	case msg.Media.IsAudio():
		rh.opts.Metrics.Inbound("voice")
	case strings.TrimSpace(msg.Body) == "":
		slog.Debug("ResponseHandler ignoring message without text", "from", msg.From, "has_media", msg.HasMedia())
		rh.opts.Metrics.Inbound("ignored")
		return
	default:
		rh.opts.Metrics.Inbound("text")
	}

	rh.enqueue(ctx, msg)
}

func (rh *ResponseHandler) enqueue(ctx context.Context, msg models.InboundMessage) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	box, ok := rh.boxes[msg.From]
	if !ok {
		box = &mailbox{}
		rh.boxes[msg.From] = box
	}
	box.queue = append(box.queue, msg)
	if box.running {
		slog.Debug("ResponseHandler queued input behind running one", "from", msg.From, "queued", len(box.queue))
		return
	}
	box.running = true
	rh.wg.Add(1)
	go rh.drain(ctx, msg.From, box)
}

func (rh *ResponseHandler) drain(ctx context.Context, from string, box *mailbox) {
	defer rh.wg.Done()
	for {
		rh.mu.Lock()
		if len(box.queue) == 0 {
			delete(rh.boxes, from)
			rh.mu.Unlock()
			return
		}
		msg := box.queue[0]
		box.queue = box.queue[1:]
		rh.mu.Unlock()

		rh.handle(ctx, msg)
	}
}

// Wait blocks until every queued input has been handled.
func (rh *ResponseHandler) Wait() {
	rh.wg.Wait()
}

func (rh *ResponseHandler) handle(ctx context.Context, msg models.InboundMessage) {
	text := msg.Body
	isVoice := msg.Media.IsAudio()
	if isVoice {
		transcript, err := rh.transcribe(ctx, msg)
		if err != nil {
			reply := MsgAudioError
			if errors.Is(err, models.ErrUnintelligible) {
				reply = MsgUnintelligibleAudio
			}
			slog.Warn("ResponseHandler voice input failed", "from", msg.From, "error", err)
			rh.reply(ctx, msg.From, reply)
			return
		}
		slog.Info("ResponseHandler voice transcribed", "from", msg.From, "transcript_length", len(transcript))
		text = transcript
	}

	reply := rh.input.HandleInput(ctx, msg.From, text, isVoice)
	if reply == "" {
		return
	}
	rh.reply(ctx, msg.From, reply)
}

func (rh *ResponseHandler) transcribe(ctx context.Context, msg models.InboundMessage) (string, error) {
	if rh.opts.Transcriber == nil {
		rh.opts.Metrics.Transcription("disabled")
		return "", errors.New("transcription not configured")
	}
	if msg.Media.Download == nil {
		rh.opts.Metrics.Transcription("download_error")
		return "", errors.New("voice message has no downloadable media")
	}
	start := time.Now()
	data, err := msg.Media.Download(ctx)
	if err != nil {
		rh.opts.Metrics.Transcription("download_error")
		return "", err
	}
	text, err := rh.opts.Transcriber.Transcribe(ctx, genai.Audio{
		Data:       data,
		MimeType:   msg.Media.MimeType,
		SampleRate: genai.DefaultSampleRate,
	})
	rh.opts.Metrics.ObserveCall("transcription", start)
	switch {
	case errors.Is(err, models.ErrUnintelligible):
		rh.opts.Metrics.Transcription("unintelligible")
	case err != nil:
		rh.opts.Metrics.Transcription("error")
	default:
		rh.opts.Metrics.Transcription("ok")
	}
	return text, err
}

func (rh *ResponseHandler) reply(ctx context.Context, to, body string) {
	if err := rh.msgService.SendMessage(ctx, to, body); err != nil {
		slog.Error("ResponseHandler failed to send reply", "error", err, "to", to)
		return
	}
	rh.opts.Metrics.Reply()
}
