package messaging

import (
	"log/slog"
	"sync"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// eventBus owns the receipt and inbound channels of a transport. Emits after
// close are dropped, and a full channel drops the event after
// DefaultChannelTimeout so a stalled consumer cannot wedge the transport.
type eventBus struct {
	name      string
	receipts  chan models.Receipt
	responses chan models.InboundMessage

	mu     sync.RWMutex
	closed bool
}

func newEventBus(name string) *eventBus {
	return &eventBus{
		name:      name,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
	}
}

// Receipts returns the channel of delivery receipts.
func (b *eventBus) Receipts() <-chan models.Receipt { return b.receipts }

// Responses returns the channel of inbound messages.
func (b *eventBus) Responses() <-chan models.InboundMessage { return b.responses }

func (b *eventBus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// close closes both channels once. It reports whether this call closed them.
func (b *eventBus) close() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.closed = true
	close(b.receipts)
	close(b.responses)
	return true
}

func (b *eventBus) emitReceipt(r models.Receipt) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	timer := time.NewTimer(DefaultChannelTimeout)
	defer timer.Stop()
	select {
	case b.receipts <- r:
	case <-timer.C:
		slog.Warn(b.name+" receipts channel blocked, dropping receipt", "to", r.To, "status", r.Status)
	}
}

func (b *eventBus) emitResponse(msg models.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		slog.Warn(b.name+" dropping inbound message after stop", "from", msg.From)
		return
	}
	timer := time.NewTimer(DefaultChannelTimeout)
	defer timer.Stop()
	select {
	case b.responses <- msg:
		slog.Debug(b.name+" inbound message queued", "from", msg.From, "has_media", msg.HasMedia())
	case <-timer.C:
		slog.Warn(b.name+" responses channel blocked, dropping message", "from", msg.From)
	}
}
