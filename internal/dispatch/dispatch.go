// Package dispatch sends order requests to pharmacies over the messaging channel.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/metrics"
	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/util"
)

// DefaultTimeout bounds a whole dispatch (registration check and send).
const DefaultTimeout = 15 * time.Second

// User-facing outcome messages.
const (
	MsgSent          = "Pedido enviado com sucesso!"
	MsgInvalidPhone  = "Número de telefone inválido"
	MsgNotRegistered = "Esta farmácia não possui WhatsApp registrado"
	MsgSendFailed    = "Erro ao enviar pedido. Por favor, tente novamente mais tarde ou contate a farmácia diretamente."
)

// Channel is the part of the messaging service the dispatcher needs.
type Channel interface {
	IsRegistered(ctx context.Context, phone string) (bool, error)
	SendMessage(ctx context.Context, to string, body string) error
}

// AddressResolver is implemented by channels that can tell which address a
// number is actually registered under. The dispatcher sends to, and reports,
// that address so replies from the pharmacy can be matched.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, phone string) (string, bool, error)
}

// OrderRecorder persists an audit entry for each dispatch attempt.
type OrderRecorder interface {
	AddOrder(order models.OrderRecord) error
}

// Order is a single request to be relayed to a pharmacy.
type Order struct {
	UserID       string
	Phone        string
	PharmacyName string
	DrugName     string
	UserAddress  string
}

// Result is the outcome of a dispatch. Err is nil on success and otherwise
// wraps one of models.ErrInvalidPhoneNumber, models.ErrNotRegistered or
// models.ErrTransportFailure.
type Result struct {
	Success bool
	Message string
	Phone   string // normalized address, empty when invalid
	Err     error
}

// Opts configures a Dispatcher.
type Opts struct {
	CountryCode string
	Timeout     time.Duration
	Recorder    OrderRecorder
	Metrics     *metrics.Metrics
}

// Option sets a Dispatcher option.
type Option func(*Opts)

// WithCountryCode sets the country code used for normalization.
func WithCountryCode(cc string) Option {
	return func(o *Opts) { o.CountryCode = cc }
}

// WithTimeout bounds each dispatch.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithRecorder writes an OrderRecord for every attempt.
func WithRecorder(r OrderRecorder) Option {
	return func(o *Opts) { o.Recorder = r }
}

// WithMetrics records dispatch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Opts) { o.Metrics = m }
}

// Dispatcher validates a pharmacy's address and relays order requests to it.
type Dispatcher struct {
	channel Channel
	opts    Opts
}

// NewDispatcher creates a Dispatcher sending through channel.
func NewDispatcher(channel Channel, opts ...Option) *Dispatcher {
	cfg := Opts{CountryCode: DefaultCountryCode, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = DefaultCountryCode
	}
	return &Dispatcher{channel: channel, opts: cfg}
}

// Normalize normalizes a phone with the dispatcher's country code.
func (d *Dispatcher) Normalize(raw string) (string, bool) {
	return NormalizePhoneWithCountry(raw, d.opts.CountryCode)
}

// Dispatch sends the order message once. It never retries.
func (d *Dispatcher) Dispatch(ctx context.Context, order Order) Result {
	res := d.dispatch(ctx, order)
	d.record(order, res)
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, order Order) Result {
	phone, ok := d.Normalize(order.Phone)
	if !ok {
		slog.Warn("Dispatcher invalid phone", "phone", order.Phone, "pharmacy", order.PharmacyName)
		d.opts.Metrics.Dispatch("invalid_phone")
		return Result{Message: MsgInvalidPhone, Err: fmt.Errorf("%q: %w", order.Phone, models.ErrInvalidPhoneNumber)}
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	address, registered, err := d.lookup(ctx, phone)
	if err != nil {
		slog.Error("Dispatcher registration check failed", "phone", phone, "error", err)
		d.opts.Metrics.Dispatch("transport_failure")
		return Result{Message: MsgSendFailed, Phone: phone, Err: fmt.Errorf("registration check: %w: %w", models.ErrTransportFailure, err)}
	}
	if !registered {
		slog.Info("Dispatcher pharmacy not registered", "phone", phone, "pharmacy", order.PharmacyName)
		d.opts.Metrics.Dispatch("not_registered")
		return Result{Message: MsgNotRegistered, Phone: phone, Err: fmt.Errorf("%s: %w", phone, models.ErrNotRegistered)}
	}

	if address != phone {
		slog.Info("Dispatcher pharmacy registered under another address", "phone", phone, "address", address)
		phone = address
	}

	body := FormatOrderMessage(order.PharmacyName, order.DrugName, order.UserAddress)
	if err := d.channel.SendMessage(ctx, phone, body); err != nil {
		slog.Error("Dispatcher send failed", "phone", phone, "error", err)
		d.opts.Metrics.Dispatch("transport_failure")
		if !errors.Is(err, models.ErrTransportFailure) {
			err = fmt.Errorf("%w: %w", models.ErrTransportFailure, err)
		}
		return Result{Message: MsgSendFailed, Phone: phone, Err: err}
	}

	slog.Info("Dispatcher order sent", "phone", phone, "pharmacy", order.PharmacyName, "user", order.UserID)
	d.opts.Metrics.Dispatch("success")
	return Result{Success: true, Message: MsgSent, Phone: phone}
}

func (d *Dispatcher) lookup(ctx context.Context, phone string) (string, bool, error) {
	if r, ok := d.channel.(AddressResolver); ok {
		address, registered, err := r.ResolveAddress(ctx, phone)
		if address == "" {
			address = phone
		}
		return address, registered, err
	}
	registered, err := d.channel.IsRegistered(ctx, phone)
	return phone, registered, err
}

func (d *Dispatcher) record(order Order, res Result) {
	if d.opts.Recorder == nil {
		return
	}
	phone := res.Phone
	if phone == "" {
		phone = order.Phone
	}
	now := time.Now()
	rec := models.OrderRecord{
		ID:            util.NewOrderID(now),
		UserID:        order.UserID,
		PharmacyName:  order.PharmacyName,
		PharmacyPhone: phone,
		DrugName:      order.DrugName,
		Address:       order.UserAddress,
		Success:       res.Success,
		Message:       res.Message,
		Time:          now.Unix(),
	}
	if err := d.opts.Recorder.AddOrder(rec); err != nil {
		slog.Error("Dispatcher failed to record order", "error", err, "pharmacy", order.PharmacyName)
	}
}
