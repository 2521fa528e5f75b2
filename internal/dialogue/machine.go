// Package dialogue implements the per-user conversation that leads from a
// drug name to a pharmacy order.
//
// The canonical order is: drug name, confirmation, address, drug name again,
// search, selection, order confirmation. Each input yields at most one reply.
package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/dispatch"
	"github.com/paulosouza-ec/Avotech/internal/metrics"
	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/session"
)

// Resolver finds candidate pharmacies near an address.
type Resolver interface {
	Resolve(ctx context.Context, address, drugName string) ([]models.Pharmacy, error)
}

// Enricher attaches live phone and status data to a pharmacy. It never fails.
type Enricher interface {
	EnrichPharmacy(ctx context.Context, p models.Pharmacy) models.LiveInfo
}

// Dispatcher relays an order to a pharmacy.
type Dispatcher interface {
	Dispatch(ctx context.Context, order dispatch.Order) dispatch.Result
}

// Opts configures a Machine.
type Opts struct {
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Option defines a configuration option for the Machine.
type Option func(*Opts)

// WithMetrics records phase transitions and search outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Opts) { o.Metrics = m }
}

// WithClock overrides the time source used for pending orders.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Machine is the dialogue state machine. It is safe for concurrent use; inputs
// of the same user are serialized through the shared Locker.
type Machine struct {
	sessions   session.Store
	locker     *session.Locker
	resolver   Resolver
	enricher   Enricher
	dispatcher Dispatcher
	opts       Opts
}

// NewMachine wires the state machine to its collaborators.
func NewMachine(sessions session.Store, locker *session.Locker, resolver Resolver, enricher Enricher, dispatcher Dispatcher, opts ...Option) *Machine {
	cfg := Opts{Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Machine{
		sessions:   sessions,
		locker:     locker,
		resolver:   resolver,
		enricher:   enricher,
		dispatcher: dispatcher,
		opts:       cfg,
	}
}

// HandleInput interprets one input of userID and returns the reply, or "" for none.
func (m *Machine) HandleInput(ctx context.Context, userID, rawInput string, isVoice bool) string {
	unlock := m.locker.Lock(userID)
	defer unlock()

	input := strings.TrimSpace(rawInput)
	sess := session.LoadOrNew(m.sessions, userID)
	prev := sess.CurrentPhase()

	if isCancel(input) {
		m.sessions.Delete(userID)
		m.opts.Metrics.Transition(string(prev), string(models.PhaseIdle))
		slog.Info("Dialogue session cancelled", "user", userID, "phase", prev)
		return MsgCancelled
	}

	reply := m.step(ctx, sess, input, isVoice)
	m.sessions.Put(sess)

	next := sess.CurrentPhase()
	m.opts.Metrics.Transition(string(prev), string(next))
	if prev != next {
		slog.Debug("Dialogue phase changed", "user", userID, "from", prev, "to", next)
	}
	return reply
}

func (m *Machine) step(ctx context.Context, sess *models.Session, input string, isVoice bool) string {
	switch {
	case input == "":
		return MsgHelp
	case isGreeting(input):
		return MsgWelcome
	case isHelp(input):
		return MsgHelp
	}

	switch sess.CurrentPhase() {
	case models.PhaseAwaitingDrugConfirmation:
		return m.confirmDrug(sess, input, isVoice)
	case models.PhaseAwaitingAddress:
		sess.Address = input
		sess.TransitionTo(models.PhaseAwaitingDrugName)
		return msgAskDrugName(isVoice)
	case models.PhaseAwaitingDrugName:
		return m.search(ctx, sess, input, isVoice)
	case models.PhaseSelectingPharmacy:
		return m.selectPharmacy(ctx, sess, input, isVoice)
	case models.PhaseAwaitingOrderConfirmation:
		return m.confirmOrder(ctx, sess, input, isVoice)
	case models.PhaseIdle:
		if sess.Address == "" {
			sess.DrugNameCandidate = input
			sess.TransitionTo(models.PhaseAwaitingDrugConfirmation)
			return msgConfirmDrug(input, isVoice)
		}
		return m.search(ctx, sess, input, isVoice)
	default:
		slog.Warn("Dialogue unknown phase, resetting", "user", sess.UserID, "phase", sess.Phase)
		sess.Reset()
		return MsgHelp
	}
}

func (m *Machine) confirmDrug(sess *models.Session, input string, isVoice bool) string {
	if isAffirmative(input, isVoice) {
		sess.ConfirmedDrugName = sess.DrugNameCandidate
		sess.DrugNameCandidate = ""
		sess.TransitionTo(models.PhaseAwaitingAddress)
		return msgAskAddress(isVoice)
	}
	sess.DrugNameCandidate = ""
	sess.TransitionTo(models.PhaseIdle)
	return MsgResendDrug
}

func (m *Machine) search(ctx context.Context, sess *models.Session, drug string, isVoice bool) string {
	sess.ConfirmedDrugName = drug

	pharmacies, err := m.resolver.Resolve(ctx, sess.Address, drug)
	switch {
	case errors.Is(err, models.ErrAddressNotFound):
		m.opts.Metrics.Search("address_not_found")
		slog.Info("Dialogue address not found", "user", sess.UserID)
		sess.Address = ""
		sess.TransitionTo(models.PhaseAwaitingAddress)
		return MsgAddressNotFound
	case err != nil:
		m.opts.Metrics.Search("unavailable")
		slog.Warn("Dialogue search failed", "user", sess.UserID, "error", err)
		sess.TransitionTo(models.PhaseIdle)
		return MsgSearchUnavailable
	case len(pharmacies) == 0:
		m.opts.Metrics.Search("empty")
		sess.TransitionTo(models.PhaseIdle)
		return MsgNoPharmacies
	}

	m.opts.Metrics.Search("found")
	sess.CandidatePharmacies = pharmacies
	sess.TransitionTo(models.PhaseSelectingPharmacy)
	slog.Info("Dialogue pharmacies offered", "user", sess.UserID, "count", len(pharmacies))
	return msgPharmacyList(pharmacies, drug, isVoice)
}

func (m *Machine) selectPharmacy(ctx context.Context, sess *models.Session, input string, isVoice bool) string {
	n, ok := parseSelection(input)
	if !ok || n < 1 || n > len(sess.CandidatePharmacies) {
		return msgSelectRange(len(sess.CandidatePharmacies), isVoice)
	}

	chosen := sess.CandidatePharmacies[n-1]
	sess.TransitionTo(models.PhaseIdle)

	info := m.enricher.EnrichPharmacy(ctx, chosen)
	chosen.Phone = strings.TrimSpace(info.Phone)
	chosen.Status = info.Status

	reply := msgPharmacyInfo(chosen, sess.ConfirmedDrugName)
	if chosen.Phone == "" {
		slog.Info("Dialogue pharmacy without phone", "user", sess.UserID, "pharmacy", chosen.Name)
		return reply + msgSuggestedMessage(sess.ConfirmedDrugName)
	}

	sess.TransitionTo(models.PhaseAwaitingOrderConfirmation)
	sess.SelectedPharmacy = &chosen
	return reply + msgOfferOrder(sess.ConfirmedDrugName, sess.Address, isVoice)
}

func (m *Machine) confirmOrder(ctx context.Context, sess *models.Session, input string, isVoice bool) string {
	switch {
	case isAffirmative(input, isVoice):
	case isNegative(input, isVoice):
		sess.TransitionTo(models.PhaseIdle)
		return MsgOrderCancelled
	default:
		return msgConfirmOrderReprompt(isVoice)
	}

	selected := sess.SelectedPharmacy
	sess.TransitionTo(models.PhaseIdle)
	if selected == nil {
		slog.Warn("Dialogue order confirmation without a selected pharmacy", "user", sess.UserID)
		return MsgHelp
	}

	res := m.dispatcher.Dispatch(ctx, dispatch.Order{
		UserID:       sess.UserID,
		Phone:        selected.Phone,
		PharmacyName: selected.Name,
		DrugName:     sess.ConfirmedDrugName,
		UserAddress:  sess.Address,
	})
	if !res.Success {
		return msgOrderFailed(res.Message, selected.Phone)
	}

	sess.PendingOrder = &models.PendingOrder{
		PharmacyName:  selected.Name,
		PharmacyPhone: res.Phone,
		DrugName:      sess.ConfirmedDrugName,
		SentAt:        m.opts.Now(),
	}
	return msgOrderSent(selected.Name, sess.ConfirmedDrugName, sess.Address)
}
