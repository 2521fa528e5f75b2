// Package correlator matches pharmacy replies to the orders users are waiting on.
package correlator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/paulosouza-ec/Avotech/internal/dispatch"
	"github.com/paulosouza-ec/Avotech/internal/metrics"
	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/session"
)

// Notifier delivers the follow-up message to the user.
type Notifier interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// Opts configures a Correlator.
type Opts struct {
	CountryCode string
	Metrics     *metrics.Metrics
}

// Option defines a configuration option for the Correlator.
type Option func(*Opts)

// WithCountryCode sets the country code used to normalize sender numbers.
func WithCountryCode(cc string) Option {
	return func(o *Opts) { o.CountryCode = cc }
}

// WithMetrics records matched replies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Opts) { o.Metrics = m }
}

// Correlator watches inbound traffic for replies from pharmacies with a pending order.
type Correlator struct {
	sessions session.Store
	locker   *session.Locker
	notifier Notifier
	opts     Opts
	wg       sync.WaitGroup
}

// New creates a Correlator over the shared session store and locker.
func New(sessions session.Store, locker *session.Locker, notifier Notifier, opts ...Option) *Correlator {
	cfg := Opts{CountryCode: dispatch.DefaultCountryCode}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Correlator{sessions: sessions, locker: locker, notifier: notifier, opts: cfg}
}

// IsAffirmative reports whether a pharmacy reply confirms the order.
func IsAffirmative(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "sim") || strings.Contains(lower, "yes")
}

// AffirmativeNotice is sent to the user when the pharmacy confirms.
func AffirmativeNotice(pharmacyName, drugName string) string {
	return fmt.Sprintf("🎉 Boa notícia! A farmácia *%s* confirmou que tem o remédio *%s*!\n\n"+
		"Eles devem entrar em contato com você em breve para combinar os detalhes da entrega.",
		pharmacyName, drugName)
}

// RelayNotice forwards any other pharmacy reply verbatim.
func RelayNotice(pharmacyName, body string) string {
	return fmt.Sprintf("ℹ️ A farmácia *%s* respondeu:\n\n\"%s\"\n\n"+
		"Por favor, verifique se precisa tomar alguma providência.",
		pharmacyName, body)
}

// Observe checks msg against every pending order. It reports whether the
// sender matched at least one; the claim and notification then run in the
// background under the user's lock, so a busy conversation never stalls the
// inbound stream. Call Wait to block until they finish.
func (c *Correlator) Observe(ctx context.Context, msg models.InboundMessage) bool {
	sender, ok := dispatch.NormalizePhoneWithCountry(msg.From, c.opts.CountryCode)
	if !ok {
		return false
	}

	var users []string
	c.sessions.Range(func(s *models.Session) bool {
		if s.PendingOrder != nil && dispatch.SamePhoneWithCountry(s.PendingOrder.PharmacyPhone, sender, c.opts.CountryCode) {
			users = append(users, s.UserID)
		}
		return true
	})
	if len(users) == 0 {
		return false
	}

	for _, userID := range users {
		c.wg.Add(1)
		go func(userID string) {
			defer c.wg.Done()
			c.claim(ctx, userID, sender, msg.Body)
		}(userID)
	}
	return true
}

// Wait blocks until every claimed reply has been handled.
func (c *Correlator) Wait() {
	c.wg.Wait()
}

func (c *Correlator) claim(ctx context.Context, userID, sender, body string) {
	unlock := c.locker.Lock(userID)
	sess, ok := c.sessions.Get(userID)
	if !ok || sess.PendingOrder == nil || !dispatch.SamePhoneWithCountry(sess.PendingOrder.PharmacyPhone, sender, c.opts.CountryCode) {
		unlock()
		slog.Debug("Correlator pending order already gone", "user", userID, "pharmacy_phone", sender)
		return
	}
	order := *sess.PendingOrder
	sess.PendingOrder = nil
	c.sessions.Put(sess)
	unlock()

	affirmative := IsAffirmative(body)
	text := RelayNotice(order.PharmacyName, body)
	if affirmative {
		text = AffirmativeNotice(order.PharmacyName, order.DrugName)
	}
	c.opts.Metrics.Correlated(affirmative)
	slog.Info("Correlator pharmacy reply matched", "user", userID, "pharmacy", order.PharmacyName, "affirmative", affirmative)

	if err := c.notifier.SendMessage(ctx, userID, text); err != nil {
		slog.Error("Correlator failed to notify user", "user", userID, "error", err)
	}
}
