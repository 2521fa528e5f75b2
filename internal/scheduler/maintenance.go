package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulosouza-ec/Avotech/internal/metrics"
	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/session"
)

const (
	// DefaultIdleTTL is how long a session without a pending order may sit unused.
	DefaultIdleTTL = 24 * time.Hour
	// DefaultPendingTTL is how long a pharmacy has to answer an order.
	DefaultPendingTTL = 12 * time.Hour
)

// Notifier tells a user that their order expired.
type Notifier interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// MaintenanceOpts configures Maintenance.
type MaintenanceOpts struct {
	IdleTTL    time.Duration
	PendingTTL time.Duration
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// MaintenanceOption defines a configuration option for Maintenance.
type MaintenanceOption func(*MaintenanceOpts)

// WithIdleTTL sets the idle-session lifetime.
func WithIdleTTL(d time.Duration) MaintenanceOption {
	return func(o *MaintenanceOpts) { o.IdleTTL = d }
}

// WithPendingTTL sets how long a pending order is awaited.
func WithPendingTTL(d time.Duration) MaintenanceOption {
	return func(o *MaintenanceOpts) { o.PendingTTL = d }
}

// WithMetrics records expirations and the live session gauge.
func WithMetrics(m *metrics.Metrics) MaintenanceOption {
	return func(o *MaintenanceOpts) { o.Metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MaintenanceOption {
	return func(o *MaintenanceOpts) { o.Now = now }
}

// Report summarizes one maintenance run.
type Report struct {
	ExpiredOrders   int
	DeletedSessions int
	ActiveSessions  int
}

// Maintenance sweeps idle sessions and expires unanswered orders.
type Maintenance struct {
	sessions session.Store
	locker   *session.Locker
	notifier Notifier
	opts     MaintenanceOpts
}

// NewMaintenance creates a Maintenance over the shared session store.
func NewMaintenance(sessions session.Store, locker *session.Locker, notifier Notifier, opts ...MaintenanceOption) *Maintenance {
	cfg := MaintenanceOpts{IdleTTL: DefaultIdleTTL, PendingTTL: DefaultPendingTTL, Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Maintenance{sessions: sessions, locker: locker, notifier: notifier, opts: cfg}
}

// ExpiredOrderNotice is sent when a pharmacy never answered.
func ExpiredOrderNotice(order models.PendingOrder) string {
	return fmt.Sprintf("⌛ A farmácia *%s* ainda não respondeu sobre o remédio *%s*. "+
		"Você pode tentar contato manual ou pedir para outra farmácia.", order.PharmacyName, order.DrugName)
}

// Run performs one sweep.
func (m *Maintenance) Run(ctx context.Context) Report {
	var ids []string
	m.sessions.Range(func(s *models.Session) bool {
		ids = append(ids, s.UserID)
		return true
	})

	var rep Report
	now := m.opts.Now()
	for _, id := range ids {
		expired, deleted := m.sweep(id, now)
		if deleted {
			rep.DeletedSessions++
		}
		if expired == nil {
			continue
		}
		rep.ExpiredOrders++
		m.opts.Metrics.ExpiredOrder()
		if err := m.notifier.SendMessage(ctx, id, ExpiredOrderNotice(*expired)); err != nil {
			slog.Error("Maintenance failed to notify expired order", "user", id, "error", err)
		}
	}

	rep.ActiveSessions = m.sessions.Len()
	m.opts.Metrics.SetActiveSessions(rep.ActiveSessions)
	slog.Debug("Maintenance run finished", "expired_orders", rep.ExpiredOrders, "deleted_sessions", rep.DeletedSessions, "active_sessions", rep.ActiveSessions)
	return rep
}

// sweep examines one session under its lock.
func (m *Maintenance) sweep(userID string, now time.Time) (expired *models.PendingOrder, deleted bool) {
	unlock := m.locker.Lock(userID)
	defer unlock()

	sess, ok := m.sessions.Get(userID)
	if !ok {
		return nil, false
	}
	if sess.PendingOrder != nil {
		if now.Sub(sess.PendingOrder.SentAt) <= m.opts.PendingTTL {
			return nil, false
		}
		order := *sess.PendingOrder
		sess.PendingOrder = nil
		sess.UpdatedAt = now
		m.sessions.Put(sess)
		slog.Info("Maintenance expired pending order", "user", userID, "pharmacy", order.PharmacyName)
		return &order, false
	}
	if now.Sub(sess.UpdatedAt) > m.opts.IdleTTL {
		m.sessions.Delete(userID)
		slog.Debug("Maintenance deleted idle session", "user", userID)
		return nil, true
	}
	return nil, false
}

// Schedule registers m on s with the given cron expression.
func (m *Maintenance) Schedule(ctx context.Context, s *Scheduler, expr string) error {
	if err := s.AddJob("maintenance", expr, func() { m.Run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	return nil
}
