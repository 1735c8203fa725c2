// Package monitor watches the broker API session and alerts the operator
// when it dies or is about to expire.
package monitor

import (
	"context"
	"log/slog"
	"time"
)

// Defaults for the check loop.
const (
	DefaultStartupDelay  = 20 * time.Second
	DefaultInterval      = time.Hour
	DefaultDaysThreshold = 3
)

// Session is the slice of the broker API the monitor needs.
type Session interface {
	IsConnectionAlive(ctx context.Context) bool
	ExpiryWarning(ctx context.Context, daysThreshold int) string
}

// Notifier delivers operator alerts.
type Notifier interface {
	NotifySessionDead(ctx context.Context) error
	NotifySessionExpiring(ctx context.Context, warning string) error
}

// Monitor runs the periodic session check. The dead-session alert is
// edge-triggered: it fires once when the session goes down and re-arms only
// after the session comes back. The expiry warning is level-triggered and
// repeats every interval while the session is close to expiry.
type Monitor struct {
	session  Session
	notifier Notifier
	log      *slog.Logger

	startupDelay  time.Duration
	interval      time.Duration
	daysThreshold int

	criticalSent bool
}

// Option tweaks the monitor configuration.
type Option func(*Monitor)

// WithStartupDelay overrides the initial delay before the first check.
func WithStartupDelay(d time.Duration) Option {
	return func(m *Monitor) { m.startupDelay = d }
}

// WithInterval overrides the check interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithDaysThreshold overrides the expiry warning threshold.
func WithDaysThreshold(days int) Option {
	return func(m *Monitor) { m.daysThreshold = days }
}

// New constructs a session monitor.
func New(session Session, notifier Notifier, log *slog.Logger, opts ...Option) *Monitor {
	if log == nil {
		log = slog.Default()
	}

	m := &Monitor{
		session:       session,
		notifier:      notifier,
		log:           log,
		startupDelay:  DefaultStartupDelay,
		interval:      DefaultInterval,
		daysThreshold: DefaultDaysThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes the check loop until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.startupDelay):
	}

	m.log.Info("session monitor started", slog.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("session monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if !m.session.IsConnectionAlive(ctx) {
		if m.criticalSent {
			return
		}

		m.log.Warn("broker session is dead, alerting operator")
		if err := m.notifier.NotifySessionDead(ctx); err != nil {
			// Leave the flag unset so the alert is retried next tick.
			m.log.Error("failed to deliver dead-session alert", slog.Any("error", err))
			return
		}
		m.criticalSent = true
		return
	}

	if m.criticalSent {
		m.log.Info("broker session recovered, re-arming dead-session alert")
		m.criticalSent = false
	}

	warning := m.session.ExpiryWarning(ctx, m.daysThreshold)
	if warning == "" {
		m.log.Debug("session check passed")
		return
	}

	m.log.Info("broker session expires soon", slog.String("warning", warning))
	if err := m.notifier.NotifySessionExpiring(ctx, warning); err != nil {
		m.log.Error("failed to deliver expiry warning", slog.Any("error", err))
	}
}
