package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
)

var (
	botUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of bot updates handled labeled by handler and status",
		},
		[]string{"handler", "status"},
	)
	handlerDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handler_duration_seconds",
			Help:    "Duration of update handlers in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)
	funnelTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_transitions_total",
			Help: "Total number of funnel state transitions",
		},
		[]string{"from", "to"},
	)
	verificationChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_checks_total",
			Help: "Total number of broker verification checks labeled by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	signalsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signals_generated_total",
			Help: "Total number of trade signals delivered",
		},
	)
	broadcastMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Total number of broadcast deliveries labeled by status",
		},
		[]string{"status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of live funnel sessions",
		},
	)
	sessionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_state",
			Help: "Number of funnel sessions per state",
		},
		[]string{"state"},
	)
)

var trackedStates = []funnel.State{
	funnel.StateAwaitingLanguage,
	funnel.StateWelcome,
	funnel.StateVerificationIntro,
	funnel.StateAwaitingUID,
	funnel.StateAwaitingDeposit,
	funnel.StateFullyVerified,
	funnel.StateSelectingMarketType,
	funnel.StateSelectingPair,
	funnel.StateSelectingTime,
	funnel.StateAwaitingCustomTime,
	funnel.StateAwaitingConfirmation,
	funnel.StateSignalDelivered,
}

func init() {
	funnel.RegisterTransitionRecorder(RecordFunnelTransition)
}

// RecordUpdate increments handler counters and records duration.
func RecordUpdate(handler, status string, duration time.Duration) {
	if handler == "" {
		handler = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botUpdatesTotal.WithLabelValues(handler, status).Inc()
	handlerDurationSeconds.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordFunnelTransition tracks FSM transitions.
func RecordFunnelTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	funnelTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordVerificationCheck tracks a registration or deposit check outcome.
func RecordVerificationCheck(kind string, passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	verificationChecksTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSignalGenerated counts a delivered trade signal.
func RecordSignalGenerated() {
	signalsGeneratedTotal.Inc()
}

// RecordBroadcastMessage counts one broadcast delivery attempt.
func RecordBroadcastMessage(status string) {
	if status == "" {
		status = "unknown"
	}

	broadcastMessagesTotal.WithLabelValues(status).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// SetActiveSessions updates the gauge for current live sessions.
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// SetSessionsByState updates the gauge for the given state.
func SetSessionsByState(state string, count int) {
	if state == "" {
		state = "unknown"
	}

	sessionsByState.WithLabelValues(state).Set(float64(count))
}

// SessionCollector periodically gathers funnel state counts and emits gauge metrics.
type SessionCollector struct {
	fsm funnel.Machine
}

// NewSessionCollector builds a metrics collector bound to the provided FSM.
func NewSessionCollector(fsm funnel.Machine) *SessionCollector {
	return &SessionCollector{fsm: fsm}
}

// Run polls the FSM every 10 seconds, updating session gauges until ctx is cancelled.
func (c *SessionCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}

func (c *SessionCollector) collect(ctx context.Context) error {
	sessions, err := c.fsm.AllSessions(ctx)
	if err != nil {
		return err
	}

	SetActiveSessions(len(sessions))

	stateCounts := make(map[string]int, len(sessions))
	for _, session := range sessions {
		label := "unknown"
		if session != nil && session.State != "" {
			label = string(session.State)
		}
		stateCounts[label]++
	}

	sessionsByState.Reset()

	for _, tracked := range trackedStates {
		label := string(tracked)
		SetSessionsByState(label, stateCounts[label])
		delete(stateCounts, label)
	}

	for label, count := range stateCounts {
		SetSessionsByState(label, count)
	}

	return nil
}
