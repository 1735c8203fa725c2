package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSession struct {
	alive   bool
	warning string
}

func (f *fakeSession) IsConnectionAlive(ctx context.Context) bool {
	return f.alive
}

func (f *fakeSession) ExpiryWarning(ctx context.Context, daysThreshold int) string {
	return f.warning
}

type fakeNotifier struct {
	deadAlerts     int
	expiryWarnings []string
	failNext       bool
}

func (f *fakeNotifier) NotifySessionDead(ctx context.Context) error {
	if f.failNext {
		f.failNext = false
		return errors.New("telegram unavailable")
	}
	f.deadAlerts++
	return nil
}

func (f *fakeNotifier) NotifySessionExpiring(ctx context.Context, warning string) error {
	f.expiryWarnings = append(f.expiryWarnings, warning)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTick_DeadAlertFiresOnce(t *testing.T) {
	session := &fakeSession{alive: false}
	notifier := &fakeNotifier{}
	m := New(session, notifier, testLogger())

	ctx := context.Background()
	m.tick(ctx)
	m.tick(ctx)
	m.tick(ctx)

	assert.Equal(t, 1, notifier.deadAlerts, "dead-session alert must not repeat while the session stays down")
}

func TestTick_DeadAlertReArmsAfterRecovery(t *testing.T) {
	session := &fakeSession{alive: false}
	notifier := &fakeNotifier{}
	m := New(session, notifier, testLogger())

	ctx := context.Background()
	m.tick(ctx)
	assert.Equal(t, 1, notifier.deadAlerts)

	session.alive = true
	m.tick(ctx)

	session.alive = false
	m.tick(ctx)
	assert.Equal(t, 2, notifier.deadAlerts, "alert must fire again after a recovery")
}

func TestTick_FailedAlertIsRetried(t *testing.T) {
	session := &fakeSession{alive: false}
	notifier := &fakeNotifier{failNext: true}
	m := New(session, notifier, testLogger())

	ctx := context.Background()
	m.tick(ctx)
	assert.Equal(t, 0, notifier.deadAlerts)

	m.tick(ctx)
	assert.Equal(t, 1, notifier.deadAlerts, "undelivered alert must be retried on the next tick")
}

func TestTick_ExpiryWarningRepeats(t *testing.T) {
	session := &fakeSession{alive: true, warning: "expires in 2 days"}
	notifier := &fakeNotifier{}
	m := New(session, notifier, testLogger())

	ctx := context.Background()
	m.tick(ctx)
	m.tick(ctx)

	assert.Equal(t, []string{"expires in 2 days", "expires in 2 days"}, notifier.expiryWarnings,
		"expiry warning is level-triggered and repeats while the condition holds")
	assert.Zero(t, notifier.deadAlerts)
}

func TestTick_HealthySessionStaysQuiet(t *testing.T) {
	session := &fakeSession{alive: true}
	notifier := &fakeNotifier{}
	m := New(session, notifier, testLogger())

	m.tick(context.Background())

	assert.Zero(t, notifier.deadAlerts)
	assert.Empty(t, notifier.expiryWarnings)
}

func TestTick_NoExpiryWarningWhileDown(t *testing.T) {
	session := &fakeSession{alive: false, warning: "expires in 2 days"}
	notifier := &fakeNotifier{}
	m := New(session, notifier, testLogger())

	m.tick(context.Background())

	assert.Equal(t, 1, notifier.deadAlerts)
	assert.Empty(t, notifier.expiryWarnings, "expiry warnings only make sense for a live session")
}
