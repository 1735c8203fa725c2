package broadcast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/registry"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    map[int64]string
	failFor map[int64]struct{}
}

func newFakeSender(failFor ...int64) *fakeSender {
	fail := make(map[int64]struct{}, len(failFor))
	for _, id := range failFor {
		fail[id] = struct{}{}
	}
	return &fakeSender{
		sent:    make(map[int64]string),
		failFor: fail,
	}
}

func (f *fakeSender) SendBroadcast(ctx context.Context, userID int64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, fail := f.failFor[userID]; fail {
		return errors.New("blocked by user")
	}
	f.sent[userID] = message
	return nil
}

func newTestScheduler(t *testing.T, sender Sender) (*Scheduler, *registry.Registry, *store.Store) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(filepath.Join(t.TempDir(), "admin_data.json"), log)
	require.NoError(t, err)
	reg := registry.New(s, log)
	return NewScheduler(s, reg, sender, log), reg, s
}

func TestEnqueue_PersistsBroadcast(t *testing.T) {
	sched, _, s := newTestScheduler(t, newFakeSender())

	id, err := sched.Enqueue("hello", TargetAll)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	pending := s.PendingBroadcasts()
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, "hello", pending[0].Message)
}

func TestEnqueue_UnknownTargetFallsBackToAll(t *testing.T) {
	sched, _, s := newTestScheduler(t, newFakeSender())

	_, err := sched.Enqueue("hello", "admins")
	require.NoError(t, err)

	pending := s.PendingBroadcasts()
	require.Len(t, pending, 1)
	assert.Equal(t, TargetAll, pending[0].Target)
}

func TestDispatchPending_SurvivesFailedRecipients(t *testing.T) {
	sender := newFakeSender(2)
	sched, reg, s := newTestScheduler(t, sender)

	reg.Touch(1, "a", "")
	reg.Touch(2, "b", "")
	reg.Touch(3, "c", "")

	id, err := sched.Enqueue("hello", TargetAll)
	require.NoError(t, err)

	summaries, err := sched.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	assert.Equal(t, id, summaries[0].ID)
	assert.Equal(t, 2, summaries[0].Sent)
	assert.Equal(t, 1, summaries[0].Errors)
	assert.Equal(t, "hello", sender.sent[1])
	assert.Equal(t, "hello", sender.sent[3])

	assert.Empty(t, s.PendingBroadcasts(), "dispatched broadcast must leave the queue")
}

func TestDispatch_VerifiedTargetFiltersAudience(t *testing.T) {
	sender := newFakeSender()
	sched, reg, _ := newTestScheduler(t, sender)

	reg.Touch(1, "a", "")
	reg.Touch(2, "b", "")
	reg.SetRegistered(2, true)
	reg.SetDeposit(2, true)

	_, err := sched.Enqueue("verified only", TargetVerified)
	require.NoError(t, err)

	summaries, err := sched.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	assert.Equal(t, 1, summaries[0].Sent)
	_, sentToUnverified := sender.sent[1]
	assert.False(t, sentToUnverified)
}

func TestDispatch_AllFailedMarksBroadcastFailed(t *testing.T) {
	sender := newFakeSender(1)
	sched, reg, s := newTestScheduler(t, sender)

	reg.Touch(1, "a", "")

	id, err := sched.Enqueue("hello", TargetAll)
	require.NoError(t, err)

	_, err = sched.DispatchPending(context.Background())
	require.NoError(t, err)

	var status string
	s.View(func(doc *store.Document) {
		for _, b := range doc.Broadcasts {
			if b.ID == id {
				status = b.Status
			}
		}
	})
	assert.Equal(t, store.BroadcastFailed, status)
}
