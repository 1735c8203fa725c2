// Package broadcast queues operator announcements in the document store and
// delivers them to users at a paced rate.
package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/registry"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/metrics"
)

// Broadcast targets.
const (
	TargetAll      = "all"
	TargetVerified = "verified"
)

// Telegram allows ~30 messages per second for bots; one message per 100ms
// keeps a healthy margin.
const defaultSendRate = rate.Limit(10)

// Sender delivers one broadcast message to one user.
type Sender interface {
	SendBroadcast(ctx context.Context, userID int64, message string) error
}

// Summary is the outcome of one broadcast dispatch.
type Summary struct {
	ID     string
	Sent   int
	Errors int
}

// Scheduler persists queued broadcasts and dispatches them sequentially. One
// failed recipient never aborts the run; failures are counted and reported.
type Scheduler struct {
	store    *store.Store
	registry *registry.Registry
	sender   Sender
	log      *slog.Logger
	limiter  *rate.Limiter
}

// NewScheduler constructs a broadcast scheduler.
func NewScheduler(s *store.Store, reg *registry.Registry, sender Sender, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &Scheduler{
		store:    s,
		registry: reg,
		sender:   sender,
		log:      log,
		limiter:  rate.NewLimiter(defaultSendRate, 1),
	}
}

// Enqueue stores a broadcast for later dispatch and returns its id.
func (s *Scheduler) Enqueue(message, target string) (string, error) {
	if target != TargetVerified {
		target = TargetAll
	}

	b := store.Broadcast{
		ID:        uuid.NewString(),
		Message:   message,
		Target:    target,
		CreatedAt: time.Now().UTC(),
		Status:    store.BroadcastPending,
	}
	if err := s.store.AppendBroadcast(b); err != nil {
		return "", err
	}

	s.log.Info("broadcast queued",
		slog.String("broadcast_id", b.ID),
		slog.String("target", target))
	return b.ID, nil
}

// DispatchPending delivers every queued broadcast and returns a summary per
// broadcast, in queue order.
func (s *Scheduler) DispatchPending(ctx context.Context) ([]Summary, error) {
	pending := s.store.PendingBroadcasts()

	summaries := make([]Summary, 0, len(pending))
	for _, b := range pending {
		summary, err := s.dispatch(ctx, b)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Dispatch delivers one broadcast to its audience snapshot.
func (s *Scheduler) dispatch(ctx context.Context, b store.Broadcast) (Summary, error) {
	recipients := s.recipients(b.Target)
	summary := Summary{ID: b.ID}

	s.log.Info("broadcast dispatch started",
		slog.String("broadcast_id", b.ID),
		slog.Int("recipients", len(recipients)))

	for _, userID := range recipients {
		if err := s.limiter.Wait(ctx); err != nil {
			// Cancelled mid-run: keep the broadcast pending for the next run.
			return summary, err
		}

		if err := s.sender.SendBroadcast(ctx, userID, b.Message); err != nil {
			summary.Errors++
			metrics.RecordBroadcastMessage("error")
			s.log.Warn("broadcast delivery failed",
				slog.String("broadcast_id", b.ID),
				slog.Int64("user_id", userID),
				slog.Any("error", err))
			continue
		}
		summary.Sent++
		metrics.RecordBroadcastMessage("sent")
	}

	status := store.BroadcastSent
	if summary.Sent == 0 && summary.Errors > 0 {
		status = store.BroadcastFailed
	}
	if err := s.store.UpdateBroadcastStatus(b.ID, status); err != nil {
		s.log.Error("failed to update broadcast status",
			slog.String("broadcast_id", b.ID),
			slog.Any("error", err))
	}

	s.log.Info("broadcast dispatch finished",
		slog.String("broadcast_id", b.ID),
		slog.Int("sent", summary.Sent),
		slog.Int("errors", summary.Errors))
	return summary, nil
}

// recipients snapshots the audience at dispatch time.
func (s *Scheduler) recipients(target string) []int64 {
	if target == TargetVerified {
		return s.registry.VerifiedUserIDs()
	}
	return s.registry.AllUserIDs()
}
