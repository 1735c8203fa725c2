package funnel

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStorage keeps sessions in process memory. The funnel restarts from
// /start after a redeploy, so nothing needs to survive a restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStorage constructs an empty in-memory session store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[int64]*Session),
	}
}

// GetSession returns a copy of the stored session.
func (s *MemoryStorage) GetSession(ctx context.Context, userID int64) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return cloneSession(session), nil
}

// SetSession stores a copy of the session, stamping UpdatedAt.
func (s *MemoryStorage) SetSession(ctx context.Context, userID int64, session *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := cloneSession(session)
	stored.UserID = userID
	stored.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = stored
	return nil
}

// ClearSession removes the session.
func (s *MemoryStorage) ClearSession(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// AllSessions returns copies of every stored session.
func (s *MemoryStorage) AllSessions(ctx context.Context) ([]*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, cloneSession(session))
	}
	return sessions, nil
}

// sweep drops sessions idle longer than ttl and returns how many were removed.
func (s *MemoryStorage) sweep(ttl time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, session := range s.sessions {
		if now.Sub(session.UpdatedAt) > ttl {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

func cloneSession(session *Session) *Session {
	if session == nil {
		return nil
	}
	copied := *session
	return &copied
}

// Cleaner removes idle funnel sessions on a schedule so abandoned funnels do
// not pile up in memory.
type Cleaner struct {
	storage  *MemoryStorage
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(storage *MemoryStorage, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		storage:  storage,
		log:      log,
		ttl:      ttl,
		interval: interval,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("session cleaner stopped")
			return
		case <-ticker.C:
			if removed := c.storage.sweep(c.ttl, time.Now().UTC()); removed > 0 {
				c.log.Info("idle sessions cleared", slog.Int("count", removed))
			}
		}
	}
}
