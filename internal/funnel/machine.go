package funnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrSessionNotFound indicates that a user session record does not exist.
	ErrSessionNotFound = errors.New("user session not found")
	// ErrSessionLocked indicates that a concurrent operation already holds the lock.
	ErrSessionLocked = errors.New("session is locked, try again later")
	// ErrIncompleteScratch indicates that the target state requires inputs the
	// session has not collected yet.
	ErrIncompleteScratch = errors.New("scratch is missing required fields")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Machine describes the operations supported by the funnel controller.
type Machine interface {
	GetSession(ctx context.Context, userID int64) (*Session, error)
	SetState(ctx context.Context, userID int64, state State, scratch Scratch) error
	TransitionTo(ctx context.Context, userID int64, newState State) error
	UpdateScratch(ctx context.Context, userID int64, update func(scratch *Scratch)) error
	ClearSession(ctx context.Context, userID int64) error
	AllSessions(ctx context.Context) ([]*Session, error)
}

// machine is a concrete implementation of Machine backed by Storage and an
// in-process per-user lock table. Lock entries are removed on release, so the
// table only ever holds the users with an update in flight.
type machine struct {
	storage Storage
	log     *slog.Logger

	lockMu sync.Mutex
	locks  map[int64]struct{}
}

// NewMachine creates a funnel controller using the provided storage backend.
func NewMachine(storage Storage, log *slog.Logger) Machine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage: storage,
		log:     log,
		locks:   make(map[int64]struct{}),
	}
}

// GetSession proxies to the underlying storage implementation.
func (m *machine) GetSession(ctx context.Context, userID int64) (*Session, error) {
	return m.storage.GetSession(ctx, userID)
}

// AllSessions returns every stored session.
func (m *machine) AllSessions(ctx context.Context) ([]*Session, error) {
	return m.storage.AllSessions(ctx)
}

// SetState forces the session into the given state with the given scratch,
// bypassing the transition table but not the scratch contract.
func (m *machine) SetState(ctx context.Context, userID int64, state State, scratch Scratch) error {
	if err := m.lock(userID); err != nil {
		return err
	}
	defer m.unlock(userID)

	if err := checkScratch(state, scratch); err != nil {
		return err
	}

	return m.storage.SetSession(ctx, userID, &Session{
		UserID:  userID,
		State:   state,
		Scratch: scratch,
	})
}

// TransitionTo changes the state if the transition table and the scratch
// contract of the target state both allow it. Users without a session start
// from the language picker. Entering the market type picker wipes the
// previous round's inputs.
func (m *machine) TransitionTo(ctx context.Context, userID int64, newState State) error {
	if err := m.lock(userID); err != nil {
		return err
	}
	defer m.unlock(userID)

	current := StateAwaitingLanguage
	scratch := Scratch{}

	session, err := m.storage.GetSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	} else if session != nil {
		current = session.State
		scratch = session.Scratch
	}

	if !IsTransitionAllowed(current, newState) {
		m.log.Warn("invalid state transition",
			slog.Int64("user_id", userID),
			slog.String("from", string(current)),
			slog.String("to", string(newState)))
		return ErrInvalidTransition
	}

	if newState == StateSelectingMarketType {
		scratch = Scratch{}
	}

	if err := checkScratch(newState, scratch); err != nil {
		return err
	}

	transitionRecorder(string(current), string(newState))

	return m.storage.SetSession(ctx, userID, &Session{
		UserID:  userID,
		State:   newState,
		Scratch: scratch,
	})
}

// UpdateScratch applies update to the session's scratch without changing the
// state. The session must already exist.
func (m *machine) UpdateScratch(ctx context.Context, userID int64, update func(scratch *Scratch)) error {
	if err := m.lock(userID); err != nil {
		return err
	}
	defer m.unlock(userID)

	session, err := m.storage.GetSession(ctx, userID)
	if err != nil {
		return err
	}

	update(&session.Scratch)

	return m.storage.SetSession(ctx, userID, session)
}

// ClearSession removes the stored session while holding the lock.
func (m *machine) ClearSession(ctx context.Context, userID int64) error {
	if err := m.lock(userID); err != nil {
		return err
	}
	defer m.unlock(userID)

	return m.storage.ClearSession(ctx, userID)
}

func (m *machine) lock(userID int64) error {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()

	if _, held := m.locks[userID]; held {
		m.log.Warn("user session lock already held", slog.Int64("user_id", userID))
		return ErrSessionLocked
	}

	m.locks[userID] = struct{}{}
	return nil
}

func (m *machine) unlock(userID int64) {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	delete(m.locks, userID)
}

func checkScratch(state State, scratch Scratch) error {
	missing := MissingScratch(state, scratch)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: state %s needs %v", ErrIncompleteScratch, state, missing)
}
