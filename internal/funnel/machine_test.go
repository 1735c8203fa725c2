package funnel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

var errStorageFailure = errors.New("storage error")

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetSession(ctx context.Context, userID int64) (*Session, error) {
	args := m.Called(ctx, userID)
	session, _ := args.Get(0).(*Session)
	return session, args.Error(1)
}

func (m *mockStorage) SetSession(ctx context.Context, userID int64, session *Session) error {
	args := m.Called(ctx, userID, session)
	return args.Error(0)
}

func (m *mockStorage) ClearSession(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockStorage) AllSessions(ctx context.Context) ([]*Session, error) {
	args := m.Called(ctx)
	sessions, _ := args.Get(0).([]*Session)
	return sessions, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMachine_TransitionTo(t *testing.T) {
	ctx := context.Background()
	userID := int64(42)
	log := testLogger()

	testCases := []struct {
		name        string
		setupMocks  func(ms *mockStorage)
		newState    State
		expectedErr error
	}{
		{
			name: "successful transition",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return(&Session{State: StateWelcome}, nil).Once()
				ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(session *Session) bool {
					return session.State == StateVerificationIntro
				})).Return(nil).Once()
			},
			newState:    StateVerificationIntro,
			expectedErr: nil,
		},
		{
			name: "invalid transition",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return(&Session{State: StateWelcome}, nil).Once()
			},
			newState:    StateAwaitingConfirmation,
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "new user starts from language pick",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return((*Session)(nil), ErrSessionNotFound).Once()
				ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(session *Session) bool {
					return session.State == StateWelcome
				})).Return(nil).Once()
			},
			newState:    StateWelcome,
			expectedErr: nil,
		},
		{
			name: "allowed transition blocked by missing scratch",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return(&Session{State: StateSelectingMarketType}, nil).Once()
			},
			newState:    StateSelectingPair,
			expectedErr: ErrIncompleteScratch,
		},
		{
			name: "scratch travels with the transition",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return(&Session{
						State:   StateSelectingPair,
						Scratch: Scratch{MarketType: "currencies", Asset: "EURUSD_otc"},
					}, nil).Once()
				ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(session *Session) bool {
					return session.State == StateSelectingTime && session.Scratch.Asset == "EURUSD_otc"
				})).Return(nil).Once()
			},
			newState:    StateSelectingTime,
			expectedErr: nil,
		},
		{
			name: "new round wipes previous inputs",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return(&Session{
						State:   StateSignalDelivered,
						Scratch: Scratch{MarketType: "currencies", Asset: "EURUSD_otc", Expiration: "M5"},
					}, nil).Once()
				ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(session *Session) bool {
					return session.State == StateSelectingMarketType && session.Scratch == (Scratch{})
				})).Return(nil).Once()
			},
			newState:    StateSelectingMarketType,
			expectedErr: nil,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)

			fsm := NewMachine(ms, log)
			err := fsm.TransitionTo(ctx, userID, tc.newState)

			if tc.expectedErr != nil {
				if !errors.Is(err, tc.expectedErr) {
					t.Fatalf("expected error %v, got %v", tc.expectedErr, err)
				}
			} else if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestMachine_SetState(t *testing.T) {
	ctx := context.Background()
	userID := int64(11)
	log := testLogger()

	testCases := []struct {
		name       string
		state      State
		scratch    Scratch
		setupMocks func(ms *mockStorage)
		expectErr  error
	}{
		{
			name:    "set state success",
			state:   StateAwaitingUID,
			scratch: Scratch{},
			setupMocks: func(ms *mockStorage) {
				ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(session *Session) bool {
					return session.State == StateAwaitingUID
				})).Return(nil).Once()
			},
			expectErr: nil,
		},
		{
			name:       "set state rejects incomplete scratch",
			state:      StateAwaitingConfirmation,
			scratch:    Scratch{MarketType: "currencies"},
			setupMocks: func(ms *mockStorage) {},
			expectErr:  ErrIncompleteScratch,
		},
		{
			name:    "set state storage error",
			state:   StateWelcome,
			scratch: Scratch{},
			setupMocks: func(ms *mockStorage) {
				ms.On("SetSession", mock.Anything, userID, mock.Anything).
					Return(errStorageFailure).Once()
			},
			expectErr: errStorageFailure,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)

			fsm := NewMachine(ms, log)
			err := fsm.SetState(ctx, userID, tc.state, tc.scratch)

			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Fatalf("expected error %v, got %v", tc.expectErr, err)
				}
			} else if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestMachine_UpdateScratch(t *testing.T) {
	ctx := context.Background()
	userID := int64(13)
	log := testLogger()

	ms := &mockStorage{}
	ms.On("GetSession", mock.Anything, userID).
		Return(&Session{State: StateSelectingPair, Scratch: Scratch{MarketType: "currencies"}}, nil).Once()
	ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(session *Session) bool {
		return session.Scratch.Asset == "GBPUSD_otc" && session.Scratch.MarketType == "currencies"
	})).Return(nil).Once()

	fsm := NewMachine(ms, log)
	err := fsm.UpdateScratch(ctx, userID, func(scratch *Scratch) {
		scratch.Asset = "GBPUSD_otc"
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	ms.AssertExpectations(t)
}

func TestMachine_Lock(t *testing.T) {
	storage := NewMemoryStorage()
	fsm := NewMachine(&slowStorage{Storage: storage, delay: 100 * time.Millisecond}, testLogger())

	ctx := context.Background()
	userID := int64(77)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- fsm.SetState(ctx, userID, StateWelcome, Scratch{})
		}()
	}

	wg.Wait()
	close(errCh)

	var success, locked int
	for err := range errCh {
		if err == nil {
			success++
			continue
		}

		if errors.Is(err, ErrSessionLocked) {
			locked++
			continue
		}

		t.Fatalf("unexpected error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected 1 successful update, got %d", success)
	}
	if locked != 1 {
		t.Fatalf("expected 1 locked update, got %d", locked)
	}
}

func TestMemoryStorage_Sweep(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	if err := storage.SetSession(ctx, 1, &Session{State: StateWelcome}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := storage.SetSession(ctx, 2, &Session{State: StateWelcome}); err != nil {
		t.Fatalf("set session: %v", err)
	}

	removed := storage.sweep(time.Hour, time.Now().UTC())
	if removed != 0 {
		t.Fatalf("fresh sessions must survive the sweep, removed %d", removed)
	}

	removed = storage.sweep(time.Hour, time.Now().UTC().Add(2*time.Hour))
	if removed != 2 {
		t.Fatalf("expected 2 idle sessions removed, got %d", removed)
	}

	if _, err := storage.GetSession(ctx, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after sweep, got %v", err)
	}
}

// slowStorage delays writes so two goroutines overlap inside the lock window.
type slowStorage struct {
	Storage
	delay time.Duration
}

func (s *slowStorage) SetSession(ctx context.Context, userID int64, session *Session) error {
	time.Sleep(s.delay)
	return s.Storage.SetSession(ctx, userID, session)
}
