package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot/handlers"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
)

// Dispatcher resolves incoming text messages to state-specific handlers.
type Dispatcher struct {
	fsm           funnel.Machine
	stateHandlers map[funnel.State]handlers.Handler
	log           *slog.Logger
	mu            sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(fsm funnel.Machine, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		fsm:           fsm,
		stateHandlers: make(map[funnel.State]handlers.Handler),
		log:           log,
	}
}

// RegisterStateHandler registers a handler for the provided state.
func (d *Dispatcher) RegisterStateHandler(s funnel.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandlers[s] = h
}

// Resolve returns the handler for the sender's current state, or nil when the
// state expects no free-form input. Users without a session resolve as the
// language picker state.
func (d *Dispatcher) Resolve(c telebot.Context) (handlers.Handler, error) {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return nil, nil
	}

	ctx := context.Background()
	userID := c.Sender().ID

	currentState := funnel.StateAwaitingLanguage
	session, err := d.fsm.GetSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, funnel.ErrSessionNotFound) {
			return nil, err
		}
	} else if session != nil {
		currentState = session.State
	}

	handler := d.getHandler(currentState)
	if handler == nil {
		d.log.Debug("no handler registered for state",
			slog.String("state", string(currentState)),
			slog.Int64("user_id", userID))
	}
	return handler, nil
}

func (d *Dispatcher) getHandler(s funnel.State) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stateHandlers[s]
}
