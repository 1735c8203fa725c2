// Package funnel manages the per-user conversation state machine: language
// pick, broker verification and the signal request flow.
package funnel

import "time"

// State represents a finite-state machine state.
type State string

const (
	// StateAwaitingLanguage indicates that the user has not picked an interface language yet.
	StateAwaitingLanguage State = "awaiting_language"
	// StateWelcome indicates that the welcome screen is shown and the funnel has not started.
	StateWelcome State = "welcome"
	// StateVerificationIntro indicates that the registration instructions are shown.
	StateVerificationIntro State = "verification_intro"
	// StateAwaitingUID indicates that the bot expects the broker account id as text.
	StateAwaitingUID State = "awaiting_uid"
	// StateAwaitingDeposit indicates that registration passed and the deposit check is pending.
	StateAwaitingDeposit State = "awaiting_deposit_confirmation"
	// StateFullyVerified is the main menu for verified users and the recovery target
	// for every "back to menu" action.
	StateFullyVerified State = "fully_verified"
	// StateSelectingMarketType indicates that the user is choosing between market categories.
	StateSelectingMarketType State = "selecting_market_type"
	// StateSelectingPair indicates that the user is choosing a trading pair.
	StateSelectingPair State = "selecting_pair"
	// StateSelectingTime indicates that the user is choosing an expiration from presets.
	StateSelectingTime State = "selecting_trading_time"
	// StateAwaitingCustomTime indicates that the bot expects a custom expiration as text.
	StateAwaitingCustomTime State = "awaiting_custom_time"
	// StateAwaitingConfirmation indicates that the request summary is shown for confirmation.
	StateAwaitingConfirmation State = "awaiting_confirmation"
	// StateSignalDelivered indicates that a signal was generated and delivered.
	StateSignalDelivered State = "signal_delivered"
)

// Scratch carries the funnel inputs accumulated between states. Fields are
// filled in funnel order and wiped when a new signal round starts.
type Scratch struct {
	MarketType string `json:"market_type,omitempty"`
	Asset      string `json:"asset,omitempty"`
	Expiration string `json:"expiration,omitempty"`

	// PendingUID is the broker id submitted for verification, kept until the
	// deposit check confirms it.
	PendingUID string `json:"pending_uid,omitempty"`
}

// Session captures the current FSM state for a Telegram user.
type Session struct {
	UserID    int64     `json:"user_id"`
	State     State     `json:"state"`
	Scratch   Scratch   `json:"scratch"`
	UpdatedAt time.Time `json:"updated_at"`
}
