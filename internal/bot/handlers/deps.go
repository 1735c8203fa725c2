// Package handlers implements the Telegram-facing side of the funnel: the
// start screen, broker verification and the signal request flow.
package handlers

import (
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot/keyboard"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broadcast"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broker"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/registry"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/verification"
)

// Deps bundles the services handlers operate on.
type Deps struct {
	Store     *store.Store
	Registry  *registry.Registry
	FSM       funnel.Machine
	Verifier  *verification.Coordinator
	Broker    broker.API
	I18N      *i18n.Manager
	Keyboard  *keyboard.Builder
	Scheduler *broadcast.Scheduler
	Log       *slog.Logger

	// Bot is needed for out-of-band sends and channel membership lookups.
	Bot *telebot.Bot

	AdminIDs        []int64
	ChannelUsername string
}

// T returns the translator for the user's stored language.
func (d *Deps) T(userID int64) i18n.Translator {
	return d.I18N.Translator(d.Registry.Language(userID))
}

// IsAdmin reports whether the user is an operator.
func (d *Deps) IsAdmin(userID int64) bool {
	for _, id := range d.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// MinDeposit returns the configured minimum deposit and its display form.
func (d *Deps) MinDeposit() (float64, string) {
	amount := d.Store.ReferralSettings().MinDeposit
	return amount, strconv.FormatFloat(amount, 'f', -1, 64)
}

// callbackPayload extracts the payload part of the pressed button's data.
func callbackPayload(c telebot.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	_, data, err := keyboard.DecodeCallback(cb.Data)
	if err != nil {
		return ""
	}
	return data
}

func respondCallback(c telebot.Context, text string, alert bool) error {
	if c == nil {
		return nil
	}
	return c.Respond(&telebot.CallbackResponse{
		Text:      text,
		ShowAlert: alert,
	})
}

// editOrSend replaces the message the callback originated from, falling back
// to a fresh send when the original cannot be edited anymore.
func editOrSend(c telebot.Context, what string, opts ...interface{}) error {
	if c.Callback() != nil {
		if err := c.Edit(what, opts...); err == nil {
			return nil
		}
	}
	return c.Send(what, opts...)
}
