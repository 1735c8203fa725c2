package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/verification"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/metrics"
)

// HandleOpenWorkspace reacts to the workspace button: verified users go to
// market selection, everyone else enters the verification funnel.
func HandleOpenWorkspace(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID
		t := deps.T(userID)

		if err := respondCallback(c, "", false); err != nil {
			deps.Log.Debug("callback ack failed", slog.Any("error", err))
		}

		if deps.Registry.IsFullyVerified(userID) {
			if !isSubscribed(deps, userID) {
				return editOrSend(c,
					t.T("subscription.required"),
					deps.Keyboard.Subscription(t, deps.ChannelUsername),
					telebot.ModeHTML)
			}
			return showMarketTypes(ctx, deps, c, userID)
		}

		if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateVerificationIntro); err != nil {
			return err
		}

		link := deps.Store.ReferralSettings().ReferralLink
		return editOrSend(c,
			t.Tf("verify.flow_intro", map[string]string{"link": link}),
			deps.Keyboard.VerificationIntro(t),
			telebot.ModeHTML)
	}
}

// HandleIRegistered asks for the broker account id.
func HandleIRegistered(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		if err := deps.FSM.TransitionTo(context.Background(), sender.ID, funnel.StateAwaitingUID); err != nil {
			return err
		}

		t := deps.T(sender.ID)
		return editOrSend(c, t.T("verify.enter_uid"), telebot.ModeHTML)
	}
}

// NewUIDMessageHandler consumes the broker id sent as text while the session
// awaits it, runs the registration check and advances the funnel.
func NewUIDMessageHandler(deps *Deps) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID
		t := deps.T(userID)

		uid := strings.TrimSpace(c.Text())
		if err := verification.ValidateUID(uid); err != nil {
			return c.Send(t.T("verify.uid_invalid"), telebot.ModeHTML)
		}

		if err := c.Send(t.T("verify.checking"), telebot.ModeHTML); err != nil {
			return err
		}

		ok, err := deps.Verifier.CheckRegistration(ctx, userID, uid)
		if err != nil {
			if errors.Is(err, verification.ErrCheckInFlight) {
				return c.Send(t.T("verify.prev_check_running"), telebot.ModeHTML)
			}
			if errors.Is(err, verification.ErrUIDClaimed) {
				return c.Send(t.T("verify.uid_claimed"), telebot.ModeHTML)
			}
			return err
		}
		metrics.RecordVerificationCheck("registration", ok)

		if !ok {
			link := deps.Store.ReferralSettings().ReferralLink
			return c.Send(
				t.Tf("verify.not_registered", map[string]string{"link": link}),
				telebot.ModeHTML)
		}

		if deps.Verifier.IsBypassUID(uid) {
			// Test accounts are fully verified by the registration check alone.
			if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateFullyVerified); err != nil {
				return err
			}

			text := deps.Store.FinishMessage(t.Lang())
			if strings.TrimSpace(text) == "" {
				text = t.T("finish.message")
			}
			return c.Send(text, deps.Keyboard.MainMenu(t), telebot.ModeHTML)
		}

		if err := deps.FSM.UpdateScratch(ctx, userID, func(scratch *funnel.Scratch) {
			scratch.PendingUID = uid
		}); err != nil {
			return err
		}
		if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateAwaitingDeposit); err != nil {
			return err
		}

		_, display := deps.MinDeposit()
		return c.Send(
			t.Tf("verify.ok_registered", map[string]string{"min_deposit": display}),
			deps.Keyboard.DepositConfirm(t),
			telebot.ModeHTML)
	}
}

// HandleDepositPaid runs the deposit check against the uid collected earlier.
func HandleDepositPaid(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID
		t := deps.T(userID)

		if err := respondCallback(c, "", false); err != nil {
			deps.Log.Debug("callback ack failed", slog.Any("error", err))
		}

		uid := ""
		if session, err := deps.FSM.GetSession(ctx, userID); err == nil && session != nil {
			uid = session.Scratch.PendingUID
		}
		if uid == "" {
			uid = deps.Registry.BrokerUID(userID)
		}
		if uid == "" {
			return c.Send(t.T("deposit.no_uid"), telebot.ModeHTML)
		}

		if err := c.Send(t.T("deposit.checking"), telebot.ModeHTML); err != nil {
			return err
		}

		minDeposit, display := deps.MinDeposit()
		ok, err := deps.Verifier.CheckDeposit(ctx, userID, uid, minDeposit)
		if err != nil {
			if errors.Is(err, verification.ErrCheckInFlight) {
				return c.Send(t.T("verify.prev_check_running"), telebot.ModeHTML)
			}
			return err
		}
		metrics.RecordVerificationCheck("deposit", ok)

		if !ok {
			return c.Send(
				t.Tf("deposit.too_low", map[string]string{"min_deposit": display}),
				deps.Keyboard.DepositConfirm(t),
				telebot.ModeHTML)
		}

		if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateFullyVerified); err != nil {
			return err
		}

		text := deps.Store.FinishMessage(t.Lang())
		if strings.TrimSpace(text) == "" {
			text = t.T("finish.message")
		}
		return c.Send(text, deps.Keyboard.MainMenu(t), telebot.ModeHTML)
	}
}

// HandleCheckSubscription re-checks channel membership for the gate shown to
// verified users.
func HandleCheckSubscription(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		userID := sender.ID
		t := deps.T(userID)

		if !isSubscribed(deps, userID) {
			return respondCallback(c, t.T("subscription.required"), true)
		}

		if err := respondCallback(c, "", false); err != nil {
			deps.Log.Debug("callback ack failed", slog.Any("error", err))
		}
		return showMarketTypes(context.Background(), deps, c, userID)
	}
}

// isSubscribed reports channel membership. An unset channel or a lookup
// failure never locks users out.
func isSubscribed(deps *Deps, userID int64) bool {
	if deps.ChannelUsername == "" || deps.Bot == nil {
		return true
	}

	chat, err := deps.Bot.ChatByUsername("@" + deps.ChannelUsername)
	if err != nil {
		deps.Log.Warn("channel lookup failed",
			slog.String("channel", deps.ChannelUsername),
			slog.Any("error", err))
		return true
	}

	member, err := deps.Bot.ChatMemberOf(chat, &telebot.User{ID: userID})
	if err != nil {
		deps.Log.Warn("membership lookup failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return true
	}

	switch member.Role {
	case telebot.Creator, telebot.Administrator, telebot.Member:
		return true
	default:
		return false
	}
}
