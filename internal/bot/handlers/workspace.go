package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broker"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
)

// showMarketTypes opens a new signal round at the market category picker.
func showMarketTypes(ctx context.Context, deps *Deps, c telebot.Context, userID int64) error {
	if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateSelectingMarketType); err != nil {
		return err
	}

	t := deps.T(userID)
	return editOrSend(c, t.T("market.choose_type"), deps.Keyboard.MarketTypes(t), telebot.ModeHTML)
}

// HandleSelectMarketType stores the market category and shows the pair picker.
func HandleSelectMarketType(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID
		marketType := callbackPayload(c)

		if err := deps.FSM.UpdateScratch(ctx, userID, func(scratch *funnel.Scratch) {
			scratch.MarketType = marketType
		}); err != nil {
			return err
		}
		if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateSelectingPair); err != nil {
			return err
		}

		return showPairs(ctx, deps, c, userID, marketType, 1)
	}
}

// HandlePairPage redraws the pair picker on another page.
func HandlePairPage(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		// Payload is "<market>:<page>".
		payload := callbackPayload(c)
		sep := strings.LastIndex(payload, ":")
		if sep <= 0 {
			return respondCallback(c, "", false)
		}

		marketType := payload[:sep]
		page, err := strconv.Atoi(payload[sep+1:])
		if err != nil {
			return respondCallback(c, "", false)
		}

		return showPairs(context.Background(), deps, c, sender.ID, marketType, page)
	}
}

// HandleBackToPairs returns from the time picker to the pair list.
func HandleBackToPairs(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID

		session, err := deps.FSM.GetSession(ctx, userID)
		if err != nil {
			return err
		}

		if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateSelectingPair); err != nil {
			return err
		}
		return showPairs(ctx, deps, c, userID, session.Scratch.MarketType, 1)
	}
}

func showPairs(ctx context.Context, deps *Deps, c telebot.Context, userID int64, marketType string, page int) error {
	t := deps.T(userID)

	pairs, err := deps.Broker.AvailablePairs(ctx, marketType)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		// The keyboard re-offers the market categories, so the session has to
		// move back with it or the next pick would be rejected.
		if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateSelectingMarketType); err != nil {
			return err
		}
		return editOrSend(c, t.T("pairs.none"), deps.Keyboard.MarketTypes(t), telebot.ModeHTML)
	}

	return editOrSend(c,
		t.T("pairs.choose_caption"),
		deps.Keyboard.Pairs(t, marketType, pairs, page),
		telebot.ModeHTML)
}

// HandleSelectPair stores the chosen pair and shows the expiration picker.
func HandleSelectPair(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID
		asset := callbackPayload(c)

		if err := deps.FSM.UpdateScratch(ctx, userID, func(scratch *funnel.Scratch) {
			scratch.Asset = asset
		}); err != nil {
			return err
		}
		if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateSelectingTime); err != nil {
			return err
		}

		t := deps.T(userID)
		return editOrSend(c, t.T("ui.choose_time"), deps.Keyboard.Expirations(t), telebot.ModeHTML)
	}
}

// HandleSelectTime stores a preset expiration and shows the summary.
func HandleSelectTime(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID

		minutes, err := strconv.Atoi(callbackPayload(c))
		if err != nil || minutes <= 0 {
			return respondCallback(c, "", false)
		}

		return confirmRequest(ctx, deps, c, userID, minutes)
	}
}

// HandleCustomTime switches to free-form expiration input.
func HandleCustomTime(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		if err := deps.FSM.TransitionTo(context.Background(), sender.ID, funnel.StateAwaitingCustomTime); err != nil {
			return err
		}

		t := deps.T(sender.ID)
		return editOrSend(c, t.T("time.custom_prompt"), telebot.ModeHTML)
	}
}

// NewCustomTimeMessageHandler consumes the custom expiration sent as text.
func NewCustomTimeMessageHandler(deps *Deps) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID
		t := deps.T(userID)

		minutes, err := strconv.Atoi(strings.TrimSpace(c.Text()))
		if err != nil || minutes <= 0 {
			return c.Send(t.T("time.custom_invalid"), telebot.ModeHTML)
		}

		return confirmRequest(ctx, deps, c, userID, minutes)
	}
}

// HandleChangeSettings returns from the summary to the expiration picker.
func HandleChangeSettings(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		if err := deps.FSM.TransitionTo(context.Background(), sender.ID, funnel.StateSelectingTime); err != nil {
			return err
		}

		t := deps.T(sender.ID)
		return editOrSend(c, t.T("ui.choose_time"), deps.Keyboard.Expirations(t), telebot.ModeHTML)
	}
}

// confirmRequest stores the expiration and renders the request summary.
func confirmRequest(ctx context.Context, deps *Deps, c telebot.Context, userID int64, minutes int) error {
	if err := deps.FSM.UpdateScratch(ctx, userID, func(scratch *funnel.Scratch) {
		scratch.Expiration = strconv.Itoa(minutes)
	}); err != nil {
		return err
	}
	if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateAwaitingConfirmation); err != nil {
		return err
	}

	session, err := deps.FSM.GetSession(ctx, userID)
	if err != nil {
		return err
	}

	t := deps.T(userID)
	return editOrSend(c,
		summaryText(t, session.Scratch),
		deps.Keyboard.Confirmation(t),
		telebot.ModeHTML)
}

func summaryText(t i18n.Translator, scratch funnel.Scratch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🖥 <b>%s</b>\n\n", t.T("workspace.header"))
	fmt.Fprintf(&b, "%s: %s\n", t.T("workspace.category"), marketLabel(t, scratch.MarketType))
	fmt.Fprintf(&b, "%s: %s\n", t.T("workspace.pair"), broker.FormatAssetName(scratch.Asset))
	fmt.Fprintf(&b, "%s: %s %s\n\n", t.T("workspace.exp_time"), scratch.Expiration, t.T("time.minutes_suffix"))
	b.WriteString(t.T("workspace.press_get_signal"))
	return b.String()
}

func marketLabel(t i18n.Translator, marketType string) string {
	switch marketType {
	case broker.MarketCurrency:
		return t.T("market.currencies")
	case broker.MarketOTC:
		return t.T("market.otc")
	default:
		return marketType
	}
}
