package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broker"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/metrics"
)

// HandleGetSignal generates a trade signal for the confirmed request. Failures
// keep the session on the confirmation screen so the retry button can re-run
// the request.
func HandleGetSignal(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID
		t := deps.T(userID)

		session, err := deps.FSM.GetSession(ctx, userID)
		if err != nil {
			return err
		}
		scratch := session.Scratch

		minutes, err := strconv.Atoi(scratch.Expiration)
		if err != nil || minutes <= 0 {
			return c.Send(t.T("time.custom_invalid"), telebot.ModeHTML)
		}

		if limits := deps.Store.SignalSettings(); limits.MaxDailySignals > 0 &&
			deps.Store.SignalsToday(time.Now()) >= limits.MaxDailySignals {
			return c.Send(t.T("signal.daily_limit"), deps.Keyboard.MainMenu(t), telebot.ModeHTML)
		}

		if err := editOrSend(c, t.T("ui.generating_signal"), telebot.ModeHTML); err != nil {
			return err
		}

		signal, err := deps.Broker.GenerateSignal(ctx, scratch.MarketType, scratch.Asset, time.Duration(minutes)*time.Minute)
		if err != nil {
			deps.Log.Error("signal generation failed",
				slog.Int64("user_id", userID),
				slog.String("asset", scratch.Asset),
				slog.Any("error", err))
			return c.Send(
				t.Tf("signal.generation_failed", map[string]string{"reason": t.T("signal.market_unstable")}),
				deps.Keyboard.SignalRetry(t),
				telebot.ModeHTML)
		}

		if err := deps.FSM.TransitionTo(ctx, userID, funnel.StateSignalDelivered); err != nil {
			return err
		}

		if err := deps.Store.IncrementSignals(time.Now()); err != nil {
			deps.Log.Error("failed to count signal", slog.Any("error", err))
		}
		metrics.RecordSignalGenerated()

		return c.Send(
			signalText(t, signal, minutes),
			deps.Keyboard.SignalDelivered(t),
			telebot.ModeHTML)
	}
}

// HandleNewSignal starts the next round at the market picker.
func HandleNewSignal(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		return showMarketTypes(context.Background(), deps, c, sender.ID)
	}
}

// HandleBackToMenu recovers to the home screen from any point of the funnel.
func HandleBackToMenu(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		return ShowHome(context.Background(), deps, c, sender.ID)
	}
}

// HandleHowItWorks shows the signal methodology blurb.
func HandleHowItWorks(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		t := deps.T(sender.ID)
		return editOrSend(c, t.T("how.text"), deps.Keyboard.MainMenu(t), telebot.ModeHTML)
	}
}

// signalText renders the delivered signal card.
func signalText(t i18n.Translator, signal *broker.Signal, minutes int) string {
	direction := t.T("signal.up")
	if signal.Direction == broker.DirectionPut {
		direction = t.T("signal.down")
	}

	var b strings.Builder
	b.WriteString(t.T("signal.received"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: <b>%s</b>\n", t.T("signal.pair"), broker.FormatAssetName(signal.Asset))
	fmt.Fprintf(&b, "%s: %d %s\n", t.T("signal.expiration"), minutes, t.T("time.minutes_suffix"))
	fmt.Fprintf(&b, "%s: <b>%s (%+.2f%%)</b>\n", t.T("signal.forecast"), direction, signal.ForecastPercent)
	fmt.Fprintf(&b, "%s: %.5f\n", t.T("signal.entry_price"), signal.Price)
	fmt.Fprintf(&b, "%s: %s\n\n", t.T("signal.close_time"), signal.CloseTime.Format("15:04:05"))

	b.WriteString(t.T("signal.analysis_header"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s: %s\n", t.T("signal.volatility"), signal.Volatility)
	fmt.Fprintf(&b, "%s: %s\n", t.T("signal.sentiment"), signal.Sentiment)
	fmt.Fprintf(&b, "%s: %s\n", t.T("signal.volume"), signal.Volume)
	fmt.Fprintf(&b, "%s: %.5f\n", t.T("signal.support"), signal.Support)
	fmt.Fprintf(&b, "%s: %.5f\n", t.T("signal.resistance"), signal.Resistance)
	fmt.Fprintf(&b, "%s: %s\n", t.T("signal.rating"), signal.RatingSummary)
	fmt.Fprintf(&b, "%s: %s\n", t.T("signal.moving_averages"), signal.RatingMA)
	fmt.Fprintf(&b, "%s: %s\n", t.T("signal.oscillators"), signal.RatingOsc)
	fmt.Fprintf(&b, "RSI: %s\n", signal.RSI)
	fmt.Fprintf(&b, "MACD: %s\n", signal.MACD)
	fmt.Fprintf(&b, "Bollinger: %s\n", signal.BollingerBands)
	fmt.Fprintf(&b, "%s: %s\n\n", t.T("signal.pattern"), signal.Pattern)

	b.WriteString(t.T("signal.enter_within"))
	return b.String()
}
