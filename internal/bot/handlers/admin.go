package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
)

// NewAdminHandler opens the operator panel. Non-operators are ignored.
func NewAdminHandler(deps *Deps) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil || !deps.IsAdmin(sender.ID) {
			return nil
		}

		t := deps.T(sender.ID)
		return c.Send(t.T("admin.panel_title"), deps.Keyboard.AdminPanel(t), telebot.ModeHTML)
	}
}

// HandleAdminBack redraws the panel root.
func HandleAdminBack(deps *Deps) CallbackHandler {
	return adminCallback(deps, func(c telebot.Context, t i18n.Translator) error {
		return editOrSend(c, t.T("admin.panel_title"), deps.Keyboard.AdminPanel(t), telebot.ModeHTML)
	})
}

// HandleAdminStats shows registry and signal counters.
func HandleAdminStats(deps *Deps) CallbackHandler {
	return adminCallback(deps, func(c telebot.Context, t i18n.Translator) error {
		users := deps.Registry.Stats()
		counters := deps.Store.Statistics()
		today := deps.Store.SignalsToday(time.Now())

		var b strings.Builder
		b.WriteString(t.T("admin.stats_title"))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "%s: %d\n", t.T("admin.stats_users"), users.TotalUsers)
		fmt.Fprintf(&b, "%s: %d\n", t.T("admin.stats_verified"), users.Verified)
		fmt.Fprintf(&b, "%s: %d\n", t.T("admin.stats_in_verification"), users.InVerification)
		fmt.Fprintf(&b, "%s: %d\n", t.T("admin.stats_starts"), counters.TotalStarts)
		fmt.Fprintf(&b, "%s: %d\n", t.T("admin.stats_signals_total"), counters.SignalsGenerated)
		fmt.Fprintf(&b, "%s: %d\n", t.T("admin.stats_signals_today"), today)

		return editOrSend(c, b.String(), deps.Keyboard.AdminBack(t), telebot.ModeHTML)
	})
}

// HandleAdminBroadcast explains the broadcast commands.
func HandleAdminBroadcast(deps *Deps) CallbackHandler {
	return adminCallback(deps, func(c telebot.Context, t i18n.Translator) error {
		return editOrSend(c, t.T("admin.broadcast_usage"), deps.Keyboard.AdminBack(t), telebot.ModeHTML)
	})
}

// HandleAdminSettings shows the current funnel settings and how to change them.
func HandleAdminSettings(deps *Deps) CallbackHandler {
	return adminCallback(deps, func(c telebot.Context, t i18n.Translator) error {
		settings := deps.Store.ReferralSettings()
		text := t.Tf("admin.settings_usage", map[string]string{
			"min_deposit": strconv.FormatFloat(settings.MinDeposit, 'f', -1, 64),
			"link":        settings.ReferralLink,
		})
		return editOrSend(c, text, deps.Keyboard.AdminBack(t), telebot.ModeHTML)
	})
}

// HandleAdminMaintenance shows the maintenance screen with the current mode.
func HandleAdminMaintenance(deps *Deps) CallbackHandler {
	return adminCallback(deps, func(c telebot.Context, t i18n.Translator) error {
		return editOrSend(c, maintenanceText(deps, t), deps.Keyboard.AdminMaintenance(t, maintenanceEnabled(deps)), telebot.ModeHTML)
	})
}

// HandleSetMaintenance flips maintenance mode on or off.
func HandleSetMaintenance(deps *Deps, enable bool) CallbackHandler {
	return adminCallback(deps, func(c telebot.Context, t i18n.Translator) error {
		if err := deps.Store.SetMaintenanceMode(enable); err != nil {
			return err
		}
		return editOrSend(c, maintenanceText(deps, t), deps.Keyboard.AdminMaintenance(t, enable), telebot.ModeHTML)
	})
}

func maintenanceEnabled(deps *Deps) bool {
	enabled, _ := deps.Store.MaintenanceMode()
	return enabled
}

func maintenanceText(deps *Deps, t i18n.Translator) string {
	mode := t.T("maintenance.disabled")
	if maintenanceEnabled(deps) {
		mode = t.T("maintenance.enabled")
	}
	return fmt.Sprintf("%s %s", t.T("maintenance.status"), mode)
}

// NewBroadcastCommand queues a broadcast from the command payload and
// dispatches the queue in the background, reporting the outcome back to the
// operator.
func NewBroadcastCommand(deps *Deps, target string) Handler {
	return adminCommand(deps, func(c telebot.Context, t i18n.Translator, payload string) error {
		if payload == "" {
			return c.Send(t.T("admin.broadcast_usage"), telebot.ModeHTML)
		}

		id, err := deps.Scheduler.Enqueue(payload, target)
		if err != nil {
			return err
		}

		if err := c.Send(t.T("admin.broadcast_queued"), telebot.ModeHTML); err != nil {
			return err
		}

		operator := c.Sender()
		go func() {
			summaries, err := deps.Scheduler.DispatchPending(context.Background())
			if err != nil {
				deps.Log.Error("broadcast dispatch failed",
					slog.String("broadcast_id", id),
					slog.Any("error", err))
				return
			}
			for _, summary := range summaries {
				report := t.Tf("admin.broadcast_done", map[string]string{
					"sent":   strconv.Itoa(summary.Sent),
					"errors": strconv.Itoa(summary.Errors),
				})
				if _, err := deps.Bot.Send(operator, report, telebot.ModeHTML); err != nil {
					deps.Log.Error("failed to report broadcast outcome", slog.Any("error", err))
				}
			}
		}()
		return nil
	})
}

// NewSetMinDepositCommand updates the minimum deposit requirement.
func NewSetMinDepositCommand(deps *Deps) Handler {
	return adminCommand(deps, func(c telebot.Context, t i18n.Translator, payload string) error {
		amount, err := strconv.ParseFloat(payload, 64)
		if err != nil || amount <= 0 {
			return c.Send(t.T("admin.bad_value"), telebot.ModeHTML)
		}
		if err := deps.Store.UpdateReferralSettings(&amount, nil, nil); err != nil {
			return err
		}
		return c.Send(t.T("admin.updated"), telebot.ModeHTML)
	})
}

// NewSetReferralLinkCommand updates the partner registration link.
func NewSetReferralLinkCommand(deps *Deps) Handler {
	return adminCommand(deps, func(c telebot.Context, t i18n.Translator, payload string) error {
		if !strings.HasPrefix(payload, "http://") && !strings.HasPrefix(payload, "https://") {
			return c.Send(t.T("admin.bad_value"), telebot.ModeHTML)
		}
		if err := deps.Store.UpdateReferralSettings(nil, &payload, nil); err != nil {
			return err
		}
		return c.Send(t.T("admin.updated"), telebot.ModeHTML)
	})
}

// NewSetWelcomeCommand overrides the welcome text for the operator's language.
func NewSetWelcomeCommand(deps *Deps) Handler {
	return adminCommand(deps, func(c telebot.Context, t i18n.Translator, payload string) error {
		if payload == "" {
			return c.Send(t.T("admin.bad_value"), telebot.ModeHTML)
		}
		if err := deps.Store.SetWelcomeMessage(t.Lang(), payload); err != nil {
			return err
		}
		return c.Send(t.T("admin.updated"), telebot.ModeHTML)
	})
}

// NewSetFinishCommand overrides the post-verification text for the operator's
// language.
func NewSetFinishCommand(deps *Deps) Handler {
	return adminCommand(deps, func(c telebot.Context, t i18n.Translator, payload string) error {
		if payload == "" {
			return c.Send(t.T("admin.bad_value"), telebot.ModeHTML)
		}
		if err := deps.Store.SetFinishMessage(t.Lang(), payload); err != nil {
			return err
		}
		return c.Send(t.T("admin.updated"), telebot.ModeHTML)
	})
}

// NewSetWelcomePhotoCommand caches the attached photo for the welcome screen.
// Sending the bare command drops the cached photo.
func NewSetWelcomePhotoCommand(deps *Deps) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil || !deps.IsAdmin(sender.ID) {
			return nil
		}

		t := deps.T(sender.ID)
		msg := c.Message()
		if msg == nil || msg.Photo == nil {
			if err := deps.Store.ClearFileID(welcomePhotoAsset); err != nil {
				return err
			}
			return c.Send(t.T("admin.welcome_photo_cleared"), telebot.ModeHTML)
		}

		if err := deps.Store.SetFileID(welcomePhotoAsset, msg.Photo.FileID); err != nil {
			return err
		}
		return c.Send(t.T("admin.updated"), telebot.ModeHTML)
	}
}

// NewSetMaintenanceMsgCommand replaces the maintenance notice.
func NewSetMaintenanceMsgCommand(deps *Deps) Handler {
	return adminCommand(deps, func(c telebot.Context, t i18n.Translator, payload string) error {
		if payload == "" {
			return c.Send(t.T("admin.bad_value"), telebot.ModeHTML)
		}
		if err := deps.Store.SetMaintenanceMessage(payload); err != nil {
			return err
		}
		return c.Send(t.T("admin.updated"), telebot.ModeHTML)
	})
}

// HandleRecheckSession re-probes the broker session from the dead-session
// alert and reports the outcome inline.
func HandleRecheckSession(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil || !deps.IsAdmin(sender.ID) {
			return nil
		}

		t := deps.T(sender.ID)
		if deps.Broker.IsConnectionAlive(context.Background()) {
			return respondCallback(c, t.T("session.alive"), true)
		}
		return respondCallback(c, t.T("session.still_dead"), true)
	}
}

func adminCallback(deps *Deps, fn func(c telebot.Context, t i18n.Translator) error) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil || !deps.IsAdmin(sender.ID) {
			return nil
		}
		if err := respondCallback(c, "", false); err != nil {
			deps.Log.Debug("callback ack failed", slog.Any("error", err))
		}
		return fn(c, deps.T(sender.ID))
	}
}

func adminCommand(deps *Deps, fn func(c telebot.Context, t i18n.Translator, payload string) error) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil || !deps.IsAdmin(sender.ID) {
			return nil
		}

		payload := ""
		if msg := c.Message(); msg != nil {
			payload = strings.TrimSpace(msg.Payload)
		}
		return fn(c, deps.T(sender.ID), payload)
	}
}
