package handlers

import (
	"context"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
)

// welcomePhotoAsset names the cached welcome screen photo in the file cache.
const welcomePhotoAsset = "welcome_photo"

// NewStartHandler handles /start: creates the user record, then routes to the
// language picker, the welcome screen or the verified menu.
func NewStartHandler(deps *Deps) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()
		userID := sender.ID

		if created := deps.Registry.Touch(userID, sender.Username, ""); created {
			if err := deps.Store.IncrementStarts(); err != nil {
				deps.Log.Error("failed to count start", slog.Int64("user_id", userID), slog.Any("error", err))
			}
		}

		if !deps.Registry.HasLanguage(userID) {
			return showLanguagePicker(ctx, deps, c, userID)
		}

		if deps.IsAdmin(userID) {
			t := deps.T(userID)
			if err := c.Send(t.T("admin.start_hint"), telebot.ModeHTML); err != nil {
				deps.Log.Debug("failed to send operator hint", slog.Any("error", err))
			}
		}

		return ShowHome(ctx, deps, c, userID)
	}
}

// NewLanguageCommand reopens the language picker at any point of the funnel.
func NewLanguageCommand(deps *Deps) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		return showLanguagePicker(context.Background(), deps, c, sender.ID)
	}
}

func showLanguagePicker(ctx context.Context, deps *Deps, c telebot.Context, userID int64) error {
	if err := deps.FSM.SetState(ctx, userID, funnel.StateAwaitingLanguage, funnel.Scratch{}); err != nil {
		return err
	}
	t := deps.T(userID)
	return c.Send(t.T("language.select_prompt"), deps.Keyboard.Language(t), telebot.ModeHTML)
}

// HandleSetLanguage stores the picked language and moves on to the welcome
// screen (or straight to the menu for already verified users).
func HandleSetLanguage(deps *Deps) CallbackHandler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		lang := callbackPayload(c)
		deps.Registry.SetLanguage(sender.ID, lang)

		if err := respondCallback(c, "", false); err != nil {
			deps.Log.Debug("callback ack failed", slog.Any("error", err))
		}

		return ShowHome(context.Background(), deps, c, sender.ID)
	}
}

// ShowHome renders the home screen for the user's verification status and
// forces the FSM into the matching state.
func ShowHome(ctx context.Context, deps *Deps, c telebot.Context, userID int64) error {
	t := deps.T(userID)

	if deps.Registry.IsFullyVerified(userID) {
		if err := deps.FSM.SetState(ctx, userID, funnel.StateFullyVerified, funnel.Scratch{}); err != nil {
			return err
		}
		return editOrSend(c, t.T("signals.menu_caption"), deps.Keyboard.MainMenu(t), telebot.ModeHTML)
	}

	if err := deps.FSM.SetState(ctx, userID, funnel.StateWelcome, funnel.Scratch{}); err != nil {
		return err
	}

	text := deps.Store.WelcomeMessage(t.Lang())
	if strings.TrimSpace(text) == "" {
		text = t.T("welcome.message")
	}

	if fileID, ok := deps.Store.FileID(welcomePhotoAsset); ok {
		photo := &telebot.Photo{File: telebot.File{FileID: fileID}, Caption: text}
		return c.Send(photo, deps.Keyboard.MainMenu(t), telebot.ModeHTML)
	}
	return editOrSend(c, text, deps.Keyboard.MainMenu(t), telebot.ModeHTML)
}
