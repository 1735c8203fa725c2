package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot/handlers"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/bot/keyboard"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broadcast"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broker"
	apperrors "github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/errors"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/funnel"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/registry"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/store"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/verification"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/pkg/config"
)

// Bot wraps telebot.Bot with the funnel services required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	router     *Router
	dispatcher *Dispatcher
	errHandler *apperrors.Handler
	deps       *handlers.Deps
}

// New builds a telegram bot instance configured according to the application settings.
func New(
	cfg config.Config,
	log *slog.Logger,
	documents *store.Store,
	reg *registry.Registry,
	fsm funnel.Machine,
	verifier *verification.Coordinator,
	brokerAPI broker.API,
	scheduler *broadcast.Scheduler,
	translations *i18n.Manager,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		Poller: &telebot.LongPoller{
			Timeout: cfg.Bot.LongPollTimeout,
		},
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	dispatcher := NewDispatcher(fsm, log)
	router := NewRouter(dispatcher, log)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	deps := &handlers.Deps{
		Store:           documents,
		Registry:        reg,
		FSM:             fsm,
		Verifier:        verifier,
		Broker:          brokerAPI,
		I18N:            translations,
		Keyboard:        keyboard.NewBuilder(log),
		Scheduler:       scheduler,
		Log:             log,
		Bot:             tb,
		AdminIDs:        cfg.Bot.AdminIDs,
		ChannelUsername: strings.TrimPrefix(cfg.Bot.ChannelUsername, "@"),
	}

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		router:     router,
		dispatcher: dispatcher,
		errHandler: errHandler,
		deps:       deps,
	}

	b.setupRouter()
	b.registerTelebotHandlers()

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	if b.log != nil {
		b.log.Info("stopping telegram bot...")
	}

	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// SendBroadcast delivers one broadcast message to one user.
func (b *Bot) SendBroadcast(ctx context.Context, userID int64, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.telebot.Send(&telebot.User{ID: userID}, message, telebot.ModeHTML)
	return err
}

// NotifySessionDead alerts every operator that the broker session is unusable.
func (b *Bot) NotifySessionDead(ctx context.Context) error {
	return b.notifyAdmins(ctx, func(t i18n.Translator) (string, []interface{}) {
		return t.T("session.dead_alert"), []interface{}{b.deps.Keyboard.SessionAlert(t)}
	})
}

// NotifySessionExpiring warns every operator about the upcoming session expiry.
func (b *Bot) NotifySessionExpiring(ctx context.Context, warning string) error {
	return b.notifyAdmins(ctx, func(t i18n.Translator) (string, []interface{}) {
		return t.Tf("session.expired_warning", map[string]string{"expiry_warning": warning}), nil
	})
}

func (b *Bot) notifyAdmins(ctx context.Context, build func(t i18n.Translator) (string, []interface{})) error {
	var lastErr error
	for _, adminID := range b.cfg.Bot.AdminIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		text, opts := build(b.deps.T(adminID))
		opts = append(opts, telebot.ModeHTML)
		if _, err := b.telebot.Send(&telebot.User{ID: adminID}, text, opts...); err != nil {
			b.log.Error("failed to notify operator",
				slog.Int64("admin_id", adminID),
				slog.Any("error", err))
			lastErr = err
		}
	}
	return lastErr
}

func (b *Bot) setupRouter() {
	deps := b.deps

	b.router.Use(RecoveryMiddleware(b.log, b.errHandler))
	b.router.Use(ErrorHandlingMiddleware(b.errHandler))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(MetricsMiddleware)
	b.router.Use(MaintenanceMiddleware(deps.Store, deps.IsAdmin))
	b.router.Use(TouchMiddleware(deps.Registry))

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(deps))
	b.router.RegisterCommand(CommandHelp, handlers.Handler(handlers.HandleHowItWorks(deps)))
	b.router.RegisterCommand(CommandLanguage, handlers.NewLanguageCommand(deps))
	b.router.RegisterCommand(CommandAdmin, handlers.NewAdminHandler(deps))
	b.router.RegisterCommand(CommandBroadcastAll, handlers.NewBroadcastCommand(deps, broadcast.TargetAll))
	b.router.RegisterCommand(CommandBroadcastVerified, handlers.NewBroadcastCommand(deps, broadcast.TargetVerified))
	b.router.RegisterCommand(CommandSetWelcome, handlers.NewSetWelcomeCommand(deps))
	b.router.RegisterCommand(CommandSetFinish, handlers.NewSetFinishCommand(deps))
	b.router.RegisterCommand(CommandSetReferralLink, handlers.NewSetReferralLinkCommand(deps))
	b.router.RegisterCommand(CommandSetMinDeposit, handlers.NewSetMinDepositCommand(deps))
	b.router.RegisterCommand(CommandSetMaintenanceMsg, handlers.NewSetMaintenanceMsgCommand(deps))
	b.router.RegisterCommand(CommandSetWelcomePhoto, handlers.NewSetWelcomePhotoCommand(deps))

	b.router.RegisterCallback(CallbackSetLanguage, handlers.HandleSetLanguage(deps))
	b.router.RegisterCallback(CallbackOpenWorkspace, handlers.HandleOpenWorkspace(deps))
	b.router.RegisterCallback(CallbackHowItWorks, handlers.HandleHowItWorks(deps))
	b.router.RegisterCallback(CallbackBackToMenu, handlers.HandleBackToMenu(deps))
	b.router.RegisterCallback(CallbackIRegistered, handlers.HandleIRegistered(deps))
	b.router.RegisterCallback(CallbackDepositPaid, handlers.HandleDepositPaid(deps))
	b.router.RegisterCallback(CallbackCheckSubscribed, handlers.HandleCheckSubscription(deps))
	b.router.RegisterCallback(CallbackSelectMarketType, handlers.HandleSelectMarketType(deps))
	b.router.RegisterCallback(CallbackSelectPair, handlers.HandleSelectPair(deps))
	b.router.RegisterCallback(CallbackPairPage, handlers.HandlePairPage(deps))
	b.router.RegisterCallback(CallbackBackToPairs, handlers.HandleBackToPairs(deps))
	b.router.RegisterCallback(CallbackSelectTime, handlers.HandleSelectTime(deps))
	b.router.RegisterCallback(CallbackCustomTime, handlers.HandleCustomTime(deps))
	b.router.RegisterCallback(CallbackGetSignal, handlers.HandleGetSignal(deps))
	b.router.RegisterCallback(CallbackRetrySignal, handlers.HandleGetSignal(deps))
	b.router.RegisterCallback(CallbackChangeSettings, handlers.HandleChangeSettings(deps))
	b.router.RegisterCallback(CallbackNewSignal, handlers.HandleNewSignal(deps))

	b.router.RegisterCallback(CallbackAdminStats, handlers.HandleAdminStats(deps))
	b.router.RegisterCallback(CallbackAdminBroadcast, handlers.HandleAdminBroadcast(deps))
	b.router.RegisterCallback(CallbackAdminSettings, handlers.HandleAdminSettings(deps))
	b.router.RegisterCallback(CallbackAdminMaintenance, handlers.HandleAdminMaintenance(deps))
	b.router.RegisterCallback(CallbackAdminBack, handlers.HandleAdminBack(deps))
	b.router.RegisterCallback(CallbackMaintenanceOn, handlers.HandleSetMaintenance(deps, true))
	b.router.RegisterCallback(CallbackMaintenanceOff, handlers.HandleSetMaintenance(deps, false))
	b.router.RegisterCallback(CallbackRecheckSession, handlers.HandleRecheckSession(deps))

	// Free-form text is only meaningful in the two input states.
	b.dispatcher.RegisterStateHandler(funnel.StateAwaitingUID, handlers.NewUIDMessageHandler(deps))
	b.dispatcher.RegisterStateHandler(funnel.StateAwaitingCustomTime, handlers.NewCustomTimeMessageHandler(deps))
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil || b.router == nil {
		return
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)

	// Photo captions can carry operator commands, e.g. the welcome photo upload.
	b.telebot.Handle(telebot.OnPhoto, b.router.Route)
}
