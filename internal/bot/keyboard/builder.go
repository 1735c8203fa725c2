package keyboard

import (
	"fmt"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/broker"
	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
)

// PairsPerPage is the number of trading pairs shown per page.
const PairsPerPage = 8

// Expiration presets offered in the time picker, in minutes.
var expirationPresets = []int{1, 2, 3, 4, 5, 10, 15}

// Builder creates localized inline keyboards for the funnel screens.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// encode wraps EncodeCallback, falling back to the bare unique when the
// payload would overflow the Telegram callback data limit.
func (b *Builder) encode(unique, data string) string {
	payload, err := EncodeCallback(unique, data)
	if err != nil {
		b.log.Error("callback data rejected", slog.String("unique", unique), slog.Any("error", err))
		return unique
	}
	return payload
}

// Language builds the initial language picker.
func (b *Builder) Language(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(
			InlineButton{Text: t.T("language.ru"), Unique: "set_lang", Data: "ru"},
			InlineButton{Text: t.T("language.en"), Unique: "set_lang", Data: "en"},
		).
		Build(b.encode)
}

// MainMenu builds the menu shown on the welcome and verified screens.
func (b *Builder) MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("menu.workspace"), Unique: "open_workspace"}).
		AddRow(InlineButton{Text: t.T("menu.how"), Unique: "how_it_works"}).
		Build(b.encode)
}

// VerificationIntro builds the registration instructions keyboard.
func (b *Builder) VerificationIntro(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("verify.i_registered"), Unique: "i_registered"}).
		AddRow(InlineButton{Text: t.T("back.to_menu"), Unique: "back_to_menu"}).
		Build(b.encode)
}

// DepositConfirm builds the deposit confirmation keyboard.
func (b *Builder) DepositConfirm(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("deposit.confirm_button"), Unique: "deposit_paid"}).
		AddRow(InlineButton{Text: t.T("back.to_menu"), Unique: "back_to_menu"}).
		Build(b.encode)
}

// Subscription builds the channel subscription gate keyboard.
func (b *Builder) Subscription(t i18n.Translator, channelUsername string) *telebot.ReplyMarkup {
	markup := NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("subscription.check_button"), Unique: "check_subscription"}).
		Build(b.encode)

	if channelUsername != "" {
		markup.InlineKeyboard = append([][]telebot.InlineButton{{
			{Text: "📢 @" + channelUsername, URL: "https://t.me/" + channelUsername},
		}}, markup.InlineKeyboard...)
	}
	return markup
}

// MarketTypes builds the market category picker.
func (b *Builder) MarketTypes(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(
			InlineButton{Text: t.T("market.currencies"), Unique: "select_market_type", Data: broker.MarketCurrency},
			InlineButton{Text: t.T("market.otc"), Unique: "select_market_type", Data: broker.MarketOTC},
		).
		AddRow(InlineButton{Text: t.T("back.to_menu"), Unique: "back_to_menu"}).
		Build(b.encode)
}

// Pairs builds one page of the trading pair picker. Pages are 1-based; out of
// range pages are clamped.
func (b *Builder) Pairs(t i18n.Translator, marketType string, pairs []string, page int) *telebot.ReplyMarkup {
	totalPages := (len(pairs) + PairsPerPage - 1) / PairsPerPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * PairsPerPage
	end := start + PairsPerPage
	if end > len(pairs) {
		end = len(pairs)
	}

	kb := NewInlineKeyboard()
	for i := start; i < end; i += 2 {
		row := []InlineButton{{
			Text:   broker.FormatAssetName(pairs[i]),
			Unique: "select_pair",
			Data:   pairs[i],
		}}
		if i+1 < end {
			row = append(row, InlineButton{
				Text:   broker.FormatAssetName(pairs[i+1]),
				Unique: "select_pair",
				Data:   pairs[i+1],
			})
		}
		kb.AddRow(row...)
	}

	if nav := PaginationRow(t, "pair_page", marketType, page, totalPages); len(nav) > 0 {
		kb.AddRow(nav...)
	}
	kb.AddRow(InlineButton{Text: t.T("back.to_menu"), Unique: "back_to_menu"})

	return kb.Build(b.encode)
}

// Expirations builds the expiration time picker: presets three per row, a
// custom time entry and a way back to the pair list.
func (b *Builder) Expirations(t i18n.Translator) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()

	suffix := t.T("time.minutes_suffix")
	row := make([]InlineButton, 0, 3)
	for _, minutes := range expirationPresets {
		row = append(row, InlineButton{
			Text:   fmt.Sprintf("%d %s", minutes, suffix),
			Unique: "select_time",
			Data:   strconv.Itoa(minutes),
		})
		if len(row) == 3 {
			kb.AddRow(row...)
			row = make([]InlineButton, 0, 3)
		}
	}
	if len(row) > 0 {
		kb.AddRow(row...)
	}

	kb.AddRow(InlineButton{Text: t.T("time.set_custom"), Unique: "custom_time"})
	kb.AddRow(InlineButton{Text: t.T("back.to_pair_select"), Unique: "back_to_pairs"})

	return kb.Build(b.encode)
}

// Confirmation builds the request summary keyboard.
func (b *Builder) Confirmation(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("confirm.get_signal"), Unique: "get_signal"}).
		AddRow(InlineButton{Text: t.T("confirm.change_settings"), Unique: "change_settings"}).
		Build(b.encode)
}

// SignalDelivered builds the keyboard attached to a delivered signal.
func (b *Builder) SignalDelivered(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("signal.new"), Unique: "new_signal"}).
		AddRow(InlineButton{Text: t.T("back.to_menu"), Unique: "back_to_menu"}).
		Build(b.encode)
}

// SignalRetry builds the keyboard shown when signal generation fails.
func (b *Builder) SignalRetry(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("signal.retry"), Unique: "retry_signal"}).
		AddRow(InlineButton{Text: t.T("back.to_menu"), Unique: "back_to_menu"}).
		Build(b.encode)
}

// AdminPanel builds the operator panel root keyboard.
func (b *Builder) AdminPanel(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(
			InlineButton{Text: t.T("admin.stats"), Unique: "admin_stats"},
			InlineButton{Text: t.T("admin.broadcast"), Unique: "admin_broadcast"},
		).
		AddRow(
			InlineButton{Text: t.T("admin.settings"), Unique: "admin_settings"},
			InlineButton{Text: t.T("admin.maintenance"), Unique: "admin_maintenance"},
		).
		Build(b.encode)
}

// AdminBack builds a single button back to the operator panel.
func (b *Builder) AdminBack(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("admin.back_to_panel"), Unique: "admin_back"}).
		Build(b.encode)
}

// SessionAlert builds the recheck button attached to dead-session alerts.
func (b *Builder) SessionAlert(t i18n.Translator) *telebot.ReplyMarkup {
	return NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("session.recheck_button"), Unique: "recheck_session"}).
		Build(b.encode)
}

// AdminMaintenance builds the maintenance toggle keyboard for the current mode.
func (b *Builder) AdminMaintenance(t i18n.Translator, enabled bool) *telebot.ReplyMarkup {
	toggle := InlineButton{Text: t.T("maintenance.enable_mode"), Unique: "maintenance_on"}
	if enabled {
		toggle = InlineButton{Text: t.T("maintenance.disable_mode"), Unique: "maintenance_off"}
	}

	return NewInlineKeyboard().
		AddRow(toggle).
		AddRow(InlineButton{Text: t.T("admin.back_to_panel"), Unique: "admin_back"}).
		Build(b.encode)
}
