package bot

// Command constants for Telegram bot commands.
const (
	CommandStart             = "/start"
	CommandHelp              = "/help"
	CommandLanguage          = "/language"
	CommandAdmin             = "/admin"
	CommandBroadcastAll      = "/broadcast_all"
	CommandBroadcastVerified = "/broadcast_verified"
	CommandSetWelcome        = "/set_welcome"
	CommandSetFinish         = "/set_finish"
	CommandSetReferralLink   = "/set_referral_link"
	CommandSetMinDeposit     = "/set_min_deposit"
	CommandSetMaintenanceMsg = "/set_maintenance_msg"
	CommandSetWelcomePhoto   = "/set_welcome_photo"
)

// Callback unique prefixes for inline button interactions. Payloads are
// appended after the keyboard.CallbackDataSeparator.
const (
	CallbackSetLanguage      = "set_lang"
	CallbackOpenWorkspace    = "open_workspace"
	CallbackHowItWorks       = "how_it_works"
	CallbackBackToMenu       = "back_to_menu"
	CallbackIRegistered      = "i_registered"
	CallbackDepositPaid      = "deposit_paid"
	CallbackCheckSubscribed  = "check_subscription"
	CallbackSelectMarketType = "select_market_type"
	CallbackSelectPair       = "select_pair"
	CallbackPairPage         = "pair_page"
	CallbackBackToPairs      = "back_to_pairs"
	CallbackSelectTime       = "select_time"
	CallbackCustomTime       = "custom_time"
	CallbackGetSignal        = "get_signal"
	CallbackChangeSettings   = "change_settings"
	CallbackNewSignal        = "new_signal"
	CallbackRetrySignal      = "retry_signal"

	CallbackAdminStats       = "admin_stats"
	CallbackAdminBroadcast   = "admin_broadcast"
	CallbackAdminSettings    = "admin_settings"
	CallbackAdminMaintenance = "admin_maintenance"
	CallbackAdminBack        = "admin_back"
	CallbackMaintenanceOn    = "maintenance_on"
	CallbackMaintenanceOff   = "maintenance_off"
	CallbackRecheckSession   = "recheck_session"
)
