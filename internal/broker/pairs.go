package broker

// pairCatalog lists the tradable assets per market category. OTC pairs carry
// the _otc suffix and are quoted around the clock.
var pairCatalog = map[string][]string{
	MarketCurrency: {
		"EURUSD",
		"GBPUSD",
		"USDJPY",
		"AUDUSD",
		"USDCAD",
		"USDCHF",
		"NZDUSD",
		"EURGBP",
		"EURJPY",
		"GBPJPY",
		"AUDJPY",
		"EURCHF",
	},
	MarketOTC: {
		"EURUSD_otc",
		"GBPUSD_otc",
		"USDJPY_otc",
		"AUDUSD_otc",
		"USDCAD_otc",
		"USDCHF_otc",
		"NZDUSD_otc",
		"EURGBP_otc",
		"AUDCAD_otc",
		"EURJPY_otc",
		"GBPJPY_otc",
		"CADJPY_otc",
		"AUDNZD_otc",
		"EURNZD_otc",
	},
}
