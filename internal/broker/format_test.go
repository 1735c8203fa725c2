package broker

import "testing"

func TestFormatAssetName(t *testing.T) {
	testCases := []struct {
		name     string
		asset    string
		expected string
	}{
		{name: "plain currency pair", asset: "EURUSD", expected: "EUR/USD"},
		{name: "otc currency pair", asset: "EURUSD_otc", expected: "EUR/USD OTC"},
		{name: "uppercase otc suffix", asset: "GBPUSD_OTC", expected: "GBP/USD OTC"},
		{name: "stock ticker", asset: "AAPL", expected: "AAPL"},
		{name: "stock ticker otc", asset: "AAPL_otc", expected: "AAPL OTC"},
		{name: "index with digits", asset: "SP500", expected: "SP500"},
		{name: "empty string", asset: "", expected: ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := FormatAssetName(tc.asset); actual != tc.expected {
				t.Errorf("FormatAssetName(%q) = %q, expected %q", tc.asset, actual, tc.expected)
			}
		})
	}
}
