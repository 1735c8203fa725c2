package broker

import "strings"

// FormatAssetName turns a technical asset code into a display name:
// "EURUSD_otc" becomes "EUR/USD OTC", "AAPL" stays "AAPL".
func FormatAssetName(asset string) string {
	name := strings.ToUpper(asset)

	isOTC := strings.HasSuffix(name, "_OTC")
	name = strings.TrimSuffix(name, "_OTC")

	if len(name) == 6 && isAlpha(name) {
		name = name[:3] + "/" + name[3:]
	}

	if isOTC {
		return name + " OTC"
	}
	return name
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}
