package symbols

import (
	"strings"

	"oiflow/internal/models"
)

// multiplierPrefixes lists the lot prefixes exchanges put in front of
// low-priced coins, largest first so 1000000 is matched before 1000.
var multiplierPrefixes = []struct {
	prefix string
	factor float64
}{
	{"1000000", 1e6},
	{"10000", 1e4},
	{"1000", 1e3},
}

// NormalizeBase converts an exchange specific base asset into the plain coin
// and the factor its contract quantities must be multiplied by to express
// them in coins.
// Examples:
//
//	binance 1000PEPE -> PEPE, 1000
//	bybit   SHIB1000 -> SHIB, 1000
//	okx     BTC      -> BTC, 1
func NormalizeBase(exchange, base string) (models.Coin, float64) {
	base = strings.ToUpper(strings.TrimSpace(base))

	if strings.ToLower(exchange) == "bybit" && strings.HasSuffix(base, "1000") && len(base) > 4 {
		return models.Coin(strings.TrimSuffix(base, "1000")), 1e3
	}

	for _, p := range multiplierPrefixes {
		if strings.HasPrefix(base, p.prefix) && len(base) > len(p.prefix) {
			return models.Coin(strings.TrimPrefix(base, p.prefix)), p.factor
		}
	}

	// XBT is an alias of BTC on a few venues
	if base == "XBT" {
		return "BTC", 1
	}
	return models.Coin(base), 1
}

// SplitLinear splits a concatenated linear symbol such as BTCUSDT into its
// base asset. ok is false when the symbol is not quoted in quote, which also
// rejects dated contracts like BTCUSDT-27DEC24.
func SplitLinear(symbol, quote string) (base string, ok bool) {
	symbol = strings.ToUpper(symbol)
	quote = strings.ToUpper(quote)
	if !strings.HasSuffix(symbol, quote) || len(symbol) == len(quote) {
		return "", false
	}
	return strings.TrimSuffix(symbol, quote), true
}

// SplitInstrument splits a dashed instrument id such as BTC-USDT-SWAP.
func SplitInstrument(instID string) (base, quote, kind string, ok bool) {
	parts := strings.Split(strings.ToUpper(instID), "-")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
