package cryptopay

import (
	"github.com/shopspring/decimal"
	"sort"
	"strings"
)

// Assets accepted by the gateway.
var supported = map[string]bool{
	"USDT": true, "TON": true, "BTC": true, "ETH": true, "LTC": true, "BNB": true, "TRX": true,
}

var minAmounts = map[string]decimal.Decimal{
	"TON":  decimal.RequireFromString("0.01"),
	"USDT": decimal.RequireFromString("1"),
	"BTC":  decimal.RequireFromString("0.00001"),
	"ETH":  decimal.RequireFromString("0.001"),
	"BNB":  decimal.RequireFromString("0.01"),
	"TRX":  decimal.RequireFromString("1"),
	"LTC":  decimal.RequireFromString("0.001"),
}

var precision = map[string]int32{
	"USDT": 2,
	"TRX":  2,
	"TON":  4,
}

// RUB per unit, used when the live rate list is unusable.
var fallbackRUB = map[string]decimal.Decimal{
	"TON":  decimal.NewFromInt(250),
	"USDT": decimal.NewFromInt(78),
	"BTC":  decimal.NewFromInt(5_000_000),
	"ETH":  decimal.NewFromInt(300_000),
	"BNB":  decimal.NewFromInt(45_000),
	"TRX":  decimal.NewFromInt(25),
	"LTC":  decimal.NewFromInt(15_000),
}

func Normalize(currency string) string { return strings.ToUpper(strings.TrimSpace(currency)) }

func Supported(currency string) bool { return supported[Normalize(currency)] }

// Currencies lists the supported assets in alphabetical order.
func Currencies() []string {
	out := make([]string, 0, len(supported))
	for c := range supported {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func MinAmount(currency string) decimal.Decimal {
	if m, ok := minAmounts[Normalize(currency)]; ok {
		return m
	}
	return decimal.RequireFromString("0.01")
}

// Precision is the number of decimal places invoices are priced with.
func Precision(currency string) int32 {
	if p, ok := precision[Normalize(currency)]; ok {
		return p
	}
	return 8
}

// FallbackRate returns the static rate for source→target. Pairs outside the
// table resolve to 1.
func FallbackRate(source, target string) decimal.Decimal {
	if Normalize(target) == "RUB" {
		if r, ok := fallbackRUB[Normalize(source)]; ok {
			return r
		}
	}
	return decimal.NewFromInt(1)
}
