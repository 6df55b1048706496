package cryptopay

import (
	"context"
	"github.com/shopspring/decimal"
	"net/http"
)

const ratesCacheID = "all"

type Rate struct {
	IsValid  bool            `json:"is_valid"`
	IsCrypto bool            `json:"is_crypto"`
	IsFiat   bool            `json:"is_fiat"`
	Source   string          `json:"source"`
	Target   string          `json:"target"`
	Rate     decimal.Decimal `json:"rate"`
}

// Rates returns the gateway's rate list. Concurrent misses share one upstream
// call and a good list is cached.
func (c *Client) Rates(ctx context.Context) ([]Rate, error) {
	if c.rates != nil {
		if rs, ok := c.rates.Get(ctx, ratesCacheID); ok && len(rs) > 0 {
			return rs, nil
		}
	}
	v, err, _ := c.group.Do(ratesCacheID, func() (any, error) {
		// shared by every waiter; detached from the first caller's cancellation
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.http.Timeout)
		defer cancel()

		var rs []Rate
		if err := c.call(ctx, http.MethodGet, "getExchangeRates", nil, &rs); err != nil {
			return nil, err
		}
		if c.rates != nil && len(rs) > 0 {
			c.rates.Set(ctx, ratesCacheID, rs)
		}
		return rs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Rate), nil
}

// ExchangeRate returns how many target units one source unit is worth. It
// never fails: when the provider is unreachable or has no usable pair the
// static table is used.
func (c *Client) ExchangeRate(ctx context.Context, source, target string) decimal.Decimal {
	source, target = Normalize(source), Normalize(target)
	rs, err := c.Rates(ctx)
	if err != nil {
		c.log.Warnw("exchange rates unavailable, using fallback", "source", source, "target", target, "error", err)
		return FallbackRate(source, target)
	}
	if r, ok := resolveRate(rs, source, target); ok {
		return r
	}
	c.log.Warnw("no exchange rate for pair, using fallback", "source", source, "target", target)
	return FallbackRate(source, target)
}

// resolveRate tries the direct pair, the inverse pair and a USD bridge.
func resolveRate(rs []Rate, source, target string) (decimal.Decimal, bool) {
	if source == target {
		return decimal.NewFromInt(1), true
	}
	if r, ok := findRate(rs, source, target); ok {
		return r, true
	}
	if r, ok := findRate(rs, target, source); ok {
		return decimal.NewFromInt(1).DivRound(r, 12), true
	}
	toUSD, ok1 := findRate(rs, source, "USD")
	fromUSD, ok2 := findRate(rs, "USD", target)
	if ok1 && ok2 {
		return toUSD.Mul(fromUSD), true
	}
	return decimal.Zero, false
}

func findRate(rs []Rate, source, target string) (decimal.Decimal, bool) {
	for _, r := range rs {
		if r.Source == source && r.Target == target && r.IsValid && r.Rate.IsPositive() {
			return r.Rate, true
		}
	}
	return decimal.Zero, false
}
