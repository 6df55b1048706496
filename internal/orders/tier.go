package orders

import (
	"fmt"
	"github.com/shopspring/decimal"
	"strconv"
	"strings"
	"unicode"
)

// TierSelection is what the storefront posts: display strings such as
// "1 000" stars for "1 500 ₽".
type TierSelection struct {
	Stars string `json:"stars"`
	Price string `json:"price"`
}

// ParseTier turns display strings into a positive quantity and price.
func ParseTier(t TierSelection) (int, decimal.Decimal, error) {
	qs := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, t.Stars)
	qty, err := strconv.Atoi(qs)
	if err != nil || qty <= 0 {
		return 0, decimal.Zero, fmt.Errorf("%w: stars must be a positive integer, got %q", ErrValidation, t.Stars)
	}

	ps := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.':
			return r
		case r == ',':
			return '.'
		}
		return -1
	}, t.Price)
	price, err := decimal.NewFromString(ps)
	if err != nil || !price.IsPositive() {
		return 0, decimal.Zero, fmt.Errorf("%w: price must be a positive number, got %q", ErrValidation, t.Price)
	}
	return qty, price.Round(2), nil
}

// Predefined bundles shown next to the custom-quantity slider.
var tierPresets = []struct {
	name    string
	stars   int
	popular bool
}{
	{"Стартовый", 100, false},
	{"Популярный", 500, true},
	{"Максимальный", 2000, false},
}

const MinStars = 50

func BuildStorefront(available int, starPrice decimal.Decimal, currencies []string) Storefront {
	sf := Storefront{
		AvailableStars: available,
		StarPrice:      starPrice,
		MinStars:       MinStars,
		MaxStars:       available,
		Currencies:     currencies,
	}
	for _, p := range tierPresets {
		sf.Tiers = append(sf.Tiers, Tier{
			Name:     p.name,
			Quantity: p.stars,
			Price:    starPrice.Mul(decimal.NewFromInt(int64(p.stars))).Round(0),
			Popular:  p.popular,
		})
	}
	return sf
}
