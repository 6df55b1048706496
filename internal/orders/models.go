package orders

import (
	"github.com/shopspring/decimal"
	"time"
)

// FiatCurrency is the unit order prices are quoted in.
const FiatCurrency = "RUB"

type Buyer struct {
	Handle string `json:"username"`
	Name   string `json:"name"`
	Avatar string `json:"avatarUrl"`
}

type CryptoDetails struct {
	Currency     string          `json:"currency"`
	Amount       decimal.Decimal `json:"amount"`
	ExchangeRate decimal.Decimal `json:"exchangeRate"`
	InvoiceID    string          `json:"invoiceId,omitempty"`
	InvoiceURL   string          `json:"invoiceUrl,omitempty"`
}

// Order: Quantity and Price are fixed at creation.
type Order struct {
	ID           string          `json:"id"`
	Buyer        Buyer           `json:"buyer"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Status       Status          `json:"status"`
	Method       PaymentMethod   `json:"paymentMethod"`
	Crypto       *CryptoDetails  `json:"crypto,omitempty"`
	StockDebited bool            `json:"stockDebited"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// StatusView is the public projection served by the status endpoint.
type StatusView struct {
	OrderID       string        `json:"orderId"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	InvoiceURL    string        `json:"invoiceUrl,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (o *Order) View() StatusView {
	v := StatusView{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentMethod: o.Method,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Crypto != nil {
		v.InvoiceURL = o.Crypto.InvoiceURL
	}
	return v
}

type Tier struct {
	Name     string          `json:"name"`
	Quantity int             `json:"stars"`
	Price    decimal.Decimal `json:"price"`
	Popular  bool            `json:"isPopular,omitempty"`
}

type Storefront struct {
	AvailableStars int             `json:"availableStars"`
	StarPrice      decimal.Decimal `json:"starPriceRub"`
	MinStars       int             `json:"minStars"`
	MaxStars       int             `json:"maxStars"`
	Tiers          []Tier          `json:"tiers"`
	Currencies     []string        `json:"cryptoCurrencies"`
}
