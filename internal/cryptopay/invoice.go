package cryptopay

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/shopspring/decimal"
	"net/http"
	"strconv"
)

const invoiceTTLSeconds = 3600

type Invoice struct {
	InvoiceID     int64           `json:"invoice_id"`
	Hash          string          `json:"hash"`
	Status        string          `json:"status"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	PayURL        string          `json:"pay_url"`
	BotInvoiceURL string          `json:"bot_invoice_url"`
	Description   string          `json:"description,omitempty"`
	Payload       string          `json:"payload,omitempty"`
	CreatedAt     string          `json:"created_at"`
	PaidAt        string          `json:"paid_at,omitempty"`
}

// ID is the invoice id in the form orders store it.
func (i Invoice) ID() string { return strconv.FormatInt(i.InvoiceID, 10) }

// URL prefers the bot link; older API versions only return pay_url.
func (i Invoice) URL() string {
	if i.BotInvoiceURL != "" {
		return i.BotInvoiceURL
	}
	return i.PayURL
}

type createInvoiceReq struct {
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payload     string `json:"payload"`
	ExpiresIn   int    `json:"expires_in"`
}

// FormatAmount renders at most 8 decimals without trailing zeros.
func FormatAmount(amount decimal.Decimal) string { return amount.Round(8).String() }

func (c *Client) CreateInvoice(ctx context.Context, amount decimal.Decimal, orderID, currency string) (*Invoice, error) {
	asset := Normalize(currency)
	if !Supported(asset) {
		return nil, fmt.Errorf("%w: unsupported asset %q", ErrGateway, currency)
	}
	if !amount.IsPositive() || amount.LessThan(MinAmount(asset)) {
		return nil, fmt.Errorf("%w: minimum for %s is %s", ErrBelowMinimum, asset, MinAmount(asset))
	}

	payload, _ := json.Marshal(map[string]string{"orderId": orderID})
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}
	req := createInvoiceReq{
		Asset:       asset,
		Amount:      FormatAmount(amount),
		Description: fmt.Sprintf("Покупка Stars (Заказ #%s)", short),
		Payload:     string(payload),
		ExpiresIn:   invoiceTTLSeconds,
	}

	var inv Invoice
	if err := c.call(ctx, http.MethodPost, "createInvoice", req, &inv); err != nil {
		return nil, err
	}
	c.log.Infow("invoice created", "order_id", orderID, "invoice_id", inv.InvoiceID, "asset", asset, "amount", req.Amount)
	return &inv, nil
}
