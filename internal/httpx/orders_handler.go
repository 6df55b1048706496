package httpx

import (
	"context"
	"github.com/ariefcatur/stars-storefront/internal/lookup"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	"github.com/ariefcatur/stars-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"net/http"
	"strings"
	"time"
)

type CreateOrderReq struct {
	Tier          orders.TierSelection `json:"tier"`
	TelegramUser  orders.Buyer         `json:"telegramUser"`
	PaymentMethod string               `json:"paymentMethod"`
	Currency      string               `json:"currency,omitempty"`
}

type CreateOrderResp struct {
	Success      bool          `json:"success"`
	OrderID      string        `json:"orderId"`
	Status       orders.Status `json:"status"`
	InvoiceURL   string        `json:"invoiceUrl,omitempty"`
	CryptoAmount string        `json:"cryptoAmount,omitempty"`
	Currency     string        `json:"currency,omitempty"`
}

type OrderResp struct {
	Success bool          `json:"success"`
	OrderID string        `json:"orderId"`
	Status  orders.Status `json:"status"`
	Message string        `json:"message,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log(), err)
		return
	}
	method, err := orders.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}

	// crypto orders wait on the exchange-rate and invoice calls
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	o, err := h.Orders.CreateOrder(ctx, orders.CreateOrderInput{
		Tier:     req.Tier,
		Buyer:    req.TelegramUser,
		Method:   method,
		Currency: req.Currency,
	})
	if err != nil {
		writeError(w, h.log(), err)
		return
	}

	resp := CreateOrderResp{Success: true, OrderID: o.ID, Status: o.Status}
	if o.Crypto != nil {
		resp.InvoiceURL = o.Crypto.InvoiceURL
		resp.CryptoAmount = o.Crypto.Amount.String()
		resp.Currency = o.Crypto.Currency
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) orderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Statuses != nil {
		if v, ok := h.Statuses.Get(ctx, orderID); ok {
			writeJSON(w, http.StatusOK, v)
			return
		}
	}

	// 2) fallback DB
	v, err := h.Orders.OrderStatus(ctx, orderID)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	// a pending view read here can land after the commit that invalidated it
	if h.Statuses != nil {
		ttl := redisx.TTLStatusPending
		if v.Status.Terminal() {
			ttl = redisx.TTLStatusCache
		}
		h.Statuses.SetTTL(ctx, orderID, v, ttl)
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) simulatePayment(w http.ResponseWriter, r *http.Request) {
	if !h.AllowSimulation {
		writeError(w, h.log(), errNotFound)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.SimulatePayment(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, OrderResp{
		Success: true,
		OrderID: o.ID,
		Status:  o.Status,
		Message: "Order status updated to PAID (simulated)",
	})
}

func (h *Handler) storefront(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sf, err := h.Orders.Storefront(ctx)
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		orders.Storefront
	}{true, sf})
}

func (h *Handler) resolveUser(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil {
		writeError(w, h.log(), lookup.ErrLookup)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.Profiles.Resolve(ctx, chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		lookup.Profile
	}{true, p})
}

func (h *Handler) exchangeRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log(), err)
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		writeError(w, h.log(), errBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rate := h.Rates.ExchangeRate(ctx, currency, orders.FiatCurrency)
	writeJSON(w, http.StatusOK, map[string]any{
		"rate":     rate.InexactFloat64(),
		"currency": currency,
		"target":   orders.FiatCurrency,
	})
}
