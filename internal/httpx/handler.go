package httpx

import (
	"context"
	"github.com/ariefcatur/stars-storefront/internal/lookup"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"time"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*orders.Order, error)
	ConfirmPayment(ctx context.Context, invoiceID string) (*orders.Order, error)
	MarkFulfilled(ctx context.Context, orderID string) (*orders.Order, error)
	SimulatePayment(ctx context.Context, orderID string) (*orders.Order, error)
	OrderStatus(ctx context.Context, orderID string) (orders.StatusView, error)
	ListOrders(ctx context.Context, status orders.Status, limit int) ([]orders.Order, error)
	Storefront(ctx context.Context) (orders.Storefront, error)
}

type RateSource interface {
	ExchangeRate(ctx context.Context, source, target string) decimal.Decimal
}

type SignatureVerifier interface {
	VerifyWebhookSignature(signature string, rawBody []byte) bool
}

type ProfileResolver interface {
	Resolve(ctx context.Context, raw string) (lookup.Profile, error)
}

type UpdateHandler interface {
	Handle(ctx context.Context, u tgbotapi.Update) error
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (orders.StatusView, bool)
	SetTTL(ctx context.Context, orderID string, v orders.StatusView, ttl time.Duration)
}

// Handler serves the storefront, webhook and admin routes. Optional
// collaborators may be nil; their routes then answer with an error.
type Handler struct {
	Orders   OrderService
	Rates    RateSource
	Payments SignatureVerifier
	Profiles ProfileResolver
	Telegram UpdateHandler
	Statuses StatusCache
	Admin    *AdminAuth
	Log      *zap.SugaredLogger

	TelegramSecret  string
	AllowSimulation bool
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/storefront", h.storefront)
	r.Get("/users/{username}", h.resolveUser)
	r.Post("/exchange-rate", h.exchangeRate)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}/status", h.orderStatus)
	r.Post("/orders/{id}/simulate-payment", h.simulatePayment)

	r.Post("/cryptobot-webhook", h.cryptoWebhook)
	r.Post("/telegram-webhook", h.telegramWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.Admin.Middleware)
		r.Post("/complete-order", h.completeOrder)
		r.Get("/admin/orders", h.listOrders)
	})
}

func (h *Handler) log() *zap.SugaredLogger {
	if h.Log != nil {
		return h.Log
	}
	return zap.NewNop().Sugar()
}
