package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/stars-storefront/internal/cryptopay"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strings"
	"time"
)

// PaymentGateway is the part of cryptopay.Client the orchestrator uses.
type PaymentGateway interface {
	ExchangeRate(ctx context.Context, source, target string) decimal.Decimal
	CreateInvoice(ctx context.Context, amount decimal.Decimal, orderID, currency string) (*cryptopay.Invoice, error)
}

type Notification struct {
	Order   Order   `json:"order"`
	Variant Variant `json:"variant"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// StatusCache is told about every committed status change.
type StatusCache interface {
	Forget(ctx context.Context, orderID string)
}

type CreateOrderInput struct {
	Tier     TierSelection
	Buyer    Buyer
	Method   PaymentMethod
	Currency string
}

// Service owns every order status transition.
type Service struct {
	Store    Store
	Gateway  PaymentGateway
	Notifier Notifier
	Cache    StatusCache
	Log      *zap.SugaredLogger

	Now   func() time.Time
	NewID func() string
}

const notifyTimeout = 10 * time.Second

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	qty, price, err := ParseTier(in.Tier)
	if err != nil {
		return nil, err
	}
	buyer := Buyer{
		Handle: strings.TrimPrefix(strings.TrimSpace(in.Buyer.Handle), "@"),
		Name:   strings.TrimSpace(in.Buyer.Name),
		Avatar: strings.TrimSpace(in.Buyer.Avatar),
	}
	if buyer.Handle == "" {
		return nil, fmt.Errorf("%w: buyer username is required", ErrValidation)
	}
	if buyer.Name == "" {
		buyer.Name = buyer.Handle
	}
	if !in.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.Method)
	}

	if err := s.checkPrice(ctx, qty, price); err != nil {
		return nil, err
	}

	// fail fast; the authoritative check happens under lock
	stock, err := s.Store.StockLevel(ctx)
	if err != nil {
		return nil, err
	}
	if qty > stock {
		return nil, ErrInsufficientStock
	}

	now := s.now()
	o := &Order{
		ID:        s.newID(),
		Buyer:     buyer,
		Quantity:  qty,
		Price:     price,
		Method:    in.Method,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Method == MethodCrypto {
		return s.createCrypto(ctx, o, in.Currency)
	}
	return s.createManual(ctx, o)
}

func (s *Service) createManual(ctx context.Context, o *Order) (*Order, error) {
	o.Status = StatusPending
	o.StockDebited = true

	err := s.Store.InTx(ctx, func(tx StoreTx) error {
		avail, err := tx.LockStock(ctx)
		if err != nil {
			return err
		}
		if avail < o.Quantity {
			return ErrInsufficientStock
		}
		if err := tx.SetStock(ctx, avail-o.Quantity); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.log().Infow("manual order created", "order_id", o.ID, "stars", o.Quantity, "price", o.Price.String())

	s.notify(ctx, o, VariantManualPending)
	return o, nil
}

func (s *Service) createCrypto(ctx context.Context, o *Order, currency string) (*Order, error) {
	asset := cryptopay.Normalize(currency)
	if !cryptopay.Supported(asset) {
		return nil, fmt.Errorf("%w: unsupported crypto currency %q", ErrValidation, currency)
	}
	if s.Gateway == nil {
		return nil, cryptopay.ErrNotConfigured
	}

	rate := s.Gateway.ExchangeRate(ctx, asset, FiatCurrency)
	if !rate.IsPositive() {
		rate = cryptopay.FallbackRate(asset, FiatCurrency)
	}
	amount := o.Price.DivRound(rate, 12).RoundCeil(cryptopay.Precision(asset))
	if floor := cryptopay.MinAmount(asset); amount.LessThan(floor) {
		return nil, fmt.Errorf("%w: %s %s is below the minimum of %s", ErrBelowMinimumAmount, cryptopay.FormatAmount(amount), asset, floor)
	}

	o.Status = StatusWaitingPayment
	o.Crypto = &CryptoDetails{Currency: asset, Amount: amount, ExchangeRate: rate}
	if err := s.Store.InTx(ctx, func(tx StoreTx) error { return tx.InsertOrder(ctx, o) }); err != nil {
		return nil, err
	}

	inv, err := s.Gateway.CreateInvoice(ctx, amount, o.ID, asset)
	if err != nil {
		s.log().Errorw("invoice creation failed", "order_id", o.ID, "error", err)
		s.abandon(ctx, o.ID)
		return nil, err
	}

	err = s.Store.InTx(ctx, func(tx StoreTx) error {
		cur, err := tx.LockOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		cur.Crypto.InvoiceID = inv.ID()
		cur.Crypto.InvoiceURL = inv.URL()
		cur.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, cur); err != nil {
			return err
		}
		o = cur
		return nil
	})
	if err != nil {
		// no webhook could ever match this order
		s.log().Errorw("persist invoice failed", "order_id", o.ID, "invoice_id", inv.ID(), "error", err)
		s.abandon(ctx, o.ID)
		return nil, err
	}
	s.log().Infow("crypto order awaiting payment", "order_id", o.ID, "invoice_id", o.Crypto.InvoiceID,
		"amount", cryptopay.FormatAmount(amount), "asset", asset)
	return o, nil
}

// abandon fails an order whose invoice could not be issued. Stock was never
// touched so there is nothing to give back.
func (s *Service) abandon(ctx context.Context, orderID string) {
	ctx = context.WithoutCancel(ctx)
	err := s.Store.InTx(ctx, func(tx StoreTx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.transition(o, StatusFailed); err != nil {
			return err
		}
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		s.log().Warnw("could not fail abandoned order", "order_id", orderID, "error", err)
	}
}

// ConfirmPayment settles a paid invoice. Replays return ErrAlreadyProcessed.
func (s *Service) ConfirmPayment(ctx context.Context, invoiceID string) (*Order, error) {
	var (
		settled  *Order
		shortage bool
	)
	err := s.Store.InTx(ctx, func(tx StoreTx) error {
		o, err := tx.LockOrderByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if o.Status != StatusWaitingPayment {
			return fmt.Errorf("%w: invoice %s is %s", ErrAlreadyProcessed, invoiceID, o.Status)
		}
		avail, err := tx.LockStock(ctx)
		if err != nil {
			return err
		}
		if avail < o.Quantity {
			shortage = true
			if err := s.transition(o, StatusFailed); err != nil {
				return err
			}
		} else {
			if err := tx.SetStock(ctx, avail-o.Quantity); err != nil {
				return err
			}
			o.StockDebited = true
			if err := s.transition(o, StatusCompleted); err != nil {
				return err
			}
		}
		settled = o
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			s.log().Infow("payment already processed", "invoice_id", invoiceID)
		}
		return nil, err
	}
	s.forget(ctx, settled.ID)

	if shortage {
		s.log().Errorw("CRITICAL: payment captured but stock is exhausted, manual refund required",
			"order_id", settled.ID, "invoice_id", invoiceID, "stars", settled.Quantity, "critical", true)
		s.notify(ctx, settled, VariantGeneric)
		return settled, ErrCriticalStockShortage
	}
	s.log().Infow("crypto payment confirmed", "order_id", settled.ID, "invoice_id", invoiceID)
	s.notify(ctx, settled, VariantCryptoPaid)
	return settled, nil
}

// MarkFulfilled completes an order. Completing a completed order is a no-op.
// Orders whose stock was never debited are debited here.
func (s *Service) MarkFulfilled(ctx context.Context, orderID string) (*Order, error) {
	var (
		done    *Order
		changed bool
	)
	err := s.Store.InTx(ctx, func(tx StoreTx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		done = o
		if o.Status == StatusCompleted {
			return nil
		}
		if !CanTransition(o.Status, StatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCompleted)
		}
		if !o.StockDebited {
			avail, err := tx.LockStock(ctx)
			if err != nil {
				return err
			}
			if avail < o.Quantity {
				return ErrInsufficientStock
			}
			if err := tx.SetStock(ctx, avail-o.Quantity); err != nil {
				return err
			}
			o.StockDebited = true
		}
		if err := s.transition(o, StatusCompleted); err != nil {
			return err
		}
		changed = true
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.forget(ctx, orderID)
		s.log().Infow("order fulfilled", "order_id", orderID)
	}
	return done, nil
}

// SimulatePayment forces WAITING_PAYMENT -> PAID. Test tooling only.
func (s *Service) SimulatePayment(ctx context.Context, orderID string) (*Order, error) {
	var paid *Order
	err := s.Store.InTx(ctx, func(tx StoreTx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.transition(o, StatusPaid); err != nil {
			return err
		}
		paid = o
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.forget(ctx, orderID)
	s.log().Warnw("payment simulated", "order_id", orderID)
	return paid, nil
}

func (s *Service) OrderStatus(ctx context.Context, orderID string) (StatusView, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}
	return o.View(), nil
}

func (s *Service) ListOrders(ctx context.Context, status Status, limit int) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.Store.ListOrders(ctx, status, limit)
}

func (s *Service) Storefront(ctx context.Context) (Storefront, error) {
	stock, err := s.Store.StockLevel(ctx)
	if err != nil {
		return Storefront{}, err
	}
	price, err := s.Store.StarPrice(ctx)
	if err != nil {
		return Storefront{}, err
	}
	return BuildStorefront(stock, price, cryptopay.Currencies()), nil
}

// checkPrice rejects prices below the configured rate. Storefront tiers are
// rounded to whole roubles, so the floor of quantity x star price is accepted.
func (s *Service) checkPrice(ctx context.Context, qty int, price decimal.Decimal) error {
	starPrice, err := s.Store.StarPrice(ctx)
	if err != nil {
		return err
	}
	if !starPrice.IsPositive() {
		return nil
	}
	floor := starPrice.Mul(decimal.NewFromInt(int64(qty))).RoundFloor(0)
	if price.LessThan(floor) {
		return fmt.Errorf("%w: price %s is below %s for %d stars", ErrValidation, price.StringFixed(2), floor.String(), qty)
	}
	return nil
}

func (s *Service) transition(o *Order, to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = s.now()
	return nil
}

// notify never fails the caller; delivery problems are logged.
func (s *Service) notify(ctx context.Context, o *Order, v Variant) {
	if s.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.Notifier.Notify(ctx, Notification{Order: *o, Variant: v}); err != nil {
		s.log().Warnw("operator notification failed", "order_id", o.ID, "variant", v, "error", err)
	}
}

func (s *Service) forget(ctx context.Context, orderID string) {
	if s.Cache != nil {
		s.Cache.Forget(context.WithoutCancel(ctx), orderID)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) log() *zap.SugaredLogger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop().Sugar()
}
