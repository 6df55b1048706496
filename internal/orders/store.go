package orders

import (
	"context"
	"github.com/shopspring/decimal"
)

const (
	SettingTotalStars = "total_stars"
	SettingStarPrice  = "star_price_rub"
)

// Store is the persistence the orchestrator needs. Every status change goes
// through InTx so the stock counter and the order row move together.
type Store interface {
	InTx(ctx context.Context, fn func(tx StoreTx) error) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, status Status, limit int) ([]Order, error)
	StockLevel(ctx context.Context) (int, error)
	StarPrice(ctx context.Context) (decimal.Decimal, error)
}

// StoreTx is a unit of work. Lock* calls hold row locks until commit.
type StoreTx interface {
	LockStock(ctx context.Context) (int, error)
	SetStock(ctx context.Context, n int) error
	InsertOrder(ctx context.Context, o *Order) error
	LockOrder(ctx context.Context, id string) (*Order, error)
	LockOrderByInvoice(ctx context.Context, invoiceID string) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
}
