package orders

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store. A single mutex held for the whole of InTx
// gives the same serialisation the row locks give in Postgres.
type memStore struct {
	mu        sync.Mutex
	stock     int
	starPrice decimal.Decimal
	orders    map[string]Order
	txCount   int

	// failUpdates makes the next n UpdateOrder calls fail
	failUpdates int
}

func newMemStore(stock int) *memStore {
	return &memStore{stock: stock, starPrice: decimal.RequireFromString("1.5"), orders: map[string]Order{}}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx StoreTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	tx := &memTx{stock: m.stock, orders: map[string]Order{}, store: m}
	for k, v := range m.orders {
		tx.orders[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	m.stock = tx.stock
	m.orders = tx.orders
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return clone(o), nil
}

func (m *memStore) ListOrders(_ context.Context, status Status, limit int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, *clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) StockLevel(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock, nil
}

func (m *memStore) StarPrice(context.Context) (decimal.Decimal, error) {
	return m.starPrice, nil
}

func (m *memStore) currentStock() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock
}

func (m *memStore) order(id string) Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *clone(m.orders[id])
}

type memTx struct {
	stock  int
	orders map[string]Order
	store  *memStore
}

func (t *memTx) LockStock(context.Context) (int, error) { return t.stock, nil }

func (t *memTx) SetStock(_ context.Context, n int) error {
	t.stock = n
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	t.orders[o.ID] = *clone(*o)
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (*Order, error) {
	o, ok := t.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return clone(o), nil
}

func (t *memTx) LockOrderByInvoice(_ context.Context, invoiceID string) (*Order, error) {
	for _, o := range t.orders {
		if o.Crypto != nil && o.Crypto.InvoiceID == invoiceID {
			return clone(o), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (t *memTx) UpdateOrder(_ context.Context, o *Order) error {
	if t.store.failUpdates > 0 {
		t.store.failUpdates--
		return errors.New("connection reset by peer")
	}
	prev, ok := t.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	next := *clone(*o)
	next.Quantity, next.Price = prev.Quantity, prev.Price
	t.orders[o.ID] = next
	return nil
}

func clone(o Order) *Order {
	if o.Crypto != nil {
		c := *o.Crypto
		o.Crypto = &c
	}
	return &o
}
