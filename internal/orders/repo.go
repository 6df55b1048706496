package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"strconv"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderColumns = `id, buyer_handle, buyer_name, buyer_avatar, quantity, price::text, status,
	payment_method, crypto_currency, crypto_amount::text, exchange_rate::text, invoice_id, invoice_url,
	stock_debited, created_at, updated_at`

// InTx runs fn in one transaction; any error from fn rolls everything back.
func (r *Repo) InTx(ctx context.Context, fn func(tx StoreTx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&repoTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *Repo) StockLevel(ctx context.Context) (int, error) {
	return stockFrom(r.DB.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, SettingTotalStars))
}

func (r *Repo) StarPrice(ctx context.Context) (decimal.Decimal, error) {
	var v string
	err := r.DB.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, SettingStarPrice).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(v)
}

// ListOrders returns the most recent orders first, optionally by status.
func (r *Repo) ListOrders(ctx context.Context, status Status, limit int) ([]Order, error) {
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status=$1 ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

type repoTx struct{ tx pgx.Tx }

// LockStock reads the counter with FOR UPDATE so concurrent writers queue up.
func (t *repoTx) LockStock(ctx context.Context) (int, error) {
	return stockFrom(t.tx.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1 FOR UPDATE`, SettingTotalStars))
}

func (t *repoTx) SetStock(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("refusing to store negative stock %d", n)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO settings(key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		SettingTotalStars, strconv.Itoa(n))
	return err
}

func (t *repoTx) InsertOrder(ctx context.Context, o *Order) error {
	c := cryptoArgs(o)
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, buyer_handle, buyer_name, buyer_avatar, quantity, price, status, payment_method,
		                   crypto_currency, crypto_amount, exchange_rate, invoice_id, invoice_url,
		                   stock_debited, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6::numeric,$7,$8,$9,$10::numeric,$11::numeric,$12,$13,$14,$15,$16)`,
		o.ID, o.Buyer.Handle, o.Buyer.Name, o.Buyer.Avatar, o.Quantity, o.Price.String(), string(o.Status), string(o.Method),
		c.currency, c.amount, c.rate, c.invoiceID, c.invoiceURL,
		o.StockDebited, o.CreatedAt, o.UpdatedAt)
	return err
}

func (t *repoTx) LockOrder(ctx context.Context, id string) (*Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *repoTx) LockOrderByInvoice(ctx context.Context, invoiceID string) (*Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE invoice_id=$1 FOR UPDATE`, invoiceID))
}

// UpdateOrder writes the mutable columns only; quantity and price stay as inserted.
func (t *repoTx) UpdateOrder(ctx context.Context, o *Order) error {
	c := cryptoArgs(o)
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders
		   SET status=$2, crypto_currency=$3, crypto_amount=$4::numeric, exchange_rate=$5::numeric,
		       invoice_id=$6, invoice_url=$7, stock_debited=$8, updated_at=$9
		 WHERE id=$1`,
		o.ID, string(o.Status), c.currency, c.amount, c.rate, c.invoiceID, c.invoiceURL, o.StockDebited, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}

type cryptoCols struct {
	currency, amount, rate, invoiceID, invoiceURL *string
}

func cryptoArgs(o *Order) cryptoCols {
	if o.Crypto == nil {
		return cryptoCols{}
	}
	str := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	return cryptoCols{
		currency:   str(o.Crypto.Currency),
		amount:     str(o.Crypto.Amount.String()),
		rate:       str(o.Crypto.ExchangeRate.String()),
		invoiceID:  str(o.Crypto.InvoiceID),
		invoiceURL: str(o.Crypto.InvoiceURL),
	}
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                                   Order
		price, status, method               string
		currency, amount, rate, inv, invURL *string
	)
	err := row.Scan(&o.ID, &o.Buyer.Handle, &o.Buyer.Name, &o.Buyer.Avatar, &o.Quantity, &price, &status,
		&method, &currency, &amount, &rate, &inv, &invURL, &o.StockDebited, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		// malformed uuid in a lookup is just an unknown order
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if o.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("order %s: price: %w", o.ID, err)
	}
	if o.Status, err = ParseStatus(status); err != nil {
		return nil, err
	}
	o.Method = PaymentMethod(method)
	if currency != nil {
		o.Crypto = &CryptoDetails{Currency: *currency}
		if amount != nil {
			o.Crypto.Amount, _ = decimal.NewFromString(*amount)
		}
		if rate != nil {
			o.Crypto.ExchangeRate, _ = decimal.NewFromString(*rate)
		}
		if inv != nil {
			o.Crypto.InvoiceID = *inv
		}
		if invURL != nil {
			o.Crypto.InvoiceURL = *invURL
		}
	}
	return &o, nil
}

func stockFrom(row pgx.Row) (int, error) {
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", SettingTotalStars, err)
	}
	return int(d.IntPart()), nil
}
