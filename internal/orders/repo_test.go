package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/stars-storefront/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repo, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.Connect(ctx, dsn, 32, nil)
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return &Repo{DB: pool}, cleanup
}

func setStock(t *testing.T, pool *pgxpool.Pool, n string) {
	_, err := pool.Exec(context.Background(), `UPDATE settings SET value=$1 WHERE key=$2`, n, SettingTotalStars)
	require.NoError(t, err)
}

func TestRepo_OrderRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	o := &Order{
		ID:       "7a0c5a9e-6f1e-4a53-9d1b-4f3f6d0a1b2c",
		Buyer:    Buyer{Handle: "durov", Name: "Pavel", Avatar: "https://example.org/a.jpg"},
		Quantity: 30,
		Price:    decimal.RequireFromString("45.50"),
		Status:   StatusWaitingPayment,
		Method:   MethodCrypto,
		Crypto: &CryptoDetails{
			Currency:     "TON",
			Amount:       decimal.RequireFromString("0.182"),
			ExchangeRate: decimal.RequireFromString("250"),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.InTx(ctx, func(tx StoreTx) error { return tx.InsertOrder(ctx, o) }))

	require.NoError(t, repo.InTx(ctx, func(tx StoreTx) error {
		cur, err := tx.LockOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		cur.Crypto.InvoiceID = "42"
		cur.Crypto.InvoiceURL = "https://t.me/CryptoBot?start=IV42"
		return tx.UpdateOrder(ctx, cur)
	}))

	var got *Order
	require.NoError(t, repo.InTx(ctx, func(tx StoreTx) error {
		var err error
		got, err = tx.LockOrderByInvoice(ctx, "42")
		return err
	}))
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.Buyer, got.Buyer)
	assert.True(t, o.Price.Equal(got.Price))
	assert.Equal(t, StatusWaitingPayment, got.Status)
	assert.Equal(t, MethodCrypto, got.Method)
	assert.True(t, decimal.RequireFromString("0.182").Equal(got.Crypto.Amount))
	assert.Equal(t, "https://t.me/CryptoBot?start=IV42", got.Crypto.InvoiceURL)
	assert.WithinDuration(t, now, got.CreatedAt, time.Millisecond)

	_, err := repo.GetOrder(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = repo.GetOrder(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	list, err := repo.ListOrders(ctx, StatusWaitingPayment, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRepo_SettingsDefaults(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	stock, err := repo.StockLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)

	price, err := repo.StarPrice(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.5").Equal(price))
}

func TestRepo_ConcurrentManualOrdersNeverOverdraw(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	setStock(t, repo.DB, "100")

	svc := &Service{Store: repo}
	in := CreateOrderInput{
		Tier:   TierSelection{Stars: "9", Price: "13.5"},
		Buyer:  Buyer{Handle: "buyer"},
		Method: MethodManual,
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateOrder(context.Background(), in); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	stock, err := repo.StockLevel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11, ok)
	assert.Equal(t, 1, stock)
}

func TestRepo_ConfirmPaymentDebitsOnce(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	setStock(t, repo.DB, "100")
	ctx := context.Background()

	gw := &fakeGateway{rate: decimal.NewFromInt(250)}
	svc := &Service{Store: repo, Gateway: gw}
	o, err := svc.CreateOrder(ctx, CreateOrderInput{
		Tier:     TierSelection{Stars: "30", Price: "45"},
		Buyer:    Buyer{Handle: "buyer"},
		Method:   MethodCrypto,
		Currency: "TON",
	})
	require.NoError(t, err)

	stock, _ := repo.StockLevel(ctx)
	assert.Equal(t, 100, stock)

	_, err = svc.ConfirmPayment(ctx, o.Crypto.InvoiceID)
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, o.Crypto.InvoiceID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	stock, _ = repo.StockLevel(ctx)
	assert.Equal(t, 70, stock)
	got, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.True(t, got.StockDebited)
}
