package cryptopay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "1234:AAbbCC"

type memRates struct {
	mu sync.Mutex
	m  map[string][]Rate
}

func (c *memRates) Get(_ context.Context, id string) ([]Rate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[id]
	return v, ok
}

func (c *memRates) Set(_ context.Context, id string, v []Rate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]Rate{}
	}
	c.m[id] = v
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{Token: testToken, BaseURL: srv.URL, Timeout: time.Second}, nil, zap.NewNop().Sugar())
	return c, srv
}

func ratesHandler(t *testing.T, rates string, hits *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.Equal(t, "/getExchangeRates", r.URL.Path)
		assert.Equal(t, testToken, r.Header.Get("Crypto-Pay-API-Token"))
		_, _ = io.WriteString(w, `{"ok":true,"result":`+rates+`}`)
	}
}

func TestExchangeRate_Direct(t *testing.T) {
	c, _ := newTestClient(t, ratesHandler(t, `[
		{"is_valid":true,"source":"TON","target":"RUB","rate":"260.5"},
		{"is_valid":true,"source":"RUB","target":"TON","rate":"0.005"}
	]`, nil))

	got := c.ExchangeRate(context.Background(), "ton", "rub")
	assert.True(t, decimal.RequireFromString("260.5").Equal(got), got.String())
}

func TestExchangeRate_Inverse(t *testing.T) {
	c, _ := newTestClient(t, ratesHandler(t, `[
		{"is_valid":true,"source":"RUB","target":"USDT","rate":"0.0125"}
	]`, nil))

	got := c.ExchangeRate(context.Background(), "USDT", "RUB")
	assert.True(t, decimal.NewFromInt(80).Equal(got), got.String())
}

func TestExchangeRate_USDBridge(t *testing.T) {
	c, _ := newTestClient(t, ratesHandler(t, `[
		{"is_valid":true,"source":"BTC","target":"USD","rate":"60000"},
		{"is_valid":true,"source":"USD","target":"RUB","rate":"90"}
	]`, nil))

	got := c.ExchangeRate(context.Background(), "BTC", "RUB")
	assert.True(t, decimal.NewFromInt(5_400_000).Equal(got), got.String())
}

func TestExchangeRate_SkipsInvalidPairs(t *testing.T) {
	c, _ := newTestClient(t, ratesHandler(t, `[
		{"is_valid":false,"source":"TON","target":"RUB","rate":"1"}
	]`, nil))

	got := c.ExchangeRate(context.Background(), "TON", "RUB")
	assert.True(t, decimal.NewFromInt(250).Equal(got), got.String())
}

func TestExchangeRate_UnsupportedCurrencyFallsBack(t *testing.T) {
	c, _ := newTestClient(t, ratesHandler(t, `[]`, nil))

	got := c.ExchangeRate(context.Background(), "DOGE", "RUB")
	assert.True(t, decimal.NewFromInt(1).Equal(got), got.String())
}

func TestExchangeRate_ProviderDownFallsBack(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	got := c.ExchangeRate(context.Background(), "ETH", "RUB")
	assert.True(t, decimal.NewFromInt(300_000).Equal(got), got.String())
}

func TestExchangeRate_NoTokenFallsBack(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil, nil)

	got := c.ExchangeRate(context.Background(), "TRX", "RUB")
	assert.True(t, decimal.NewFromInt(25).Equal(got), got.String())
}

func TestRates_UsesCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(ratesHandler(t, `[{"is_valid":true,"source":"TON","target":"RUB","rate":"200"}]`, &hits))
	defer srv.Close()
	c := New(Config{Token: testToken, BaseURL: srv.URL}, &memRates{}, zap.NewNop().Sugar())

	for i := 0; i < 3; i++ {
		got := c.ExchangeRate(context.Background(), "TON", "RUB")
		assert.True(t, decimal.NewFromInt(200).Equal(got))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRates_SharedFetchSurvivesCallerCancel(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		_, _ = io.WriteString(w, `{"ok":true,"result":[{"is_valid":true,"source":"TON","target":"RUB","rate":"200"}]}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan decimal.Decimal, 1)
	go func() { got <- c.ExchangeRate(ctx, "TON", "RUB") }()

	<-entered
	cancel()
	close(release)

	select {
	case rate := <-got:
		assert.True(t, decimal.NewFromInt(200).Equal(rate), rate.String())
	case <-time.After(2 * time.Second):
		t.Fatal("exchange rate did not return")
	}
}

func TestCreateInvoice_Success(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/createInvoice", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, testToken, r.Header.Get("Crypto-Pay-API-Token"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TON", body["asset"])
		assert.Equal(t, "1.5", body["amount"])
		assert.Equal(t, float64(3600), body["expires_in"])
		assert.Equal(t, "Покупка Stars (Заказ #0123abcd)", body["description"])
		assert.JSONEq(t, `{"orderId":"0123abcd-0000-0000-0000-000000000000"}`, body["payload"].(string))

		_, _ = io.WriteString(w, `{"ok":true,"result":{"invoice_id":42,"status":"active","asset":"TON","amount":"1.5","bot_invoice_url":"https://t.me/CryptoBot?start=IVabc"}}`)
	})

	inv, err := c.CreateInvoice(context.Background(), decimal.RequireFromString("1.50000000"), "0123abcd-0000-0000-0000-000000000000", "ton")
	require.NoError(t, err)
	assert.Equal(t, "42", inv.ID())
	assert.Equal(t, "https://t.me/CryptoBot?start=IVabc", inv.URL())
}

func TestCreateInvoice_BelowMinimum(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called")
	})

	_, err := c.CreateInvoice(context.Background(), decimal.RequireFromString("0.5"), "o1", "USDT")
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = c.CreateInvoice(context.Background(), decimal.Zero, "o1", "TON")
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestCreateInvoice_GatewayRejects(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error":{"code":400,"name":"AMOUNT_TOO_SMALL"}}`)
	})

	_, err := c.CreateInvoice(context.Background(), decimal.NewFromInt(5), "o1", "USDT")
	assert.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "AMOUNT_TOO_SMALL")
}

func TestCreateInvoice_UpstreamErrorIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.CreateInvoice(context.Background(), decimal.NewFromInt(5), "o1", "USDT")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestCreateInvoice_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	c := New(Config{Token: testToken, BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil, nil)

	_, err := c.CreateInvoice(context.Background(), decimal.NewFromInt(5), "o1", "USDT")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestBreakerOpensAfterRepeatedOutages(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 8; i++ {
		_, err := c.CreateInvoice(context.Background(), decimal.NewFromInt(5), "o1", "USDT")
		assert.ErrorIs(t, err, ErrTransient)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"1.50000000":   "1.5",
		"0.123456789":  "0.12345679",
		"10":           "10",
		"0.0000100000": "0.00001",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(decimal.RequireFromString(in)), in)
	}
}
