package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://pay.crypt.bot/api"

type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// RateCache stores the last good rate list. redisx.JSONCache satisfies it.
type RateCache interface {
	Get(ctx context.Context, id string) ([]Rate, bool)
	Set(ctx context.Context, id string, v []Rate)
}

// Client talks to the Crypto Pay API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	group   singleflight.Group
	rates   RateCache
	log     *zap.SugaredLogger
}

func New(cfg Config, rates RateCache, log *zap.SugaredLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Client{
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		rates:   rates,
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "cryptopay",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// only upstream outages count against the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

type apiError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error,omitempty"`
}

// call runs one API method through the breaker and decodes result into out.
func (c *Client) call(ctx context.Context, method, apiMethod string, body any, out any) error {
	if c.token == "" {
		return ErrNotConfigured
	}
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, method, apiMethod, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", ErrTransient, apiMethod, err)
	}
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrGateway, apiMethod, err)
	}
	if !env.OK {
		name := "unknown"
		if env.Error != nil {
			name = env.Error.Name
		}
		return fmt.Errorf("%w: %s: %s", ErrGateway, apiMethod, name)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: %s: decode result: %v", ErrGateway, apiMethod, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, apiMethod string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+apiMethod, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTransient, apiMethod, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrTransient, apiMethod, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrTransient, apiMethod, resp.StatusCode)
	}
	// 4xx still carries the {ok:false,error:{...}} envelope
	if resp.StatusCode >= 300 && len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrGateway, apiMethod, resp.StatusCode)
	}
	return raw, nil
}
