package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/stars-storefront/internal/cryptopay"
	"github.com/ariefcatur/stars-storefront/internal/lookup"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	"github.com/ariefcatur/stars-storefront/internal/telegram"
	"go.uber.org/zap"
	"net/http"
)

var (
	errBadRequest       = errors.New("malformed request")
	errInvalidSignature = errors.New("invalid signature")
	errNotFound         = errors.New("not found")
)

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Messages of upstream and
// internal failures are never sent to the client.
func writeError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	status, code, msg := classify(err)
	if status >= 500 {
		log.Errorw("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, errorBody{Code: code, Error: msg})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, orders.ErrBelowMinimumAmount):
		return http.StatusBadRequest, "below_minimum_amount", err.Error()
	case errors.Is(err, orders.ErrValidation), errors.Is(err, lookup.ErrInvalidHandle), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock", "К сожалению, столько звёзд уже нет в наличии."
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, errNotFound):
		return http.StatusNotFound, "not_found", "order not found"
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", err.Error()
	case errors.Is(err, errInvalidSignature):
		return http.StatusForbidden, "invalid_signature", "invalid signature"
	case errors.Is(err, orders.ErrCriticalStockShortage):
		return http.StatusInternalServerError, "critical_stock_shortage", "payment received but stock is exhausted"
	case errors.Is(err, cryptopay.ErrTransient), errors.Is(err, lookup.ErrTransient),
		errors.Is(err, telegram.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "transient_error", "upstream temporarily unavailable, retry later"
	case errors.Is(err, cryptopay.ErrGateway), errors.Is(err, cryptopay.ErrNotConfigured), errors.Is(err, lookup.ErrLookup):
		return http.StatusBadGateway, "upstream_error", "upstream service error"
	}
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

const maxBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
