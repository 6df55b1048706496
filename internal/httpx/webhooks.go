package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/stars-storefront/internal/cryptopay"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"io"
	"net/http"
	"time"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type ackResp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// cryptoWebhook verifies the signature over the raw body before decoding it.
func (h *Handler) cryptoWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, h.log(), fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if h.Payments == nil || !h.Payments.VerifyWebhookSignature(r.Header.Get(cryptopay.SignatureHeader), body) {
		h.log().Warnw("webhook signature rejected", "remote", r.RemoteAddr)
		writeError(w, h.log(), errInvalidSignature)
		return
	}

	upd, err := cryptopay.ParseWebhook(body)
	if err != nil {
		writeError(w, h.log(), fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if !upd.IsPaid() {
		writeJSON(w, http.StatusOK, ackResp{Success: true, Message: "ignored: not a payment confirmation"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, err = h.Orders.ConfirmPayment(ctx, upd.Payload.ID())
	switch {
	case errors.Is(err, orders.ErrAlreadyProcessed):
		writeJSON(w, http.StatusOK, ackResp{Success: true, Message: "already processed"})
	case err != nil:
		writeError(w, h.log(), err)
	default:
		writeJSON(w, http.StatusOK, ackResp{Success: true})
	}
}

func (h *Handler) telegramWebhook(w http.ResponseWriter, r *http.Request) {
	if h.TelegramSecret != "" {
		got := r.Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.TelegramSecret)) != 1 {
			writeError(w, h.log(), errInvalidSignature)
			return
		}
	}
	var upd tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&upd); err != nil {
		writeError(w, h.log(), fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if h.Telegram == nil {
		writeJSON(w, http.StatusOK, ackResp{Success: true, Message: "ignored"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Telegram.Handle(ctx, upd); err != nil {
		writeError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, ackResp{Success: true})
}
