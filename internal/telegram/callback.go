package telegram

import (
	"context"
	"errors"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"strings"
)

const (
	completedMark      = "*СТАТУС: ✅ ВЫПОЛНЕН*"
	plainCompletedMark = "СТАТУС: ✅ ВЫПОЛНЕН"
)

type Fulfiller interface {
	MarkFulfilled(ctx context.Context, orderID string) (*orders.Order, error)
}

// CallbackHandler reacts to the operator pressing the complete button.
type CallbackHandler struct {
	Bot    Bot
	ChatID int64
	Orders Fulfiller
	Log    *zap.SugaredLogger
}

// Handle processes one update. Updates that are not ours are ignored; only
// internal failures are returned so the Bot API retries them.
func (h *CallbackHandler) Handle(ctx context.Context, u tgbotapi.Update) error {
	q := u.CallbackQuery
	if q == nil || !strings.HasPrefix(q.Data, CompleteOrderPrefix) {
		return nil
	}
	if q.Message == nil || q.Message.Chat == nil || q.Message.Chat.ID != h.ChatID {
		h.Log.Warnw("callback from foreign chat ignored", "callback_id", q.ID)
		h.answer(q.ID, "Нет доступа")
		return nil
	}

	orderID := strings.TrimPrefix(q.Data, CompleteOrderPrefix)
	o, err := h.Orders.MarkFulfilled(ctx, orderID)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		h.answer(q.ID, "Заказ не найден")
		return nil
	case errors.Is(err, orders.ErrInvalidTransition):
		h.answer(q.ID, "Заказ нельзя отметить выполненным")
		return nil
	case errors.Is(err, orders.ErrInsufficientStock):
		h.answer(q.ID, "Недостаточно звёзд на складе")
		return nil
	case err != nil:
		h.answer(q.ID, "Ошибка, попробуйте ещё раз")
		return err
	}

	if strings.Contains(q.Message.Text, plainCompletedMark) {
		h.answer(q.ID, "Заказ уже выполнен")
		return nil
	}
	text := EscapeMarkdownV2(q.Message.Text) + "\n\n" + completedMark
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	if err := send(ctx, h.Bot, edit); err != nil {
		h.Log.Warnw("edit operator message failed", "order_id", o.ID, "error", err)
	}
	h.answer(q.ID, "Статус заказа обновлен!")
	return nil
}

func (h *CallbackHandler) answer(id, text string) {
	if _, err := h.Bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		h.Log.Warnw("answer callback failed", "callback_id", id, "error", err)
	}
}
