package telegram

import (
	"context"
	"fmt"
	"github.com/ariefcatur/stars-storefront/internal/orders"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"strings"
	"time"
)

const (
	CompleteOrderPrefix = "complete_order_"
	completeButtonText  = "✅ Выполнено"
	timeLayout          = "02.01.2006, 15:04:05"
)

// Notifier posts order messages to the operator chat.
type Notifier struct {
	Bot      Bot
	ChatID   int64
	Location *time.Location
	Log      *zap.SugaredLogger
}

// NewNotifier resolves tz, falling back to UTC when it is unknown.
func NewNotifier(bot Bot, chatID int64, tz string, log *zap.SugaredLogger) *Notifier {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warnw("unknown timezone, using UTC", "tz", tz, "error", err)
		loc = time.UTC
	}
	return &Notifier{Bot: bot, ChatID: chatID, Location: loc, Log: log}
}

func (n *Notifier) Notify(ctx context.Context, note orders.Notification) error {
	if n.Bot == nil || n.ChatID == 0 {
		n.Log.Warnw("telegram not configured, notification skipped", "order_id", note.Order.ID, "variant", note.Variant)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.ChatID, n.Format(note))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if !note.Order.Status.Terminal() {
		msg.ReplyMarkup = CompleteKeyboard(note.Order.ID)
	}
	if err := send(ctx, n.Bot, msg); err != nil {
		return err
	}
	n.Log.Infow("operator notified", "order_id", note.Order.ID, "variant", note.Variant)
	return nil
}

func CompleteKeyboard(orderID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(completeButtonText, CompleteOrderPrefix+orderID),
		),
	)
}

// Format renders the MarkdownV2 body for a notification.
func (n *Notifier) Format(note orders.Notification) string {
	o := note.Order
	p := message.NewPrinter(language.Russian)
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	switch note.Variant {
	case orders.VariantManualPending:
		b.WriteString("*Новый заказ\\!* 🛒\n\n")
	case orders.VariantCryptoPaid:
		b.WriteString("*Заказ оплачен\\!* 💰\n\n")
	default:
		b.WriteString("*⚠️ Заказ требует внимания\\!*\n\n")
	}

	handle := o.Buyer.Handle
	name := o.Buyer.Name
	if name == "" {
		name = handle
	}
	fmt.Fprintf(&b, "*Пользователь:* [%s](%s) \\(`@%s`\\)\n",
		EscapeMarkdownV2(name), EscapeLinkURL("https://t.me/"+handle), EscapeCode(handle))
	fmt.Fprintf(&b, "*Заказ:* *%s* ⭐️ за *%s* ₽\n",
		EscapeMarkdownV2(p.Sprintf("%d", o.Quantity)), EscapeMarkdownV2(o.Price.StringFixed(2)))
	fmt.Fprintf(&b, "*Способ оплаты:* %s\n", EscapeMarkdownV2(methodLabel(o)))
	if o.Crypto != nil && note.Variant == orders.VariantCryptoPaid {
		fmt.Fprintf(&b, "*Получено:* %s %s\n",
			EscapeMarkdownV2(o.Crypto.Amount.String()), EscapeMarkdownV2(o.Crypto.Currency))
	}
	if note.Variant == orders.VariantGeneric {
		fmt.Fprintf(&b, "*Статус:* %s\n", EscapeMarkdownV2(string(o.Status)))
	}
	fmt.Fprintf(&b, "*ID заказа:* `%s`\n", EscapeCode(o.ID))
	fmt.Fprintf(&b, "*Время:* %s", EscapeMarkdownV2(o.CreatedAt.In(loc).Format(timeLayout)))
	return b.String()
}

func methodLabel(o orders.Order) string {
	switch o.Method {
	case orders.MethodCrypto:
		if o.Crypto != nil && o.Crypto.Currency != "" {
			return "CryptoBot (" + o.Crypto.Currency + ")"
		}
		return "CryptoBot"
	case orders.MethodManual:
		return "Карта / СБП"
	}
	return string(o.Method)
}
