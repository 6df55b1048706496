package telegram

import (
	"context"
	"errors"
	"fmt"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"net"
	"net/http"
	"time"
)

var ErrTransient = errors.New("telegram temporarily unavailable")

// Bot is the part of *tgbotapi.BotAPI used here.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// NewBot connects to the Bot API. endpoint is a printf pattern taking the
// token and the method name; every call is bounded by timeout.
func NewBot(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

// send runs c until ctx is done. The Bot API client takes no context, so an
// abandoned call finishes in the background under the client timeout.
func send(ctx context.Context, bot Bot, c tgbotapi.Chattable) error {
	done := make(chan error, 1)
	go func() {
		_, err := bot.Send(c)
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("telegram send: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTransient, ctx.Err())
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
}
