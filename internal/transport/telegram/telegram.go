// Package telegram is an alternate delivery channel: rules whose address is
// a Telegram chat id get their reminders as bot messages instead of WhatsApp.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "waremind/pkg/logx"
)

type Config struct {
	Token string
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// No poller: this adapter only sends.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Adapter{bot: b, log: log}, nil
}

func (a *Adapter) Send(ctx context.Context, address, text string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(address), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: address %q is not a chat id: %w", address, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.bot.Send(&tele.Chat{ID: id}, text); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", id, err)
	}
	a.log.Debug("message sent", logx.Int64("chat_id", id))
	return nil
}

func (a *Adapter) Close(ctx context.Context) error { return nil }
