// Package notify delivers dispatch outcomes to an optional Telegram chat.
// Delivery is best-effort: failures are logged and dropped, never allowed
// to affect scheduling.
package notify

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"pingwatch/internal/config"
	"pingwatch/pkg/logx"
)

const defaultRatePerMin = 6

// Telegram sends outcome messages to a single chat, rate limited so a
// misbehaving schedule cannot flood the chat.
type Telegram struct {
	bot     *tele.Bot
	chat    *tele.Chat
	limiter *rate.Limiter
	log     logx.Logger
}

// NewTelegram builds the notifier from config. Returns (nil, nil) when the
// notifier is disabled. The bot is created send-only and offline, so
// construction never performs a network round-trip.
func NewTelegram(cfg *config.NotifyConfig, log logx.Logger) (*Telegram, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}

	rpm := cfg.RatePerMin
	if rpm <= 0 {
		rpm = defaultRatePerMin
	}
	lim := rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)

	return &Telegram{
		bot:     bot,
		chat:    &tele.Chat{ID: cfg.ChatID},
		limiter: lim,
		log:     log,
	}, nil
}

// Notify sends msg to the configured chat. Rate-limited or failed sends
// are dropped.
func (t *Telegram) Notify(ctx context.Context, msg string) {
	if t == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if !t.limiter.Allow() {
		t.log.Debug("notification dropped by rate limiter")
		return
	}
	if _, err := t.bot.Send(t.chat, msg); err != nil {
		t.log.Warn("telegram notification failed", logx.Err(err))
	}
}
