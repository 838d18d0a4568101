package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type SignalLister interface {
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
}

type StatsReader interface {
	Stats(ctx context.Context) ([]domain.StrategyStats, error)
}

// StartTelegramBot wires commands and returns the alert dispatcher the
// signal service delivers through. Returns nil when no token is set.
func StartTelegramBot(token string, signals SignalLister, stats StatsReader) *AlertDispatcher {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}

	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/signals", func(c tele.Context) error {
		filter := domain.SignalFilter{Limit: 5}
		if args := c.Args(); len(args) > 0 {
			filter.Symbol = strings.ToUpper(args[0])
		}
		list, err := signals.ListSignals(context.Background(), filter)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching signals: %v", err))
		}
		if len(list) == 0 {
			return c.Send("No recent signals.")
		}
		lines := make([]string, 0, len(list))
		for _, s := range list {
			lines = append(lines, formatSignal(s))
		}
		return c.Send(strings.Join(lines, "\n\n"))
	})

	b.Handle("/stats", func(c tele.Context) error {
		rows, err := stats.Stats(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching stats: %v", err))
		}
		if len(rows) == 0 {
			return c.Send("No completed signals yet.")
		}
		lines := make([]string, 0, len(rows))
		for _, r := range rows {
			lines = append(lines, fmt.Sprintf(
				"%s/%s: %d done, %.0f%% hit, avg %.2f%% over %.1f days",
				r.Strategy, r.ConfidenceBucket, r.Total, r.SuccessRate*100, r.AvgReturn, r.AvgHoldingDays,
			))
		}
		return c.Send(strings.Join(lines, "\n"))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on|off|status")
		}
		chatID := c.Chat().ID
		switch mode {
		case "on":
			if alerts.Subscribe(chatID) {
				return c.Send("Alerts enabled for this chat.")
			}
			return c.Send("Alerts were already enabled.")
		case "off":
			if alerts.Unsubscribe(chatID) {
				return c.Send("Alerts disabled for this chat.")
			}
			return c.Send("Alerts were not enabled.")
		default:
			if alerts.IsSubscribed(chatID) {
				return c.Send("Alerts are enabled for this chat.")
			}
			return c.Send("Alerts are disabled for this chat.")
		}
	})

	go b.Start()
	log.Println("Telegram bot started")
	return alerts
}
