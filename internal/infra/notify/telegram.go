package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var _ Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier pushes ops alerts to a fixed chat. Delivery is
// best-effort: a down notifier must never fail payment processing.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	nLog := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: chatID, log: &nLog}, nil
}

func (n *TelegramNotifier) Alert(ctx context.Context, message string) {
	n.send("ALERT: " + message)
}

func (n *TelegramNotifier) Summary(ctx context.Context, message string) {
	n.send(message)
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Msg("notification send failed")
	}
}
