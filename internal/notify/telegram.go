// Package notify delivers reminder notifications to staff.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"moiport/entity"
	"moiport/internal/lib/sl"
)

// TelegramNotifier posts reminder notifications to the agency's Telegram
// operations channel.
type TelegramNotifier struct {
	api    *tgbotapi.Bot
	chatId int64
	log    *slog.Logger
}

func NewTelegramNotifier(apiKey string, chatId int64, log *slog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %w", err)
	}

	return &TelegramNotifier{
		api:    api,
		chatId: chatId,
		log:    log.With(sl.Module("notify.telegram")),
	}, nil
}

func (n *TelegramNotifier) Notify(user *entity.User, activity entity.CrmActivity) error {
	text := fmt.Sprintf("Hatırlatma: %s\n%s", user.Name, activity.Content)
	if activity.ReminderDate != nil {
		text = fmt.Sprintf("%s\n(%s)", text, activity.ReminderDate.Format("02.01.2006 15:04"))
	}

	_, err := n.api.SendMessage(n.chatId, text, nil)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	n.log.Debug("reminder dispatched",
		slog.String("activity_id", activity.ID),
		slog.String("user_id", user.ID),
	)
	return nil
}

// LogNotifier is the fallback dispatcher when no Telegram channel is
// configured; reminders are only written to the log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(sl.Module("notify.log"))}
}

func (n *LogNotifier) Notify(user *entity.User, activity entity.CrmActivity) error {
	n.log.Info("reminder due",
		slog.String("activity_id", activity.ID),
		slog.String("user_id", user.ID),
		slog.String("content", activity.Content),
	)
	return nil
}
