package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"reminder-bot/internal/model"
)

const (
	cbDonePrefix       = "done:"
	cbSnoozePrefix     = "snooze:"
	cbSnoozeOptPrefix  = "snoozeopt:"
	cbDeletePrefix     = "delete:"
	snoozeOptionCancel = "cancel"
	snoozeOptionCustom = "custom"
)

// sender is the part of tgbotapi.BotAPI used to talk to chats.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier delivers reminders to the user's private chat.
type Notifier struct {
	api sender
	log *zap.Logger
}

func NewNotifier(api sender, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{api: api, log: log}
}

// Send posts the reminder with Done and Snooze buttons.
func (n *Notifier) Send(ctx context.Context, userID int64, task model.Task, instanceTime string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	code := strings.ReplaceAll(instanceTime, ":", "")

	msg := tgbotapi.NewMessage(userID, reminderText(task, instanceTime))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = reminderKeyboard(task.ID, code)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	n.log.Info("reminder sent", zap.Int64("user", userID), zap.Uint("task", task.ID), zap.String("time", instanceTime))
	return nil
}

func reminderText(task model.Task, instanceTime string) string {
	return fmt.Sprintf("⏰ <b>Напоминание</b>\n\n📝 %s\n🕒 Время: %s", escape(task.Description), instanceTime)
}

func reminderKeyboard(taskID uint, code string) tgbotapi.InlineKeyboardMarkup {
	payload := fmt.Sprintf("%d:%s", taskID, code)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Выполнено", cbDonePrefix+payload),
			tgbotapi.NewInlineKeyboardButtonData("⏰ Отложить", cbSnoozePrefix+payload),
		),
	)
}

func snoozeKeyboard(taskID uint, code string) tgbotapi.InlineKeyboardMarkup {
	payload := fmt.Sprintf("%s%d:%s:", cbSnoozeOptPrefix, taskID, code)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("30 минут", payload+"30"),
			tgbotapi.NewInlineKeyboardButtonData("1 час", payload+"60"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Своё время", payload+snoozeOptionCustom),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Отмена", payload+snoozeOptionCancel),
		),
	)
}
