package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"reminder-bot/internal/model"
	"reminder-bot/internal/service"
)

const addUsage = "Формат: /add &lt;когда&gt; &lt;время&gt; [интервал] &lt;описание&gt;\n" +
	"• когда: daily, weekdays, weekends, mon,wed, 2024-12-25, today, tomorrow, once:fri\n" +
	"• время: 09:00 или 09:00,18:30\n" +
	"• интервал повтора: 15m (по умолчанию 30m)\n" +
	"Пример: /add mon,wed 09:00 15m Зарядка"

const snoozeUsage = "Формат: /snooze &lt;id&gt; &lt;время&gt; &lt;минуты&gt;\n" +
	"Пример: /snooze 3 09:00 15 (от 1 до 1440 минут)"

// botAPI is the part of tgbotapi.BotAPI the bot depends on.
type botAPI interface {
	sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot routes Telegram updates to the task and reminder services.
type Bot struct {
	api         botAPI
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
	loc         *time.Location
	log         *zap.Logger
}

// NewAPI authorizes against Telegram with token.
func NewAPI(token string, log *zap.Logger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("bot authorized", zap.String("account", api.Self.UserName))
	return api, nil
}

func New(api botAPI, taskSvc *service.TaskService, reminderSvc *service.ReminderService, loc *time.Location, log *zap.Logger) *Bot {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		api:         api,
		taskSvc:     taskSvc,
		reminderSvc: reminderSvc,
		loc:         loc,
		log:         log,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error("handle message", zap.Error(err))
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "Я понимаю только команды. Загляни в /help.")
	}

	b.log.Info("command",
		zap.Int64("user", msg.From.ID),
		zap.String("command", msg.Command()),
		zap.String("args", msg.CommandArguments()),
	)
	return b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "list":
		return b.handleList(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "snooze":
		return b.handleSnooze(ctx, msg)
	case "snoozeall":
		return b.handleSnoozeAll(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я буду напоминать о делах, пока ты не отметишь их выполненными.</b>\n\n%s",
		escape(name), commandList(),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Подсказки</b>\n"+commandList()+"\n\n"+addUsage)
}

func commandList() string {
	return "• /add — новое напоминание\n" +
		"• /edit &lt;id&gt; ... — изменить напоминание\n" +
		"• /list — активные напоминания\n" +
		"• /delete &lt;id&gt; — удалить напоминание\n" +
		"• /snooze &lt;id&gt; &lt;время&gt; &lt;минуты&gt; — отложить одно напоминание\n" +
		"• /snoozeall &lt;минуты&gt; — отложить все напоминания\n" +
		"• /help — подсказки"
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	input, err := parseTaskLine(msg.CommandArguments(), b.now())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	task, err := b.taskSvc.CreateTask(ctx, msg.From.ID, input)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	b.log.Info("task created", zap.Int64("user", msg.From.ID), zap.Uint("task", task.ID))
	return b.sendText(msg.Chat.ID, "✅ Напоминание создано!\n\n"+formatTask(*task))
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	idArg, rest, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	taskID, err := parseTaskID(idArg)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID и новое расписание: /edit 3 daily 09:00 Зарядка")
	}
	input, err := parseTaskLine(rest, b.now())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	task, err := b.taskSvc.UpdateTask(ctx, msg.From.ID, taskID, input)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, "✏️ Напоминание обновлено!\n\n"+formatTask(*task))
}

func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) error {
	tasks, err := b.taskSvc.ListTasks(ctx, msg.From.ID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "Напоминаний пока нет. Добавь первое через /add.")
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Твои напоминания</b>\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks))
	for _, task := range tasks {
		sb.WriteString("\n")
		sb.WriteString(formatTask(task))
		sb.WriteString("\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 #%d %s", task.ID, shortTitle(task.Description, 24)),
				fmt.Sprintf("%s%d", cbDeletePrefix, task.ID),
			),
		))
	}
	return b.sendWithReplyMarkup(msg.Chat.ID, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID напоминания: /delete 12")
	}
	return b.deleteTask(ctx, msg.Chat.ID, msg.From.ID, taskID)
}

func (b *Bot) deleteTask(ctx context.Context, chatID, userID int64, taskID uint) error {
	task, err := b.taskSvc.DeleteTask(ctx, userID, taskID)
	if err != nil {
		return b.replyError(chatID, err)
	}
	b.log.Info("task deleted", zap.Int64("user", userID), zap.Uint("task", taskID))
	return b.sendText(chatID, fmt.Sprintf("🗑 Напоминание «%s» удалено.", escape(task.Description)))
}

func (b *Bot) handleSnooze(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, code, minutes, err := parseSnoozeArgs(msg.CommandArguments())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	if _, err := b.reminderSvc.Snooze(ctx, msg.From.ID, taskID, code, minutes); err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏸ Напоминание в %s отложено на %d минут.", codeToTime(code), minutes))
}

func (b *Bot) handleSnoozeAll(ctx context.Context, msg *tgbotapi.Message) error {
	minutes, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи, на сколько минут отложить: /snoozeall 60")
	}
	until, err := b.reminderSvc.SnoozeAll(ctx, msg.From.ID, minutes)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏸ Все напоминания отложены до %s.", until.In(b.loc).Format("15:04")))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	b.log.Info("callback", zap.Int64("user", cb.From.ID), zap.String("data", cb.Data))
	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		return b.handleDone(ctx, cb)
	case strings.HasPrefix(data, cbSnoozeOptPrefix):
		return b.handleSnoozeOption(ctx, cb)
	case strings.HasPrefix(data, cbSnoozePrefix):
		taskID, code, _, err := parseInstanceData(data, cbSnoozePrefix)
		if err != nil {
			b.answer(cb, "")
			return err
		}
		b.answer(cb, "")
		return b.editMarkup(cb.Message, snoozeKeyboard(taskID, code))
	case strings.HasPrefix(data, cbDeletePrefix):
		b.answer(cb, "")
		taskID, err := parseTaskID(strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return nil
		}
		return b.deleteTask(ctx, cb.Message.Chat.ID, cb.From.ID, taskID)
	default:
		b.answer(cb, "")
		return nil
	}
}

func (b *Bot) handleDone(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	taskID, code, _, err := parseInstanceData(cb.Data, cbDonePrefix)
	if err != nil {
		b.answer(cb, "")
		return err
	}

	res, err := b.reminderSvc.Acknowledge(ctx, cb.From.ID, taskID, code)
	switch {
	case errors.Is(err, model.ErrNotFound):
		b.answer(cb, "Напоминание уже неактуально")
		return b.editText(cb.Message, "Напоминание уже неактуально.")
	case err != nil:
		b.answer(cb, "Не получилось, попробуй ещё раз")
		return err
	case res.AlreadyCompleted:
		b.answer(cb, "Уже отмечено")
	default:
		b.answer(cb, "Готово!")
	}

	text := fmt.Sprintf("✅ Напоминание «%s» в %s выполнено!", escape(res.Task.Description), codeToTime(code))
	if res.Deleted {
		text += "\n\nРазовое напоминание удалено."
	}
	return b.editText(cb.Message, text)
}

func (b *Bot) handleSnoozeOption(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	taskID, code, option, err := parseInstanceData(cb.Data, cbSnoozeOptPrefix)
	if err != nil {
		b.answer(cb, "")
		return err
	}
	switch option {
	case snoozeOptionCancel:
		b.answer(cb, "")
		return b.editMarkup(cb.Message, reminderKeyboard(taskID, code))
	case snoozeOptionCustom:
		b.answer(cb, "")
		return b.sendText(cb.Message.Chat.ID, fmt.Sprintf(
			"⏱️ Отправь, на сколько минут отложить (1-1440):\n/snooze %d %s 15", taskID, codeToTime(code)))
	}

	minutes, err := strconv.Atoi(option)
	if err != nil {
		b.answer(cb, "")
		return fmt.Errorf("snooze option %q: %w", option, err)
	}
	if _, err := b.reminderSvc.Snooze(ctx, cb.From.ID, taskID, code, minutes); err != nil {
		b.answer(cb, "Не получилось отложить")
		if errors.Is(err, model.ErrNotFound) {
			return b.editText(cb.Message, "Напоминание уже неактуально.")
		}
		return err
	}
	b.answer(cb, "Отложено")
	return b.editText(cb.Message, fmt.Sprintf("⏸ Напоминание отложено на %d минут.", minutes))
}

// replyError explains expected failures to the user and returns the rest.
func (b *Bot) replyError(chatID int64, err error) error {
	switch {
	case errors.Is(err, errUsage):
		return b.sendText(chatID, addUsage)
	case errors.Is(err, errSnoozeUsage):
		return b.sendText(chatID, snoozeUsage)
	case errors.Is(err, model.ErrInvalidSchedule):
		return b.sendText(chatID, "⚠️ "+escape(err.Error())+"\n\n"+addUsage)
	case errors.Is(err, model.ErrNotFound):
		return b.sendText(chatID, "Напоминание не найдено.")
	default:
		if sendErr := b.sendText(chatID, "Что-то пошло не так, попробуй позже."); sendErr != nil {
			b.log.Warn("send error reply", zap.Error(sendErr))
		}
		return err
	}
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.loc)
}

func (b *Bot) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warn("callback ack", zap.Error(err))
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) editText(msg *tgbotapi.Message, text string) error {
	edit := tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Request(edit)
	return err
}

func (b *Bot) editMarkup(msg *tgbotapi.Message, markup tgbotapi.InlineKeyboardMarkup) error {
	_, err := b.api.Request(tgbotapi.NewEditMessageReplyMarkup(msg.Chat.ID, msg.MessageID, markup))
	return err
}

func formatTask(task model.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>#%d</b> %s\n", task.ID, escape(task.Description))

	times := strings.Join(task.TimeList(), ", ")
	switch {
	case task.IsOneTime && task.OneTimeDate != "" && len(task.OneTimeDate) > len("2006-01-02"):
		fmt.Fprintf(&sb, "📅 %s", escape(task.OneTimeDate))
	case task.IsOneTime && task.OneTimeDate != "":
		fmt.Fprintf(&sb, "📅 %s %s", escape(task.OneTimeDate), times)
	case task.IsOneTime:
		fmt.Fprintf(&sb, "📅 разово, %s %s", formatDays(task.DayList()), times)
	default:
		fmt.Fprintf(&sb, "📅 %s · ⏰ %s", formatDays(task.DayList()), times)
	}
	fmt.Fprintf(&sb, " · 🔁 каждые %d мин", task.IntervalMinutes)
	return sb.String()
}

func shortTitle(title string, maxLen int) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
