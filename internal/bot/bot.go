package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"momentum/internal/common"
	"momentum/internal/config"
	"momentum/internal/datex"
	"momentum/internal/event"
	"momentum/internal/model"
	"momentum/internal/repository"
	"momentum/internal/service"
)

const (
	notificationsShown = 10
	statsDefaultDays   = 30
	statsMaxDays       = 366
)

type confirmationRequest struct {
	taskID string
	title  string
}

// Services bundles everything the bot talks to.
type Services struct {
	Tasks      *service.TaskService
	Progress   *service.ProgressService
	Milestones *service.MilestoneService
	Analytics  *service.AnalyticsService
	Categories *service.CategoryService
	Reminders  *service.ReminderService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	svc           Services
	bus           *event.Bus
	config        *config.Config
	log           *zap.Logger
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	limiters      map[int64]*rate.Limiter
	mu            sync.Mutex
}

func New(cfg *config.Config, userRepo *repository.UserRepository, svc Services, bus *event.Bus, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("bot authorized", zap.String("account", api.Self.UserName))

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		svc:           svc,
		bus:           bus,
		config:        cfg,
		log:           log,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		limiters:      make(map[int64]*rate.Limiter),
	}, nil
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
	go b.pushEvents(ctx)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Warn("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Warn("handle message", zap.Int64("chat", update.Message.Chat.ID), zap.Error(err))
			}
		}
	}

	return nil
}

// pushEvents forwards milestone achievements to the user's chat.
func (b *Bot) pushEvents(ctx context.Context) {
	ch := b.bus.Subscribe()
	defer b.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Type != event.MilestoneAchieved {
				continue
			}
			user, err := b.userRepo.FindByID(ctx, e.UserID)
			if err != nil {
				b.log.Warn("milestone push: find user", zap.Uint("user", e.UserID), zap.Error(err))
				continue
			}
			if err := b.sendText(ctx, user.TelegramID, renderMilestonePush(e)); err != nil {
				b.log.Warn("milestone push: send", zap.Int64("chat", user.TelegramID), zap.Error(err))
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(ctx, msg.Chat.ID, "⏪ Cancelled. Ready when you are.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Debug("command", zap.Int64("from", msg.From.ID), zap.String("command", msg.Command()), zap.String("args", msg.CommandArguments()))
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(ctx, msg.Chat.ID, "I didn't get that. Send /newtask to add a task or /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "streak":
		return b.handleStreak(ctx, msg)
	case "milestones":
		return b.handleMilestones(ctx, msg)
	case "notifications":
		return b.handleNotifications(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "settings":
		return b.handleSettings(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(ctx, msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendText(ctx, msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelStreak):
		return true, b.handleStreak(ctx, msg)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(ctx, msg)
	default:
		return false, nil
	}
}

const helpText = "• /newtask: add a task step by step\n" +
	"• /today: today's checklist, tap to mark done\n" +
	"• /tasks: all tasks with delete buttons\n" +
	"• /delete &lt;id&gt;: delete by the short id from /tasks\n" +
	"• /streak: current streak and freeze tokens\n" +
	"• /milestones: unlocked and upcoming milestones\n" +
	"• /notifications: milestone notifications\n" +
	"• /stats [days|week]: badge statistics\n" +
	"• /categories: your categories\n" +
	"• /report: the daily report right now\n" +
	"• /settings: timezone, tokens and clock format\n" +
	"• /cancel: abort the current input"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>Plan your days, tick them off and keep the streak alive.</b>\n"+
		"Finish every task of a day for a 🥇 gold badge. Gold days build your streak.\n\n%s",
		escape(name), helpText)
	return b.sendText(ctx, msg.Chat.ID, text)
}

func (b *Bot) handleHelp(ctx context.Context, msg *tgbotapi.Message) error {
	return b.sendText(ctx, msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+helpText)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.svc.Reminders.DailyReport(ctx, *user)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't build the report", err))
	}
	return b.sendText(ctx, msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.clearConfirmation(msg.From.ID)
	state, first := newConversation()
	b.setConversation(msg.From.ID, state)
	return b.sendWithReplyMarkup(ctx, msg.Chat.ID, first.prompt, keyboardFor(first.keyboard))
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	next, err := state.apply(msg.Text, b.today(user))
	var inputErr *inputError
	if errors.As(err, &inputErr) {
		return b.sendWithReplyMarkup(ctx, msg.Chat.ID, inputErr.msg, keyboardFor(inputErr.keyboard))
	}
	if err != nil {
		b.clearConversation(msg.From.ID)
		return err
	}
	if !next.done {
		return b.sendWithReplyMarkup(ctx, msg.Chat.ID, next.prompt, keyboardFor(next.keyboard))
	}

	b.clearConversation(msg.From.ID)
	return b.finishTaskCreation(ctx, msg.Chat.ID, user, state.draft)
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, user *model.User, draft service.TaskDraft) error {
	created, err := b.svc.Tasks.CreateTask(ctx, user.ID, draft)
	if err != nil {
		return b.sendTextWithRemove(ctx, chatID, userMessage("Couldn't save the task", err))
	}
	b.log.Info("task created",
		zap.Uint("user", user.ID),
		zap.String("task", created.Task.ID),
		zap.Int("occurrences", len(created.Occurrences)),
		zap.Int("conflicts", len(created.Conflicts)))
	return b.sendTextWithRemove(ctx, chatID, renderCreated(created, user.Use12HourClock))
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, markup, err := b.dayView(ctx, user, b.today(user))
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't load the day", err))
	}
	return b.sendWithReplyMarkup(ctx, msg.Chat.ID, text, markup)
}

func (b *Bot) dayView(ctx context.Context, user *model.User, date string) (string, tgbotapi.InlineKeyboardMarkup, error) {
	occs, err := b.svc.Tasks.OccurrencesForDate(ctx, user.ID, date)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	r, err := b.svc.Progress.Rate(ctx, user.ID, date)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	text, markup := renderDay(date, occs, r, user.Use12HourClock)
	return text, markup, nil
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tasks, err := b.svc.Tasks.ListTasks(ctx, user.ID)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't load tasks", err))
	}
	catNames, err := b.svc.Categories.Names(ctx, user.ID)
	if err != nil {
		return err
	}
	text, markup := renderTaskList(tasks, catNames)
	if len(markup.InlineKeyboard) == 0 {
		return b.sendText(ctx, msg.Chat.ID, text)
	}
	return b.sendWithReplyMarkup(ctx, msg.Chat.ID, text, markup)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	prefix := strings.TrimSpace(msg.CommandArguments())
	if prefix == "" {
		return b.sendText(ctx, msg.Chat.ID, "Give the task id from /tasks, e.g. <code>/delete 3f2a91c0</code>.")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tasks, err := b.svc.Tasks.ListTasks(ctx, user.ID)
	if err != nil {
		return err
	}

	matches := matchTasks(tasks, prefix)
	switch len(matches) {
	case 0:
		return b.sendText(ctx, msg.Chat.ID, "No task with that id.")
	case 1:
		return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From.ID, matches[0])
	default:
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("%d tasks start with that id. Give a few more characters.", len(matches)))
	}
}

func matchTasks(tasks []model.Task, prefix string) []model.Task {
	prefix = strings.ToLower(prefix)
	var out []model.Task
	for _, task := range tasks {
		if strings.HasPrefix(strings.ToLower(task.ID), prefix) {
			out = append(out, task)
		}
	}
	return out
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID, fromID int64, task model.Task) error {
	title := normalizeTitle(task.Title)
	b.setConfirmation(fromID, confirmationRequest{taskID: task.ID, title: title})
	prompt := fmt.Sprintf("🗑 Delete \"%s\" and all its scheduled dates? Past progress is kept.", escape(title))
	return b.sendWithReplyMarkup(ctx, chatID, prompt, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		if err := b.svc.Tasks.DeleteTask(ctx, user.ID, req.taskID); err != nil {
			return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't delete the task", err))
		}
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("🗑 \"%s\" deleted.", escape(req.title)))
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(ctx, msg.Chat.ID)
	default:
		return b.sendWithReplyMarkup(ctx, msg.Chat.ID, "Confirm or cancel the deletion.", confirmKeyboard())
	}
}

func (b *Bot) handleStreak(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	st, err := b.svc.Progress.GetStreak(ctx, user.ID)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't load the streak", err))
	}
	p, err := b.svc.Milestones.Progress(ctx, user.ID)
	if err != nil {
		return err
	}
	return b.sendText(ctx, msg.Chat.ID, renderStreak(st, p))
}

func (b *Bot) handleMilestones(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	statuses, err := b.svc.Milestones.GetAllMilestones(ctx, user.ID)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't load milestones", err))
	}
	return b.sendText(ctx, msg.Chat.ID, renderMilestones(statuses))
}

func (b *Bot) handleNotifications(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, markup, err := b.notificationsView(ctx, user.ID)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't load notifications", err))
	}
	if len(markup.InlineKeyboard) == 0 {
		return b.sendText(ctx, msg.Chat.ID, text)
	}
	return b.sendWithReplyMarkup(ctx, msg.Chat.ID, text, markup)
}

func (b *Bot) notificationsView(ctx context.Context, userID uint) (string, tgbotapi.InlineKeyboardMarkup, error) {
	items, err := b.svc.Milestones.Notifications(ctx, userID, notificationsShown)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	unread, err := b.svc.Milestones.UnreadCount(ctx, userID)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	text, markup := renderNotifications(items, unread)
	return text, markup, nil
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	to := b.today(user)
	from, err := statsFrom(msg.CommandArguments(), to)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("Give a number of days between 1 and %d or \"week\", e.g. /stats 7.", statsMaxDays))
	}
	overview, err := b.svc.Analytics.Overview(ctx, user.ID, from, to)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't build stats", err))
	}
	return b.sendText(ctx, msg.Chat.ID, renderStats(overview))
}

// statsFrom resolves the first day of the stats range ending on today.
// "week" means the calendar week starting Monday.
func statsFrom(args, today string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(args), "week") {
		t, err := datex.ParseDate(today)
		if err != nil {
			return "", err
		}
		return datex.FormatDate(datex.WeekStart(t, time.Monday)), nil
	}
	days, err := parseStatsDays(args)
	if err != nil {
		return "", err
	}
	return datex.AddDays(today, -(days - 1))
}

func parseStatsDays(args string) (int, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return statsDefaultDays, nil
	}
	days, err := strconv.Atoi(args)
	if err != nil {
		return 0, err
	}
	if days < 1 || days > statsMaxDays {
		return 0, fmt.Errorf("days out of range: %d", days)
	}
	return days, nil
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	categories, err := b.svc.Categories.List(ctx, user.ID)
	if err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't load categories", err))
	}
	if len(categories) == 0 {
		return b.sendText(ctx, msg.Chat.ID, "No categories yet. They are created when you name one in /newtask.")
	}
	var sb strings.Builder
	sb.WriteString("📂 <b>Categories</b>\n")
	for _, c := range categories {
		sb.WriteString("• " + escape(c.Name) + "\n")
	}
	return b.sendText(ctx, msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleSettings(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(ctx, msg.Chat.ID, renderSettings(user))
	}

	tz, tokens, use12 := user.Timezone, user.FreezeTokensPerMonth, user.Use12HourClock
	switch strings.ToLower(args[0]) {
	case "tz", "timezone":
		if _, err := time.LoadLocation(args[1]); err != nil {
			return b.sendText(ctx, msg.Chat.ID, "Unknown timezone. Use an IANA name like <code>Europe/Berlin</code>.")
		}
		tz = args[1]
	case "tokens":
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 || n > b.config.MaxFreezeTokens {
			return b.sendText(ctx, msg.Chat.ID, fmt.Sprintf("Tokens per month must be between 0 and %d.", b.config.MaxFreezeTokens))
		}
		tokens = n
	case "clock":
		switch strings.ToLower(args[1]) {
		case "12h", "12":
			use12 = true
		case "24h", "24":
			use12 = false
		default:
			return b.sendText(ctx, msg.Chat.ID, "Clock must be 12h or 24h.")
		}
	default:
		return b.sendText(ctx, msg.Chat.ID, renderSettings(user))
	}

	if err := b.userRepo.UpdateSettings(ctx, user.ID, tz, tokens, use12); err != nil {
		return b.sendText(ctx, msg.Chat.ID, userMessage("Couldn't save settings", err))
	}
	updated, err := b.userRepo.FindByID(ctx, user.ID)
	if err != nil {
		return err
	}
	return b.sendText(ctx, msg.Chat.ID, "✅ Saved.\n\n"+renderSettings(updated))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	data := cb.Data
	chatID, messageID := cb.Message.Chat.ID, cb.Message.MessageID
	b.log.Debug("callback", zap.Int64("from", cb.From.ID), zap.String("data", data))

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		b.ack(cb.ID, "")
		return err
	}

	switch {
	case strings.HasPrefix(data, callbackToggle):
		occ, err := b.svc.Tasks.ToggleOccurrence(ctx, user.ID, strings.TrimPrefix(data, callbackToggle))
		if err != nil {
			b.ack(cb.ID, "Couldn't update the task")
			if errors.Is(err, common.ErrNotFound) {
				return nil
			}
			return err
		}
		if _, err := b.svc.Progress.RecalculateDailyBadge(ctx, user.ID, occ.ScheduledDate); err != nil {
			b.log.Warn("recalculate badge", zap.Uint("user", user.ID), zap.String("date", occ.ScheduledDate), zap.Error(err))
		}
		if occ.Completed {
			b.ack(cb.ID, "Done ✅")
		} else {
			b.ack(cb.ID, "Reopened")
		}
		return b.refreshDay(ctx, chatID, messageID, user, occ.ScheduledDate)

	case strings.HasPrefix(data, callbackDay):
		b.ack(cb.ID, "")
		date := strings.TrimPrefix(data, callbackDay)
		if _, err := datex.ParseDate(date); err != nil {
			return nil
		}
		return b.refreshDay(ctx, chatID, messageID, user, date)

	case strings.HasPrefix(data, callbackDelete):
		b.ack(cb.ID, "")
		task, err := b.svc.Tasks.GetTask(ctx, user.ID, strings.TrimPrefix(data, callbackDelete))
		if err != nil {
			return b.sendText(ctx, chatID, userMessage("Couldn't find the task", err))
		}
		return b.askDeleteConfirmation(ctx, chatID, cb.From.ID, *task)

	case strings.HasPrefix(data, callbackRead):
		id, err := strconv.ParseUint(strings.TrimPrefix(data, callbackRead), 10, 64)
		if err != nil {
			b.ack(cb.ID, "")
			return nil
		}
		if err := b.svc.Milestones.MarkRead(ctx, user.ID, uint(id)); err != nil && !errors.Is(err, common.ErrNotFound) {
			b.ack(cb.ID, "")
			return err
		}
		b.ack(cb.ID, "Marked as read")
		return b.refreshNotifications(ctx, chatID, messageID, user.ID)

	case data == callbackReadAll:
		n, err := b.svc.Milestones.MarkAllRead(ctx, user.ID)
		if err != nil {
			b.ack(cb.ID, "")
			return err
		}
		b.ack(cb.ID, fmt.Sprintf("%d marked as read", n))
		return b.refreshNotifications(ctx, chatID, messageID, user.ID)

	default:
		b.ack(cb.ID, "")
		return nil
	}
}

func (b *Bot) refreshDay(ctx context.Context, chatID int64, messageID int, user *model.User, date string) error {
	text, markup, err := b.dayView(ctx, user, date)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	edit.ParseMode = tgbotapi.ModeHTML
	return b.send(ctx, chatID, edit)
}

func (b *Bot) refreshNotifications(ctx context.Context, chatID int64, messageID int, userID uint) error {
	text, markup, err := b.notificationsView(ctx, userID)
	if err != nil {
		return err
	}
	if len(markup.InlineKeyboard) == 0 {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		return b.send(ctx, chatID, edit)
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	edit.ParseMode = tgbotapi.ModeHTML
	return b.send(ctx, chatID, edit)
}

// SendDailyReports sends a report to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	sent := 0
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.svc.Reminders.DailyReport(ctx, user)
		if err != nil {
			b.log.Warn("build report", zap.Int64("telegram_id", user.TelegramID), zap.Error(err))
			continue
		}
		if err := b.sendText(ctx, user.TelegramID, text); err != nil {
			b.log.Warn("send report", zap.Int64("telegram_id", user.TelegramID), zap.Error(err))
			continue
		}
		sent++
	}
	b.log.Info("daily reports sent", zap.Int("sent", sent), zap.Int("users", len(users)))
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName, datex.SystemClock{}.Now())
}

func (b *Bot) today(user *model.User) string {
	return datex.Today(datex.SystemClock{}, user.Location(b.config.Location))
}

// userMessage turns a service error into something safe to show.
func userMessage(prefix string, err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return prefix + ": not found. It may have been deleted."
	case errors.Is(err, common.ErrInvalidTask), errors.Is(err, common.ErrInvalidRule):
		return fmt.Sprintf("%s: %s", prefix, escape(err.Error()))
	case errors.Is(err, common.ErrPrecondition):
		return prefix + ": your profile isn't set up yet. Send /start."
	default:
		return prefix + ". Please try again later."
	}
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Debug("callback ack", zap.Error(err))
	}
}

func (b *Bot) limiter(chatID int64) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(b.config.BotRatePerSecond), b.config.BotBurst)
		b.limiters[chatID] = l
	}
	return l
}

// send waits for the chat's rate budget before calling the API.
func (b *Bot) send(ctx context.Context, chatID int64, c tgbotapi.Chattable) error {
	if err := b.limiter(chatID).Wait(ctx); err != nil {
		return err
	}
	_, err := b.api.Send(c)
	return err
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	return b.send(ctx, chatID, msg)
}

func (b *Bot) sendTextWithRemove(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if err := b.send(ctx, chatID, msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(ctx, chatID)
}

func (b *Bot) sendWithReplyMarkup(ctx context.Context, chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return b.send(ctx, chatID, msg)
}

func (b *Bot) sendMenuPlaceholder(ctx context.Context, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Main menu")
	msg.ReplyMarkup = mainMenuKeyboard()
	return b.send(ctx, chatID, msg)
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	b.confirmations[userID] = req
	b.mu.Unlock()
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	delete(b.confirmations, userID)
	b.mu.Unlock()
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	b.conversations[userID] = state
	b.mu.Unlock()
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	delete(b.conversations, userID)
	b.mu.Unlock()
}
