package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/status-board/internal/config"
	"github.com/glebk/status-board/internal/dashboard"
	"github.com/glebk/status-board/internal/domain"
	"github.com/glebk/status-board/internal/feed"
)

const callbackStatusPrefix = "status:"

// StatusService is the part of the board service the bot drives
type StatusService interface {
	Register(ctx context.Context, session domain.Session) error
	UpdateStatus(ctx context.Context, session domain.Session, status domain.Status) error
	ClearAll(ctx context.Context, session domain.Session) error
	Board(ctx context.Context) ([]*domain.StatusRecord, error)
}

// sender is the subset of *tgbotapi.BotAPI used to talk to chats
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram bot
type Bot struct {
	client   *tgbotapi.BotAPI
	api      sender
	name     string
	service  StatusService
	changes  feed.Subscriber
	config   *config.Config
	sessions *SessionStore

	boardMu        sync.Mutex
	boardMessageID int
}

// New creates a new Bot instance
func New(token string, service StatusService, changes feed.Subscriber, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	glog.Infof("[bot]authorized on account %s", api.Self.UserName)

	b := newBot(api, api.Self.UserName, service, changes, cfg)
	b.client = api
	return b, nil
}

func newBot(api sender, name string, service StatusService, changes feed.Subscriber, cfg *config.Config) *Bot {
	return &Bot{
		api:      api,
		name:     name,
		service:  service,
		changes:  changes,
		config:   cfg,
		sessions: NewSessionStore(),
	}
}

// Start polls for updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.client.GetUpdatesChan(u)

	if b.config.Telegram.BoardChatID != 0 && b.changes != nil {
		go b.watchBoard(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallbackQuery(ctx, update.CallbackQuery)
			}
		}
	}
}

// handleMessage handles incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "login":
		b.handleLogin(ctx, message)
	case "logout":
		b.handleLogout(message)
	case "board":
		b.handleBoard(ctx, message)
	case "set":
		b.handleSet(ctx, message)
	case "clear":
		b.handleClear(ctx, message)
	case "help":
		b.handleHelp(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see what I can do.")
	}
}

// handleStart handles the /start command
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := fmt.Sprintf(
		"👋 Hi %s!\n\n"+
			"I keep the team status board.\n\n"+
			"Log in with /login <name> <password>, then pick where you are with /set.\n"+
			"Use /board to see everyone and /help for the rest.",
		message.From.FirstName,
	)
	b.sendMessage(message.Chat.ID, text)
}

// handleLogin registers the chat's name and remembers the session
func (b *Bot) handleLogin(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	// the password should not linger in the chat history
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, message.MessageID)); err != nil {
		glog.V(1).Infof("[bot]failed to delete login message in chat %d: %v", chatID, err)
	}

	session, ok := parseLogin(message.CommandArguments())
	if !ok {
		b.sendMessage(chatID, "Usage: /login <name> <password>")
		return
	}

	if err := b.service.Register(ctx, session); err != nil {
		b.sendError(chatID, err)
		return
	}

	b.sessions.Set(chatID, session)
	b.sendStatusPicker(chatID, fmt.Sprintf("✅ Logged in as %s. Where are you today?", session.Name))
}

// handleLogout forgets the chat's session
func (b *Bot) handleLogout(message *tgbotapi.Message) {
	if !b.sessions.Delete(message.Chat.ID) {
		b.sendMessage(message.Chat.ID, "You are not logged in.")
		return
	}
	b.sendMessage(message.Chat.ID, "👋 Logged out.")
}

// handleBoard shows the current board
func (b *Bot) handleBoard(ctx context.Context, message *tgbotapi.Message) {
	people, err := b.service.Board(ctx)
	if err != nil {
		b.sendError(message.Chat.ID, err)
		return
	}

	session, _ := b.sessions.Get(message.Chat.ID)
	snap := dashboard.Snapshot{People: people, Me: session.Name}

	msg := tgbotapi.NewMessage(message.Chat.ID, boardText(snap, time.Now()))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		glog.Errorf("[bot]failed to send board: %v", err)
	}
}

// handleSet sets the status given as argument, or shows the picker
func (b *Bot) handleSet(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.sendMessage(chatID, "⚠️ Log in first with /login <name> <password>")
		return
	}

	arg := strings.TrimSpace(message.CommandArguments())
	if arg == "" {
		b.sendStatusPicker(chatID, "Where are you today?")
		return
	}

	if err := b.service.UpdateStatus(ctx, session, domain.Status(arg)); err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ Status set to %s", arg))
}

// handleClear wipes the board. Only the admin can do it.
func (b *Bot) handleClear(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.sendMessage(chatID, "⚠️ Log in first with /login <name> <password>")
		return
	}

	if err := b.service.ClearAll(ctx, session); err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMessage(chatID, "🧹 Board cleared.")
}

// handleHelp shows help information
func (b *Bot) handleHelp(message *tgbotapi.Message) {
	text := `<b>Status board - Help</b>

<b>Commands:</b>
/login &lt;name&gt; &lt;password&gt; - Log in with the team password
/logout - Forget your login in this chat
/set - Pick your status (4, 8 or Home)
/set &lt;status&gt; - Set your status directly
/board - Show everyone's status
/clear - Clear the board (admin only)
/help - Show this help`

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := b.api.Send(msg); err != nil {
		glog.Errorf("[bot]failed to send help: %v", err)
	}
}

// handleCallbackQuery handles status picker buttons
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	status, ok := strings.CutPrefix(query.Data, callbackStatusPrefix)
	if !ok || query.Message == nil {
		b.answerCallback(query.ID, "Invalid response")
		return
	}

	chatID := query.Message.Chat.ID
	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.answerCallback(query.ID, "⚠️ Log in first with /login")
		return
	}

	if err := b.service.UpdateStatus(ctx, session, domain.Status(status)); err != nil {
		b.answerCallback(query.ID, errorText(err))
		return
	}

	b.answerCallback(query.ID, "✅ "+status)

	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID,
		query.Message.MessageID,
		fmt.Sprintf("%s is now at %s", session.Name, status),
		statusKeyboard(domain.Status(status)),
	)
	if _, err := b.api.Send(edit); err != nil && !isNotModified(err) {
		glog.Errorf("[bot]failed to edit picker: %v", err)
	}
}

// statusKeyboard builds the picker, marking the current choice
func statusKeyboard(current domain.Status) tgbotapi.InlineKeyboardMarkup {
	var buttons []tgbotapi.InlineKeyboardButton
	for _, s := range domain.SelectableStatuses() {
		label := statusEmoji(s) + " " + string(s)
		if s == current {
			label = "• " + label
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, callbackStatusPrefix+string(s)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
}

func statusEmoji(s domain.Status) string {
	switch s {
	case domain.StatusSlotA:
		return "4️⃣"
	case domain.StatusSlotB:
		return "8️⃣"
	case domain.StatusHome:
		return "🏠"
	}
	return ""
}

// sendStatusPicker sends text with the status buttons, marking the chat's current status
func (b *Bot) sendStatusPicker(chatID int64, text string) {
	var current domain.Status
	if session, ok := b.sessions.Get(chatID); ok {
		if people, err := b.service.Board(context.Background()); err == nil {
			current = dashboard.MyStatus(people, session.Name)
		}
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = statusKeyboard(current)
	if _, err := b.api.Send(msg); err != nil {
		glog.Errorf("[bot]failed to send status picker: %v", err)
	}
}

// errorText is the chat-facing description of a service error
func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "⛔️ Wrong password or not allowed"
	case errors.Is(err, domain.ErrValidation):
		return "⚠️ " + strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
	default:
		return "❌ Something went wrong, try again later"
	}
}

// sendError reports a service error to the chat
func (b *Bot) sendError(chatID int64, err error) {
	if !errors.Is(err, domain.ErrUnauthorized) && !errors.Is(err, domain.ErrValidation) {
		glog.Errorf("[bot]request from chat %d failed: %v", chatID, err)
	}
	b.sendMessage(chatID, errorText(err))
}

// sendMessage sends a simple text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		glog.Errorf("[bot]failed to send message: %v", err)
	}
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		glog.Errorf("[bot]failed to answer callback: %v", err)
	}
}
