package bot

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/golang/glog"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/status-board/internal/dashboard"
	"github.com/glebk/status-board/internal/domain"
)

// boardText renders snap as an HTML <pre> block for Telegram
func boardText(snap dashboard.Snapshot, now time.Time) string {
	var sb strings.Builder
	if err := dashboard.Render(&sb, snap, now); err != nil {
		return "Board unavailable"
	}
	return "<b>Everyone</b>\n<pre>" + html.EscapeString(strings.TrimRight(sb.String(), "\n")) + "</pre>"
}

// watchBoard keeps one message in the board chat in sync with the table
func (b *Bot) watchBoard(ctx context.Context) {
	viewer := domain.Session{Name: b.name, Password: b.config.SharedPassword}
	view := dashboard.NewView(
		viewer,
		dashboard.ReaderFunc(b.service.Board),
		dashboard.FeedSource{Feed: b.changes},
		b.publishBoard,
	)

	glog.Infof("[bot]posting board updates to chat %d", b.config.Telegram.BoardChatID)
	if err := view.Run(ctx); err != nil {
		glog.Errorf("[bot]board watcher stopped: %v", err)
	}
}

// publishBoard edits the last posted board message, or posts a new one
// when there is none or the edit fails.
func (b *Bot) publishBoard(snap dashboard.Snapshot) {
	if snap.Err != nil {
		glog.Errorf("[bot]failed to load board: %v", snap.Err)
		return
	}

	chatID := b.config.Telegram.BoardChatID
	text := boardText(dashboard.Snapshot{People: snap.People}, time.Now())

	b.boardMu.Lock()
	defer b.boardMu.Unlock()

	if b.boardMessageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, b.boardMessageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := b.api.Send(edit)
		if err == nil || isNotModified(err) {
			return
		}
		glog.Warningf("[bot]failed to edit board message %d: %v", b.boardMessageID, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := b.api.Send(msg)
	if err != nil {
		glog.Errorf("[bot]failed to post board: %v", err)
		return
	}
	b.boardMessageID = sent.MessageID
}

func isNotModified(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return strings.Contains(tgErr.Message, "message is not modified")
	}
	return strings.Contains(err.Error(), "message is not modified")
}
