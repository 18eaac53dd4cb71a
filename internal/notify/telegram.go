package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/web3-frozen/token-insight/internal/monitor"
)

// MessageSender sends a chat message.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ChatLister lists the chats subscribed to alerts.
type ChatLister interface {
	AlertChatIDs(ctx context.Context) ([]int64, error)
}

// Telegram broadcasts alerts to every registered chat.
type Telegram struct {
	sender MessageSender
	chats  ChatLister
	logger *slog.Logger
}

func NewTelegram(sender MessageSender, chats ChatLister, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{sender: sender, chats: chats, logger: logger}
}

// Notify fails only when the chat list is unavailable or no chat received
// the message.
func (t *Telegram) Notify(ctx context.Context, a monitor.Alert) error {
	chatIDs, err := t.chats.AlertChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("telegram: list chats: %w", err)
	}
	if len(chatIDs) == 0 {
		return nil
	}
	msg := a.Message()
	var errs []error
	for _, chatID := range chatIDs {
		if err := t.sender.SendMessage(ctx, chatID, msg); err != nil {
			t.logger.Error("send alert failed", "chat_id", chatID, "symbol", a.Symbol, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(chatIDs) {
		return fmt.Errorf("telegram: %w", errors.Join(errs...))
	}
	return nil
}
