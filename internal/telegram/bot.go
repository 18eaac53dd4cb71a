// Package telegram runs the alert bot: it registers chats for sentiment
// alerts and answers status queries over the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/web3-frozen/token-insight/internal/monitor"
)

const telegramAPI = "https://api.telegram.org"

// ChatRegistry stores the chats that receive alerts.
type ChatRegistry interface {
	AddAlertChat(ctx context.Context, chatID int64, username string) error
	RemoveAlertChat(ctx context.Context, chatID int64) error
	AlertChatIDs(ctx context.Context) ([]int64, error)
}

// StatusSource reports the state of the running watchers.
type StatusSource interface {
	Statuses() []monitor.Status
}

type Bot struct {
	token    string
	baseURL  string
	chats    ChatRegistry
	statuses StatusSource
	logger   *slog.Logger
	client   *http.Client
	offset   int64
	backoff  time.Duration
}

type Option func(*Bot)

// WithBaseURL points the bot at another Bot API host.
func WithBaseURL(u string) Option {
	return func(b *Bot) { b.baseURL = strings.TrimRight(u, "/") }
}

func NewBot(token string, chats ChatRegistry, statuses StatusSource, logger *slog.Logger, opts ...Option) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		token:    token,
		baseURL:  telegramAPI,
		chats:    chats,
		statuses: statuses,
		logger:   logger.With("component", "telegram"),
		client:   &http.Client{Timeout: 40 * time.Second},
		backoff:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bot) endpoint(method string) string {
	return b.baseURL + "/bot" + b.token + "/" + method
}

// SendMessage sends an HTML text message to a chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		// The URL carries the bot token; report only the cause.
		return fmt.Errorf("send message: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, errResp.Description)
	}
	return nil
}

// Run starts the long-polling loop for incoming Telegram messages.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
			b.poll(ctx)
		}
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
}

func (b *Bot) poll(ctx context.Context) {
	pollURL := fmt.Sprintf("%s?offset=%d&timeout=30", b.endpoint("getUpdates"), b.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		b.logger.Error("create poll request", "error", err)
		return
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("poll updates", "error", unwrapURLError(err))
		b.sleep(ctx)
		return
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		b.logger.Error("decode updates", "error", err)
		b.sleep(ctx)
		return
	}

	for _, u := range result.Result {
		b.offset = u.UpdateID + 1
		if u.Message == nil {
			continue
		}
		b.handle(ctx, u.Message.Chat.ID, u.Message.From.Username, u.Message.Text)
	}
}

func (b *Bot) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.backoff):
	}
}

func (b *Bot) handle(ctx context.Context, chatID int64, username, text string) {
	cmd, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	// Group chats address commands as /cmd@BotName.
	cmd, _, _ = strings.Cut(cmd, "@")

	var reply string
	switch cmd {
	case "/start":
		reply = b.handleStart(ctx, chatID, username)
	case "/stop":
		reply = b.handleStop(ctx, chatID)
	case "/status":
		reply = b.handleStatus()
	case "/help":
		reply = helpText
	default:
		reply = "Unknown command. Send /help for available commands."
	}
	if err := b.SendMessage(ctx, chatID, reply); err != nil {
		b.logger.Error("reply", "chat_id", chatID, "command", cmd, "error", err)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, username string) string {
	if err := b.chats.AddAlertChat(ctx, chatID, username); err != nil {
		b.logger.Error("add alert chat", "chat_id", chatID, "error", err)
		return "❌ Could not subscribe this chat. Please try again."
	}
	b.logger.Info("alert chat registered", "chat_id", chatID, "username", username)
	return "👋 Welcome to Token Insight!\n\n" +
		"This chat will now receive sentiment shift alerts for every watched token.\n" +
		"Send /stop to unsubscribe or /status to see the watchers."
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) string {
	if err := b.chats.RemoveAlertChat(ctx, chatID); err != nil {
		b.logger.Error("remove alert chat", "chat_id", chatID, "error", err)
		return "❌ Could not unsubscribe this chat. Please try again."
	}
	return "🔕 Alerts stopped for this chat. Send /start to subscribe again."
}

func (b *Bot) handleStatus() string {
	if b.statuses == nil {
		return "No watchers are running."
	}
	st := b.statuses.Statuses()
	if len(st) == 0 {
		return "No watchers are running."
	}
	var sb strings.Builder
	sb.WriteString("📋 <b>Watchers</b>\n")
	for _, s := range st {
		score := "n/a"
		if s.LastScore != nil {
			score = fmt.Sprintf("%+.2f", *s.LastScore)
		}
		fmt.Fprintf(&sb, "\n• <b>%s</b>: %s, sentiment %s", s.Symbol, s.State, score)
		if s.Degraded {
			fmt.Fprintf(&sb, " ⚠️ degraded (%d failures)", s.ConsecutiveFailures)
		}
	}
	return sb.String()
}

const helpText = "🤖 <b>Token Insight Bot</b>\n\n" +
	"Commands:\n" +
	"/start: receive sentiment shift alerts in this chat\n" +
	"/stop: stop receiving alerts\n" +
	"/status: show watched tokens and their latest sentiment\n" +
	"/help: show this message"

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
