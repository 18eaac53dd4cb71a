package sources

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// Telegram reads public chat member counts through the Bot API.
type Telegram struct {
	*jsonClient
	baseURL string
	token   string
}

func NewTelegram(baseURL, botToken string) *Telegram {
	if baseURL == "" {
		baseURL = telegramAPI
	}
	return &Telegram{
		jsonClient: newJSONClient("telegram", 10*time.Second, 5, 5),
		baseURL:    baseURL,
		token:      botToken,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// ChatMemberCount returns the member count of a public group or channel.
// chat may be a handle with or without "@" or a t.me link.
func (t *Telegram) ChatMemberCount(ctx context.Context, chat string) (int, error) {
	handle := chatHandle(chat)
	if handle == "" {
		return 0, Missing(t.Name(), "telegram_chat")
	}
	if t.token == "" {
		return 0, Missing(t.Name(), "bot_token")
	}
	q := url.Values{}
	q.Set("chat_id", handle)

	var resp struct {
		OK          bool   `json:"ok"`
		Result      int    `json:"result"`
		Description string `json:"description"`
	}
	if err := t.get(ctx, t.baseURL+"/bot"+t.token+"/getChatMemberCount", q, &resp); err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, newError(t.Name(), ErrNotFound, errors.New(resp.Description))
	}
	return resp.Result, nil
}

func chatHandle(chat string) string {
	chat = strings.TrimSpace(chat)
	if i := strings.LastIndex(chat, "/"); i >= 0 {
		chat = chat[i+1:]
	}
	chat = strings.TrimPrefix(chat, "@")
	if chat == "" {
		return ""
	}
	if strings.HasPrefix(chat, "-") {
		return chat
	}
	return "@" + chat
}
