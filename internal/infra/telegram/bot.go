package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivankudzin/phoneauth/internal/infra/httpclient"
	notifysvc "github.com/ivankudzin/phoneauth/internal/services/notify"
)

const providerName = "telegram"

// Bot forwards entry codes to a single operator chat. It stands in for SMS in
// staging environments where real phones are not available.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewBot(token string, chatID int64) (*Bot, error) {
	return NewBotWithEndpoint(token, tgbotapi.APIEndpoint, chatID, httpclient.New(30*time.Second))
}

func NewBotWithEndpoint(token, endpoint string, chatID int64, client *http.Client) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is empty")
	}
	if client == nil {
		client = httpclient.New(30 * time.Second)
	}

	api, err := tgbotapi.NewBotAPIWithClient(strings.TrimSpace(token), endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{api: api, chatID: chatID}, nil
}

func (b *Bot) Send(ctx context.Context, phone int64, message string) (notifysvc.Response, error) {
	if b == nil || b.api == nil {
		return notifysvc.Response{}, fmt.Errorf("%w: telegram bot is not initialized", notifysvc.ErrDelivery)
	}
	if phone <= 0 {
		return notifysvc.Response{}, notifysvc.ErrInvalidPhone
	}
	if err := ctx.Err(); err != nil {
		return notifysvc.Response{}, fmt.Errorf("%w: %w", notifysvc.ErrDelivery, err)
	}

	text := fmt.Sprintf("+%d: %s", phone, message)
	sent, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text))
	if err != nil {
		return notifysvc.Response{}, fmt.Errorf("%w: telegram send: %w", notifysvc.ErrDelivery, err)
	}

	return notifysvc.Response{
		Provider:  providerName,
		MessageID: strconv.Itoa(sent.MessageID),
		Status:    "sent",
		Accepted:  true,
	}, nil
}
