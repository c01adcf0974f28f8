// Package notifier delivers the classification of a run to Telegram.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	appconfig "oiflow/config"
	"oiflow/internal/models"
	"oiflow/logger"
)

const component = "telegram_notifier"

// ErrNoDestination is returned when no chat id is configured and the bot has
// not received any update to take one from.
var ErrNoDestination = errors.New("telegram: no chat to notify")

var delimiter = "*" + bot.EscapeMarkdown("-------------------") + "*"

// Telegram_Notifier sends the alert through the Bot API.
type Telegram_Notifier struct {
	config appconfig.TelegramConfig
	client *http.Client
	bot    *bot.Bot
	log    *logger.Log
}

// Telegram_NewNotifier builds the notifier on the shared HTTP session. No
// request is made until Notify.
func Telegram_NewNotifier(cfg appconfig.TelegramConfig, shared *http.Client) (*Telegram_Notifier, error) {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	b, err := bot.New(cfg.Token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(cfg.URL),
		bot.WithHTTPClient(time.Minute, shared),
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram_Notifier{
		config: cfg,
		client: shared,
		bot:    b,
		log:    logger.GetLogger(),
	}, nil
}

// Format renders the three buckets as a MarkdownV2 message: a bold dash
// delimiter, one "COIN : 12.34%" line per coin, a blank line between buckets
// and the delimiter again.
func Format(c models.Classification) string {
	var sb strings.Builder
	sb.WriteString(delimiter)
	sb.WriteString("\n")
	writeBlock(&sb, c.Pinned)
	sb.WriteString("\n")
	writeBlock(&sb, c.Gainers)
	sb.WriteString("\n")
	writeBlock(&sb, c.Losers)
	sb.WriteString(delimiter)
	return sb.String()
}

func writeBlock(sb *strings.Builder, bucket []models.CoinChange) {
	for _, cc := range bucket {
		sb.WriteString(bot.EscapeMarkdown(fmt.Sprintf("%s : %.2f%%", cc.Coin, cc.Change*100)))
		sb.WriteString("\n")
	}
}

// Notify looks up the destination and sends the formatted classification.
// Nothing is retried.
func (n *Telegram_Notifier) Notify(ctx context.Context, c models.Classification) error {
	log := n.log.WithComponent(component)

	chatID := n.config.ChatID
	if chatID == 0 {
		id, err := n.lookupChatID(ctx)
		if err != nil {
			return err
		}
		chatID = id
	}

	text := Format(c)
	msg, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", n.redact(err))
	}

	log.WithFields(logger.Fields{
		"chat_id":    chatID,
		"message_id": msg.ID,
		"pinned":     len(c.Pinned),
		"gainers":    len(c.Gainers),
		"losers":     len(c.Losers),
	}).Info("alert sent")
	return nil
}

type updatesResponse struct {
	OK          bool              `json:"ok"`
	Description string            `json:"description"`
	Result      []tgmodels.Update `json:"result"`
}

// lookupChatID returns the chat of the most recent update the bot received.
func (n *Telegram_Notifier) lookupChatID(ctx context.Context) (int64, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?offset=-1", n.config.URL, n.config.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("telegram getUpdates: %w", n.redact(err))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("telegram getUpdates: %w", n.redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read telegram getUpdates: %w", err)
	}

	var updates updatesResponse
	if err := json.Unmarshal(body, &updates); err != nil {
		return 0, fmt.Errorf("decode telegram getUpdates (status %d): %w", resp.StatusCode, err)
	}
	if !updates.OK {
		return 0, fmt.Errorf("telegram getUpdates: status %d: %s", resp.StatusCode, updates.Description)
	}

	for i := len(updates.Result) - 1; i >= 0; i-- {
		if id, ok := chatOf(updates.Result[i]); ok {
			return id, nil
		}
	}
	return 0, ErrNoDestination
}

func chatOf(u tgmodels.Update) (int64, bool) {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID, true
	case u.EditedMessage != nil:
		return u.EditedMessage.Chat.ID, true
	case u.ChannelPost != nil:
		return u.ChannelPost.Chat.ID, true
	}
	return 0, false
}

// redactedError hides the bot token, which the Bot API puts in every URL.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func (n *Telegram_Notifier) redact(err error) error {
	if n.config.Token == "" || !strings.Contains(err.Error(), n.config.Token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), n.config.Token, "<redacted>"), err: err}
}
