package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tanya-io/tanya/internal/connector"
)

// Config holds Telegram connector configuration.
type Config struct {
	Token string // bot token from @BotFather
	// PublicDomain switches from long polling to webhook mode when set.
	// The webhook path embeds the bot token, which doubles as the shared
	// secret Telegram presents on every call.
	PublicDomain string
}

// Connector implements connector.Connector for Telegram.
type Connector struct {
	bot     *tgbotapi.BotAPI
	config  Config
	handler connector.InboundHandler
	logger  *slog.Logger
	cancel  context.CancelFunc

	// webhookUpdates carries updates decoded by WebhookHandler when
	// webhook mode is active.
	webhookUpdates chan tgbotapi.Update
}

// New creates a new Telegram connector.
func New(cfg Config, handler connector.InboundHandler, logger *slog.Logger) (*Connector, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Connector{
		bot:            bot,
		config:         cfg,
		handler:        handler,
		logger:         logger,
		webhookUpdates: make(chan tgbotapi.Update, 64),
	}, nil
}

func (c *Connector) Name() string { return "telegram" }

// WebhookPath is where WebhookHandler must be mounted in webhook mode.
func (c *Connector) WebhookPath() string {
	return "/telegram/" + c.config.Token
}

// WebhookHandler decodes Telegram webhook calls. Knowing the token-bearing
// path is the authentication; anything malformed is dropped with 400.
func (c *Connector) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			http.Error(w, "read error", http.StatusBadRequest)
			return
		}
		var update tgbotapi.Update
		if err := json.Unmarshal(body, &update); err != nil {
			c.logger.Warn("webhook decode failed", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		select {
		case c.webhookUpdates <- update:
		default:
			c.logger.Warn("webhook update dropped, queue full")
		}
		w.WriteHeader(http.StatusOK)
	})
}

// Start begins receiving updates, by long polling or webhook depending on
// configuration. Blocks until the context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	var updates <-chan tgbotapi.Update
	if c.config.PublicDomain != "" {
		url := "https://" + c.config.PublicDomain + c.WebhookPath()
		wh, err := tgbotapi.NewWebhook(url)
		if err != nil {
			return fmt.Errorf("telegram: webhook config: %w", err)
		}
		if _, err := c.bot.Request(wh); err != nil {
			return fmt.Errorf("telegram: set webhook: %w", err)
		}
		c.logger.Info("telegram connector started", "mode", "webhook", "domain", c.config.PublicDomain)
		updates = c.webhookUpdates
	} else {
		// Polling and webhook are mutually exclusive on the Telegram side.
		if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
			c.logger.Warn("delete webhook failed", "error", err)
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates = c.bot.GetUpdatesChan(u)
		c.logger.Info("telegram connector started", "mode", "polling")
	}

	for {
		select {
		case update := <-updates:
			c.handleUpdate(ctx, update)
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram connector stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send delivers a message to a Telegram chat, converting Markdown to
// Telegram HTML and attaching the action grid as an inline keyboard.
func (c *Connector) Send(_ context.Context, msg connector.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat_id %q: %w", msg.ChatID, err)
	}
	if strings.TrimSpace(msg.Content) == "" {
		c.logger.Warn("skipping empty message", "chat_id", msg.ChatID)
		return nil
	}

	tgMsg := tgbotapi.NewMessage(chatID, MarkdownToHTML(msg.Content))
	tgMsg.ParseMode = "HTML"
	tgMsg.DisableWebPagePreview = true
	if kb, ok := keyboard(msg.Actions); ok {
		tgMsg.ReplyMarkup = kb
	}

	if _, err = c.bot.Send(tgMsg); err != nil {
		// Telegram rejects messages whose HTML it cannot parse; retry as
		// plain text rather than losing the message.
		c.logger.Warn("HTML send failed, falling back to plain text",
			"chat_id", msg.ChatID, "error", err)
		tgMsg.Text = StripMarkdown(msg.Content)
		tgMsg.ParseMode = ""
		_, err = c.bot.Send(tgMsg)
	}
	return err
}

func keyboard(actions [][]connector.Action) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, actionRow := range actions {
		var row []tgbotapi.InlineKeyboardButton
		for _, a := range actionRow {
			if a.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(a.Label, a.URL))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Token))
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func (c *Connector) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		// Ack first so the client stops its spinner even if handling fails.
		if _, err := c.bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			c.logger.Warn("callback ack failed", "error", err)
		}
		if q.Message == nil || q.From == nil {
			return
		}
		inbound := connector.InboundMessage{
			SenderID:       strconv.FormatInt(q.From.ID, 10),
			SenderUsername: q.From.UserName,
			SenderName:     q.From.FirstName,
			ChatID:         strconv.FormatInt(q.Message.Chat.ID, 10),
			ActionToken:    q.Data,
		}
		if err := c.handler(ctx, inbound); err != nil {
			c.logger.Error("callback handler error", "chat_id", inbound.ChatID, "error", err)
		}

	case update.Message != nil:
		msg := update.Message
		text := msg.Text
		if text == "" && msg.Caption != "" {
			text = msg.Caption
		}
		if text == "" || msg.From == nil {
			return
		}
		inbound := connector.InboundMessage{
			SenderID:       strconv.FormatInt(msg.From.ID, 10),
			SenderUsername: msg.From.UserName,
			SenderName:     msg.From.FirstName,
			ChatID:         strconv.FormatInt(msg.Chat.ID, 10),
			Content:        text,
		}
		if msg.ReplyToMessage != nil {
			inbound.ReplyToText = msg.ReplyToMessage.Text
		}
		if err := c.handler(ctx, inbound); err != nil {
			c.logger.Error("inbound handler error", "chat_id", inbound.ChatID, "error", err)
		}
	}
}
