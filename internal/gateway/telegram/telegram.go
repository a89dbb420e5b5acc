// Package telegram connects the bot core to the Telegram Bot API using long
// polling. Category menus are inline keyboards.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"expensebot/internal/bot"
	"expensebot/internal/gateway"
	"expensebot/internal/log"
)

const (
	buttonsPerRow = 2
	pollTimeout   = 60
)

// sender is the subset of *tgbotapi.BotAPI used to answer updates.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Gateway struct {
	api     *tgbotapi.BotAPI
	out     sender
	handler gateway.Handler
	logger  *log.Logger
}

// New authenticates with token and returns a gateway ready to Run.
func New(token string, handler gateway.Handler, logger *log.Logger) (*Gateway, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	g := newGateway(api, handler, logger)
	g.api = api
	return g, nil
}

func newGateway(out sender, handler gateway.Handler, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentGateway})
	}
	return &Gateway{out: out, handler: handler, logger: logger.With("gateway", "telegram")}
}

// Username is the bot account name reported by Telegram.
func (g *Gateway) Username() string {
	if g.api == nil {
		return ""
	}
	return g.api.Self.UserName
}

// Run polls for updates until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := g.api.GetUpdatesChan(u)
	defer g.api.StopReceivingUpdates()

	g.logger.InfoContext(ctx, "Telegram gateway started", "username", g.Username())
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("Telegram gateway stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			g.handleUpdate(ctx, update)
		}
	}
}

func (g *Gateway) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		g.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		g.handleMessage(ctx, update.Message)
	}
}

func (g *Gateway) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || m.From.IsBot || m.Text == "" {
		return
	}
	reply := g.handler.HandleMessage(ctx, bot.Message{
		ChatID:   m.Chat.ID,
		UserID:   m.From.ID,
		Username: m.From.UserName,
		Text:     m.Text,
	})
	if reply.Text == "" {
		return
	}

	out := tgbotapi.NewMessage(m.Chat.ID, reply.Text)
	out.ReplyToMessageID = m.MessageID
	if reply.Menu != nil {
		out.ReplyMarkup = keyboard(reply.Menu)
	}
	if _, err := g.out.Send(out); err != nil {
		g.logger.ErrorContext(ctx, "Failed to send reply", log.FieldChatID, m.Chat.ID, log.FieldError, err)
	}
}

func (g *Gateway) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || q.Message == nil {
		return
	}
	reply := g.handler.HandleSelection(ctx, bot.Selection{
		ChatID:   q.Message.Chat.ID,
		UserID:   q.From.ID,
		Username: q.From.UserName,
		Data:     q.Data,
	})

	if !reply.Final {
		// Toast only the presser; the menu stays usable.
		if _, err := g.out.Request(tgbotapi.NewCallback(q.ID, reply.Text)); err != nil {
			g.logger.ErrorContext(ctx, "Failed to answer callback", log.FieldError, err)
		}
		return
	}

	if _, err := g.out.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		g.logger.ErrorContext(ctx, "Failed to answer callback", log.FieldError, err)
	}
	// Editing the text without a markup drops the inline keyboard.
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, reply.Text)
	if _, err := g.out.Send(edit); err != nil {
		g.logger.ErrorContext(ctx, "Failed to close menu", log.FieldChatID, q.Message.Chat.ID, log.FieldError, err)
	}
}

func keyboard(menu *bot.Menu) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range gateway.Rows(menu.Choices, buttonsPerRow) {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
