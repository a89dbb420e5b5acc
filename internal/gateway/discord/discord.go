// Package discord connects the bot core to a Discord channel. Category menus
// are message buttons.
package discord

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"expensebot/internal/bot"
	"expensebot/internal/gateway"
	"expensebot/internal/log"
)

// Discord allows five buttons per action row.
const buttonsPerRow = 5

// session is the subset of *discordgo.Session used to answer events.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

type Gateway struct {
	session   *discordgo.Session
	out       session
	handler   gateway.Handler
	channelID string
	logger    *log.Logger
}

// New creates a gateway. An empty channelID accepts guild messages from every
// channel the bot can read; direct messages are always accepted.
func New(token, channelID string, handler gateway.Handler, logger *log.Logger) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	g := newGateway(s, handler, channelID, logger)
	g.session = s
	return g, nil
}

func newGateway(out session, handler gateway.Handler, channelID string, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentGateway})
	}
	return &Gateway{out: out, handler: handler, channelID: channelID, logger: logger.With("gateway", "discord")}
}

// Run opens the websocket and serves events until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	removeMsg := g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		g.handleMessage(ctx, m)
	})
	defer removeMsg()
	removeInt := g.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		g.handleInteraction(ctx, i)
	})
	defer removeInt()

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	g.logger.InfoContext(ctx, "Discord gateway started", "channel_id", g.channelID)

	<-ctx.Done()
	g.logger.Info("Discord gateway stopping")
	return g.session.Close()
}

func (g *Gateway) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if g.channelID != "" && m.GuildID != "" && m.ChannelID != g.channelID {
		return
	}
	userID, err := snowflake(m.Author.ID)
	if err != nil {
		g.logger.WarnContext(ctx, "Ignoring message with malformed author id", "author_id", m.Author.ID)
		return
	}
	chatID, _ := snowflake(m.ChannelID)

	reply := g.handler.HandleMessage(ctx, bot.Message{
		ChatID:   chatID,
		UserID:   userID,
		Username: m.Author.Username,
		Text:     m.Content,
	})
	if reply.Text == "" {
		return
	}

	send := &discordgo.MessageSend{
		Content:   reply.Text,
		Reference: m.Reference(),
	}
	if reply.Menu != nil {
		send.Components = components(reply.Menu)
	}
	if _, err := g.out.ChannelMessageSendComplex(m.ChannelID, send); err != nil {
		g.logger.ErrorContext(ctx, "Failed to send reply", "channel_id", m.ChannelID, log.FieldError, err)
	}
}

func (g *Gateway) handleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}
	userID, err := snowflake(user.ID)
	if err != nil {
		g.logger.WarnContext(ctx, "Ignoring interaction with malformed user id", "user_id", user.ID)
		return
	}
	chatID, _ := snowflake(i.ChannelID)

	reply := g.handler.HandleSelection(ctx, bot.Selection{
		ChatID:   chatID,
		UserID:   userID,
		Username: user.Username,
		Data:     i.MessageComponentData().CustomID,
	})

	var resp *discordgo.InteractionResponse
	if reply.Final {
		resp = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    reply.Text,
				Components: []discordgo.MessageComponent{},
			},
		}
	} else {
		resp = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: reply.Text,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}
	}
	if err := g.out.InteractionRespond(i.Interaction, resp); err != nil {
		g.logger.ErrorContext(ctx, "Failed to answer interaction", log.FieldError, err)
	}
}

func components(menu *bot.Menu) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for _, row := range gateway.Rows(menu.Choices, buttonsPerRow) {
		buttons := make([]discordgo.MessageComponent, 0, len(row))
		for _, c := range row {
			style := discordgo.PrimaryButton
			if c.Data == menu.CorrelationID+"|"+bot.SkipChoice {
				style = discordgo.SecondaryButton
			}
			buttons = append(buttons, discordgo.Button{
				Label:    c.Label,
				Style:    style,
				CustomID: c.Data,
			})
		}
		rows = append(rows, discordgo.ActionsRow{Components: buttons})
	}
	return rows
}

// snowflake converts a Discord id to the numeric identity used by the ledger.
func snowflake(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}
