package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"expensebot/internal/bot"
	"expensebot/internal/log"
)

type fakeSender struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeHandler struct {
	messages   []bot.Message
	selections []bot.Selection
	reply      bot.Reply
}

func (h *fakeHandler) HandleMessage(_ context.Context, msg bot.Message) bot.Reply {
	h.messages = append(h.messages, msg)
	return h.reply
}

func (h *fakeHandler) HandleSelection(_ context.Context, sel bot.Selection) bot.Reply {
	h.selections = append(h.selections, sel)
	return h.reply
}

func message(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: 2, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 2, UserName: "alice"},
		Message: &tgbotapi.Message{MessageID: 11, Chat: &tgbotapi.Chat{ID: 100}},
		Data:    data,
	}}
}

func TestMessageWithMenu(t *testing.T) {
	out := &fakeSender{}
	h := &fakeHandler{reply: bot.Reply{
		Text: "Choose a category",
		Menu: &bot.Menu{CorrelationID: "id-1", Choices: []bot.Choice{
			{Label: "Food", Data: "id-1|Food"},
			{Label: "Rent", Data: "id-1|Rent"},
			{Label: "Skip", Data: "id-1|skip"},
		}},
	}}
	g := newGateway(out, h, log.Discard())

	g.handleUpdate(context.Background(), message("/expense 5 coffee"))

	if len(h.messages) != 1 || h.messages[0].UserID != 2 || h.messages[0].ChatID != 100 || h.messages[0].Username != "alice" {
		t.Fatalf("unexpected handler input: %+v", h.messages)
	}
	if len(out.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(out.sent))
	}
	msg, ok := out.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T", out.sent[0])
	}
	if msg.ChatID != 100 || msg.Text != "Choose a category" || msg.ReplyToMessageID != 10 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("reply markup %T", msg.ReplyMarkup)
	}
	if len(kb.InlineKeyboard) != 2 || len(kb.InlineKeyboard[0]) != 2 || len(kb.InlineKeyboard[1]) != 1 {
		t.Fatalf("unexpected keyboard layout: %+v", kb.InlineKeyboard)
	}
	if d := kb.InlineKeyboard[1][0].CallbackData; d == nil || *d != "id-1|skip" {
		t.Fatalf("unexpected callback data: %v", d)
	}
}

func TestEmptyReplyAndBotsAreIgnored(t *testing.T) {
	out := &fakeSender{}
	h := &fakeHandler{}
	g := newGateway(out, h, log.Discard())

	g.handleUpdate(context.Background(), message("hello"))
	if len(out.sent) != 0 {
		t.Fatal("empty reply should not be sent")
	}

	u := message("/help")
	u.Message.From.IsBot = true
	g.handleUpdate(context.Background(), u)
	if len(h.messages) != 1 {
		t.Fatalf("bot message reached the handler: %+v", h.messages)
	}
}

func TestFinalSelectionClosesMenu(t *testing.T) {
	out := &fakeSender{}
	h := &fakeHandler{reply: bot.Reply{Text: "Saved 5.00 (Food) to Feb 2026", Final: true}}
	g := newGateway(out, h, log.Discard())

	g.handleUpdate(context.Background(), callback("id-1|Food"))

	if len(h.selections) != 1 || h.selections[0].Data != "id-1|Food" || h.selections[0].ChatID != 100 {
		t.Fatalf("unexpected selection: %+v", h.selections)
	}
	if len(out.requested) != 1 {
		t.Fatalf("callback not answered: %+v", out.requested)
	}
	if len(out.sent) != 1 {
		t.Fatalf("expected one edit, got %d", len(out.sent))
	}
	edit, ok := out.sent[0].(tgbotapi.EditMessageTextConfig)
	if !ok {
		t.Fatalf("sent %T", out.sent[0])
	}
	if edit.MessageID != 11 || edit.Text != "Saved 5.00 (Food) to Feb 2026" || edit.ReplyMarkup != nil {
		t.Fatalf("unexpected edit: %+v", edit)
	}
}

func TestRejectedSelectionKeepsMenu(t *testing.T) {
	out := &fakeSender{}
	h := &fakeHandler{reply: bot.Reply{Text: "Only the person who submitted this expense can choose its category."}}
	g := newGateway(out, h, log.Discard())

	g.handleUpdate(context.Background(), callback("id-1|Food"))

	if len(out.sent) != 0 {
		t.Fatal("menu should not be edited")
	}
	if len(out.requested) != 1 {
		t.Fatalf("expected one callback answer, got %d", len(out.requested))
	}
	cb, ok := out.requested[0].(tgbotapi.CallbackConfig)
	if !ok || cb.CallbackQueryID != "cb-1" || cb.Text != h.reply.Text {
		t.Fatalf("unexpected callback answer: %+v", out.requested[0])
	}
}
