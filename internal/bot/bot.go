// Package bot turns chat messages and category selections into ledger
// operations and reply text. It is independent of any chat transport.
package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"expensebot/internal/access"
	"expensebot/internal/cache"
	"expensebot/internal/command"
	"expensebot/internal/core"
	"expensebot/internal/ledger"
	"expensebot/internal/log"
	"expensebot/internal/metrics"
)

// Message is one inbound chat message.
type Message struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
}

// Selection is a category choice made on a menu. Data is the option's
// callback payload.
type Selection struct {
	ChatID   int64
	UserID   int64
	Username string
	Data     string
}

// Reply is what the gateway sends back. An empty Text means no reply.
// Final marks a selection reply after which the menu is no longer usable.
type Reply struct {
	Text  string
	Menu  *Menu
	Final bool
}

// Menu is a list of category choices bound to one pending expense.
type Menu struct {
	CorrelationID string
	Choices       []Choice
}

type Choice struct {
	Label string
	Data  string
}

// Pending is an expense waiting for its category.
type Pending struct {
	Expense core.Expense
	ChatID  int64
	UserID  int64
	Created time.Time
}

type Service struct {
	ledger        *ledger.Service
	access        *access.Ledger
	parser        *command.Parser
	pending       *cache.Arena[Pending]
	metrics       *metrics.Metrics
	logger        *log.Logger
	newID         func() string
	now           func() time.Time
	defaultTarget core.Money
}

type Option func(*Service)

func WithParser(p *command.Parser) Option {
	return func(s *Service) { s.parser = p }
}

func WithPendingArena(a *cache.Arena[Pending]) Option {
	return func(s *Service) { s.pending = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithIDGenerator replaces the correlation id source; used by tests.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithDefaultTarget sets the target applied by /reset_sheet when none is given.
func WithDefaultTarget(t core.Money) Option {
	return func(s *Service) { s.defaultTarget = t }
}

func New(l *ledger.Service, acl *access.Ledger, opts ...Option) *Service {
	s := &Service{
		ledger: l,
		access: acl,
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.parser == nil {
		s.parser = command.NewParser()
	}
	if s.pending == nil {
		s.pending = cache.NewArena[Pending](1000, 24*time.Hour)
	}
	if s.logger == nil {
		s.logger = log.New(log.Config{Component: log.ComponentBot})
	}
	return s
}

// Pending exposes the arena so it can be registered with a cache.Sweeper.
func (s *Service) Pending() *cache.Arena[Pending] { return s.pending }

// HandleMessage runs one chat command and returns its reply. Text that is
// not a slash command gets no reply.
func (s *Service) HandleMessage(ctx context.Context, msg Message) Reply {
	name, args := command.Split(msg.Text)
	if name == "" {
		return Reply{}
	}

	h, ok := handlers[name]
	if !ok {
		s.metrics.Command("unknown", outcomeOK)
		return Reply{Text: "Unknown command. Send /help for the list of commands."}
	}
	if h.perm == permApproved && !s.access.IsApproved(msg.UserID) {
		return s.deny(ctx, name, msg, "You are not authorised to use this bot. Ask the admin to approve your user id "+strconv.FormatInt(msg.UserID, 10)+".")
	}
	if h.perm == permAdmin && !s.access.IsAdmin(msg.UserID) {
		return s.deny(ctx, name, msg, "Only the admin can use "+name+".")
	}

	reply, err := h.fn(s, ctx, msg, args)
	if err != nil {
		return s.fail(ctx, name, msg.ChatID, msg.UserID, err)
	}
	s.metrics.Command(name, outcomeOK)
	return reply
}

// HandleSelection completes a pending expense with the chosen category.
func (s *Service) HandleSelection(ctx context.Context, sel Selection) Reply {
	const name = "select"
	id, choice, ok := strings.Cut(sel.Data, "|")
	if !ok || id == "" || choice == "" {
		r := s.fail(ctx, name, sel.ChatID, sel.UserID, errBadSelection)
		r.Final = true
		return r
	}
	if !s.access.IsApproved(sel.UserID) {
		return s.deny(ctx, name, Message{ChatID: sel.ChatID, UserID: sel.UserID}, "You are not authorised to use this bot.")
	}

	p, found := s.pending.Get(id)
	if !found {
		s.metrics.SetPending(s.pending.Size())
		r := s.fail(ctx, name, sel.ChatID, sel.UserID, errNoPending)
		r.Final = true
		return r
	}
	if p.UserID != sel.UserID {
		return s.deny(ctx, name, Message{ChatID: sel.ChatID, UserID: sel.UserID}, "Only the person who submitted this expense can choose its category.")
	}

	e := p.Expense
	if choice != SkipChoice {
		t, ok := core.NormalizeType(choice)
		if !ok {
			return s.fail(ctx, name, sel.ChatID, sel.UserID, core.ErrUnknownType)
		}
		e.Type = t
	}

	if _, ok := s.pending.Take(id); !ok {
		r := s.fail(ctx, name, sel.ChatID, sel.UserID, errNoPending)
		r.Final = true
		return r
	}
	s.metrics.SetPending(s.pending.Size())

	ledgerName, res, err := s.ledger.LogExpense(ctx, e)
	if err != nil {
		// Keep the expense so the user can press the button again.
		s.pending.Put(id, p)
		s.metrics.SetPending(s.pending.Size())
		return s.fail(ctx, name, sel.ChatID, sel.UserID, err)
	}
	s.metrics.Warnings(log.OpAppend, len(res.Warnings))
	s.metrics.ExpenseLogged(e.Type, e.Amount.Cents)
	s.metrics.Command(name, outcomeOK)
	s.logger.InfoContext(ctx, "Expense categorised",
		log.FieldCorrelationID, id,
		log.FieldLedger, ledgerName,
		log.FieldExpenseType, e.Type)
	return Reply{Text: savedText(ledgerName, e), Final: true}
}

func (s *Service) deny(ctx context.Context, name string, msg Message, text string) Reply {
	s.metrics.Command(name, outcomeDenied)
	log.NewStructuredLogger(s.logger).LogCommandError(ctx, name, msg.ChatID, msg.UserID, errForbidden, log.ErrorTypeForbidden)
	return Reply{Text: text}
}

func (s *Service) fail(ctx context.Context, name string, chatID, userID int64, err error) Reply {
	text, errorType := describe(err)
	s.metrics.Command(name, outcomeError)
	log.NewStructuredLogger(s.logger).LogCommandError(ctx, name, chatID, userID, err, errorType)
	return Reply{Text: text}
}

func author(msg Message) string {
	if msg.Username != "" {
		return msg.Username
	}
	return strconv.FormatInt(msg.UserID, 10)
}
