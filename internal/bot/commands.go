package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"expensebot/internal/core"
	"expensebot/internal/ledger"
	"expensebot/internal/log"
)

// SkipChoice leaves the expense uncategorised.
const SkipChoice = "skip"

const (
	outcomeOK     = "ok"
	outcomeError  = "error"
	outcomeDenied = "denied"
)

type permission int

const (
	permAnyone permission = iota
	permApproved
	permAdmin
)

type handler struct {
	perm permission
	fn   func(s *Service, ctx context.Context, msg Message, args []string) (Reply, error)
}

var handlers = map[string]handler{
	"/start":       {permAnyone, (*Service).help},
	"/help":        {permAnyone, (*Service).help},
	"/whoami":      {permAnyone, (*Service).whoami},
	"/expense":     {permApproved, (*Service).expense},
	"/ex":          {permApproved, (*Service).expense},
	"/total":       {permApproved, (*Service).total},
	"/total_all":   {permApproved, (*Service).totalAll},
	"/breakdown":   {permApproved, (*Service).breakdown},
	"/set_target":  {permApproved, (*Service).setTarget},
	"/reset_sheet": {permAdmin, (*Service).resetSheet},
	"/migrate":     {permAdmin, (*Service).migrate},
	"/approve":     {permAdmin, (*Service).approve},
	"/revoke":      {permAdmin, (*Service).revoke},
	"/users":       {permAdmin, (*Service).users},
}

const helpText = `Log an expense:
/expense <amount> [description]  (or /ex)
then pick a category from the menu.

/total - total for the current month
/total_all - total across all months
/breakdown - current month by category
/set_target <amount> - monthly target
/whoami - your user id

Admin:
/approve <user id>, /revoke <user id>, /users
/reset_sheet confirm [target] - wipe the current month
/migrate [keep|discard] - convert an old-layout month`

func (s *Service) help(context.Context, Message, []string) (Reply, error) {
	return Reply{Text: helpText}, nil
}

func (s *Service) whoami(_ context.Context, msg Message, _ []string) (Reply, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "User id: %d\n", msg.UserID)
	if msg.Username != "" {
		fmt.Fprintf(&b, "Username: %s\n", msg.Username)
	}
	fmt.Fprintf(&b, "Approved: %s\nAdmin: %s", yesNo(s.access.IsApproved(msg.UserID)), yesNo(s.access.IsAdmin(msg.UserID)))
	return Reply{Text: b.String()}, nil
}

func (s *Service) expense(ctx context.Context, msg Message, _ []string) (Reply, error) {
	e, err := s.parser.Parse(msg.Text, author(msg))
	if err != nil {
		return Reply{}, err
	}
	id := s.newID()
	if evicted := s.pending.Put(id, Pending{Expense: e, ChatID: msg.ChatID, UserID: msg.UserID, Created: s.now()}); evicted > 0 {
		s.metrics.PendingExpired(evicted)
		s.logger.WarnContext(ctx, "Pending selections evicted", "count", evicted)
	}
	s.metrics.SetPending(s.pending.Size())
	s.logger.DebugContext(ctx, "Expense awaiting category", log.FieldCorrelationID, id, log.FieldAmountCents, e.Amount.Cents)

	text := fmt.Sprintf("Amount: %s", e.Amount)
	if e.Description != "" {
		text += "\nDescription: " + e.Description
	}
	text += "\nChoose a category:"
	return Reply{Text: text, Menu: categoryMenu(id)}, nil
}

// categoryMenu lists the catalog in order followed by a skip choice.
func categoryMenu(id string) *Menu {
	m := &Menu{CorrelationID: id}
	for _, t := range core.Types() {
		m.Choices = append(m.Choices, Choice{Label: t, Data: id + "|" + t})
	}
	m.Choices = append(m.Choices, Choice{Label: "Skip", Data: id + "|" + SkipChoice})
	return m
}

func (s *Service) total(ctx context.Context, _ Message, _ []string) (Reply, error) {
	name := s.ledger.CurrentLedger()
	total, err := s.ledger.TotalCurrentMonth(ctx)
	if err != nil {
		return Reply{}, err
	}
	sum, err := s.ledger.SummaryCurrentMonth(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Total expenses for %s: %s\nTarget: %s\nRemain: %s", name, total, sum.Target, sum.Remain)}, nil
}

func (s *Service) totalAll(ctx context.Context, _ Message, _ []string) (Reply, error) {
	total, err := s.ledger.TotalAll(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Total expenses across all months: %s", total)}, nil
}

func (s *Service) breakdown(ctx context.Context, _ Message, _ []string) (Reply, error) {
	name := s.ledger.CurrentLedger()
	rows, err := s.ledger.BreakdownCurrentMonth(ctx)
	if err != nil {
		return Reply{}, err
	}
	var b strings.Builder
	var total core.Money
	for _, r := range rows {
		if r.Amount.Cents == 0 {
			continue
		}
		label := r.Name
		if label == core.TypeNone {
			label = "Uncategorised"
		}
		fmt.Fprintf(&b, "\n%s: %s", label, r.Amount)
		total = total.Add(r.Amount)
	}
	if b.Len() == 0 {
		return Reply{Text: "No expenses recorded for " + name + "."}, nil
	}
	return Reply{Text: fmt.Sprintf("Expenses for %s by category:%s\nTotal: %s", name, b.String(), total)}, nil
}

func (s *Service) setTarget(ctx context.Context, _ Message, args []string) (Reply, error) {
	if len(args) == 0 {
		return Reply{Text: "Usage: /set_target <amount>"}, nil
	}
	target, err := core.ParseMoney(args[0])
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %q", errBadTarget, args[0])
	}
	res, err := s.ledger.SetTarget(ctx, target)
	if err != nil {
		return Reply{}, err
	}
	s.metrics.Warnings("set_target", len(res.Warnings))
	return Reply{Text: fmt.Sprintf("Target for %s set to %s.", s.ledger.CurrentLedger(), target)}, nil
}

func (s *Service) resetSheet(ctx context.Context, _ Message, args []string) (Reply, error) {
	name := s.ledger.CurrentLedger()
	if len(args) == 0 || !strings.EqualFold(args[0], "confirm") {
		return Reply{Text: fmt.Sprintf("This deletes every expense in %s. Send /reset_sheet confirm [target] to proceed.", name)}, nil
	}
	target := s.defaultTarget
	if len(args) > 1 {
		t, err := core.ParseMoney(args[1])
		if err != nil {
			return Reply{}, fmt.Errorf("%w: %q", errBadTarget, args[1])
		}
		target = t
	}
	res, err := s.ledger.ResetCurrentMonth(ctx, target)
	if err != nil {
		return Reply{}, err
	}
	s.metrics.Warnings(log.OpReset, len(res.Warnings))
	return Reply{Text: fmt.Sprintf("%s has been reset. Target: %s.", name, target)}, nil
}

func (s *Service) migrate(ctx context.Context, _ Message, args []string) (Reply, error) {
	preserve := true
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "keep":
		case "discard":
			preserve = false
		default:
			return Reply{Text: "Usage: /migrate [keep|discard]"}, nil
		}
	}
	name := s.ledger.CurrentLedger()
	res, err := s.ledger.MigrateCurrentMonth(ctx, preserve)
	if err != nil {
		return Reply{}, err
	}
	s.metrics.Warnings(log.OpMigrate, len(res.Warnings))
	switch {
	case res.Created:
		return Reply{Text: fmt.Sprintf("%s did not exist and was created.", name)}, nil
	case res.From == ledger.FormatNew:
		if len(res.Repaired) > 0 {
			return Reply{Text: fmt.Sprintf("%s already uses the current layout; repaired: %s.", name, strings.Join(res.Repaired, ", "))}, nil
		}
		return Reply{Text: fmt.Sprintf("%s already uses the current layout.", name)}, nil
	case res.From == ledger.FormatOld:
		return Reply{Text: fmt.Sprintf("%s migrated: %d rows kept, %d skipped.", name, res.RowsMigrated, res.RowsSkipped)}, nil
	default:
		return Reply{Text: fmt.Sprintf("%s had no recognisable layout and was initialised.", name)}, nil
	}
}

func (s *Service) approve(ctx context.Context, _ Message, args []string) (Reply, error) {
	id, err := userIDArg(args)
	if err != nil {
		return Reply{Text: "Usage: /approve <user id>"}, nil
	}
	added, err := s.access.Approve(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	if !added {
		return Reply{Text: fmt.Sprintf("User %d is already approved.", id)}, nil
	}
	return Reply{Text: fmt.Sprintf("User %d approved.", id)}, nil
}

func (s *Service) revoke(ctx context.Context, _ Message, args []string) (Reply, error) {
	id, err := userIDArg(args)
	if err != nil {
		return Reply{Text: "Usage: /revoke <user id>"}, nil
	}
	removed, err := s.access.Revoke(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	if !removed {
		return Reply{Text: fmt.Sprintf("User %d was not approved.", id)}, nil
	}
	return Reply{Text: fmt.Sprintf("User %d revoked.", id)}, nil
}

func (s *Service) users(context.Context, Message, []string) (Reply, error) {
	var b strings.Builder
	b.WriteString("Approved users:")
	if s.access.HasAdmin() {
		fmt.Fprintf(&b, "\n%d (admin)", s.access.Admin())
	}
	ids := s.access.List()
	for _, id := range ids {
		if s.access.IsAdmin(id) {
			continue
		}
		fmt.Fprintf(&b, "\n%d", id)
	}
	if len(ids) == 0 && !s.access.HasAdmin() {
		b.WriteString("\nnone")
	}
	return Reply{Text: b.String()}, nil
}

func userIDArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errMissingArg
	}
	return strconv.ParseInt(args[0], 10, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func savedText(ledgerName string, e core.Expense) string {
	t := e.Type
	if t == "" {
		t = "no category"
	}
	text := fmt.Sprintf("Saved %s (%s) to %s", e.Amount, t, ledgerName)
	if e.Description != "" {
		text += ": " + e.Description
	}
	return text + "."
}
