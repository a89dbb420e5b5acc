package ledger

import (
	"context"
	"time"

	"expensebot/internal/core"
	"expensebot/internal/log"
)

// Events receives ledger mutations after they are persisted. Delivery
// failures are logged and never fail the mutation.
type Events interface {
	ExpenseLogged(ctx context.Context, ledger string, e core.Expense) error
	LedgerReset(ctx context.Context, ledger string, target core.Money) error
}

// Service maps dates to monthly tabs and exposes the ledger operations the
// chat commands need.
type Service struct {
	m           *Manager
	now         func() time.Time
	events      Events
	defaultName string
	logger      *log.Logger
}

type ServiceOption func(*Service)

// WithClock injects the clock used to pick the current month.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithEvents(e Events) ServiceOption {
	return func(s *Service) { s.events = e }
}

// WithDefaultLedger names the tab prepared by InitDefault. Empty means the
// current month's tab.
func WithDefaultLedger(name string) ServiceOption {
	return func(s *Service) { s.defaultName = name }
}

func WithServiceLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func NewService(m *Manager, opts ...ServiceOption) *Service {
	s := &Service{m: m, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = m.logger
	}
	return s
}

// CurrentLedger is the tab name for the current month.
func (s *Service) CurrentLedger() string {
	return MonthlyLedgerName(s.now())
}

// LogExpense appends e to the tab of the month it is dated in.
func (s *Service) LogExpense(ctx context.Context, e core.Expense) (string, Result, error) {
	name := MonthlyLedgerName(e.Date.Time)
	res, err := s.m.AppendExpense(ctx, name, e)
	if err != nil {
		return name, res, err
	}
	log.NewStructuredLogger(s.logger).LogExpenseLogged(ctx, name, e.Description, e.Amount.Cents, e.Type)
	if s.events != nil {
		if err := s.events.ExpenseLogged(ctx, name, e); err != nil {
			s.logger.WarnContext(ctx, "Expense event not published", log.FieldLedger, name, log.FieldError, err)
		}
	}
	return name, res, nil
}

func (s *Service) TotalCurrentMonth(ctx context.Context) (core.Money, error) {
	return s.m.Total(ctx, s.CurrentLedger())
}

func (s *Service) TotalAll(ctx context.Context) (core.Money, error) {
	return s.m.TotalAll(ctx)
}

func (s *Service) SummaryCurrentMonth(ctx context.Context) (core.Summary, error) {
	return s.m.ReadSummary(ctx, s.CurrentLedger())
}

func (s *Service) BreakdownCurrentMonth(ctx context.Context) ([]core.TypeAmount, error) {
	return s.m.ReadBreakdown(ctx, s.CurrentLedger())
}

func (s *Service) SetTarget(ctx context.Context, target core.Money) (Result, error) {
	return s.m.SetTarget(ctx, s.CurrentLedger(), target)
}

// ResetCurrentMonth wipes the current tab and rewrites its layout with target.
func (s *Service) ResetCurrentMonth(ctx context.Context, target core.Money) (Result, error) {
	name := s.CurrentLedger()
	res, err := s.m.Reset(ctx, name, target)
	if err != nil {
		return res, err
	}
	if s.events != nil {
		if err := s.events.LedgerReset(ctx, name, target); err != nil {
			s.logger.WarnContext(ctx, "Reset event not published", log.FieldLedger, name, log.FieldError, err)
		}
	}
	return res, nil
}

func (s *Service) MigrateCurrentMonth(ctx context.Context, preserve bool) (MigrationResult, error) {
	return s.m.Migrate(ctx, s.CurrentLedger(), preserve)
}

// InitDefault makes sure the default tab exists and has every region. It is
// run once at startup; an error there stops the process.
func (s *Service) InitDefault(ctx context.Context) (string, Result, error) {
	name := s.defaultName
	if name == "" {
		name = s.CurrentLedger()
	}
	res, err := s.m.EnsureLedger(ctx, name)
	if err != nil {
		return name, res, err
	}
	if s.m.DetectFormat(ctx, name) == FormatOld {
		s.logger.WarnContext(ctx, "Default ledger uses the old layout, run /migrate", log.FieldLedger, name)
		return name, res, nil
	}
	rep, err := s.m.Repair(ctx, name)
	res.merge(rep)
	return name, res, err
}

// Status describes the current month's tab for the ops endpoint.
type Status struct {
	Ledger string `json:"ledger"`
	Exists bool   `json:"exists"`
	Format string `json:"format"`
	Target string `json:"target"`
	Total  string `json:"total"`
	Remain string `json:"remain"`
}

// Status reads the current tab without creating it.
func (s *Service) Status(ctx context.Context) (Status, error) {
	name := s.CurrentLedger()
	st := Status{Ledger: name, Format: FormatUnknown.String()}
	ok, err := s.m.Exists(ctx, name)
	if err != nil {
		return st, err
	}
	st.Exists = ok
	if !ok {
		return st, nil
	}
	st.Format = s.m.DetectFormat(ctx, name).String()
	sum, err := s.m.ReadSummary(ctx, name)
	if err != nil {
		return st, err
	}
	st.Target, st.Total, st.Remain = sum.Target.String(), sum.Total.String(), sum.Remain.String()
	return st, nil
}

// Ping checks that the backend answers a cheap read.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.m.Ledgers(ctx)
	return err
}
