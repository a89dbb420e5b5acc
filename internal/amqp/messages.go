package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"expensebot/internal/core"
)

// Routing key suffixes, appended to the configured prefix.
const (
	KeyExpenseLogged = "expense.logged"
	KeyLedgerReset   = "ledger.reset"
)

// ExpenseLoggedMessage announces a row appended to a monthly ledger.
type ExpenseLoggedMessage struct {
	EventID     string    `json:"event_id"`
	Ledger      string    `json:"ledger"`
	Date        string    `json:"date"`
	Type        string    `json:"type,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description"`
	Author      string    `json:"author,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// LedgerResetMessage announces that a ledger was wiped.
type LedgerResetMessage struct {
	EventID     string    `json:"event_id"`
	Ledger      string    `json:"ledger"`
	TargetCents int64     `json:"target_cents"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewExpenseLoggedMessage(ledger string, e core.Expense) *ExpenseLoggedMessage {
	return &ExpenseLoggedMessage{
		EventID:     uuid.NewString(),
		Ledger:      ledger,
		Date:        e.Date.String(),
		Type:        e.Type,
		AmountCents: e.Amount.Cents,
		Description: e.Description,
		Author:      e.Author,
		Timestamp:   time.Now().UTC(),
	}
}

func NewLedgerResetMessage(ledger string, target core.Money) *LedgerResetMessage {
	return &LedgerResetMessage{
		EventID:     uuid.NewString(),
		Ledger:      ledger,
		TargetCents: target.Cents,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseLoggedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToJSON converts the message to JSON bytes
func (m *LedgerResetMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
