// Package command turns raw chat text into commands and expense records.
package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"expensebot/internal/core"
)

const (
	Expense      = "/expense"
	ExpenseAlias = "/ex"
)

var (
	ErrMissingCommand = errors.New("missing expense command")
	ErrMissingAmount  = errors.New("missing amount")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// ParseError reports which validation step rejected the input.
type ParseError struct {
	Err   error
	Token string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Token)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser parses expense commands. Now is read once per successful parse to
// stamp the record date; tests inject a fixed clock.
type Parser struct {
	Now func() time.Time
}

// NewParser returns a parser using the system clock.
func NewParser() *Parser {
	return &Parser{Now: time.Now}
}

var defaultParser = NewParser()

// Parse parses text with the system clock.
func Parse(text, author string) (core.Expense, error) {
	return defaultParser.Parse(text, author)
}

// Parse validates an /expense (or /ex) command and returns the record it
// describes. The record has no type: category selection happens later.
func (p *Parser) Parse(text, author string) (core.Expense, error) {
	name, args := Split(text)
	if name != Expense && name != ExpenseAlias {
		return core.Expense{}, &ParseError{Err: ErrMissingCommand, Token: firstField(text)}
	}
	if len(args) == 0 || args[0] == "" {
		return core.Expense{}, &ParseError{Err: ErrMissingAmount}
	}
	cents, err := core.ParseDecimalToCents(args[0])
	if err != nil {
		return core.Expense{}, &ParseError{Err: ErrInvalidAmount, Token: args[0]}
	}
	now := time.Now
	if p != nil && p.Now != nil {
		now = p.Now
	}
	return core.Expense{
		Date:        core.DateOf(now()),
		Amount:      core.Money{Cents: cents},
		Description: strings.Join(args[1:], " "),
		Author:      author,
	}, nil
}

// Split returns the lower-cased command word of text, with any @botname
// suffix removed, and the whitespace-separated arguments that follow it.
// name is empty when text does not start with a slash command.
func Split(text string) (name string, args []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name = fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:]
}

func firstField(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
