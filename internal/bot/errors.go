package bot

import (
	"errors"
	"fmt"

	"expensebot/internal/access"
	"expensebot/internal/command"
	"expensebot/internal/core"
	"expensebot/internal/ledger"
	"expensebot/internal/log"
	"expensebot/internal/sheets"
)

var (
	errForbidden    = errors.New("not authorised")
	errBadSelection = errors.New("malformed selection")
	errNoPending    = errors.New("no pending expense for selection")
	errBadTarget    = errors.New("invalid target")
	errMissingArg   = errors.New("missing argument")
)

// describe maps an error to the user-facing reply and its log category.
func describe(err error) (string, string) {
	var perr *command.ParseError
	switch {
	case errors.As(err, &perr) && errors.Is(err, command.ErrMissingAmount):
		return "Please include an amount: /expense <amount> [description]", log.ErrorTypeValidation
	case errors.As(err, &perr) && errors.Is(err, command.ErrInvalidAmount):
		return fmt.Sprintf("%q is not a valid amount. Use a positive number such as 12.50.", perr.Token), log.ErrorTypeValidation
	case errors.As(err, &perr):
		return "Use /expense <amount> [description] to log an expense.", log.ErrorTypeValidation
	case errors.Is(err, errBadTarget):
		return "The target must be a positive number such as 1000.", log.ErrorTypeValidation
	case errors.Is(err, core.ErrUnknownType):
		return "Unknown category, please choose one from the menu.", log.ErrorTypeValidation
	case errors.Is(err, errBadSelection):
		return "This selection could not be read, please resubmit the expense.", log.ErrorTypeValidation
	case errors.Is(err, errNoPending):
		return "This expense is no longer pending, please resubmit it.", log.ErrorTypeNotFound
	case errors.Is(err, access.ErrAdminNotRevocable):
		return "The admin cannot be revoked.", log.ErrorTypeValidation
	case errors.Is(err, access.ErrInvalidIdentity):
		return "User ids are positive numbers.", log.ErrorTypeValidation
	case errors.Is(err, ledger.ErrOldLayout):
		return "This month's sheet still uses the old layout. An admin must run /migrate before it can be changed.", log.ErrorTypeConfiguration
	case sheets.IsCredentialError(err):
		return "The spreadsheet rejected the bot's credentials. The operator must check the service account and sharing settings.", log.ErrorTypeAuth
	case errors.Is(err, sheets.ErrNotFound):
		return "The spreadsheet was not found. The operator must check the spreadsheet id.", log.ErrorTypeNotFound
	default:
		return "Something went wrong talking to the spreadsheet. Please try again later.", log.ErrorTypeBackend
	}
}
