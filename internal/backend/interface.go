package backend

import (
	"context"

	"expensebot/internal/access"
	"expensebot/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the spreadsheet backend and optional cleanup function
type BackendResult struct {
	Backend sheets.Backend
	Cleanup CleanupFunc
}

// AccessResult contains the approved-user store and optional cleanup function
type AccessResult struct {
	Store   access.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateAccessStore(ctx context.Context, config Config) (*AccessResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type       BackendType
	AccessType AccessType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Approved users
	ApprovedUsersFile string
	SQLiteDBPath      string
}

// BackendType represents the type of spreadsheet backend
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// AccessType selects where approved users are persisted
type AccessType string

const (
	FileAccess   AccessType = "file"
	SQLiteAccess AccessType = "sqlite"
)

func (at AccessType) String() string {
	return string(at)
}

func (at AccessType) IsValid() bool {
	switch at {
	case FileAccess, SQLiteAccess:
		return true
	default:
		return false
	}
}
