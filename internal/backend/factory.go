package backend

import (
	"context"
	"fmt"

	"expensebot/internal/access"
	"expensebot/internal/log"
	gsheet "expensebot/internal/sheets/google"
	"expensebot/internal/sheets/memory"
	"expensebot/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentStorage})
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend")

	return &BackendResult{Backend: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Using in-memory spreadsheet backend, ledgers are lost on exit")
	return &BackendResult{Backend: memory.New()}, nil
}

// CreateAccessStore implements Factory.CreateAccessStore
func (f *DefaultFactory) CreateAccessStore(ctx context.Context, config Config) (*AccessResult, error) {
	if err := config.ValidateAccess(); err != nil {
		return nil, err
	}

	switch config.AccessType {
	case SQLiteAccess:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite access store", "db_path", config.SQLiteDBPath)
		return &AccessResult{Store: repo, Cleanup: repo.Close}, nil
	default:
		f.logger.InfoContext(ctx, "Initialized file access store", "path", config.ApprovedUsersFile)
		return &AccessResult{Store: access.NewFileStore(config.ApprovedUsersFile)}, nil
	}
}
