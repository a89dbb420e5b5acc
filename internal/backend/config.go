package backend

import (
	"fmt"

	"expensebot/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	accessType := AccessType(appConfig.AccessStore)
	if appConfig.AccessStore == "" {
		accessType = FileAccess
	}
	if !accessType.IsValid() {
		return Config{}, fmt.Errorf("invalid access store in config: %s", appConfig.AccessStore)
	}

	return Config{
		Type:       backendType,
		AccessType: accessType,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		ApprovedUsersFile: appConfig.ApprovedUsersFile,
		SQLiteDBPath:      appConfig.SQLiteDBPath,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SheetsBackend && c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
	}
	return nil
}

// ValidateAccess validates the approved-user store configuration
func (c Config) ValidateAccess() error {
	switch c.AccessType {
	case FileAccess:
		if c.ApprovedUsersFile == "" {
			return fmt.Errorf("approved users file path is required for file access store")
		}
	case SQLiteAccess:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite access store")
		}
	default:
		return fmt.Errorf("invalid access store: %s", c.AccessType)
	}
	return nil
}
