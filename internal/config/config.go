package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"expensebot/internal/core"
)

const (
	GatewayTelegram = "telegram"
	GatewayDiscord  = "discord"

	BackendSheets = "sheets"
	BackendMemory = "memory"

	AccessStoreFile   = "file"
	AccessStoreSQLite = "sqlite"
)

type Config struct {
	// Chat gateway
	Gateway          string
	TelegramBotToken string
	DiscordBotToken  string
	DiscordChannelID string

	// Ledger
	TargetExpense string
	AdminUserID   int64

	// Google Sheets
	GoogleSpreadsheetID          string
	GoogleSheetName              string
	GoogleServiceAccountJSON     string
	GoogleServiceAccountFile     string
	GoogleApplicationCredentials string

	// Backend selection
	DataBackend string

	// Approved users
	AccessStore       string
	ApprovedUsersFile string
	SQLiteDBPath      string

	// AMQP (optional)
	AMQPURL           string
	AMQPExchange      string
	AMQPRoutingPrefix string

	// Pending category selections
	PendingTTL           time.Duration
	PendingMax           int
	PendingSweepInterval time.Duration

	// Ops HTTP server, empty disables it
	OpsPort string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Gateway:          strings.ToLower(getEnv("CHAT_GATEWAY", GatewayTelegram)),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		DiscordBotToken:  getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),

		TargetExpense: getEnv("TARGET_EXPENSE", "1000"),
		AdminUserID:   getEnvInt64("ADMIN_USER_ID", 0),

		GoogleSpreadsheetID:          getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:              getEnv("GOOGLE_SHEET_NAME", ""),
		GoogleServiceAccountJSON:     getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile:     getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleApplicationCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		DataBackend: strings.ToLower(getEnv("DATA_BACKEND", BackendSheets)),

		AccessStore:       strings.ToLower(getEnv("ACCESS_STORE", AccessStoreFile)),
		ApprovedUsersFile: getEnv("APPROVED_USERS_FILE", "./data/approved_users.json"),
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/expensebot.db"),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "expensebot"),
		AMQPRoutingPrefix: getEnv("AMQP_ROUTING_PREFIX", "ledger"),

		PendingTTL:           getEnvDuration("PENDING_TTL", 24*time.Hour),
		PendingMax:           getEnvInt("PENDING_MAX", 1000),
		PendingSweepInterval: getEnvDuration("PENDING_SWEEP_INTERVAL", time.Minute),

		OpsPort:  getEnv("OPS_PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Target returns TARGET_EXPENSE as money. Validate reports a malformed value;
// callers that skipped validation get zero.
func (c *Config) Target() core.Money {
	m, err := core.ParseMoney(c.TargetExpense)
	if err != nil {
		return core.Money{}
	}
	return m
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Chat gateway
	switch c.Gateway {
	case GatewayTelegram:
		if c.TelegramBotToken == "" {
			errors = append(errors, "TELEGRAM_BOT_TOKEN is required when using the telegram gateway")
		}
	case GatewayDiscord:
		if c.DiscordBotToken == "" {
			errors = append(errors, "DISCORD_BOT_TOKEN is required when using the discord gateway")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid chat gateway '%s': must be one of [%s %s]", c.Gateway, GatewayTelegram, GatewayDiscord))
	}

	errors = append(errors, c.validateLedger()...)

	// Approved users store
	switch c.AccessStore {
	case AccessStoreFile:
		if c.ApprovedUsersFile == "" {
			errors = append(errors, "APPROVED_USERS_FILE cannot be empty when using the file access store")
		} else if msg := ensureDir(c.ApprovedUsersFile); msg != "" {
			errors = append(errors, msg)
		}
	case AccessStoreSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using the sqlite access store")
		} else if msg := ensureDir(c.SQLiteDBPath); msg != "" {
			errors = append(errors, msg)
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid access store '%s': must be one of [%s %s]", c.AccessStore, AccessStoreFile, AccessStoreSQLite))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// Pending selections
	if c.PendingTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid pending TTL %v: must be at least 1 minute", c.PendingTTL))
	}
	if c.PendingMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid pending max %d: must be at least 1", c.PendingMax))
	}
	if c.PendingSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid pending sweep interval %v: must be at least 1 second", c.PendingSweepInterval))
	}

	// Validate ops port
	if c.OpsPort != "" {
		if port, err := strconv.Atoi(c.OpsPort); err != nil {
			errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.OpsPort))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateLedger checks only the settings the ledger-admin tool needs.
func (c *Config) ValidateLedger() error {
	if errors := c.validateLedger(); len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateLedger() []string {
	var errors []string

	if _, err := core.ParseMoney(c.TargetExpense); err != nil {
		errors = append(errors, fmt.Sprintf("invalid target expense '%s': must be a positive amount", c.TargetExpense))
	}
	if c.AdminUserID < 0 {
		errors = append(errors, fmt.Sprintf("invalid admin user id %d: must be positive", c.AdminUserID))
	}

	switch c.DataBackend {
	case BackendMemory:
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile && c.GoogleApplicationCredentials == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendSheets, BackendMemory))
	}

	return errors
}

// ensureDir creates the parent directory of path and returns a message when
// that fails.
func ensureDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("cannot create directory '%s': %v", dir, err)
		}
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
