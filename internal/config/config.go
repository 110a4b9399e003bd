package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Telegram
	BotToken string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// LLM providers
	OpenAIAPIKey    string
	AnthropicAPIKey string
	DefaultModel    string
	ImageModel      string

	// Security
	TokenSecret string
	AdminTgID   int64

	// Application
	AppEnv        string
	LogLevel      string
	UploadMaxSize int64

	// Credit economy
	WelcomeCredits      int64
	LowBalanceThreshold int64
	CostWarningCredits  int64
	CostCriticalCredits int64
	PendingActionTTL    time.Duration
	ExportWindowDays    int
	MaxContextMessages  int

	Costs CreditCosts
}

// CreditCosts is the static cost table for billable operations.
// Message costs are keyed by model name with a fallback default.
type CreditCosts struct {
	Message        map[string]int64
	MessageDefault int64
	ImageStandard  int64
	ImageHD        int64
	Document       int64
	Photo          int64
}

// MessageCost resolves the credit cost for a chat message on the given model.
func (c CreditCosts) MessageCost(model string) int64 {
	if cost, ok := c.Message[model]; ok {
		return cost
	}
	return c.MessageDefault
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		BotToken:   getEnv("BOT_TOKEN", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "aichatbot"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "aichatbot_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		DefaultModel:    getEnv("DEFAULT_MODEL", "gpt-3.5-turbo"),
		ImageModel:      getEnv("IMAGE_MODEL", "dall-e-3"),

		TokenSecret: getEnv("TOKEN_SECRET", ""),

		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		UploadMaxSize: getEnvInt64("UPLOAD_MAX_SIZE", 26214400),

		WelcomeCredits:      getEnvInt64("WELCOME_CREDITS", 0),
		LowBalanceThreshold: getEnvInt64("LOW_BALANCE_THRESHOLD", 5),
		CostWarningCredits:  getEnvInt64("COST_WARNING_CREDITS", 10),
		CostCriticalCredits: getEnvInt64("COST_CRITICAL_CREDITS", 25),
		PendingActionTTL:    time.Duration(getEnvInt("PENDING_ACTION_TTL_MINUTES", 10)) * time.Minute,
		ExportWindowDays:    getEnvInt("EXPORT_WINDOW_DAYS", 90),
		MaxContextMessages:  getEnvInt("MAX_CONTEXT_MESSAGES", 20),

		Costs: CreditCosts{
			Message: map[string]int64{
				"gpt-3.5-turbo":     1,
				"gpt-4o-mini":       1,
				"gpt-4o":            3,
				"claude-3-5-haiku":  1,
				"claude-3-5-sonnet": 3,
				"gpt-4":             5,
				"o1":                5,
			},
			MessageDefault: getEnvInt64("MESSAGE_COST_DEFAULT", 1),
			ImageStandard:  getEnvInt64("IMAGE_COST_STANDARD", 10),
			ImageHD:        getEnvInt64("IMAGE_COST_HD", 15),
			Document:       getEnvInt64("DOCUMENT_COST", 5),
			Photo:          getEnvInt64("PHOTO_COST", 8),
		},
	}

	adminStr := getEnv("ADMIN_TELEGRAM_ID", "")
	if adminStr != "" {
		id, err := strconv.ParseInt(adminStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
		cfg.AdminTgID = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.TokenSecret == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}
	if len(c.TokenSecret) < 32 {
		return fmt.Errorf("TOKEN_SECRET must be at least 32 characters")
	}
	if c.OpenAIAPIKey == "" && c.AnthropicAPIKey == "" {
		return fmt.Errorf("at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY is required")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.TokenSecret == "your_token_secret_minimum_32_chars_change_this" {
		return fmt.Errorf("TOKEN_SECRET must be changed from default in production")
	}
	if c.AdminTgID == 0 {
		return fmt.Errorf("ADMIN_TELEGRAM_ID must be set in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) IsAdmin(telegramID int64) bool {
	return c.AdminTgID != 0 && telegramID == c.AdminTgID
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}
