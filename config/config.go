package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Code columns are varchar(32) and the generator may add up to 8 characters
// to the configured length.
const (
	MinCodeLength = 4
	MaxCodeLength = 24
)

type Config struct {
	BotToken       string
	TelegramAPIURL string
	TelegramMode   string
	WebhookURL     string
	WebhookSecret  string
	AdminIDs       map[int64]struct{}

	DatabaseURL string
	Port        string

	OperatorAPIToken string

	DefaultPromoCoins      int
	CodeLength             int
	MembershipCheckTimeout time.Duration
	BroadcastConcurrency   int
	PollTimeout            time.Duration

	LogLevel string
	SeedFile string

	R2 R2Config

	AuditExportCron string
}

// R2Config is optional; audit exports are disabled when Bucket is empty.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

func (r R2Config) Enabled() bool {
	return r.Bucket != "" && r.AccountID != ""
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse builds a Config from the current environment without touching .env.
func Parse() Config {
	return Config{
		BotToken:       getString("BOT_TOKEN", ""),
		TelegramAPIURL: strings.TrimRight(getString("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
		TelegramMode:   strings.ToLower(getString("TELEGRAM_MODE", ModePolling)),
		WebhookURL:     getString("WEBHOOK_URL", ""),
		WebhookSecret:  getString("WEBHOOK_SECRET", ""),
		AdminIDs:       parseAdminIDs(getString("ADMIN_IDS", "")),

		DatabaseURL: getString("DATABASE_URL", ""),
		Port:        getString("PORT", "8000"),

		OperatorAPIToken: getString("OPERATOR_API_TOKEN", ""),

		DefaultPromoCoins:      getInt("DEFAULT_PROMO_COINS", 5),
		CodeLength:             getInt("CODE_LENGTH", 8),
		MembershipCheckTimeout: getDuration("MEMBERSHIP_CHECK_TIMEOUT", 5*time.Second),
		BroadcastConcurrency:   getInt("BROADCAST_CONCURRENCY", 8),
		PollTimeout:            getDuration("POLL_TIMEOUT", 30*time.Second),

		LogLevel: strings.ToLower(getString("LOG_LEVEL", "info")),
		SeedFile: getString("SEED_FILE", ""),

		R2: R2Config{
			AccountID:       getString("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     getString("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: getString("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          getString("R2_BUCKET_NAME", ""),
			CDNBaseURL:      getString("CDN_BASE_URL", ""),
		},

		AuditExportCron: getString("AUDIT_EXPORT_CRON", "0 3 * * *"),
	}
}

// ValidateServe checks the settings the long-running bot cannot start without.
func (c Config) ValidateServe() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN environment variable not set"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	switch c.TelegramMode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" || c.WebhookSecret == "" {
			errs = append(errs, errors.New("WEBHOOK_URL and WEBHOOK_SECRET are required in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("TELEGRAM_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, c.TelegramMode))
	}
	if c.CodeLength < MinCodeLength || c.CodeLength > MaxCodeLength {
		errs = append(errs, fmt.Errorf("CODE_LENGTH must be between %d and %d, got %d", MinCodeLength, MaxCodeLength, c.CodeLength))
	}
	return errors.Join(errs...)
}

// IsAdmin reports whether a Telegram user may run operator commands.
func (c Config) IsAdmin(telegramID int64) bool {
	_, ok := c.AdminIDs[telegramID]
	return ok
}

func parseAdminIDs(csv string) map[int64]struct{} {
	ids := make(map[int64]struct{})
	for _, raw := range strings.Split(csv, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("⚠️  Ignoring invalid ADMIN_IDS entry %q", raw)
			continue
		}
		ids[id] = struct{}{}
	}
	return ids
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getDuration accepts Go durations ("5s") or plain seconds ("5").
func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
