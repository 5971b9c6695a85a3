// Package config handles environment-based configuration loading and the
// endpoint catalog.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Resinat/Relayview/internal/logging"
	"github.com/Resinat/Relayview/internal/netutil"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Network
	ListenAddress string
	Port          int

	// API
	APIMaxBodyBytes int

	// Catalog
	CatalogPath string

	// Logging
	LogLevel   string
	LogConsole bool

	// Session lifecycle
	LoadTimeout     time.Duration
	MaxRetries      int
	RetryBackoffMin time.Duration
	RetryBackoffMax time.Duration
	HistorySize     int
	EmbedOrigin     string

	// Endpoint health
	BlockCooldown     time.Duration
	IdleRecoveryAfter time.Duration
	RecoverySchedule  string
}

// Addr returns the HTTP listen address.
func (c *EnvConfig) Addr() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(c.Port))
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// All validation errors are reported together.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Network ---
	cfg.ListenAddress = strings.TrimSpace(envStr("RELAYVIEW_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("RELAYVIEW_PORT", 2280, &errs)
	cfg.APIMaxBodyBytes = envInt("RELAYVIEW_API_MAX_BODY_BYTES", 1<<20, &errs)

	// --- Catalog ---
	cfg.CatalogPath = strings.TrimSpace(envStr("RELAYVIEW_CATALOG_PATH", ""))

	// --- Logging ---
	cfg.LogLevel = envStr("RELAYVIEW_LOG_LEVEL", "info")
	cfg.LogConsole = envBool("RELAYVIEW_LOG_CONSOLE", true, &errs)

	// --- Session lifecycle ---
	cfg.LoadTimeout = envDuration("RELAYVIEW_LOAD_TIMEOUT", 15*time.Second, &errs)
	cfg.MaxRetries = envInt("RELAYVIEW_MAX_RETRIES", 3, &errs)
	cfg.RetryBackoffMin = envDuration("RELAYVIEW_RETRY_BACKOFF_MIN", 2*time.Second, &errs)
	cfg.RetryBackoffMax = envDuration("RELAYVIEW_RETRY_BACKOFF_MAX", 5*time.Second, &errs)
	cfg.HistorySize = envInt("RELAYVIEW_HISTORY_SIZE", 1024, &errs)
	cfg.EmbedOrigin = strings.TrimSpace(envStr("RELAYVIEW_EMBED_ORIGIN", ""))

	// --- Endpoint health ---
	cfg.BlockCooldown = envDuration("RELAYVIEW_BLOCK_COOLDOWN", 60*time.Second, &errs)
	cfg.IdleRecoveryAfter = envDuration("RELAYVIEW_IDLE_RECOVERY_AFTER", 5*time.Minute, &errs)
	cfg.RecoverySchedule = envStr("RELAYVIEW_RECOVERY_SCHEDULE", "@every 30s")

	// --- Validation ---
	if cfg.ListenAddress == "" {
		errs = append(errs, "RELAYVIEW_LISTEN_ADDRESS must not be empty")
	}
	validatePort("RELAYVIEW_PORT", cfg.Port, &errs)
	validatePositive("RELAYVIEW_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("RELAYVIEW_LOG_LEVEL: %v", err))
	}

	if cfg.LoadTimeout <= 0 {
		errs = append(errs, "RELAYVIEW_LOAD_TIMEOUT must be positive")
	}
	validatePositive("RELAYVIEW_MAX_RETRIES", cfg.MaxRetries, &errs)
	if cfg.RetryBackoffMin <= 0 {
		errs = append(errs, "RELAYVIEW_RETRY_BACKOFF_MIN must be positive")
	}
	if cfg.RetryBackoffMax < cfg.RetryBackoffMin {
		errs = append(errs, "RELAYVIEW_RETRY_BACKOFF_MAX must be greater than or equal to RELAYVIEW_RETRY_BACKOFF_MIN")
	}
	validatePositive("RELAYVIEW_HISTORY_SIZE", cfg.HistorySize, &errs)
	if cfg.EmbedOrigin != "" {
		if _, err := netutil.NormalizeEmbedPrefix(cfg.EmbedOrigin); err != nil {
			errs = append(errs, fmt.Sprintf("RELAYVIEW_EMBED_ORIGIN: %v", err))
		}
	}

	if cfg.BlockCooldown <= 0 {
		errs = append(errs, "RELAYVIEW_BLOCK_COOLDOWN must be positive")
	}
	if cfg.IdleRecoveryAfter <= 0 {
		errs = append(errs, "RELAYVIEW_IDLE_RECOVERY_AFTER must be positive")
	}
	if _, err := cron.ParseStandard(cfg.RecoverySchedule); err != nil {
		errs = append(errs, fmt.Sprintf("RELAYVIEW_RECOVERY_SCHEDULE: invalid cron expression %q: %v", cfg.RecoverySchedule, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envBool(key string, defaultVal bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
