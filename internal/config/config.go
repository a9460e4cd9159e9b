package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers accepted by MADELINE_STORE_DRIVER.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	// Discord
	DiscordToken   string // bot token, without the "Bot " prefix
	DiscordAppID   string // optional, resolved from the ready event when empty
	DiscordGuildID string // optional, register commands to one guild instead of globally

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Bookmark storage
	StoreDriver string // "redis" | "sqlite" | "memory"
	SQLitePath  string // database file for the sqlite driver

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Upstreams
	WikiAPIURL   string        // docs search API base (ex: https://api.open.mp)
	WikiSiteURL  string        // docs site used to resolve relative article links
	QueryTimeout time.Duration // deadline of one UDP query exchange

	// Interaction state
	PaginatorTimeout time.Duration // idle lifetime of a paginated response
	SweepInterval    time.Duration // how often expired sessions and cooldowns are dropped

	// Operational HTTP
	HTTPEnabled     bool
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	AllowedCIDRS    []string      // optional, restrict /readyz and /infra (e.g. "10.0.0.0/8, 1.2.3.4")
	TrustProxy      bool          // true => trust X-Forwarded-For headers
}

// Load reads .env (if present), then the optional YAML file named by
// MADELINE_CONFIG_FILE, then the environment. Values already present in
// the environment always win. Missing required values panic.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic(fmt.Sprintf("❌ FATAL: failed to read .env: %v", err))
	}
	if path := os.Getenv("MADELINE_CONFIG_FILE"); path != "" {
		if err := applyFile(path); err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
	}

	cfg := &Config{
		DiscordToken:   strings.TrimPrefix(requireEnv("DISCORD_TOKEN"), "Bot "),
		DiscordAppID:   getenv("DISCORD_APP_ID", ""),
		DiscordGuildID: getenv("DISCORD_GUILD_ID", ""),

		// Logging
		LogLevel:  getenv("MADELINE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MADELINE_PRETTY_LOG", false),

		// Storage
		StoreDriver: strings.ToLower(getenv("MADELINE_STORE_DRIVER", DriverRedis)),
		SQLitePath:  getenv("MADELINE_SQLITE_PATH", "madeline.db"),

		// Upstreams
		WikiAPIURL:   getenv("MADELINE_WIKI_API_URL", "https://api.open.mp"),
		WikiSiteURL:  getenv("MADELINE_WIKI_SITE_URL", "https://www.open.mp"),
		QueryTimeout: mustDuration("MADELINE_QUERY_TIMEOUT", 2*time.Second),

		PaginatorTimeout: mustDuration("MADELINE_PAGINATOR_TIMEOUT", 30*time.Second),
		SweepInterval:    mustDuration("MADELINE_SWEEP_INTERVAL", time.Minute),

		// HTTP
		HTTPEnabled:     mustBool("MADELINE_HTTP_ENABLED", true),
		ListenPort:      getenv("MADELINE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MADELINE_SHUTDOWN_TIMEOUT", 5*time.Second),
		AllowedCIDRS:    parseAllowedIPs(getenv("MADELINE_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("MADELINE_TRUST_PROXY", false),
	}

	switch cfg.StoreDriver {
	case DriverRedis:
		loadRedis(cfg)
	case DriverSQLite, DriverMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: unknown MADELINE_STORE_DRIVER %q (want redis, sqlite or memory)", cfg.StoreDriver))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("MADELINE_REDIS_ADDR")
	cfg.RedisUser = getenv("MADELINE_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("MADELINE_REDIS_PASSWORD_REQUIRED", false)
	cfg.RedisPassword = getenv("MADELINE_REDIS_PASSWORD", "")
	cfg.RedisDB = getenvInt("MADELINE_REDIS_DB", 0)
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: MADELINE_REDIS_PASSWORD is required when MADELINE_REDIS_PASSWORD_REQUIRED=true")
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	cp.DiscordToken = "***REDACTED***"
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

// applyFile exports the keys of a flat YAML mapping (KEY: value) into
// the environment, skipping keys that are already set.
func applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for key, val := range raw {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, yamlString(val)); err != nil {
			return fmt.Errorf("failed to export %s: %w", key, err)
		}
	}
	return nil
}

// yamlString renders a scalar or a list (joined by commas) the way the
// env helpers expect it.
func yamlString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
