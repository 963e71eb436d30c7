package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type APIConfig struct {
	Addr           string
	DatabaseURL    string
	BcryptCost     int
	SessionTTL     time.Duration
	Market         MarketConfig
	MentorAPIKey   string
	MentorModel    string
	MentorTimeout  time.Duration
	DiscordWebhook string
	LogLevel       slog.Level
}

type MarketConfig struct {
	BaseURL       string
	CacheTTL      time.Duration
	Timeout       time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type WorkerConfig struct {
	Market   MarketConfig
	Symbols  []string
	Periods  []string
	Every    time.Duration
	RunOnce  bool
	LogLevel slog.Level
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadDotEnv reads a .env file when one is present. Real environment
// variables always win over file values.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func (c APIConfig) PersistenceEnabled() bool {
	return c.DatabaseURL != ""
}

func (c APIConfig) MentorEnabled() bool {
	return c.MentorAPIKey != ""
}

// LoadAPIFromEnv never fails on missing DATABASE_URL or GEMINI_API_KEY:
// only the features that depend on them are switched off.
func LoadAPIFromEnv() APIConfig {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("FINMENTOR_API_ADDR", ":8080")
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}

	return APIConfig{
		Addr:           addr,
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		BcryptCost:     clampCost(envIntDefault("FINMENTOR_BCRYPT_COST", bcrypt.DefaultCost)),
		SessionTTL:     envDurationDefault("FINMENTOR_SESSION_TTL", 12*time.Hour),
		Market:         loadMarket(),
		MentorAPIKey:   apiKey,
		MentorModel:    envDefault("MENTOR_MODEL", "gemini-2.0-flash"),
		MentorTimeout:  envDurationDefault("MENTOR_TIMEOUT", 30*time.Second),
		DiscordWebhook: strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL")),
		LogLevel:       envLevelDefault("LOG_LEVEL", slog.LevelInfo),
	}
}

func LoadWorkerFromEnv() WorkerConfig {
	return WorkerConfig{
		Market:   loadMarket(),
		Symbols:  upperAll(envListDefault("WORKER_SYMBOLS", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"})),
		Periods:  envListDefault("WORKER_PERIODS", []string{"1mo", "6mo"}),
		Every:    envDurationDefault("WORKER_EVERY", 30*time.Minute),
		RunOnce:  envBoolDefault("WORKER_RUN_ONCE", false),
		LogLevel: envLevelDefault("LOG_LEVEL", slog.LevelInfo),
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("FM_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func loadMarket() MarketConfig {
	return MarketConfig{
		BaseURL:       strings.TrimRight(envDefault("MARKET_BASE_URL", "https://query1.finance.yahoo.com"), "/"),
		CacheTTL:      envDurationDefault("MARKET_CACHE_TTL", time.Hour),
		Timeout:       envDurationDefault("MARKET_TIMEOUT", 10*time.Second),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envIntDefault("REDIS_DB", 0),
	}
}

func clampCost(cost int) int {
	if cost < bcrypt.MinCost {
		return bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}
	return cost
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToUpper(v)
	}
	return out
}

func envLevelDefault(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return lvl
}
