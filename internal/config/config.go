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
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "PHONEVERSE_CONFIG"
	portEnv           = "PORT"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	jwtSecretEnv      = "JWT_SECRET"
	autoApproveEnv    = "AUTO_APPROVE"
	manualPhaseEnv    = "MANUAL_PHASE"
	scheduleEnv       = "CHECK_NEWS_EVERY"
	maxAttemptsEnv    = "MAX_ARTICLES_PER_BATCH"
	maxSavedEnv       = "MAX_PUBLISH_PER_BATCH"
	rewriterEnv       = "REWRITER"
	groqAPIKeyEnv     = "GROQ_API_KEY"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	aiModelEnv        = "AI_MODEL"
	cohereAPIKeyEnv   = "COHERE_API_KEY"
	redisAddrEnv      = "REDIS_ADDR"
	natsURLEnv        = "NATS_URL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	s3BucketEnv       = "S3_BUCKET"
	s3RegionEnv       = "S3_REGION"
	logLevelEnv       = "LOG_LEVEL"
)

// Rewriter strategy names.
const (
	RewriterTemplate = "template"
	RewriterOpenAI   = "openai"
	RewriterCohere   = "cohere"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Automation AutomationConfig `yaml:"automation"`
	Publishing PublishingConfig `yaml:"publishing"`
	Feeds      FeedsConfig      `yaml:"feeds"`
	Rewriter   RewriterConfig   `yaml:"rewriter"`
	Images     ImagesConfig     `yaml:"images"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig describes the HTTP listener and static assets.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	StaticDir       string        `yaml:"staticDir"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	SecureCookies   bool          `yaml:"secureCookies"`
}

// DatabaseConfig selects the SQL driver and connection string.
type DatabaseConfig struct {
	Driver    string        `yaml:"driver"`
	DSN       string        `yaml:"dsn"`
	KeepAlive time.Duration `yaml:"keepAlive"`
}

// AuthConfig controls token issuance and password hashing.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwtSecret"`
	TokenTTL      time.Duration `yaml:"tokenTTL"`
	BcryptCost    int           `yaml:"bcryptCost"`
	SweepSchedule string        `yaml:"sweepSchedule"`
}

// AutomationConfig bounds the ingestion batch.
type AutomationConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Schedule          string        `yaml:"schedule"`
	InitialDelay      time.Duration `yaml:"initialDelay"`
	MaxSavedPerRun    int           `yaml:"maxSavedPerRun"`
	MaxAttemptsPerRun int           `yaml:"maxAttemptsPerRun"`
	ItemDelay         time.Duration `yaml:"itemDelay"`
	AuthorName        string        `yaml:"authorName"`
}

// PublishingConfig drives status assignment and duplicate detection.
type PublishingConfig struct {
	AutoApprove       bool `yaml:"autoApprove"`
	TitlePrefixLength int  `yaml:"titlePrefixLength"`
	SlugMaxLength     int  `yaml:"slugMaxLength"`
}

// FeedsConfig lists upstream RSS feeds.
type FeedsConfig struct {
	MaxAge           time.Duration `yaml:"maxAge"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"userAgent"`
	ExtractFullText  bool          `yaml:"extractFullText"`
	MinContentLength int           `yaml:"minContentLength"`
	Sources          []FeedConfig  `yaml:"sources"`
}

// FeedConfig describes a single RSS feed.
type FeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// RewriterConfig selects the rewriting strategy.
type RewriterConfig struct {
	Strategy string       `yaml:"strategy"`
	OpenAI   OpenAIConfig `yaml:"openai"`
	Cohere   CohereConfig `yaml:"cohere"`
}

// OpenAIConfig defines how to contact an OpenAI-compatible chat API.
type OpenAIConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"maxTokens"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CohereConfig defines how to contact the Cohere chat API.
type CohereConfig struct {
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ImagesConfig configures featured images and upload storage.
type ImagesConfig struct {
	URLTemplate string   `yaml:"urlTemplate"`
	UploadDir   string   `yaml:"uploadDir"`
	PublicPath  string   `yaml:"publicPath"`
	S3          S3Config `yaml:"s3"`
}

// S3Config enables S3 storage for uploads when Bucket is set.
type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Prefix        string `yaml:"prefix"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
	Endpoint      string `yaml:"endpoint"`
	UsePathStyle  bool   `yaml:"usePathStyle"`
}

// RedisConfig enables the distributed automation lock when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockKey  string        `yaml:"lockKey"`
	LockTTL  time.Duration `yaml:"lockTTL"`
}

// NATSConfig enables article events when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// TelegramConfig wires all data required to send review notifications.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// LoggingConfig selects log verbosity.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads .env, the YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()
	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = fileCfg
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// LoadFile decodes a YAML file on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("cannot parse %s: %w", path, err)
	}
	if len(cfg.Feeds.Sources) == 0 {
		cfg.Feeds.Sources = defaultFeeds()
	}
	return cfg, nil
}

// Validate reports settings the application cannot run with.
func (c Config) Validate() error {
	var problems []string
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	switch c.Rewriter.Strategy {
	case RewriterTemplate, RewriterOpenAI, RewriterCohere:
	default:
		problems = append(problems, fmt.Sprintf("unknown rewriter strategy %q", c.Rewriter.Strategy))
	}
	if c.Automation.MaxSavedPerRun <= 0 {
		problems = append(problems, "automation.maxSavedPerRun must be positive")
	}
	if c.Automation.MaxAttemptsPerRun <= 0 {
		problems = append(problems, "automation.maxAttemptsPerRun must be positive")
	}
	if c.Publishing.TitlePrefixLength < 0 {
		problems = append(problems, "publishing.titlePrefixLength must not be negative")
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, "auth.tokenTTL must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getIntEnv(portEnv, c.Server.Port)
	c.Database.Driver = getEnv(databaseDriverEnv, c.Database.Driver)
	c.Database.DSN = getEnv(databaseDSNEnv, c.Database.DSN)
	c.Auth.JWTSecret = getEnv(jwtSecretEnv, c.Auth.JWTSecret)
	c.Publishing.AutoApprove = getBoolEnv(autoApproveEnv, c.Publishing.AutoApprove)
	if getBoolEnv(manualPhaseEnv, false) {
		c.Automation.Enabled = false
	}
	c.Automation.Schedule = getEnv(scheduleEnv, c.Automation.Schedule)
	c.Automation.MaxAttemptsPerRun = getIntEnv(maxAttemptsEnv, c.Automation.MaxAttemptsPerRun)
	c.Automation.MaxSavedPerRun = getIntEnv(maxSavedEnv, c.Automation.MaxSavedPerRun)
	c.Rewriter.Strategy = getEnv(rewriterEnv, c.Rewriter.Strategy)

	if v := os.Getenv(groqAPIKeyEnv); v != "" {
		c.Rewriter.OpenAI.APIKey = v
	} else if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Rewriter.OpenAI.APIKey = v
		if c.Rewriter.OpenAI.Endpoint == defaultGroqEndpoint {
			c.Rewriter.OpenAI.Endpoint = "https://api.openai.com/v1/chat/completions"
			c.Rewriter.OpenAI.Model = "gpt-4o-mini"
		}
	}
	c.Rewriter.OpenAI.Model = getEnv(aiModelEnv, c.Rewriter.OpenAI.Model)
	c.Rewriter.Cohere.APIKey = getEnv(cohereAPIKeyEnv, c.Rewriter.Cohere.APIKey)

	c.Redis.Addr = getEnv(redisAddrEnv, c.Redis.Addr)
	c.NATS.URL = getEnv(natsURLEnv, c.NATS.URL)
	c.Telegram.BotToken = getEnv(telegramTokenEnv, c.Telegram.BotToken)
	c.Telegram.ChatID = getEnv(telegramChatIDEnv, c.Telegram.ChatID)
	c.Images.S3.Bucket = getEnv(s3BucketEnv, c.Images.S3.Bucket)
	c.Images.S3.Region = getEnv(s3RegionEnv, c.Images.S3.Region)
	c.Logging.Level = getEnv(logLevelEnv, c.Logging.Level)
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
		log.Printf("config: %s=%q is not an integer, keeping %d", key, value, fallback)
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
		log.Printf("config: %s=%q is not a boolean, keeping %t", key, value, fallback)
	}
	return fallback
}

const defaultGroqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			StaticDir:       "public",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  5 << 20,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "phoneverse.db", KeepAlive: 5 * time.Minute},
		Auth: AuthConfig{
			TokenTTL:      7 * 24 * time.Hour,
			BcryptCost:    10,
			SweepSchedule: "@hourly",
		},
		Automation: AutomationConfig{
			Enabled:           true,
			Schedule:          "*/10 * * * *",
			InitialDelay:      30 * time.Second,
			MaxSavedPerRun:    10,
			MaxAttemptsPerRun: 50,
			ItemDelay:         time.Second,
			AuthorName:        "PhoneVerse Desk",
		},
		Publishing: PublishingConfig{TitlePrefixLength: 40, SlugMaxLength: 80},
		Feeds: FeedsConfig{
			MaxAge:           48 * time.Hour,
			Timeout:          10 * time.Second,
			UserAgent:        "PhoneVerseBot/1.0",
			MinContentLength: 300,
			Sources:          defaultFeeds(),
		},
		Rewriter: RewriterConfig{
			Strategy: RewriterTemplate,
			OpenAI: OpenAIConfig{
				Endpoint:     defaultGroqEndpoint,
				Model:        "llama-3.3-70b-versatile",
				SystemPrompt: "You are a professional tech journalist writing original phone news articles.",
				Temperature:  0.9,
				MaxTokens:    2000,
				Timeout:      60 * time.Second,
			},
			Cohere: CohereConfig{
				Model:       "command-r",
				Temperature: 0.9,
				MaxTokens:   2000,
				Timeout:     60 * time.Second,
			},
		},
		Images: ImagesConfig{
			URLTemplate: "https://picsum.photos/id/%d/1344/768",
			UploadDir:   "public/images",
			PublicPath:  "/images",
		},
		Redis:    RedisConfig{LockKey: "phoneverse:automation:lock", LockTTL: 30 * time.Minute},
		NATS:     NATSConfig{SubjectPrefix: "phoneverse"},
		Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

func defaultFeeds() []FeedConfig {
	return []FeedConfig{
		{Name: "GSMArena", URL: "https://www.gsmarena.com/rss-news-reviews.php3", Category: "mobile-news"},
		{Name: "Android Authority", URL: "https://www.androidauthority.com/feed/", Category: "android-updates"},
		{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml", Category: "mobile-news"},
		{Name: "Android Central", URL: "https://www.androidcentral.com/feed", Category: "reviews"},
		{Name: "XDA Developers", URL: "https://www.xda-developers.com/feed/", Category: "android-updates"},
		{Name: "Android Police", URL: "https://www.androidpolice.com/feed/", Category: "mobile-news"},
	}
}
