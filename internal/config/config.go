package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	appName           = "reviewscanner"
	configPathEnv     = "REVIEW_SCANNER_CONFIG"
	databasePathEnv   = "REVIEW_SCANNER_DB"
	logLevelEnv       = "LOG_LEVEL"
	apiURLEnv         = "REVIEW_API_URL"
	apiTokenEnv       = "REVIEW_API_TOKEN"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Scan          ScanConfig         `yaml:"scan"`
	Page          PageConfig         `yaml:"page"`
	Storage       StorageConfig      `yaml:"storage"`
	Server        ServerConfig       `yaml:"server"`
	Watch         WatchConfig        `yaml:"watch"`
	Notifications NotificationConfig `yaml:"notifications"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig selects the slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIConfig describes the remote prediction/feedback backend.
type APIConfig struct {
	BaseURL             string        `yaml:"baseUrl"`
	APIKey              string        `yaml:"apiKey"`
	PredictPath         string        `yaml:"predictPath"`
	FeedbackPath        string        `yaml:"feedbackPath"`
	ReportPath          string        `yaml:"reportPath"`
	RatePath            string        `yaml:"ratePath"`
	LoginPath           string        `yaml:"loginPath"`
	SentimentURL        string        `yaml:"sentimentUrl"`
	Timeout             time.Duration `yaml:"timeout"`
	FakeThreshold       float64       `yaml:"fakeThreshold"`
	SuspiciousThreshold float64       `yaml:"suspiciousThreshold"`
}

// ScanConfig tunes the orchestrator.
type ScanConfig struct {
	RequireLogin bool `yaml:"requireLogin"`
	MaxInFlight  int  `yaml:"maxInFlight"`
	KeepRuns     int  `yaml:"keepRuns"`
}

// PageConfig selects how pages are fetched.
type PageConfig struct {
	// Renderer is "http" (raw HTML) or "browser" (headless Chrome).
	Renderer   string        `yaml:"renderer"`
	UserAgent  string        `yaml:"userAgent"`
	Timeout    time.Duration `yaml:"timeout"`
	BrowserURL string        `yaml:"browserUrl"`
	Stealth    bool          `yaml:"stealth"`
}

// StorageConfig points at the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the inbound command service.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig lists pages rescanned on an interval.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Targets  []WatchTarget `yaml:"targets"`
}

// WatchTarget is one page under watch.
type WatchTarget struct {
	Site string `yaml:"site"`
	URL  string `yaml:"url"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// ChatGPTConfig defines how to contact the explanation model.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// SiteConfig adds or overrides a site's review selector.
type SiteConfig struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit path; an empty path uses defaults only.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(apiURLEnv); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(apiTokenEnv); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}
	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	base.API = mergeAPI(base.API, override.API)

	if override.Scan.RequireLogin {
		base.Scan.RequireLogin = true
	}
	if override.Scan.MaxInFlight > 0 {
		base.Scan.MaxInFlight = override.Scan.MaxInFlight
	}
	if override.Scan.KeepRuns > 0 {
		base.Scan.KeepRuns = override.Scan.KeepRuns
	}

	if override.Page.Renderer != "" {
		base.Page.Renderer = override.Page.Renderer
	}
	if override.Page.UserAgent != "" {
		base.Page.UserAgent = override.Page.UserAgent
	}
	if override.Page.Timeout > 0 {
		base.Page.Timeout = override.Page.Timeout
	}
	if override.Page.BrowserURL != "" {
		base.Page.BrowserURL = override.Page.BrowserURL
	}
	if override.Page.Stealth {
		base.Page.Stealth = true
	}

	if override.Storage.Path != "" {
		base.Storage.Path = override.Storage.Path
	}
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Watch.Interval > 0 {
		base.Watch.Interval = override.Watch.Interval
	}
	if len(override.Watch.Targets) > 0 {
		base.Watch.Targets = override.Watch.Targets
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func mergeAPI(base, override APIConfig) APIConfig {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&base.BaseURL, override.BaseURL)
	pick(&base.APIKey, override.APIKey)
	pick(&base.PredictPath, override.PredictPath)
	pick(&base.FeedbackPath, override.FeedbackPath)
	pick(&base.ReportPath, override.ReportPath)
	pick(&base.RatePath, override.RatePath)
	pick(&base.LoginPath, override.LoginPath)
	pick(&base.SentimentURL, override.SentimentURL)

	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	if override.FakeThreshold > 0 {
		base.FakeThreshold = override.FakeThreshold
	}
	if override.SuspiciousThreshold > 0 {
		base.SuspiciousThreshold = override.SuspiciousThreshold
	}
	return base
}

// DataDir is where the database lives unless storage.path says otherwise.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		API: APIConfig{
			BaseURL:             "https://your-server-domain.com",
			PredictPath:         "/api/predict",
			FeedbackPath:        "/feedback",
			ReportPath:          "/report",
			RatePath:            "/rate_review",
			LoginPath:           "/login",
			Timeout:             15 * time.Second,
			FakeThreshold:       0.5,
			SuspiciousThreshold: 0.3,
		},
		Scan: ScanConfig{MaxInFlight: 8, KeepRuns: 20},
		Page: PageConfig{
			Renderer:  "http",
			UserAgent: "ReviewScanner/1.0",
			Timeout:   20 * time.Second,
		},
		Storage: StorageConfig{Path: filepath.Join(DataDir(), "reviewscanner.db")},
		Server:  ServerConfig{Addr: "127.0.0.1:8088"},
		Watch:   WatchConfig{Interval: time.Hour},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You explain in two sentences why a product review was classified the way it was.",
		},
	}
}
