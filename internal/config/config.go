package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/utils"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DefaultEnvFile         = ".env"
	DefaultSearchTimeout   = 15 * time.Second
	DefaultDownloadTimeout = 10 * time.Minute
	DefaultUploadTimeout   = 5 * time.Minute
	DefaultValidateTimeout = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	BotToken        string `env:"BOT_TOKEN"`
	WatcherBotToken string `env:"WATCHER_BOT_TOKEN"`
	WatcherEnabled  bool   `env:"WATCHER_ENABLED" env-default:"true"`
	LogLevel        string `env:"LOG_LEVEL" env-default:"info"`

	YouTubeAPIKey string `env:"YOUTUBE_API_KEY"`
	YouTubeAPIURL string `env:"YOUTUBE_API_URL" env-default:"https://www.googleapis.com/youtube/v3"`

	DownloadDir string `env:"DOWNLOAD_DIR" env-default:"downloads"`
	CookiesFile string `env:"COOKIES_FILE" env-default:"cookies.txt"`
	TempPrefix  string `env:"TEMP_PREFIX" env-default:"temp"`

	YtdlpPath          string `env:"YTDLP_PATH" env-default:"yt-dlp"`
	FfprobePath        string `env:"FFPROBE_PATH" env-default:"ffprobe"`
	YtdlpUpdateOnStart bool   `env:"YTDLP_UPDATE_ON_START" env-default:"false"`
	Proxy              string `env:"PROXY"`
	ProxyDomains       string `env:"PROXY_DOMAINS"`

	InstagramSessionID string `env:"INSTAGRAM_SESSION_ID"`

	Timeouts TimeoutConfig
}

type TimeoutConfig struct {
	Search   time.Duration `env:"SEARCH_TIMEOUT" env-default:"15s"`
	Download time.Duration `env:"DOWNLOAD_TIMEOUT" env-default:"10m"`
	Upload   time.Duration `env:"UPLOAD_TIMEOUT" env-default:"5m"`
	Validate time.Duration `env:"VALIDATE_TIMEOUT" env-default:"30s"`
	Shutdown time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// loadEnvFile loads variables from a dotenv file without overriding the real environment.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	logutils.Log.WithField("file", path).Info("Loaded environment file")
	return nil
}

func NewConfig() (*Config, error) {
	envFile := DefaultEnvFile
	if value, exists := os.LookupEnv("ENV_FILE"); exists && value != "" {
		envFile = value
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, utils.WrapError(utils.ErrConfigurationError, "failed to load environment file", map[string]any{
			"file":  envFile,
			"error": err.Error(),
		})
	}

	config := &Config{}
	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, utils.WrapError(utils.ErrConfigurationError, "failed to read environment", map[string]any{
			"error": err.Error(),
		})
	}

	if err := config.validate(); err != nil {
		logutils.Log.WithError(err).Error("Configuration validation failed")
		return nil, utils.WrapError(err, "configuration validation failed", nil)
	}

	logutils.Log.Info("Configuration loaded successfully")
	return config, nil
}

func (c *Config) validate() error {
	if err := c.validateRequiredFields(); err != nil {
		return err
	}

	if err := c.validateTokens(); err != nil {
		return err
	}

	if err := c.validateTimeouts(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateRequiredFields() error {
	var missingFields []string

	if c.BotToken == "" {
		missingFields = append(missingFields, "BOT_TOKEN")
	}
	if c.WatcherEnabled && c.WatcherBotToken == "" {
		missingFields = append(missingFields, "WATCHER_BOT_TOKEN (required if WATCHER_ENABLED is true)")
	}
	if c.YouTubeAPIKey == "" {
		missingFields = append(missingFields, "YOUTUBE_API_KEY")
	}
	if c.DownloadDir == "" {
		missingFields = append(missingFields, "DOWNLOAD_DIR")
	}

	if len(missingFields) > 0 {
		return utils.WrapError(utils.ErrConfigurationError, "missing required environment variables", map[string]any{
			"missing_fields": missingFields,
		})
	}

	return nil
}

// Two long-polling clients on one token make Telegram reject one of them with 409.
func (c *Config) validateTokens() error {
	if c.WatcherEnabled && c.WatcherBotToken == c.BotToken {
		return utils.WrapError(utils.ErrConfigurationError, "WATCHER_BOT_TOKEN must differ from BOT_TOKEN", nil)
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	timeouts := map[string]time.Duration{
		"SEARCH_TIMEOUT":   c.Timeouts.Search,
		"DOWNLOAD_TIMEOUT": c.Timeouts.Download,
		"UPLOAD_TIMEOUT":   c.Timeouts.Upload,
		"VALIDATE_TIMEOUT": c.Timeouts.Validate,
		"SHUTDOWN_TIMEOUT": c.Timeouts.Shutdown,
	}

	var invalid []string
	for name, value := range timeouts {
		if value <= 0 {
			invalid = append(invalid, name)
		}
	}

	if len(invalid) > 0 {
		return utils.WrapError(utils.ErrConfigurationError, "timeouts must be positive", map[string]any{
			"invalid_fields": invalid,
		})
	}

	return nil
}

// EnsureDownloadDir creates DownloadDir when it does not exist.
func (c *Config) EnsureDownloadDir() error {
	if err := os.MkdirAll(c.DownloadDir, 0o755); err != nil {
		return utils.WrapError(err, "failed to create download directory", map[string]any{
			"path": c.DownloadDir,
		})
	}
	return nil
}
