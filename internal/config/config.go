package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultCacheCapacity = 100
	DefaultCacheWindow   = 20
	DefaultMaxAge        = 6 * time.Hour
	DefaultPruneSchedule = "@every 15m"
	DefaultQueueSize     = 256
	DefaultWorkers       = 4
	DefaultLLMBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel      = "gpt-4o-mini"
	DefaultLLMTimeout    = 30
	DefaultLLMAttempts   = 3
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
	Bus      BusConfig      `toml:"bus"`
	LLM      LLMConfig      `toml:"llm"`
	Reply    ReplyConfig    `toml:"reply"`
	Discord  DiscordConfig  `toml:"discord"`
	Telegram TelegramConfig `toml:"telegram"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// CacheConfig bounds the per-channel conversation history. Capacity is the
// number of retained messages per channel; Window is how many of those are
// fed to the model as context.
type CacheConfig struct {
	Capacity      int      `toml:"capacity" validate:"gt=0"`
	Window        int      `toml:"window" validate:"gt=0"`
	MaxAge        duration `toml:"max_age"`
	PruneSchedule string   `toml:"prune_schedule"`
}

type BusConfig struct {
	QueueSize int `toml:"queue_size" validate:"gt=0"`
	Workers   int `toml:"workers" validate:"gt=0"`
}

type LLMConfig struct {
	APIKey         string  `toml:"api_key" validate:"required"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model" validate:"required"`
	TimeoutSeconds int     `toml:"timeout_seconds" validate:"gt=0"`
	MaxAttempts    int     `toml:"max_attempts" validate:"gt=0"`
	Temperature    float64 `toml:"temperature" validate:"gte=0,lte=2"`
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReplyConfig controls the outbound reply surface. When NotifyOnError is
// false a failed message produces no in-channel response at all.
type ReplyConfig struct {
	NotifyOnError bool   `toml:"notify_on_error"`
	SystemPrompt  string `toml:"system_prompt"`
}

type DiscordConfig struct {
	BotToken string `toml:"bot_token"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

// duration is a toml-friendly wrapper that accepts "6h", "90m", etc.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Cache: CacheConfig{
			Capacity:      DefaultCacheCapacity,
			Window:        DefaultCacheWindow,
			MaxAge:        duration{DefaultMaxAge},
			PruneSchedule: DefaultPruneSchedule,
		},
		Bus: BusConfig{
			QueueSize: DefaultQueueSize,
			Workers:   DefaultWorkers,
		},
		LLM: LLMConfig{
			BaseURL:        DefaultLLMBaseURL,
			Model:          DefaultLLMModel,
			TimeoutSeconds: DefaultLLMTimeout,
			MaxAttempts:    DefaultLLMAttempts,
			Temperature:    0.2,
		},
		Reply: ReplyConfig{
			NotifyOnError: true,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return applyEnv(cfg), nil
}

// applyEnv fills secrets from the environment when the file leaves them out.
func applyEnv(cfg Config) Config {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Discord.BotToken == "" {
		cfg.Discord.BotToken = os.Getenv("DISCORD_BOT_TOKEN")
	}
	if cfg.Telegram.BotToken == "" {
		cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	return cfg
}

var validate = validator.New()

// Validate checks field constraints plus the cross-field rule that the
// context window never exceeds the cache capacity.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Cache.Window > c.Cache.Capacity {
		return fmt.Errorf("config: cache window %d exceeds capacity %d", c.Cache.Window, c.Cache.Capacity)
	}
	if c.Discord.BotToken == "" && c.Telegram.BotToken == "" {
		return fmt.Errorf("config: at least one platform bot token is required")
	}
	return nil
}
