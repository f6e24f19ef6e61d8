package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Shop     ShopConfig
	Catalog  CatalogConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Session  SessionConfig
	Telegram TelegramConfig
	Log      LogConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Port               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxRequestBodySize int64
	AllowedOrigins     []string
}

// ShopConfig is the storefront branding sent to the mini-app.
type ShopConfig struct {
	Title        string
	LogoPath     string
	PrimaryColor string
}

type CatalogConfig struct {
	Source          string // file, http or sqlite
	Path            string // catalog.json for the file source
	URL             string // feed URL for the http source
	DBPath          string
	MigrationsPath  string
	FetchTimeout    time.Duration
	CacheTTL        time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type RedisConfig struct {
	Addr     string // empty disables the catalog cache
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string // empty selects the log sink
	Topic   string
}

type SessionConfig struct {
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

type TelegramConfig struct {
	BotToken    string
	InitDataTTL time.Duration
	// InsecureSkipAuth trusts the X-Telegram-User-ID header. Development only.
	InsecureSkipAuth bool
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with SHOP_ prefix (e.g., SHOP_TELEGRAM_BOT_TOKEN)
// 2. config.toml, or the file given by path
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Port:               v.GetString("http.port"),
			RequestTimeout:     v.GetDuration("http.request_timeout"),
			ShutdownTimeout:    v.GetDuration("http.shutdown_timeout"),
			ReadTimeout:        v.GetDuration("http.read_timeout"),
			WriteTimeout:       v.GetDuration("http.write_timeout"),
			IdleTimeout:        v.GetDuration("http.idle_timeout"),
			MaxRequestBodySize: v.GetInt64("http.max_request_body_size"),
			AllowedOrigins:     v.GetStringSlice("http.allowed_origins"),
		},
		Shop: ShopConfig{
			Title:        v.GetString("shop.title"),
			LogoPath:     v.GetString("shop.logo_path"),
			PrimaryColor: v.GetString("shop.primary_color"),
		},
		Catalog: CatalogConfig{
			Source:          v.GetString("catalog.source"),
			Path:            v.GetString("catalog.path"),
			URL:             v.GetString("catalog.url"),
			DBPath:          v.GetString("catalog.db_path"),
			MigrationsPath:  v.GetString("catalog.migrations_path"),
			FetchTimeout:    v.GetDuration("catalog.fetch_timeout"),
			CacheTTL:        v.GetDuration("catalog.cache_ttl"),
			BreakerFailures: v.GetUint32("catalog.breaker_failures"),
			BreakerTimeout:  v.GetDuration("catalog.breaker_timeout"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers: v.GetStringSlice("kafka.brokers"),
			Topic:   v.GetString("kafka.topic"),
		},
		Session: SessionConfig{
			IdleTTL:         v.GetDuration("session.idle_ttl"),
			CleanupInterval: v.GetDuration("session.cleanup_interval"),
		},
		Telegram: TelegramConfig{
			BotToken:         v.GetString("telegram.bot_token"),
			InitDataTTL:      v.GetDuration("telegram.init_data_ttl"),
			InsecureSkipAuth: v.GetBool("telegram.insecure_skip_auth"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "telegram-shop"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 45 * time.Second // must outlast RequestTimeout
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxRequestBodySize == 0 {
		cfg.HTTP.MaxRequestBodySize = 1 << 20 // 1MB
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Shop.Title == "" {
		cfg.Shop.Title = "Магазин"
	}
	if cfg.Shop.LogoPath == "" {
		cfg.Shop.LogoPath = "images/logo.png"
	}
	if cfg.Shop.PrimaryColor == "" {
		cfg.Shop.PrimaryColor = "#2481cc"
	}
	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = "file"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "catalog.json"
	}
	if cfg.Catalog.DBPath == "" {
		cfg.Catalog.DBPath = "./catalog.db"
	}
	if cfg.Catalog.MigrationsPath == "" {
		cfg.Catalog.MigrationsPath = "./internal/catalog/migrations"
	}
	if cfg.Catalog.FetchTimeout == 0 {
		cfg.Catalog.FetchTimeout = 5 * time.Second
	}
	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = 5 * time.Minute
	}
	if cfg.Catalog.BreakerFailures == 0 {
		cfg.Catalog.BreakerFailures = 5
	}
	if cfg.Catalog.BreakerTimeout == 0 {
		cfg.Catalog.BreakerTimeout = 30 * time.Second
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "shop-orders"
	}
	if cfg.Session.IdleTTL == 0 {
		cfg.Session.IdleTTL = 2 * time.Hour
	}
	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = time.Minute
	}
	if cfg.Telegram.InitDataTTL == 0 {
		cfg.Telegram.InitDataTTL = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

func (c *Config) validate() error {
	switch c.Catalog.Source {
	case "file", "sqlite":
	case "http":
		if c.Catalog.URL == "" {
			return errors.New("catalog.url is required for the http catalog source")
		}
	default:
		return fmt.Errorf("unknown catalog.source %q (want file, http or sqlite)", c.Catalog.Source)
	}

	if c.HTTP.WriteTimeout <= c.HTTP.RequestTimeout {
		// a checkout that finishes late would hand off the order and then lose the response
		return fmt.Errorf("http.write_timeout (%s) must be longer than http.request_timeout (%s)",
			c.HTTP.WriteTimeout, c.HTTP.RequestTimeout)
	}

	if c.Telegram.BotToken == "" && !c.Telegram.InsecureSkipAuth {
		return errors.New("telegram.bot_token is required unless telegram.insecure_skip_auth is set")
	}
	if c.App.Env == "production" && c.Telegram.InsecureSkipAuth {
		return errors.New("telegram.insecure_skip_auth is not allowed in production")
	}
	return nil
}
