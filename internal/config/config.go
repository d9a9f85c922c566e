package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/weather-alerts-aggregation/internal/logger"
)

// AppConfig holds application configuration loaded from environment variables.
type AppConfig struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	Fetch     FetchConfig
	Cache     CacheConfig
	Providers ProviderKeys
	DB        DBConfig
	Reminder  ReminderConfig
	AlertMap  AlertMapConfig

	Currencies []string `envconfig:"CURRENCIES" default:"USD,EUR"`
	BotToken   string   `envconfig:"BOT_TOKEN"`
}

// FetchConfig is the retry policy shared by every provider call.
type FetchConfig struct {
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialDelay   time.Duration `envconfig:"INITIAL_DELAY" default:"1s"`
	RequestTimeout time.Duration `envconfig:"API_REQUEST_TIMEOUT" default:"15s"`
}

// CacheConfig holds freshness windows per domain and tier.
type CacheConfig struct {
	WeatherTTL       time.Duration `envconfig:"CACHE_TTL_WEATHER" default:"10m"`
	WeatherBackupTTL time.Duration `envconfig:"CACHE_TTL_WEATHER_BACKUP" default:"10m"`
	AlertsTTL        time.Duration `envconfig:"CACHE_TTL_ALERTS" default:"60s"`
	AlertsBackupTTL  time.Duration `envconfig:"CACHE_TTL_ALERTS_BACKUP" default:"90s"`
	CurrencyTTL      time.Duration `envconfig:"CACHE_TTL_CURRENCY" default:"1h"`
	FailureTTL       time.Duration `envconfig:"CACHE_TTL_FAILURE" default:"30s"`
}

// ProviderKeys are credentials for the external providers. An empty key makes the
// provider answer with a configuration failure instead of calling out.
type ProviderKeys struct {
	OpenWeatherAPIKey  string `envconfig:"OPENWEATHER_API_KEY"`
	WeatherAPIKey      string `envconfig:"WEATHERAPI_API_KEY"`
	ExchangeRateAPIKey string `envconfig:"EXCHANGERATE_API_KEY"`
	UkraineAlarmToken  string `envconfig:"UKRAINEALARM_API_TOKEN"`
	AlertsInUAToken    string `envconfig:"ALERTS_IN_UA_TOKEN"`
	WeatherLanguage    string `envconfig:"WEATHER_LANG" default:"uk"`
}

type DBConfig struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|pgx
	DSN    string `envconfig:"DB_DSN" default:"./data/app.db"`
}

type ReminderConfig struct {
	TimeZone string        `envconfig:"REMINDER_TZ" default:"Europe/Kyiv"`
	Cron     string        `envconfig:"REMINDER_CRON" default:"* * * * *"`
	Throttle time.Duration `envconfig:"REMINDER_THROTTLE" default:"100ms"`
	Dedup    bool          `envconfig:"REMINDER_DEDUP" default:"true"`
}

type AlertMapConfig struct {
	TemplatePath  string `envconfig:"ALERT_MAP_TEMPLATE"`
	RegionMapFile string `envconfig:"REGION_MAP_FILE"`
	Width         int    `envconfig:"ALERT_MAP_WIDTH" default:"700"`
}

// Load reads configuration from the environment, preloading a .env file when present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.Fetch.MaxRetries < 1 {
		return fmt.Errorf("invalid MAX_RETRIES %d: must be at least 1", c.Fetch.MaxRetries)
	}
	if c.Fetch.RequestTimeout <= 0 {
		return errors.New("invalid API_REQUEST_TIMEOUT: must be positive")
	}
	switch c.DB.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want sqlite or pgx", c.DB.Driver)
	}
	if _, err := time.LoadLocation(c.Reminder.TimeZone); err != nil {
		return fmt.Errorf("invalid REMINDER_TZ: %w", err)
	}
	if c.AlertMap.Width <= 0 {
		return fmt.Errorf("invalid ALERT_MAP_WIDTH %d", c.AlertMap.Width)
	}

	cur := c.Currencies[:0]
	for _, code := range c.Currencies {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			cur = append(cur, code)
		}
	}
	c.Currencies = cur
	return nil
}

// Location returns the reminder time zone.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reminder.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
