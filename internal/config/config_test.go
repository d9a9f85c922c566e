package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Fetch.MaxRetries != 3 || cfg.Fetch.InitialDelay != time.Second || cfg.Fetch.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected fetch defaults %+v", cfg.Fetch)
	}
	if cfg.Cache.AlertsTTL != time.Minute || cfg.Cache.AlertsBackupTTL != 90*time.Second || cfg.Cache.CurrencyTTL != time.Hour {
		t.Fatalf("unexpected cache defaults %+v", cfg.Cache)
	}
	if cfg.Reminder.TimeZone != "Europe/Kyiv" || !cfg.Reminder.Dedup || cfg.Reminder.Throttle != 100*time.Millisecond {
		t.Fatalf("unexpected reminder defaults %+v", cfg.Reminder)
	}
	if len(cfg.Currencies) != 2 || cfg.Currencies[0] != "USD" || cfg.Currencies[1] != "EUR" {
		t.Fatalf("unexpected currencies %v", cfg.Currencies)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("INITIAL_DELAY", "250ms")
	t.Setenv("CACHE_TTL_WEATHER", "2m")
	t.Setenv("CURRENCIES", " usd ,pln")
	t.Setenv("DB_DRIVER", "pgx")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Fetch.MaxRetries != 5 || cfg.Fetch.InitialDelay != 250*time.Millisecond {
		t.Fatalf("unexpected fetch config %+v", cfg.Fetch)
	}
	if cfg.Cache.WeatherTTL != 2*time.Minute {
		t.Fatalf("unexpected weather ttl %v", cfg.Cache.WeatherTTL)
	}
	if len(cfg.Currencies) != 2 || cfg.Currencies[0] != "USD" || cfg.Currencies[1] != "PLN" {
		t.Fatalf("unexpected currencies %v", cfg.Currencies)
	}
	if cfg.DB.Driver != "pgx" {
		t.Fatalf("unexpected driver %q", cfg.DB.Driver)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"MAX_RETRIES": "0",
		"DB_DRIVER":   "mysql",
		"REMINDER_TZ": "Mars/Olympus",
		"LOG_LEVEL":   "verbose",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}
