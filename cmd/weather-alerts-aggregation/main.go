package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/alerts"
	"github.com/i474232898/weather-alerts-aggregation/internal/alerts/mapgen"
	alertproviders "github.com/i474232898/weather-alerts-aggregation/internal/alerts/providers"
	httpapi "github.com/i474232898/weather-alerts-aggregation/internal/api/http"
	"github.com/i474232898/weather-alerts-aggregation/internal/config"
	"github.com/i474232898/weather-alerts-aggregation/internal/currency"
	currencyproviders "github.com/i474232898/weather-alerts-aggregation/internal/currency/providers"
	"github.com/i474232898/weather-alerts-aggregation/internal/delivery"
	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
	"github.com/i474232898/weather-alerts-aggregation/internal/logger"
	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/reminder"
	"github.com/i474232898/weather-alerts-aggregation/internal/repository"
	"github.com/i474232898/weather-alerts-aggregation/internal/scheduler"
	"github.com/i474232898/weather-alerts-aggregation/internal/service"
	"github.com/i474232898/weather-alerts-aggregation/internal/store"
	"github.com/i474232898/weather-alerts-aggregation/internal/weather"
	weatherproviders "github.com/i474232898/weather-alerts-aggregation/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared executor for outbound provider calls; each attempt has its own timeout.
	executor := fetch.NewExecutor(&http.Client{}, zl.Named("fetch"))
	policy := fetch.Policy{
		MaxAttempts:  cfg.Fetch.MaxRetries,
		InitialDelay: cfg.Fetch.InitialDelay,
		Timeout:      cfg.Fetch.RequestTimeout,
	}

	cache := store.NewMemoryCache(cfg.Cache.FailureTTL)

	weatherHTTP := weatherproviders.HTTPClientConfig{Executor: executor, Policy: policy}
	weatherSvc := weather.NewService(weather.ServiceConfig{
		Primary: weatherproviders.NewOpenWeatherProvider(weatherproviders.Options{
			APIKey: cfg.Providers.OpenWeatherAPIKey,
			Lang:   cfg.Providers.WeatherLanguage,
			HTTP:   weatherHTTP,
		}),
		Backup: weatherproviders.NewWeatherAPIProvider(weatherproviders.Options{
			APIKey: cfg.Providers.WeatherAPIKey,
			Lang:   cfg.Providers.WeatherLanguage,
			HTTP:   weatherHTTP,
		}),
		Cache: cache,
		TTL:   pipeline.TTLs{Primary: cfg.Cache.WeatherTTL, Backup: cfg.Cache.WeatherBackupTTL},
		Log:   zl,
	})

	currencySvc := currency.NewService(currency.ServiceConfig{
		Primary: currencyproviders.NewPrivatBankProvider(currencyproviders.Options{Executor: executor, Policy: policy}),
		Backup: currencyproviders.NewExchangeRateProvider(currencyproviders.Options{
			APIKey:   cfg.Providers.ExchangeRateAPIKey,
			Executor: executor,
			Policy:   policy,
		}),
		Cache:      cache,
		TTL:        pipeline.TTLs{Primary: cfg.Cache.CurrencyTTL, Backup: cfg.Cache.CurrencyTTL},
		Currencies: cfg.Currencies,
		Log:        zl,
	})

	alertSvc := alerts.NewService(alerts.ServiceConfig{
		Primary: alertproviders.NewUkraineAlarmProvider(alertproviders.Options{
			Token:    cfg.Providers.UkraineAlarmToken,
			Executor: executor,
			Policy:   policy,
		}),
		Backup: alertproviders.NewAlertsInUAProvider(alertproviders.Options{
			Token:    cfg.Providers.AlertsInUAToken,
			Executor: executor,
			Policy:   policy,
		}),
		Cache: cache,
		TTL:   pipeline.TTLs{Primary: cfg.Cache.AlertsTTL, Backup: cfg.Cache.AlertsBackupTTL},
		Log:   zl,
	})

	template, err := mapgen.LoadTemplate(cfg.AlertMap.TemplatePath)
	if err != nil {
		zl.Fatal("failed to load alert map template", zap.Error(err))
	}
	shapes, err := mapgen.LoadShapes(cfg.AlertMap.RegionMapFile)
	if err != nil {
		zl.Fatal("failed to load region map", zap.Error(err))
	}
	renderer := mapgen.NewRenderer(mapgen.Config{
		Template: template,
		Shapes:   shapes,
		Width:    cfg.AlertMap.Width,
		Log:      zl.Named("mapgen"),
	})

	db, err := repository.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		zl.Fatal("failed to open database", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	settings := service.NewSettings(service.SessionFactoryFunc(func(ctx context.Context) (service.Session, error) {
		sess, err := db.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}), cache, zl)

	deps := httpapi.Deps{
		Weather:  weatherSvc,
		Currency: currencySvc,
		Alerts:   alertSvc,
		Maps:     renderer,
		Settings: settings,
		Health:   db.Ping,
	}

	// Reminders need a delivery channel; without a bot token they are not scheduled.
	var runner scheduler.ReminderRunner
	if cfg.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			zl.Fatal("failed to create telegram bot", zap.Error(err))
		}
		zl.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

		sender := delivery.NewTelegramSender(bot, zl.Named("delivery"))
		reminders := reminder.New(reminder.Config{
			Sessions: reminder.SessionFactoryFunc(func(ctx context.Context) (reminder.Session, error) {
				sess, err := db.Begin(ctx)
				if err != nil {
					return nil, err
				}
				return sess, nil
			}),
			Weather:  weatherSvc,
			Sender:   sender,
			Location: cfg.Location(),
			Throttle: cfg.Reminder.Throttle,
			Dedup:    cfg.Reminder.Dedup,
			Log:      zl,
		})
		runner = reminders
		deps.Reminders = reminders
		deps.Notifier = sender
	} else {
		zl.Warn("BOT_TOKEN is empty; reminders and chat delivery are disabled")
	}

	sched := scheduler.New(scheduler.Config{
		Location:     cfg.Location(),
		ReminderCron: cfg.Reminder.Cron,
	}, runner, cache, zl)
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-alerts-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          time.Minute,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, deps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("fiber server stopped", zap.Error(err))
		}
	}()
	zl.Info("server started", zap.String("port", cfg.Port))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}
