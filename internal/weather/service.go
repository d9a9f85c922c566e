package weather

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/store"
)

const (
	endpointCurrent  = "current"
	endpointForecast = "forecast"
)

// ServiceConfig wires the weather provider pair. Backup may be nil.
type ServiceConfig struct {
	Primary Provider
	Backup  Provider
	Cache   *store.MemoryCache
	TTL     pipeline.TTLs
	Log     *zap.Logger
}

// Service exposes current weather and forecasts from a primary/backup provider pair.
type Service struct {
	current  *pipeline.Pair[string, Current]
	forecast *pipeline.Pair[ForecastQuery, Forecast]
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) *Service {
	var currentBackup pipeline.Source[string, Current]
	var forecastBackup pipeline.Source[ForecastQuery, Forecast]
	if cfg.Backup != nil {
		currentBackup = currentSource(cfg.Backup)
		forecastBackup = forecastSource(cfg.Backup)
	}

	return &Service{
		current: pipeline.NewPair(pipeline.PairConfig[string, Current]{
			Domain:   pipeline.DomainWeather,
			Endpoint: endpointCurrent,
			Primary:  currentSource(cfg.Primary),
			Backup:   currentBackup,
			Cache:    cfg.Cache,
			TTL:      cfg.TTL,
			QueryKey: store.NormalizeQuery,
			Log:      cfg.Log,
		}),
		forecast: pipeline.NewPair(pipeline.PairConfig[ForecastQuery, Forecast]{
			Domain:   pipeline.DomainWeather,
			Endpoint: endpointForecast,
			Primary:  forecastSource(cfg.Primary),
			Backup:   forecastBackup,
			Cache:    cfg.Cache,
			TTL:      cfg.TTL,
			QueryKey: func(q ForecastQuery) string {
				return store.NormalizeQuery(q.City) + "/" + strconv.Itoa(q.Days)
			},
			Log: cfg.Log,
		}),
	}
}

// Current returns current conditions for city from the provider selected by tier.
func (s *Service) Current(ctx context.Context, city string, tier pipeline.Tier) pipeline.Result[Current] {
	city = strings.TrimSpace(city)
	if city == "" {
		return pipeline.Fail[Current](pipeline.FailureFrom(s.current.ProviderName(tier),
			fetch.NewValidationError(s.current.ProviderName(tier), "city is required")))
	}
	return s.current.Fetch(ctx, city, tier)
}

// Forecast returns a forecast of 1..MaxForecastDays days.
func (s *Service) Forecast(ctx context.Context, city string, days int, tier pipeline.Tier) pipeline.Result[Forecast] {
	city = strings.TrimSpace(city)
	src := s.forecast.ProviderName(tier)
	switch {
	case city == "":
		return pipeline.Fail[Forecast](pipeline.FailureFrom(src, fetch.NewValidationError(src, "city is required")))
	case days < 1 || days > MaxForecastDays:
		return pipeline.Fail[Forecast](pipeline.FailureFrom(src,
			fetch.NewValidationError(src, fmt.Sprintf("days must be between 1 and %d", MaxForecastDays))))
	}
	return s.forecast.Fetch(ctx, ForecastQuery{City: city, Days: days}, tier)
}

// ProviderName returns the provider serving tier.
func (s *Service) ProviderName(tier pipeline.Tier) string {
	return s.current.ProviderName(tier)
}

func currentSource(p Provider) pipeline.Source[string, Current] {
	return pipeline.SourceFunc[string, Current]{Provider: p.Name(), Fn: p.Current}
}

func forecastSource(p Provider) pipeline.Source[ForecastQuery, Forecast] {
	return pipeline.SourceFunc[ForecastQuery, Forecast]{Provider: p.Name(), Fn: p.Forecast}
}
