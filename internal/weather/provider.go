package weather

import (
	"context"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI).
// Implementations return normalized data and *fetch.Error on failure.
type Provider interface {
	Name() string
	Current(ctx context.Context, city string) (Current, error)
	Forecast(ctx context.Context, q ForecastQuery) (Forecast, error)
}
