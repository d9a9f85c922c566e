package weather

import (
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Current is the provider-independent view of current conditions in a city.
type Current struct {
	City         string    `json:"city"`
	Country      string    `json:"country,omitempty"`
	ObservedAt   time.Time `json:"observedAt"` // always UTC
	TemperatureC float64   `json:"temperatureC"`
	FeelsLikeC   float64   `json:"feelsLikeC"`
	HumidityPct  float64   `json:"humidityPercent"`
	PressureHpa  float64   `json:"pressureHpa"`
	WindSpeedMS  float64   `json:"windSpeedMs"`
	WindDeg      float64   `json:"windDeg"`
	CloudsPct    float64   `json:"cloudsPercent"`
	Condition    Condition `json:"condition"`
	Description  string    `json:"description,omitempty"`
}

// Day is one forecast day in the city's local calendar.
type Day struct {
	Date        string    `json:"date"` // YYYY-MM-DD
	MinC        float64   `json:"minC"`
	MaxC        float64   `json:"maxC"`
	Condition   Condition `json:"condition"`
	Description string    `json:"description,omitempty"`
}

// Forecast is a multi-day forecast ordered by date ascending.
type Forecast struct {
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
	Days    []Day  `json:"days"`
}

// ForecastQuery asks for up to Days days of forecast for City.
type ForecastQuery struct {
	City string
	Days int
}

// MaxForecastDays bounds forecast requests; both providers' free plans cover it.
const MaxForecastDays = 5
