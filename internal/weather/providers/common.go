package providers

import (
	"errors"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
	"github.com/i474232898/weather-alerts-aggregation/internal/weather"
)

// HTTPClientConfig bundles the shared executor and the retry policy for provider calls.
type HTTPClientConfig struct {
	Executor *fetch.Executor
	Policy   fetch.Policy
}

// Options configures a weather provider. BaseURL is overridable for tests.
type Options struct {
	APIKey  string
	BaseURL string
	Lang    string
	HTTP    HTTPClientConfig
}

var errEmptyForecast = errors.New("forecast has no entries")

type base struct {
	name    string
	opts    Options
	circuit *gobreaker.CircuitBreaker
}

func newBase(name, defaultURL string, opts Options) base {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultURL
	}
	if opts.Lang == "" {
		opts.Lang = "uk"
	}
	if opts.HTTP.Executor == nil {
		opts.HTTP.Executor = fetch.NewExecutor(nil, nil)
	}
	return base{name: name, opts: opts, circuit: fetch.NewBreaker(name)}
}

func (b base) Name() string {
	return b.name
}

func (b base) checkKey() error {
	if b.opts.APIKey == "" {
		return fetch.NewConfigError(b.name, b.name+" api key is not configured")
	}
	return nil
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func mapConditionText(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case contains(text, "thunder") || contains(text, "storm"):
		return weather.ConditionStorm
	case contains(text, "snow") || contains(text, "sleet") || contains(text, "blizzard"):
		return weather.ConditionSnow
	case contains(text, "rain") || contains(text, "shower") || contains(text, "drizzle"):
		return weather.ConditionRain
	case contains(text, "mist") || contains(text, "fog") || contains(text, "haze"):
		return weather.ConditionMist
	case contains(text, "cloud") || contains(text, "overcast"):
		return weather.ConditionCloudy
	case contains(text, "sunny") || contains(text, "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
