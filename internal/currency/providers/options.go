package providers

import "github.com/i474232898/weather-alerts-aggregation/internal/fetch"

// Options configures a currency provider. BaseURL is overridable for tests.
type Options struct {
	APIKey   string
	BaseURL  string
	Executor *fetch.Executor
	Policy   fetch.Policy
}

func (o Options) withDefaults(baseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Executor == nil {
		o.Executor = fetch.NewExecutor(nil, nil)
	}
	return o
}
