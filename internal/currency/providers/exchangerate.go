package providers

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-alerts-aggregation/internal/currency"
	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
)

const exchangeRateURL = "https://v6.exchangerate-api.com"

// ExchangeRateProvider reads mid-market rates from ExchangeRate-API v6.
// It has no cash/non-cash split; both types get the same mid rate as buy and sale.
type ExchangeRateProvider struct {
	opts    Options
	circuit *gobreaker.CircuitBreaker
}

func NewExchangeRateProvider(opts Options) *ExchangeRateProvider {
	return &ExchangeRateProvider{
		opts:    opts.withDefaults(exchangeRateURL),
		circuit: fetch.NewBreaker("exchangerate-api"),
	}
}

func (p *ExchangeRateProvider) Name() string {
	return "exchangerate-api"
}

func (p *ExchangeRateProvider) Rates(ctx context.Context, t currency.RateType) (currency.Rates, error) {
	if p.opts.APIKey == "" {
		return currency.Rates{}, fetch.NewConfigError(p.Name(), "exchangerate-api key is not configured")
	}

	var payload struct {
		Result          string             `json:"result"`
		ErrorType       string             `json:"error-type"`
		BaseCode        string             `json:"base_code"`
		ConversionRates map[string]float64 `json:"conversion_rates"`
	}
	err := p.opts.Executor.Execute(ctx, fetch.Request{
		Source:       p.Name(),
		Build:        fetch.Get(p.opts.BaseURL, "/v6/"+p.opts.APIKey+"/latest/UAH", nil, nil),
		Decode:       fetch.JSON(&payload),
		ErrorMessage: fetch.JSONMessage("error-type"),
		Breaker:      p.circuit,
	}, p.opts.Policy)
	if err != nil {
		return currency.Rates{}, err
	}
	if payload.Result != "success" {
		return currency.Rates{}, p.resultError(payload.ErrorType)
	}

	codes := make([]string, 0, len(payload.ConversionRates))
	for code := range payload.ConversionRates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := currency.Rates{Type: t, FetchedAt: time.Now().UTC()}
	for _, code := range codes {
		perUAH := payload.ConversionRates[code]
		if code == "UAH" || perUAH <= 0 {
			continue
		}
		mid := 1 / perUAH
		out.Rates = append(out.Rates, currency.Rate{Currency: code, Base: "UAH", Buy: mid, Sale: mid})
	}
	return out, nil
}

// resultError classifies an error reported inside a 200 response.
func (p *ExchangeRateProvider) resultError(errorType string) error {
	if errorType == "" {
		return fetch.NewDecodeError(p.Name(), errors.New("missing result"))
	}
	kind := fetch.KindClient
	switch errorType {
	case "invalid-key", "inactive-account":
		kind = fetch.KindAuth
	case "quota-reached":
		kind = fetch.KindRateLimited
	}
	return &fetch.Error{Kind: kind, Source: p.Name(), Message: errorType}
}
