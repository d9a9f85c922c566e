package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-alerts-aggregation/internal/currency"
	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
)

const privatBankURL = "https://api.privatbank.ua"

// PrivatBankProvider reads PrivatBank's public exchange rates. No credentials needed.
type PrivatBankProvider struct {
	opts    Options
	circuit *gobreaker.CircuitBreaker
}

func NewPrivatBankProvider(opts Options) *PrivatBankProvider {
	return &PrivatBankProvider{
		opts:    opts.withDefaults(privatBankURL),
		circuit: fetch.NewBreaker("privatbank"),
	}
}

func (p *PrivatBankProvider) Name() string {
	return "privatbank"
}

func (p *PrivatBankProvider) Rates(ctx context.Context, t currency.RateType) (currency.Rates, error) {
	courseID := "5"
	if t == currency.NonCash {
		courseID = "11"
	}
	values := url.Values{}
	values.Set("json", "")
	values.Set("exchange", "")
	values.Set("coursid", courseID)

	var payload []struct {
		Ccy     string `json:"ccy"`
		BaseCcy string `json:"base_ccy"`
		Buy     string `json:"buy"`
		Sale    string `json:"sale"`
	}
	err := p.opts.Executor.Execute(ctx, fetch.Request{
		Source:  p.Name(),
		Build:   fetch.Get(p.opts.BaseURL, "/p24api/pubinfo", values, nil),
		Decode:  fetch.JSON(&payload),
		Breaker: p.circuit,
	}, p.opts.Policy)
	if err != nil {
		return currency.Rates{}, err
	}

	out := currency.Rates{Type: t, FetchedAt: time.Now().UTC()}
	for _, item := range payload {
		buy, err := strconv.ParseFloat(strings.TrimSpace(item.Buy), 64)
		if err != nil {
			return currency.Rates{}, fetch.NewDecodeError(p.Name(), fmt.Errorf("buy rate of %s: %w", item.Ccy, err))
		}
		sale, err := strconv.ParseFloat(strings.TrimSpace(item.Sale), 64)
		if err != nil {
			return currency.Rates{}, fetch.NewDecodeError(p.Name(), fmt.Errorf("sale rate of %s: %w", item.Ccy, err))
		}
		out.Rates = append(out.Rates, currency.Rate{
			Currency: strings.ToUpper(item.Ccy),
			Base:     strings.ToUpper(item.BaseCcy),
			Buy:      buy,
			Sale:     sale,
		})
	}
	return out, nil
}
