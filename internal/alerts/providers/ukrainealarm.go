package providers

import (
	"context"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-alerts-aggregation/internal/alerts"
	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
)

const ukraineAlarmURL = "https://api.ukrainealarm.com"

// UkraineAlarmProvider reads active alerts from the UkraineAlarm v3 API.
type UkraineAlarmProvider struct {
	opts    Options
	circuit *gobreaker.CircuitBreaker
}

func NewUkraineAlarmProvider(opts Options) *UkraineAlarmProvider {
	return &UkraineAlarmProvider{
		opts:    opts.withDefaults(ukraineAlarmURL),
		circuit: fetch.NewBreaker("ukrainealarm"),
	}
}

func (p *UkraineAlarmProvider) Name() string {
	return "ukrainealarm"
}

func (p *UkraineAlarmProvider) Active(ctx context.Context) ([]alerts.Record, error) {
	if p.opts.Token == "" {
		return nil, fetch.NewConfigError(p.Name(), "ukrainealarm token is not configured")
	}

	var payload []struct {
		RegionID     string `json:"regionId"`
		RegionType   string `json:"regionType"`
		RegionName   string `json:"regionName"`
		ActiveAlerts []struct {
			Type string `json:"type"`
		} `json:"activeAlerts"`
	}
	err := p.opts.Executor.Execute(ctx, fetch.Request{
		Source: p.Name(),
		// The token goes into the header as is, without a scheme.
		Build:   fetch.Get(p.opts.BaseURL, "/api/v3/alerts", nil, map[string]string{"Authorization": p.opts.Token}),
		Decode:  fetch.JSON(&payload),
		Breaker: p.circuit,
	}, p.opts.Policy)
	if err != nil {
		return nil, err
	}

	var out []alerts.Record
	for _, region := range payload {
		if len(region.ActiveAlerts) == 0 {
			continue
		}
		sub := !strings.EqualFold(region.RegionType, "State")
		code := region.RegionID
		if sub {
			// District and community ids do not share the oblast code space and
			// the payload names no parent oblast.
			code = ""
		}
		for _, a := range region.ActiveAlerts {
			out = append(out, alerts.Record{
				Name:      region.RegionName,
				Code:      code,
				SubOblast: sub,
				AlertType: strings.ToLower(a.Type),
			})
		}
	}
	return out, nil
}
