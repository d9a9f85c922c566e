package providers

import (
	"context"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-alerts-aggregation/internal/alerts"
	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
)

const alertsInUAURL = "https://api.alerts.in.ua"

// AlertsInUAProvider reads active alerts from alerts.in.ua.
type AlertsInUAProvider struct {
	opts    Options
	circuit *gobreaker.CircuitBreaker
}

func NewAlertsInUAProvider(opts Options) *AlertsInUAProvider {
	return &AlertsInUAProvider{
		opts:    opts.withDefaults(alertsInUAURL),
		circuit: fetch.NewBreaker("alerts.in.ua"),
	}
}

func (p *AlertsInUAProvider) Name() string {
	return "alerts.in.ua"
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexString(s)
	return nil
}

func (p *AlertsInUAProvider) Active(ctx context.Context) ([]alerts.Record, error) {
	if p.opts.Token == "" {
		return nil, fetch.NewConfigError(p.Name(), "alerts.in.ua token is not configured")
	}

	var payload struct {
		Alerts []struct {
			LocationTitle     string     `json:"location_title"`
			LocationOblast    string     `json:"location_oblast"`
			LocationType      string     `json:"location_type"`
			LocationUID       flexString `json:"location_uid"`
			LocationOblastUID flexString `json:"location_oblast_uid"`
			AlertType         string     `json:"alert_type"`
		} `json:"alerts"`
	}
	err := p.opts.Executor.Execute(ctx, fetch.Request{
		Source:       p.Name(),
		Build:        fetch.Get(p.opts.BaseURL, "/v1/alerts/active.json", nil, map[string]string{"Authorization": "Bearer " + p.opts.Token}),
		Decode:       fetch.JSON(&payload),
		ErrorMessage: fetch.JSONMessage("message"),
		Breaker:      p.circuit,
	}, p.opts.Policy)
	if err != nil {
		return nil, err
	}

	out := make([]alerts.Record, 0, len(payload.Alerts))
	for _, a := range payload.Alerts {
		sub := a.LocationType != "" && a.LocationType != "oblast"
		code := string(a.LocationUID)
		if sub {
			code = string(a.LocationOblastUID)
		}
		if _, err := strconv.Atoi(code); err != nil {
			code = ""
		}
		out = append(out, alerts.Record{
			Name:      a.LocationTitle,
			Oblast:    a.LocationOblast,
			Code:      code,
			SubOblast: sub,
			AlertType: a.AlertType,
		})
	}
	return out, nil
}
