// Package format renders normalized pipeline results as plain chat text.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/i474232898/weather-alerts-aggregation/internal/alerts"
	"github.com/i474232898/weather-alerts-aggregation/internal/currency"
	"github.com/i474232898/weather-alerts-aggregation/internal/model"
	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/weather"
)

var conditionIcons = map[weather.Condition]string{
	weather.ConditionClear:  "☀️",
	weather.ConditionCloudy: "☁️",
	weather.ConditionRain:   "🌧",
	weather.ConditionSnow:   "❄️",
	weather.ConditionStorm:  "⛈",
	weather.ConditionMist:   "🌫",
}

func icon(c weather.Condition) string {
	if s, ok := conditionIcons[c]; ok {
		return s
	}
	return "🌡"
}

// temp rounds to whole degrees and avoids printing "-0".
func temp(c float64) string {
	v := math.Round(c)
	if v == 0 {
		v = 0
	}
	return fmt.Sprintf("%+.0f°C", v)
}

func place(city, country string) string {
	if country == "" {
		return city
	}
	return city + ", " + country
}

// Current renders current conditions.
func Current(c weather.Current) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", icon(c.Condition), place(c.City, c.Country))
	if c.Description != "" {
		fmt.Fprintf(&b, "%s\n", c.Description)
	}
	fmt.Fprintf(&b, "Temperature: %s (feels like %s)\n", temp(c.TemperatureC), temp(c.FeelsLikeC))
	fmt.Fprintf(&b, "Humidity: %.0f%%\n", c.HumidityPct)
	fmt.Fprintf(&b, "Pressure: %.0f hPa\n", c.PressureHpa)
	fmt.Fprintf(&b, "Wind: %.1f m/s", c.WindSpeedMS)
	return b.String()
}

// Forecast renders one line per day.
func Forecast(f weather.Forecast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s", place(f.City, f.Country))
	for _, d := range f.Days {
		fmt.Fprintf(&b, "\n%s %s  %s..%s", d.Date, icon(d.Condition), temp(d.MinC), temp(d.MaxC))
		if d.Description != "" {
			fmt.Fprintf(&b, "  %s", d.Description)
		}
	}
	return b.String()
}

// Rates renders the rate table in the order given.
func Rates(r currency.Rates) string {
	var b strings.Builder
	kind := "cash"
	if r.Type == currency.NonCash {
		kind = "non-cash"
	}
	fmt.Fprintf(&b, "Exchange rates (%s)", kind)
	if len(r.Rates) == 0 {
		b.WriteString("\nno rates available")
	}
	for _, rt := range r.Rates {
		fmt.Fprintf(&b, "\n%s/%s  buy %.2f  sale %.2f", rt.Currency, rt.Base, rt.Buy, rt.Sale)
	}
	return b.String()
}

// Alerts lists regions under alert, or says none are.
func Alerts(facts []alerts.Fact) string {
	var active []alerts.Fact
	for _, f := range facts {
		if f.Active {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return "🟢 No active air raid alerts."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔴 Active alerts in %d region(s):", len(active))
	for _, f := range active {
		fmt.Fprintf(&b, "\n• %s", f.Region)
		if len(f.Types) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(f.Types, ", "))
		}
	}
	return b.String()
}

// Failure explains a failed fetch. It shows the code and source, never the raw message.
func Failure(what string, f *pipeline.Failure) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("😔 Could not get %s right now (%s, code %d). Please try again later.", what, f.Source, f.Code)
}

// Reminder builds the daily reminder text. A failed fetch still produces a message.
func Reminder(at model.TimeOfDay, city string, r pipeline.Result[weather.Current]) string {
	header := fmt.Sprintf("🔔 Daily weather reminder (%s)\n\n", at)
	if !r.OK() {
		return header + Failure("the weather for "+city, r.Failure)
	}
	return header + Current(r.Value)
}
