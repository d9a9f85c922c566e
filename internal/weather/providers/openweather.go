package providers

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
	"github.com/i474232898/weather-alerts-aggregation/internal/weather"
)

const openWeatherURL = "https://api.openweathermap.org"

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap.
type OpenWeatherProvider struct {
	base
}

func NewOpenWeatherProvider(opts Options) *OpenWeatherProvider {
	return &OpenWeatherProvider{base: newBase("openweathermap", openWeatherURL, opts)}
}

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

func (p *OpenWeatherProvider) query(city string) url.Values {
	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", p.opts.APIKey)
	values.Set("units", "metric")
	values.Set("lang", p.opts.Lang)
	return values
}

func (p *OpenWeatherProvider) Current(ctx context.Context, city string) (weather.Current, error) {
	if err := p.checkKey(); err != nil {
		return weather.Current{}, err
	}

	var payload struct {
		Dt   int64  `json:"dt"`
		Name string `json:"name"`
		Sys  struct {
			Country string `json:"country"`
		} `json:"sys"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  float64 `json:"humidity"`
			Pressure  float64 `json:"pressure"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
			Deg   float64 `json:"deg"`
		} `json:"wind"`
		Clouds struct {
			All float64 `json:"all"`
		} `json:"clouds"`
		Weather []owmCondition `json:"weather"`
	}

	err := p.opts.HTTP.Executor.Execute(ctx, fetch.Request{
		Source:       p.name,
		Build:        fetch.Get(p.opts.BaseURL, "/data/2.5/weather", p.query(city), nil),
		Decode:       fetch.JSON(&payload),
		ErrorMessage: fetch.JSONMessage("message"),
		Breaker:      p.circuit,
	}, p.opts.HTTP.Policy)
	if err != nil {
		return weather.Current{}, err
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}
	name := payload.Name
	if name == "" {
		name = city
	}
	cond, desc := firstOWMCondition(payload.Weather)

	return weather.Current{
		City:         name,
		Country:      payload.Sys.Country,
		ObservedAt:   ts,
		TemperatureC: payload.Main.Temp,
		FeelsLikeC:   payload.Main.FeelsLike,
		HumidityPct:  payload.Main.Humidity,
		PressureHpa:  payload.Main.Pressure,
		WindSpeedMS:  payload.Wind.Speed,
		WindDeg:      payload.Wind.Deg,
		CloudsPct:    payload.Clouds.All,
		Condition:    cond,
		Description:  desc,
	}, nil
}

// Forecast groups the 3-hourly forecast into days of the city's local calendar.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, q weather.ForecastQuery) (weather.Forecast, error) {
	if err := p.checkKey(); err != nil {
		return weather.Forecast{}, err
	}

	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				TempMin float64 `json:"temp_min"`
				TempMax float64 `json:"temp_max"`
			} `json:"main"`
			Weather []owmCondition `json:"weather"`
		} `json:"list"`
		City struct {
			Name     string `json:"name"`
			Country  string `json:"country"`
			Timezone int    `json:"timezone"`
		} `json:"city"`
	}

	values := p.query(q.City)
	values.Set("cnt", strconv.Itoa(q.Days*8+8))
	err := p.opts.HTTP.Executor.Execute(ctx, fetch.Request{
		Source:       p.name,
		Build:        fetch.Get(p.opts.BaseURL, "/data/2.5/forecast", values, nil),
		Decode:       fetch.JSON(&payload),
		ErrorMessage: fetch.JSONMessage("message"),
		Breaker:      p.circuit,
	}, p.opts.HTTP.Policy)
	if err != nil {
		return weather.Forecast{}, err
	}

	zone := time.FixedZone(payload.City.Name, payload.City.Timezone)
	type bucket struct {
		day      weather.Day
		noonDist time.Duration
	}
	var order []string
	buckets := make(map[string]*bucket)

	for _, item := range payload.List {
		local := time.Unix(item.Dt, 0).In(zone)
		date := local.Format("2006-01-02")
		noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, zone)
		dist := local.Sub(noon).Abs()
		cond, desc := firstOWMCondition(item.Weather)

		b, ok := buckets[date]
		if !ok {
			if len(order) == q.Days {
				continue
			}
			order = append(order, date)
			buckets[date] = &bucket{
				day: weather.Day{
					Date:        date,
					MinC:        item.Main.TempMin,
					MaxC:        item.Main.TempMax,
					Condition:   cond,
					Description: desc,
				},
				noonDist: dist,
			}
			continue
		}
		b.day.MinC = min(b.day.MinC, item.Main.TempMin)
		b.day.MaxC = max(b.day.MaxC, item.Main.TempMax)
		if dist < b.noonDist {
			b.noonDist = dist
			b.day.Condition = cond
			b.day.Description = desc
		}
	}

	if len(order) == 0 {
		return weather.Forecast{}, fetch.NewDecodeError(p.name, errEmptyForecast)
	}

	out := weather.Forecast{City: payload.City.Name, Country: payload.City.Country}
	if out.City == "" {
		out.City = q.City
	}
	for _, date := range order {
		out.Days = append(out.Days, buckets[date].day)
	}
	return out, nil
}

func firstOWMCondition(items []owmCondition) (weather.Condition, string) {
	if len(items) == 0 {
		return weather.ConditionUnknown, ""
	}
	return mapOpenWeatherCondition(items[0].Main), items[0].Description
}

func mapOpenWeatherCondition(main string) weather.Condition {
	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm", "Squall", "Tornado":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke", "Dust", "Sand", "Ash":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}
