package providers

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
	"github.com/i474232898/weather-alerts-aggregation/internal/weather"
)

const weatherAPIURL = "https://api.weatherapi.com"

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com.
type WeatherAPIProvider struct {
	base
}

func NewWeatherAPIProvider(opts Options) *WeatherAPIProvider {
	return &WeatherAPIProvider{base: newBase("weatherapi", weatherAPIURL, opts)}
}

type wapiCondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

type wapiLocation struct {
	Name           string `json:"name"`
	Country        string `json:"country"`
	LocaltimeEpoch int64  `json:"localtime_epoch"`
}

func (p *WeatherAPIProvider) query(city string) url.Values {
	values := url.Values{}
	values.Set("key", p.opts.APIKey)
	values.Set("q", city)
	values.Set("lang", p.opts.Lang)
	return values
}

func (p *WeatherAPIProvider) request(path string, values url.Values, dst any) fetch.Request {
	return fetch.Request{
		Source: p.name,
		Build:  fetch.Get(p.opts.BaseURL, path, values, nil),
		Decode: fetch.JSON(dst),
		// {"error":{"code":1006,"message":"No matching location found."}}
		ErrorMessage: fetch.JSONMessage("error", "message"),
		Breaker:      p.circuit,
	}
}

func (p *WeatherAPIProvider) Current(ctx context.Context, city string) (weather.Current, error) {
	if err := p.checkKey(); err != nil {
		return weather.Current{}, err
	}

	var payload struct {
		Location wapiLocation `json:"location"`
		Current  struct {
			LastUpdatedEpoch int64         `json:"last_updated_epoch"`
			TempC            float64       `json:"temp_c"`
			FeelsLikeC       float64       `json:"feelslike_c"`
			Humidity         float64       `json:"humidity"`
			WindKph          float64       `json:"wind_kph"`
			WindDegree       float64       `json:"wind_degree"`
			PressureMb       float64       `json:"pressure_mb"`
			Cloud            float64       `json:"cloud"`
			Condition        wapiCondition `json:"condition"`
		} `json:"current"`
	}

	if err := p.opts.HTTP.Executor.Execute(ctx, p.request("/v1/current.json", p.query(city), &payload), p.opts.HTTP.Policy); err != nil {
		return weather.Current{}, err
	}

	ts := time.Now().UTC()
	switch {
	case payload.Current.LastUpdatedEpoch > 0:
		ts = time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	case payload.Location.LocaltimeEpoch > 0:
		ts = time.Unix(payload.Location.LocaltimeEpoch, 0).UTC()
	}
	name := payload.Location.Name
	if name == "" {
		name = city
	}

	return weather.Current{
		City:         name,
		Country:      payload.Location.Country,
		ObservedAt:   ts,
		TemperatureC: payload.Current.TempC,
		FeelsLikeC:   payload.Current.FeelsLikeC,
		HumidityPct:  payload.Current.Humidity,
		PressureHpa:  payload.Current.PressureMb,
		// Convert wind from kph to m/s.
		WindSpeedMS: payload.Current.WindKph / 3.6,
		WindDeg:     payload.Current.WindDegree,
		CloudsPct:   payload.Current.Cloud,
		Condition:   mapWeatherAPICondition(payload.Current.Condition),
		Description: payload.Current.Condition.Text,
	}, nil
}

func (p *WeatherAPIProvider) Forecast(ctx context.Context, q weather.ForecastQuery) (weather.Forecast, error) {
	if err := p.checkKey(); err != nil {
		return weather.Forecast{}, err
	}

	var payload struct {
		Location wapiLocation `json:"location"`
		Forecast struct {
			ForecastDay []struct {
				Date string `json:"date"`
				Day  struct {
					MinTempC  float64       `json:"mintemp_c"`
					MaxTempC  float64       `json:"maxtemp_c"`
					Condition wapiCondition `json:"condition"`
				} `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	values := p.query(q.City)
	values.Set("days", strconv.Itoa(q.Days))
	if err := p.opts.HTTP.Executor.Execute(ctx, p.request("/v1/forecast.json", values, &payload), p.opts.HTTP.Policy); err != nil {
		return weather.Forecast{}, err
	}
	if len(payload.Forecast.ForecastDay) == 0 {
		return weather.Forecast{}, fetch.NewDecodeError(p.name, errEmptyForecast)
	}

	out := weather.Forecast{City: payload.Location.Name, Country: payload.Location.Country}
	if out.City == "" {
		out.City = q.City
	}
	for i, fd := range payload.Forecast.ForecastDay {
		if i == q.Days {
			break
		}
		out.Days = append(out.Days, weather.Day{
			Date:        fd.Date,
			MinC:        fd.Day.MinTempC,
			MaxC:        fd.Day.MaxTempC,
			Condition:   mapWeatherAPICondition(fd.Day.Condition),
			Description: fd.Day.Condition.Text,
		})
	}
	return out, nil
}

// mapWeatherAPICondition uses the language-independent condition code, falling back to text.
func mapWeatherAPICondition(c wapiCondition) weather.Condition {
	switch c.Code {
	case 1000:
		return weather.ConditionClear
	case 1003, 1006, 1009:
		return weather.ConditionCloudy
	case 1030, 1135, 1147:
		return weather.ConditionMist
	case 1087, 1273, 1276, 1279, 1282:
		return weather.ConditionStorm
	case 1066, 1069, 1072, 1114, 1117, 1168, 1171, 1204, 1207, 1210, 1213, 1216, 1219, 1222, 1225,
		1237, 1249, 1252, 1255, 1258, 1261, 1264:
		return weather.ConditionSnow
	case 1063, 1150, 1153, 1180, 1183, 1186, 1189, 1192, 1195, 1198, 1201, 1240, 1243, 1246:
		return weather.ConditionRain
	}
	return mapConditionText(c.Text)
}
