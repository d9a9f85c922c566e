package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/i474232898/weather-alerts-aggregation/internal/alerts"
	"github.com/i474232898/weather-alerts-aggregation/internal/alerts/mapgen"
	"github.com/i474232898/weather-alerts-aggregation/internal/currency"
	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
	"github.com/i474232898/weather-alerts-aggregation/internal/model"
	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/reminder"
	"github.com/i474232898/weather-alerts-aggregation/internal/repository"
	"github.com/i474232898/weather-alerts-aggregation/internal/service"
	"github.com/i474232898/weather-alerts-aggregation/internal/weather"
)

type fakeWeather struct {
	tiers []pipeline.Tier
	fail  *pipeline.Failure
}

func (f *fakeWeather) Current(ctx context.Context, city string, tier pipeline.Tier) pipeline.Result[weather.Current] {
	f.tiers = append(f.tiers, tier)
	if f.fail != nil {
		return pipeline.Fail[weather.Current](f.fail)
	}
	return pipeline.Success(weather.Current{City: city, TemperatureC: 18})
}

func (f *fakeWeather) Forecast(ctx context.Context, city string, days int, tier pipeline.Tier) pipeline.Result[weather.Forecast] {
	f.tiers = append(f.tiers, tier)
	return pipeline.Success(weather.Forecast{City: city, Days: make([]weather.Day, days)})
}

func (f *fakeWeather) ProviderName(tier pipeline.Tier) string {
	if tier == pipeline.Backup {
		return "weatherapi"
	}
	return "openweathermap"
}

type fakeCurrency struct{ types []currency.RateType }

func (f *fakeCurrency) Rates(ctx context.Context, t currency.RateType, tier pipeline.Tier) pipeline.Result[currency.Rates] {
	f.types = append(f.types, t)
	return pipeline.Success(currency.Rates{Type: t})
}

func (f *fakeCurrency) ProviderName(pipeline.Tier) string { return "privatbank" }

type fakeAlerts struct{ facts []alerts.Fact }

func (f *fakeAlerts) Active(ctx context.Context, tier pipeline.Tier) pipeline.Result[[]alerts.Fact] {
	return pipeline.Success(f.facts)
}

func (f *fakeAlerts) ProviderName(pipeline.Tier) string { return "ukrainealarm" }

type fakeMaps struct{ out mapgen.Output }

func (f fakeMaps) Render([]alerts.Fact) mapgen.Output { return f.out }

type fakeSettings struct {
	users   map[int64]*model.User
	updates []service.Preferences
}

func (f *fakeSettings) Get(ctx context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeSettings) Ensure(ctx context.Context, id int64, username, firstName string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		u = model.NewUser(id)
		f.users[id] = u
	}
	u.Username = username
	u.FirstName = firstName
	return u, nil
}

func (f *fakeSettings) Update(ctx context.Context, id int64, p service.Preferences) (*model.User, error) {
	f.updates = append(f.updates, p)
	u := model.NewUser(id)
	if p.WeatherProvider != nil {
		u.WeatherProvider = *p.WeatherProvider
	}
	return u, nil
}

type fakeRunner struct{}

func (fakeRunner) RunCycle(ctx context.Context, now time.Time) (reminder.Report, error) {
	return reminder.Report{CycleID: uuid.New(), Sent: 2}, nil
}

type sentMessage struct {
	userID int64
	name   string
	text   string
}

type fakeNotifier struct{ sent []sentMessage }

func (f *fakeNotifier) SendText(ctx context.Context, userID int64, text string) error {
	f.sent = append(f.sent, sentMessage{userID: userID, text: text})
	return nil
}

func (f *fakeNotifier) SendImage(ctx context.Context, userID int64, img []byte, name, caption string) error {
	f.sent = append(f.sent, sentMessage{userID: userID, name: name, text: caption})
	return nil
}

type testDeps struct {
	weather  *fakeWeather
	currency *fakeCurrency
	alerts   *fakeAlerts
	settings *fakeSettings
	maps     fakeMaps
}

func newTestApp(td *testDeps, extra func(*Deps)) *fiber.App {
	if td.weather == nil {
		td.weather = &fakeWeather{}
	}
	if td.currency == nil {
		td.currency = &fakeCurrency{}
	}
	if td.alerts == nil {
		td.alerts = &fakeAlerts{}
	}
	if td.settings == nil {
		td.settings = &fakeSettings{users: map[int64]*model.User{}}
	}
	d := Deps{
		Weather:  td.weather,
		Currency: td.currency,
		Alerts:   td.alerts,
		Maps:     td.maps,
		Settings: td.settings,
	}
	if extra != nil {
		extra(&d)
	}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, d)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

// TestForecastValidation verifies that the forecast endpoint enforces the
// expected 1-5 range for the `days` query parameter and requires a city.
func TestForecastValidation(t *testing.T) {
	app := newTestApp(&testDeps{}, nil)

	for _, target := range []string{
		"/api/v1/weather/forecast?city=Kyiv",
		"/api/v1/weather/forecast?city=Kyiv&days=6",
		"/api/v1/weather/forecast?city=Kyiv&days=abc",
		"/api/v1/weather/forecast?days=3",
		"/api/v1/weather/forecast?city=Kyiv&days=3&provider=tertiary",
	} {
		resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/weather/forecast?city=Kyiv&days=5", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
}

func TestCurrentWeather_ProviderSelection(t *testing.T) {
	td := &testDeps{}
	app := newTestApp(td, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?city=Lviv&provider=backup", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Provider string          `json:"provider"`
		Data     weather.Current `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Provider != "weatherapi" || out.Data.City != "Lviv" {
		t.Fatalf("unexpected response %+v", out)
	}
	if len(td.weather.tiers) != 1 || td.weather.tiers[0] != pipeline.Backup {
		t.Fatalf("expected the backup tier, got %v", td.weather.tiers)
	}
}

func TestCurrentWeather_FailureStatus(t *testing.T) {
	td := &testDeps{weather: &fakeWeather{fail: &pipeline.Failure{
		Code: http.StatusServiceUnavailable, Message: "connection refused", Source: "openweathermap", Kind: fetch.KindNetwork,
	}}}
	app := newTestApp(td, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?city=Kyiv", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"source":"openweathermap"`) {
		t.Fatalf("failure must name its source: %s", body)
	}
}

func TestCurrency_RateType(t *testing.T) {
	td := &testDeps{}
	app := newTestApp(td, nil)

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/currency?type=noncash", nil))
	if resp.StatusCode != http.StatusOK || td.currency.types[0] != currency.NonCash {
		t.Fatalf("unexpected status %d, types %v", resp.StatusCode, td.currency.types)
	}
	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/currency?type=crypto", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", resp.StatusCode)
	}
}

func TestAlertMap_Formats(t *testing.T) {
	facts := []alerts.Fact{{Region: "Харківська область", Active: true}}

	app := newTestApp(&testDeps{alerts: &fakeAlerts{facts: facts}, maps: fakeMaps{out: mapgen.Output{Format: mapgen.FormatPNG, Data: []byte("\x89PNG")}}}, nil)
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/map", nil))
	if resp.StatusCode != http.StatusOK || resp.Header.Get(fiber.HeaderContentType) != "image/png" || string(body) != "\x89PNG" {
		t.Fatalf("unexpected png response %d %q", resp.StatusCode, resp.Header.Get(fiber.HeaderContentType))
	}

	app = newTestApp(&testDeps{alerts: &fakeAlerts{facts: facts}, maps: fakeMaps{out: mapgen.Output{Format: mapgen.FormatNone}}}, nil)
	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/map", nil))
	if !strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/plain") {
		t.Fatalf("expected text fallback, got %q", resp.Header.Get(fiber.HeaderContentType))
	}
	if !strings.Contains(string(body), "Харківська область") || resp.Header.Get("X-Map-Format") != "none" {
		t.Fatalf("unexpected fallback body %q", body)
	}
}

func TestAlerts_Summary(t *testing.T) {
	app := newTestApp(&testDeps{alerts: &fakeAlerts{facts: []alerts.Fact{
		{Region: "Київська область", Active: true},
		{Region: "Львівська область"},
	}}}, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
	var out struct {
		Active int `json:"active"`
	}
	if err := json.Unmarshal(body, &out); err != nil || resp.StatusCode != http.StatusOK || out.Active != 1 {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
}

func TestUserPreferences(t *testing.T) {
	td := &testDeps{}
	app := newTestApp(td, nil)

	put := func(target, body string) *http.Response {
		req := httptest.NewRequest(http.MethodPut, target, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := do(t, app, req)
		return resp
	}

	resp := put("/api/v1/users/7/preferences", `{"city":"Odesa","weatherProvider":"backup","reminderTime":"07:30","reminderEnabled":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	p := td.settings.updates[0]
	if *p.City != "Odesa" || *p.WeatherProvider != pipeline.Backup || p.AlertProvider != nil || p.ReminderTime.String() != "07:30" || !*p.ReminderEnabled {
		t.Fatalf("unexpected preferences %+v", p)
	}

	for name, tc := range map[string]struct{ target, body string }{
		"bad provider": {"/api/v1/users/7/preferences", `{"alertProvider":"other"}`},
		"bad time":     {"/api/v1/users/7/preferences", `{"reminderTime":"25:00"}`},
		"bad id":       {"/api/v1/users/abc/preferences", `{}`},
		"bad json":     {"/api/v1/users/7/preferences", `{`},
	} {
		if resp := put(tc.target, tc.body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
	if len(td.settings.updates) != 1 {
		t.Fatalf("invalid requests must not reach the service")
	}
}

func TestEnsureUser(t *testing.T) {
	td := &testDeps{}
	app := newTestApp(td, nil)

	put := func(target, body string) (*http.Response, []byte) {
		req := httptest.NewRequest(http.MethodPut, target, strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return do(t, app, req)
	}

	resp, body := put("/api/v1/users/12", `{"username":"olena","firstName":"Olena"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var out struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.ID != 12 || out.Username != "olena" {
		t.Fatalf("unexpected body %s", body)
	}
	if u := td.settings.users[12]; u == nil || u.FirstName != "Olena" {
		t.Fatalf("user not registered: %+v", u)
	}

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/users/12", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("registered user must be readable, got %d", resp.StatusCode)
	}

	if resp, _ := put("/api/v1/users/12", `{"username":"`+strings.Repeat("a", 65)+`"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for long username, got %d", resp.StatusCode)
	}
	if resp, _ := put("/api/v1/users/x", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.StatusCode)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	app := newTestApp(&testDeps{}, nil)
	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/users/99", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRunReminders(t *testing.T) {
	app := newTestApp(&testDeps{}, nil)
	resp, _ := do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/reminders/run", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a runner, got %d", resp.StatusCode)
	}

	app = newTestApp(&testDeps{}, func(d *Deps) { d.Reminders = fakeRunner{} })
	resp, body := do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/reminders/run", nil))
	var rep reminder.Report
	if err := json.Unmarshal(body, &rep); err != nil || resp.StatusCode != http.StatusOK || rep.Sent != 2 {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(&testDeps{}, func(d *Deps) {
		d.Health = func(context.Context) error { return errors.New("database is closed") }
	})
	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestSendAlertMap(t *testing.T) {
	notifier := &fakeNotifier{}
	td := &testDeps{
		alerts:   &fakeAlerts{facts: []alerts.Fact{{Region: "Сумська область", Active: true}}},
		maps:     fakeMaps{out: mapgen.Output{Format: mapgen.FormatSVG, Data: []byte("<svg/>")}},
		settings: &fakeSettings{users: map[int64]*model.User{3: model.NewUser(3)}},
	}
	app := newTestApp(td, func(d *Deps) { d.Notifier = notifier })

	resp, body := do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/users/3/alerts/map", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].name != "alerts.svg" || !strings.Contains(notifier.sent[0].text, "Сумська область") {
		t.Fatalf("unexpected delivery %+v", notifier.sent)
	}

	resp, _ = do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/users/4/alerts/map", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", resp.StatusCode)
	}
}
