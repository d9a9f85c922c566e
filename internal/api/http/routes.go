package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-alerts-aggregation/internal/alerts"
	"github.com/i474232898/weather-alerts-aggregation/internal/alerts/mapgen"
	"github.com/i474232898/weather-alerts-aggregation/internal/currency"
	"github.com/i474232898/weather-alerts-aggregation/internal/format"
	"github.com/i474232898/weather-alerts-aggregation/internal/model"
	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/reminder"
	"github.com/i474232898/weather-alerts-aggregation/internal/repository"
	"github.com/i474232898/weather-alerts-aggregation/internal/service"
	"github.com/i474232898/weather-alerts-aggregation/internal/weather"
)

var validate = validator.New()

type WeatherService interface {
	Current(ctx context.Context, city string, tier pipeline.Tier) pipeline.Result[weather.Current]
	Forecast(ctx context.Context, city string, days int, tier pipeline.Tier) pipeline.Result[weather.Forecast]
	ProviderName(tier pipeline.Tier) string
}

type CurrencyService interface {
	Rates(ctx context.Context, t currency.RateType, tier pipeline.Tier) pipeline.Result[currency.Rates]
	ProviderName(tier pipeline.Tier) string
}

type AlertService interface {
	Active(ctx context.Context, tier pipeline.Tier) pipeline.Result[[]alerts.Fact]
	ProviderName(tier pipeline.Tier) string
}

type MapRenderer interface {
	Render(facts []alerts.Fact) mapgen.Output
}

type SettingsService interface {
	Get(ctx context.Context, id int64) (*model.User, error)
	Ensure(ctx context.Context, id int64, username, firstName string) (*model.User, error)
	Update(ctx context.Context, id int64, p service.Preferences) (*model.User, error)
}

type ReminderRunner interface {
	RunCycle(ctx context.Context, now time.Time) (reminder.Report, error)
}

// Notifier pushes messages to a user's chat.
type Notifier interface {
	SendText(ctx context.Context, userID int64, text string) error
	SendImage(ctx context.Context, userID int64, img []byte, name, caption string) error
}

// Deps are the services behind the routes. Reminders, Notifier and Health may be nil.
type Deps struct {
	Weather   WeatherService
	Currency  CurrencyService
	Alerts    AlertService
	Maps      MapRenderer
	Settings  SettingsService
	Reminders ReminderRunner
	Notifier  Notifier
	Health    func(ctx context.Context) error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if d.Health != nil {
			if err := d.Health(c.UserContext()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-alerts-aggregation",
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		var q weatherQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		tier, _ := pipeline.ParseTier(q.Provider)

		return respond(c, d.Weather.ProviderName(tier), d.Weather.Current(c.UserContext(), q.City, tier))
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		var q forecastQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		tier, _ := pipeline.ParseTier(q.Provider)

		return respond(c, d.Weather.ProviderName(tier), d.Weather.Forecast(c.UserContext(), q.City, q.Days, tier))
	})

	v1.Get("/currency", func(c *fiber.Ctx) error {
		var q currencyQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		tier, _ := pipeline.ParseTier(q.Provider)
		rateType, err := currency.ParseRateType(q.Type)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return respond(c, d.Currency.ProviderName(tier), d.Currency.Rates(c.UserContext(), rateType, tier))
	})

	v1.Get("/alerts", func(c *fiber.Ctx) error {
		var q providerQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		tier, _ := pipeline.ParseTier(q.Provider)

		res := d.Alerts.Active(c.UserContext(), tier)
		if !res.OK() {
			return failure(c, res.Failure)
		}
		return c.JSON(fiber.Map{
			"provider": d.Alerts.ProviderName(tier),
			"active":   alerts.ActiveCount(res.Value),
			"summary":  format.Alerts(res.Value),
			"data":     res.Value,
		})
	})

	v1.Get("/alerts/map", func(c *fiber.Ctx) error {
		var q providerQuery
		if err := bindQuery(c, &q); err != nil {
			return err
		}
		tier, _ := pipeline.ParseTier(q.Provider)

		res := d.Alerts.Active(c.UserContext(), tier)
		if !res.OK() {
			return failure(c, res.Failure)
		}

		out := d.Maps.Render(res.Value)
		c.Set("X-Map-Format", out.Format.String())
		if out.Format == mapgen.FormatNone {
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return c.SendString(format.Alerts(res.Value))
		}
		c.Set(fiber.HeaderContentType, out.Format.ContentType())
		return c.Send(out.Data)
	})

	v1.Get("/users/:id", func(c *fiber.Ctx) error {
		id, err := userID(c)
		if err != nil {
			return err
		}
		u, err := d.Settings.Get(c.UserContext(), id)
		if errors.Is(err, repository.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(u)
	})

	// Registers the chat user on first interaction and refreshes the profile names.
	v1.Put("/users/:id", func(c *fiber.Ctx) error {
		id, err := userID(c)
		if err != nil {
			return err
		}

		var req profileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		u, err := d.Settings.Ensure(c.UserContext(), id, req.Username, req.FirstName)
		if err != nil {
			return err
		}
		return c.JSON(u)
	})

	v1.Put("/users/:id/preferences", func(c *fiber.Ctx) error {
		id, err := userID(c)
		if err != nil {
			return err
		}

		var req preferencesRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		prefs, err := req.toPreferences()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		u, err := d.Settings.Update(c.UserContext(), id, prefs)
		if errors.Is(err, service.ErrValidation) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return err
		}
		return c.JSON(u)
	})

	// Sends the alert map, rendered from the user's alert provider, to the user's chat.
	v1.Post("/users/:id/alerts/map", func(c *fiber.Ctx) error {
		if d.Notifier == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "delivery is not configured")
		}
		id, err := userID(c)
		if err != nil {
			return err
		}
		u, err := d.Settings.Get(c.UserContext(), id)
		if errors.Is(err, repository.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		if err != nil {
			return err
		}

		res := d.Alerts.Active(c.UserContext(), u.AlertProvider)
		var text string
		out := mapgen.Output{}
		if res.OK() {
			text = format.Alerts(res.Value)
			out = d.Maps.Render(res.Value)
		} else {
			text = format.Failure("the alert map", res.Failure)
		}

		if out.Format == mapgen.FormatNone {
			err = d.Notifier.SendText(c.UserContext(), id, text)
		} else {
			err = d.Notifier.SendImage(c.UserContext(), id, out.Data, "alerts."+out.Format.String(), text)
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(fiber.Map{"sent": true, "format": out.Format.String()})
	})

	v1.Post("/reminders/run", func(c *fiber.Ctx) error {
		if d.Reminders == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "reminders are not configured")
		}
		rep, err := d.Reminders.RunCycle(c.UserContext(), time.Now())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
				"report":  rep,
			})
		}
		return c.JSON(rep)
	})
}

// providerQuery holds the optional provider tier selector.
type providerQuery struct {
	Provider string `query:"provider" validate:"omitempty,oneof=primary backup"`
}

type weatherQuery struct {
	City     string `query:"city" validate:"required,max=100"`
	Provider string `query:"provider" validate:"omitempty,oneof=primary backup"`
}

type forecastQuery struct {
	City     string `query:"city" validate:"required,max=100"`
	Days     int    `query:"days" validate:"required,min=1,max=5"`
	Provider string `query:"provider" validate:"omitempty,oneof=primary backup"`
}

type currencyQuery struct {
	Type     string `query:"type" validate:"omitempty,oneof=cash noncash non-cash card"`
	Provider string `query:"provider" validate:"omitempty,oneof=primary backup"`
}

type profileRequest struct {
	Username  string `json:"username" validate:"max=64"`
	FirstName string `json:"firstName" validate:"max=128"`
}

// preferencesRequest is the body of a preferences update; omitted fields stay unchanged.
type preferencesRequest struct {
	City            *string `json:"city" validate:"omitempty,max=100"`
	WeatherProvider *string `json:"weatherProvider" validate:"omitempty,oneof=primary backup"`
	AlertProvider   *string `json:"alertProvider" validate:"omitempty,oneof=primary backup"`
	ReminderTime    *string `json:"reminderTime" validate:"omitempty,datetime=15:04"`
	ReminderEnabled *bool   `json:"reminderEnabled"`
}

func (r preferencesRequest) toPreferences() (service.Preferences, error) {
	p := service.Preferences{City: r.City, ReminderEnabled: r.ReminderEnabled}
	if r.WeatherProvider != nil {
		t, err := pipeline.ParseTier(*r.WeatherProvider)
		if err != nil {
			return p, err
		}
		p.WeatherProvider = &t
	}
	if r.AlertProvider != nil {
		t, err := pipeline.ParseTier(*r.AlertProvider)
		if err != nil {
			return p, err
		}
		p.AlertProvider = &t
	}
	if r.ReminderTime != nil {
		t, err := model.ParseTimeOfDay(*r.ReminderTime)
		if err != nil {
			return p, err
		}
		p.ReminderTime = &t
	}
	return p, nil
}

func bindQuery(c *fiber.Ctx, dst any) error {
	if err := c.QueryParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func userID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

func respond[T any](c *fiber.Ctx, provider string, res pipeline.Result[T]) error {
	if !res.OK() {
		return failure(c, res.Failure)
	}
	return c.JSON(fiber.Map{
		"provider": provider,
		"data":     res.Value,
	})
}

func failure(c *fiber.Ctx, f *pipeline.Failure) error {
	code := f.Code
	if code < 400 || code > 599 {
		code = fiber.StatusBadGateway
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": f.Message,
		"source":  f.Source,
		"kind":    f.Kind,
	})
}

// ErrorHandler renders handler errors as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
