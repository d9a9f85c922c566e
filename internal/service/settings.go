// Package service implements user settings on top of the user repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/model"
	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/repository"
)

// Session is the part of a repository session settings need.
type Session interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error
	Commit() error
	Rollback() error
}

type SessionFactory interface {
	Begin(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

func (f SessionFactoryFunc) Begin(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Invalidator drops cached provider results of a domain.
type Invalidator interface {
	InvalidateNamespace(namespace string) int
}

// ErrValidation marks invalid preference input.
var ErrValidation = errors.New("invalid preferences")

// DefaultReminderTime is used when a reminder is enabled without a time.
var DefaultReminderTime = model.TimeOfDay(7 * 60)

const maxCityLen = 100

// Preferences is a partial update; nil fields are left unchanged.
type Preferences struct {
	City            *string          `json:"city,omitempty"`
	WeatherProvider *pipeline.Tier   `json:"weatherProvider,omitempty"`
	AlertProvider   *pipeline.Tier   `json:"alertProvider,omitempty"`
	ReminderTime    *model.TimeOfDay `json:"reminderTime,omitempty"`
	ReminderEnabled *bool            `json:"reminderEnabled,omitempty"`
}

// Settings reads and mutates user preferences.
type Settings struct {
	sessions SessionFactory
	cache    Invalidator
	log      *zap.Logger
}

func NewSettings(sessions SessionFactory, cache Invalidator, log *zap.Logger) *Settings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Settings{sessions: sessions, cache: cache, log: log.Named("settings")}
}

// Get returns the stored user or repository.ErrNotFound.
func (s *Settings) Get(ctx context.Context, id int64) (*model.User, error) {
	var u *model.User
	err := s.inTx(ctx, func(sess Session) error {
		var err error
		u, err = sess.GetUser(ctx, id)
		return err
	})
	return u, err
}

// Ensure returns the user, creating it with default preferences on first interaction.
// Username and first name are refreshed when they changed.
func (s *Settings) Ensure(ctx context.Context, id int64, username, firstName string) (*model.User, error) {
	var u *model.User
	err := s.inTx(ctx, func(sess Session) error {
		var err error
		u, err = sess.GetUser(ctx, id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			u = model.NewUser(id)
		case err != nil:
			return err
		case u.Username == username && u.FirstName == firstName:
			return nil
		}
		u.Username = username
		u.FirstName = firstName
		return sess.SaveUser(ctx, u)
	})
	return u, err
}

// Update applies p to the user, creating the user if needed. A change of provider
// drops the cached results of that domain.
func (s *Settings) Update(ctx context.Context, id int64, p Preferences) (*model.User, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var (
		u       *model.User
		changed []pipeline.Domain
	)
	err := s.inTx(ctx, func(sess Session) error {
		var err error
		u, err = sess.GetUser(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			u, err = model.NewUser(id), nil
		}
		if err != nil {
			return err
		}

		if p.City != nil {
			u.PreferredCity = strings.TrimSpace(*p.City)
		}
		if p.WeatherProvider != nil && *p.WeatherProvider != u.WeatherProvider {
			u.WeatherProvider = *p.WeatherProvider
			changed = append(changed, pipeline.DomainWeather)
		}
		if p.AlertProvider != nil && *p.AlertProvider != u.AlertProvider {
			u.AlertProvider = *p.AlertProvider
			changed = append(changed, pipeline.DomainAlerts)
		}
		if p.ReminderTime != nil {
			t := *p.ReminderTime
			u.ReminderTime = &t
			u.LastReminderAt = nil
		}
		if p.ReminderEnabled != nil {
			u.ReminderEnabled = *p.ReminderEnabled
			if u.ReminderEnabled && u.ReminderTime == nil {
				t := DefaultReminderTime
				u.ReminderTime = &t
			}
		}
		return sess.SaveUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	for _, d := range changed {
		n := 0
		if s.cache != nil {
			n = s.cache.InvalidateNamespace(string(d))
		}
		s.log.Info("provider changed, cache invalidated",
			zap.Int64("user_id", id),
			zap.String("domain", string(d)),
			zap.Int("entries", n),
		)
	}
	return u, nil
}

func (p Preferences) validate() error {
	if p.City != nil {
		city := strings.TrimSpace(*p.City)
		if len(city) > maxCityLen {
			return fmt.Errorf("%w: city is longer than %d bytes", ErrValidation, maxCityLen)
		}
	}
	for _, t := range []*pipeline.Tier{p.WeatherProvider, p.AlertProvider} {
		if t != nil && *t != pipeline.Primary && *t != pipeline.Backup {
			return fmt.Errorf("%w: unknown provider %s", ErrValidation, t)
		}
	}
	if p.ReminderTime != nil && (*p.ReminderTime < 0 || *p.ReminderTime >= 24*60) {
		return fmt.Errorf("%w: reminder time out of range", ErrValidation)
	}
	return nil
}

func (s *Settings) inTx(ctx context.Context, fn func(Session) error) error {
	sess, err := s.sessions.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	defer func() {
		if err := sess.Rollback(); err != nil {
			s.log.Warn("rollback failed", zap.Error(err))
		}
	}()

	if err := fn(sess); err != nil {
		return err
	}
	return sess.Commit()
}
