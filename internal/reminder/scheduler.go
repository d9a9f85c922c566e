// Package reminder pushes the daily weather reminder to users whose reminder time is due.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/delivery"
	"github.com/i474232898/weather-alerts-aggregation/internal/format"
	"github.com/i474232898/weather-alerts-aggregation/internal/model"
	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/weather"
)

// Session is the transactional user store used by one cycle. The cycle only ever
// changes the reminder flag and the last fired slot of a user.
type Session interface {
	ListReminderCandidates(ctx context.Context, times []model.TimeOfDay) ([]model.User, error)
	DisableReminder(ctx context.Context, id int64) error
	MarkReminderSent(ctx context.Context, id int64, slot time.Time) error
	Commit() error
	Rollback() error
}

// SessionFactory opens sessions.
type SessionFactory interface {
	Begin(ctx context.Context) (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (Session, error)

func (f SessionFactoryFunc) Begin(ctx context.Context) (Session, error) {
	return f(ctx)
}

// Sender delivers text to a user.
type Sender interface {
	SendText(ctx context.Context, userID int64, text string) error
}

// WeatherService fetches current weather from the selected provider.
type WeatherService interface {
	Current(ctx context.Context, city string, tier pipeline.Tier) pipeline.Result[weather.Current]
}

// Report summarizes one cycle.
type Report struct {
	CycleID  uuid.UUID `json:"cycleId"`
	Sent     int       `json:"sent"`
	Skipped  int       `json:"skipped"`
	Disabled int       `json:"disabled"`
}

const (
	DefaultThrottle    = 100 * time.Millisecond
	DefaultMaxThrottle = 10 * time.Second
)

type Config struct {
	Sessions SessionFactory
	Weather  WeatherService
	Sender   Sender
	// Location is the clock reminder times are expressed in.
	Location *time.Location
	// Throttle is the gap between consecutive deliveries.
	Throttle time.Duration
	// MaxThrottle caps a gap stretched by a rate-limited delivery.
	MaxThrottle time.Duration
	// Dedup skips users already reminded for the slot being fired.
	Dedup bool
	Sleep func(ctx context.Context, d time.Duration) error
	Log   *zap.Logger
}

// Scheduler runs reminder cycles. Cycles are stateless apart from the stored users.
type Scheduler struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	}
	if cfg.MaxThrottle <= 0 {
		cfg.MaxThrottle = DefaultMaxThrottle
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, log: log.Named("reminder")}
}

// Window returns the reminder times due at now: the current and the previous minute
// in the scheduler's zone.
func (s *Scheduler) Window(now time.Time) []model.TimeOfDay {
	cur := model.At(now.In(s.cfg.Location))
	return []model.TimeOfDay{cur, cur.Prev()}
}

// persistTimeout bounds the write phase of a cycle.
const persistTimeout = 30 * time.Second

type sentSlot struct {
	userID int64
	slot   time.Time
}

// RunCycle selects due users, fetches their weather and delivers it. Reminder flag and
// slot changes are collected while delivering and committed in one transaction at the
// end, also when ctx is cancelled midway. The error, if any, is returned together with
// the counts gathered so far; Disabled only counts committed changes.
func (s *Scheduler) RunCycle(ctx context.Context, now time.Time) (Report, error) {
	rep := Report{CycleID: uuid.New()}
	log := s.log.With(zap.String("cycle_id", rep.CycleID.String()))

	local := now.In(s.cfg.Location)
	window := s.Window(now)

	users, err := s.candidates(ctx, window)
	if err != nil {
		log.Error("failed to list reminder candidates", zap.Error(err))
		return rep, err
	}
	log.Info("reminder cycle started",
		zap.String("window", window[0].String()),
		zap.Int("candidates", len(users)),
	)

	var (
		delivered bool
		gap       = s.cfg.Throttle
		cycleErr  error
		disable   []int64
		sent      []sentSlot
	)
	for i := range users {
		u := &users[i]
		ulog := log.With(zap.Int64("user_id", u.ID))

		if u.PreferredCity == "" {
			ulog.Warn("reminder enabled without a preferred city")
			rep.Skipped++
			continue
		}
		if u.ReminderTime == nil {
			rep.Skipped++
			continue
		}
		slot := slotOf(*u.ReminderTime, window[0], local)
		if s.cfg.Dedup && u.LastReminderAt != nil && u.LastReminderAt.Equal(slot) {
			ulog.Debug("reminder already sent for slot", zap.Time("slot", slot))
			rep.Skipped++
			continue
		}

		if delivered && gap > 0 {
			if err := s.cfg.Sleep(ctx, gap); err != nil {
				cycleErr = err
				break
			}
		}
		gap = s.cfg.Throttle

		res := s.cfg.Weather.Current(ctx, u.PreferredCity, u.WeatherProvider)
		if !res.OK() {
			ulog.Warn("weather unavailable for reminder",
				zap.String("source", res.Failure.Source),
				zap.Int("code", res.Failure.Code),
			)
		}

		err := s.cfg.Sender.SendText(ctx, u.ID, format.Reminder(*u.ReminderTime, u.PreferredCity, res))
		delivered = true
		switch {
		case err == nil:
			rep.Sent++
			sent = append(sent, sentSlot{userID: u.ID, slot: slot})
		case delivery.IsPermanent(err):
			ulog.Warn("disabling reminder after permanent delivery failure", zap.Error(err))
			disable = append(disable, u.ID)
		default:
			ulog.Warn("reminder delivery failed", zap.Error(err))
			rep.Skipped++
			if wait, ok := delivery.RetryAfter(err); ok && wait > gap {
				gap = min(wait, s.cfg.MaxThrottle)
			}
		}
	}

	disabled, err := s.persist(ctx, log, disable, sent)
	if err != nil {
		log.Error("failed to commit reminder cycle", zap.Error(err))
		return rep, errors.Join(err, cycleErr)
	}
	rep.Disabled = disabled

	log.Info("reminder cycle finished",
		zap.Int("sent", rep.Sent),
		zap.Int("skipped", rep.Skipped),
		zap.Int("disabled", rep.Disabled),
	)
	return rep, cycleErr
}

// candidates reads due users in a short read-only session, so no transaction is held
// while messages are delivered.
func (s *Scheduler) candidates(ctx context.Context, window []model.TimeOfDay) ([]model.User, error) {
	sess, err := s.cfg.Sessions.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	defer func() {
		if err := sess.Rollback(); err != nil {
			s.log.Warn("rollback failed", zap.Error(err))
		}
	}()
	return sess.ListReminderCandidates(ctx, window)
}

// persist applies the cycle's changes in one transaction and returns how many reminders
// were disabled. It runs detached from ctx cancellation: deliveries already made must be
// recorded. A failing update is logged and skipped; the rest still commit.
func (s *Scheduler) persist(ctx context.Context, log *zap.Logger, disable []int64, sent []sentSlot) (int, error) {
	if len(disable) == 0 && len(sent) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	sess, err := s.cfg.Sessions.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin session: %w", err)
	}
	defer func() {
		if err := sess.Rollback(); err != nil {
			log.Warn("rollback failed", zap.Error(err))
		}
	}()

	disabled := 0
	for _, id := range disable {
		if err := sess.DisableReminder(ctx, id); err != nil {
			log.Error("failed to disable reminder", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		disabled++
	}
	for _, m := range sent {
		if err := sess.MarkReminderSent(ctx, m.userID, m.slot); err != nil {
			log.Error("failed to record reminder slot", zap.Int64("user_id", m.userID), zap.Error(err))
		}
	}

	if err := sess.Commit(); err != nil {
		return 0, fmt.Errorf("commit reminder cycle: %w", err)
	}
	return disabled, nil
}

// slotOf returns the instant a reminder at t fires for the window starting at cur.
// A time equal to the previous minute belongs to the previous minute's date.
func slotOf(t, cur model.TimeOfDay, local time.Time) time.Time {
	day := local
	if t != cur {
		day = local.Add(-time.Minute)
	}
	return t.On(day)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
