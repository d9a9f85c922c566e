package model

import (
	"fmt"
	"time"

	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
)

// TimeOfDay is a wall-clock time as minutes since midnight (0..1439).
type TimeOfDay int

const minutesPerDay = 24 * 60

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// ParseTimeOfDay parses "HH:MM" (also "H:MM").
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// At returns the time of day of t in t's location.
func At(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Prev returns the minute before t, wrapping at midnight.
func (t TimeOfDay) Prev() TimeOfDay {
	return TimeOfDay((int(t) + minutesPerDay - 1) % minutesPerDay)
}

// On returns the instant of t on the date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// User is a subscriber with data preferences and an optional daily reminder.
type User struct {
	ID              int64         `json:"id"`
	Username        string        `json:"username,omitempty"`
	FirstName       string        `json:"firstName,omitempty"`
	PreferredCity   string        `json:"preferredCity,omitempty"`
	WeatherProvider pipeline.Tier `json:"weatherProvider"`
	AlertProvider   pipeline.Tier `json:"alertProvider"`
	ReminderEnabled bool          `json:"reminderEnabled"`
	ReminderTime    *TimeOfDay    `json:"reminderTime,omitempty"`
	Blocked         bool          `json:"blocked"`
	// LastReminderAt is the slot of the last delivered reminder.
	LastReminderAt *time.Time `json:"lastReminderAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// NewUser returns a user with default preferences: primary providers, no reminder.
func NewUser(id int64) *User {
	return &User{ID: id, WeatherProvider: pipeline.Primary, AlertProvider: pipeline.Primary}
}
