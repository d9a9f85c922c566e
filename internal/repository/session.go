package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/weather-alerts-aggregation/internal/model"
	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
)

// Session is one database transaction.
type Session struct {
	tx     *sql.Tx
	rebind func(string) string
}

const userColumns = `user_id, username, first_name, preferred_city, weather_provider, alert_provider,
	reminder_enabled, reminder_minute, blocked, last_reminder_at, created_at, updated_at`

// GetUser returns the user or ErrNotFound.
func (s *Session) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := s.tx.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE user_id = ?`), id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// ListReminderCandidates returns enabled, non-blocked users whose reminder time is one of times.
func (s *Session) ListReminderCandidates(ctx context.Context, times []model.TimeOfDay) ([]model.User, error) {
	if len(times) == 0 {
		return nil, nil
	}
	args := []any{true, false}
	marks := make([]string, len(times))
	for i, t := range times {
		marks[i] = "?"
		args = append(args, int(t))
	}

	rows, err := s.tx.QueryContext(ctx, s.rebind(`
		SELECT `+userColumns+`
		FROM users
		WHERE reminder_enabled = ?
		  AND blocked = ?
		  AND reminder_minute IN (`+strings.Join(marks, ", ")+`)
		ORDER BY user_id`), args...)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// SaveUser inserts or updates the user. UpdatedAt is set to now; CreatedAt on first insert.
func (s *Session) SaveUser(ctx context.Context, u *model.User) error {
	if u == nil {
		return errors.New("nil user")
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	var minute sql.NullInt64
	if u.ReminderTime != nil {
		minute = sql.NullInt64{Int64: int64(*u.ReminderTime), Valid: true}
	}

	_, err := s.tx.ExecContext(ctx, s.rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username         = excluded.username,
			first_name       = excluded.first_name,
			preferred_city   = excluded.preferred_city,
			weather_provider = excluded.weather_provider,
			alert_provider   = excluded.alert_provider,
			reminder_enabled = excluded.reminder_enabled,
			reminder_minute  = excluded.reminder_minute,
			blocked          = excluded.blocked,
			last_reminder_at = excluded.last_reminder_at,
			updated_at       = excluded.updated_at`),
		u.ID, u.Username, u.FirstName, u.PreferredCity,
		u.WeatherProvider.String(), u.AlertProvider.String(),
		u.ReminderEnabled, minute, u.Blocked, toNullInt64(u.LastReminderAt),
		u.CreatedAt.Unix(), u.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}
	return nil
}

// DisableReminder turns the user's reminder off without touching other columns.
func (s *Session) DisableReminder(ctx context.Context, id int64) error {
	return s.updateUser(ctx, id, `reminder_enabled = ?`, false)
}

// MarkReminderSent records slot as the last fired reminder without touching other columns.
func (s *Session) MarkReminderSent(ctx context.Context, id int64, slot time.Time) error {
	return s.updateUser(ctx, id, `last_reminder_at = ?`, slot.UTC().Unix())
}

func (s *Session) updateUser(ctx context.Context, id int64, set string, value any) error {
	res, err := s.tx.ExecContext(ctx, s.rebind(`UPDATE users SET `+set+`, updated_at = ? WHERE user_id = ?`),
		value, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Session) Commit() error {
	return s.tx.Commit()
}

// Rollback aborts the transaction. Rolling back a finished session is a no-op.
func (s *Session) Rollback() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u               model.User
		weatherProvider string
		alertProvider   string
		minute          sql.NullInt64
		lastReminder    sql.NullInt64
		createdAt       int64
		updatedAt       int64
	)
	if err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.PreferredCity, &weatherProvider, &alertProvider,
		&u.ReminderEnabled, &minute, &u.Blocked, &lastReminder, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if u.WeatherProvider, err = pipeline.ParseTier(weatherProvider); err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	if u.AlertProvider, err = pipeline.ParseTier(alertProvider); err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	if minute.Valid {
		t := model.TimeOfDay(minute.Int64)
		u.ReminderTime = &t
	}
	u.LastReminderAt = fromNullInt64(lastReminder)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

func toNullInt64(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func fromNullInt64(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
