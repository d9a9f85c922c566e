// Package delivery sends messages to users through Telegram and classifies delivery failures.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Error is a classified delivery failure.
type Error struct {
	// Permanent failures mean the user can no longer be reached (blocked the bot,
	// deleted the chat); retrying is pointless.
	Permanent  bool
	RetryAfter time.Duration
	Code       int
	Err        error
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("delivery %s failure (code %d): %v", kind, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a permanent delivery failure.
func IsPermanent(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Permanent
}

// RetryAfter returns the wait requested by a rate-limited delivery.
func RetryAfter(err error) (time.Duration, bool) {
	var de *Error
	if errors.As(err, &de) && de.RetryAfter > 0 {
		return de.RetryAfter, true
	}
	return 0, false
}

// permanentDescriptions are Bad Request descriptions that mean the chat is gone.
var permanentDescriptions = []string{
	"chat not found",
	"user is deactivated",
	"bot was blocked",
	"bot was kicked",
	"peer_id_invalid",
	"have no rights to send",
}

// Classify converts a Telegram API error into *Error. Non-API errors are transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return &Error{Err: err}
	}

	de := &Error{Code: apiErr.Code, Err: err}
	switch apiErr.Code {
	case http.StatusForbidden, http.StatusNotFound, http.StatusConflict:
		de.Permanent = true
	case http.StatusBadRequest:
		desc := strings.ToLower(apiErr.Message)
		for _, p := range permanentDescriptions {
			if strings.Contains(desc, p) {
				de.Permanent = true
				break
			}
		}
	case http.StatusTooManyRequests:
		de.RetryAfter = time.Duration(apiErr.RetryAfter) * time.Second
	}
	return de
}

// BotAPI is the part of *tgbotapi.BotAPI used for delivery.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers texts and images to Telegram chats; user ids are chat ids.
type TelegramSender struct {
	bot BotAPI
	log *zap.Logger
}

func NewTelegramSender(bot BotAPI, log *zap.Logger) *TelegramSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &TelegramSender{bot: bot, log: log}
}

// SendText sends a plain text message.
func (s *TelegramSender) SendText(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Err: err}
	}
	msg := tgbotapi.NewMessage(userID, text)
	msg.DisableWebPagePreview = true
	return s.send(userID, msg)
}

// SendImage sends img as a photo, or as a document when it is an SVG.
func (s *TelegramSender) SendImage(ctx context.Context, userID int64, img []byte, name, caption string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Err: err}
	}
	file := tgbotapi.FileBytes{Name: name, Bytes: img}
	if strings.HasSuffix(strings.ToLower(name), ".svg") {
		doc := tgbotapi.NewDocument(userID, file)
		doc.Caption = caption
		return s.send(userID, doc)
	}
	photo := tgbotapi.NewPhoto(userID, file)
	photo.Caption = caption
	return s.send(userID, photo)
}

func (s *TelegramSender) send(userID int64, c tgbotapi.Chattable) error {
	if _, err := s.bot.Send(c); err != nil {
		de := Classify(err)
		s.log.Debug("telegram send failed", zap.Int64("user_id", userID), zap.Error(de))
		return de
	}
	return nil
}
