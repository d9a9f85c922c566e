package delivery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func apiError(code int, msg string, retryAfter int) error {
	return &tgbotapi.Error{Code: code, Message: msg, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: retryAfter}}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		permanent bool
		retry     time.Duration
	}{
		{"blocked", apiError(403, "Forbidden: bot was blocked by the user", 0), true, 0},
		{"not found", apiError(404, "Not Found", 0), true, 0},
		{"conflict", apiError(409, "Conflict", 0), true, 0},
		{"chat not found", apiError(400, "Bad Request: chat not found", 0), true, 0},
		{"bad markup", apiError(400, "Bad Request: can't parse entities", 0), false, 0},
		{"rate limited", apiError(429, "Too Many Requests: retry after 3", 3), false, 3 * time.Second},
		{"server", apiError(502, "Bad Gateway", 0), false, 0},
		{"network", fmt.Errorf("post: %w", errors.New("connection reset")), false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify(tc.err)
			if IsPermanent(err) != tc.permanent {
				t.Fatalf("IsPermanent = %v, want %v", !tc.permanent, tc.permanent)
			}
			retry, ok := RetryAfter(err)
			if retry != tc.retry || ok != (tc.retry > 0) {
				t.Fatalf("RetryAfter = %v, %v", retry, ok)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("classified error must wrap the original")
			}
		})
	}
	if Classify(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestTelegramSender_SendImageKinds(t *testing.T) {
	bot := &fakeBot{}
	s := NewTelegramSender(bot, nil)

	if err := s.SendImage(context.Background(), 1, []byte("png"), "alerts.png", "map"); err != nil {
		t.Fatalf("SendImage png: %v", err)
	}
	if err := s.SendImage(context.Background(), 1, []byte("<svg/>"), "alerts.svg", "map"); err != nil {
		t.Fatalf("SendImage svg: %v", err)
	}
	if _, ok := bot.sent[0].(tgbotapi.PhotoConfig); !ok {
		t.Fatalf("png must be sent as photo, got %T", bot.sent[0])
	}
	if doc, ok := bot.sent[1].(tgbotapi.DocumentConfig); !ok || doc.Caption != "map" {
		t.Fatalf("svg must be sent as document, got %T", bot.sent[1])
	}
}

func TestTelegramSender_SendTextClassifies(t *testing.T) {
	bot := &fakeBot{err: apiError(403, "Forbidden: user is deactivated", 0)}
	err := NewTelegramSender(bot, nil).SendText(context.Background(), 5, "hi")
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok || msg.ChatID != 5 || msg.Text != "hi" {
		t.Fatalf("unexpected message %#v", bot.sent[0])
	}
}

func TestTelegramSender_CancelledContext(t *testing.T) {
	bot := &fakeBot{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewTelegramSender(bot, nil).SendText(ctx, 1, "hi"); err == nil || IsPermanent(err) {
		t.Fatalf("cancelled send must be a transient error, got %v", err)
	}
	if len(bot.sent) != 0 {
		t.Fatalf("nothing must be sent")
	}
}
