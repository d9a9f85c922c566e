// Package fetch runs provider HTTP calls with per-attempt timeouts, outcome
// classification, exponential backoff and an optional circuit breaker.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// errorBodyLimit bounds how much of a non-2xx body is read for diagnostics.
const errorBodyLimit = 4 << 10

// Policy controls retries for one logical fetch.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Timeout      time.Duration
}

// Delay returns the pause before retry n (n >= 1): InitialDelay * 2^(n-1).
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return p.InitialDelay << (n - 1)
}

// Request describes one provider call. Build is invoked once per attempt.
type Request struct {
	Source string
	Build  func(ctx context.Context) (*http.Request, error)
	// Decode consumes a 2xx body. A decode error is not retried.
	Decode func(r io.Reader) error
	// ErrorMessage optionally extracts the provider's own error text from a non-2xx body.
	ErrorMessage func(status int, body []byte) string
	// Breaker, when set, wraps the whole retry loop as one sample.
	Breaker *gobreaker.CircuitBreaker
}

// Executor is shared by every provider of every domain.
type Executor struct {
	client *http.Client
	log    *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option customizes an Executor.
type Option func(*Executor)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// NewExecutor creates an Executor around client.
func NewExecutor(client *http.Client, log *zap.Logger, opts ...Option) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{client: client, log: log, sleep: sleepContext}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewBreaker builds a circuit breaker that only counts retryable exhaustion as failure.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var fe *Error
			if errors.As(err, &fe) {
				return !fe.Kind.Retryable()
			}
			return false
		},
	})
}

// JSON returns a Decode func that unmarshals the body into v.
func JSON(v any) func(io.Reader) error {
	return func(r io.Reader) error {
		return json.NewDecoder(r).Decode(v)
	}
}

// Execute performs req under policy and returns nil once Decode succeeded.
// Any failure is returned as *Error.
func (e *Executor) Execute(ctx context.Context, req Request, policy Policy) error {
	if req.Breaker == nil {
		return e.retry(ctx, req, policy)
	}

	_, err := req.Breaker.Execute(func() (interface{}, error) {
		return nil, e.retry(ctx, req, policy)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Kind: KindCircuitOpen, Source: req.Source, Message: "provider temporarily disabled", Err: err}
	}
	return err
}

func (e *Executor) retry(ctx context.Context, req Request, policy Policy) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr *Error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := policy.Delay(attempt - 1)
			e.log.Info("retrying provider call",
				zap.String("source", req.Source),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := e.sleep(ctx, delay); err != nil {
				return cancelled(req.Source, err)
			}
		}

		err := e.attempt(ctx, req, policy.Timeout)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return cancelled(req.Source, ctx.Err())
		}
		if !err.Kind.Retryable() {
			return err
		}
		e.log.Warn("provider attempt failed",
			zap.String("source", req.Source),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
	}

	e.log.Error("provider attempts exhausted",
		zap.String("source", req.Source),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return lastErr
}

func (e *Executor) attempt(ctx context.Context, req Request, timeout time.Duration) *Error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := req.Build(ctx)
	if err != nil {
		return &Error{Kind: KindValidation, Source: req.Source, Message: "cannot build request", Err: err}
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return transportError(req.Source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		msg := ""
		if req.ErrorMessage != nil {
			msg = req.ErrorMessage(resp.StatusCode, body)
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode, Source: req.Source, Message: msg}
	}

	if req.Decode == nil {
		return nil
	}
	if err := req.Decode(resp.Body); err != nil {
		// A body cut short by the attempt deadline is a timeout, not a contract violation.
		if ctx.Err() != nil {
			return transportError(req.Source, ctx.Err())
		}
		var fe *Error
		if errors.As(err, &fe) {
			return fe
		}
		de := NewDecodeError(req.Source, err)
		de.Status = resp.StatusCode
		return de
	}
	return nil
}

func transportError(source string, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Source: source, Message: "request timed out", Err: err}
	}
	return &Error{Kind: KindNetwork, Source: source, Message: trimURL(err), Err: err}
}

func cancelled(source string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Source: source, Message: "deadline exceeded", Err: err}
	}
	return &Error{Kind: KindNetwork, Source: source, Message: "request cancelled", Err: err}
}

// trimURL drops the request URL from *url.Error text so credentials in query strings are not logged.
func trimURL(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, "\": "); i >= 0 {
		return msg[i+3:]
	}
	return msg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
