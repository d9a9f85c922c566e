// Package pipeline holds the provider-pair abstraction shared by every data domain:
// a closed primary/backup provider choice, cached fetches and a normalized result.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
)

// Domain is a category of external data and doubles as its cache namespace.
type Domain string

const (
	DomainWeather  Domain = "weather"
	DomainCurrency Domain = "currency"
	DomainAlerts   Domain = "alerts"
)

// Tier selects one provider of a pair.
type Tier int

const (
	Primary Tier = iota
	Backup
)

func (t Tier) String() string {
	switch t {
	case Primary:
		return "primary"
	case Backup:
		return "backup"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier accepts "primary", "backup" and "" (primary).
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "primary":
		return Primary, nil
	case "backup":
		return Backup, nil
	default:
		return Primary, fmt.Errorf("unknown provider tier %q", s)
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Failure is the error half of a Result. Callers may display Code and Source
// but must not branch on Message.
type Failure struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Source  string     `json:"source"`
	Kind    fetch.Kind `json:"kind"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %d %s", f.Source, f.Code, f.Message)
}

// FailureFrom converts a provider error into a Failure.
func FailureFrom(source string, err error) *Failure {
	fe := fetch.AsError(source, err)
	src := fe.Source
	if src == "" {
		src = source
	}
	msg := fe.Message
	if msg == "" && fe.Err != nil {
		msg = fe.Err.Error()
	}
	return &Failure{Code: fe.Code(), Message: msg, Source: src, Kind: fe.Kind}
}

// Result is either a normalized payload or a Failure.
type Result[T any] struct {
	Value   T
	Failure *Failure
}

// Success wraps a payload.
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a failure.
func Fail[T any](f *Failure) Result[T] {
	return Result[T]{Failure: f}
}

// OK reports whether the result carries a payload.
func (r Result[T]) OK() bool {
	return r.Failure == nil
}
