package currency

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RateType selects cash or non-cash exchange rates.
type RateType string

const (
	Cash    RateType = "cash"
	NonCash RateType = "noncash"
)

// ParseRateType accepts "cash", "noncash" and "" (cash).
func ParseRateType(s string) (RateType, error) {
	switch RateType(strings.ToLower(strings.TrimSpace(s))) {
	case "", Cash:
		return Cash, nil
	case NonCash, "non-cash", "card":
		return NonCash, nil
	default:
		return "", fmt.Errorf("unknown rate type %q", s)
	}
}

// Rate is the price of one unit of Currency in Base.
type Rate struct {
	Currency string  `json:"currency"`
	Base     string  `json:"base"`
	Buy      float64 `json:"buy"`
	Sale     float64 `json:"sale"`
}

// Rates is the provider-independent exchange rate table.
type Rates struct {
	Type      RateType  `json:"type"`
	FetchedAt time.Time `json:"fetchedAt"`
	Rates     []Rate    `json:"rates"`
}

// Provider abstracts an exchange rate source.
type Provider interface {
	Name() string
	Rates(ctx context.Context, t RateType) (Rates, error)
}
