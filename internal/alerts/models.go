package alerts

import "context"

// Fact is the alert state of one canonical region.
type Fact struct {
	Region string   `json:"region"`
	Active bool     `json:"active"`
	Types  []string `json:"types,omitempty"`
}

// Record is one provider entry before normalization.
type Record struct {
	// Name is the location as the provider reports it.
	Name string
	// Oblast is the parent oblast name for records below oblast level.
	Oblast string
	// Code is the provider region code; for sub-oblast records, the parent oblast code when known.
	Code      string
	SubOblast bool
	AlertType string
}

// Provider abstracts a source of currently active alerts.
type Provider interface {
	Name() string
	Active(ctx context.Context) ([]Record, error)
}
