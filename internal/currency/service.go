package currency

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/store"
)

// ServiceConfig wires the currency provider pair. Backup may be nil.
type ServiceConfig struct {
	Primary Provider
	Backup  Provider
	Cache   *store.MemoryCache
	TTL     pipeline.TTLs
	// Currencies limits the result; empty keeps every currency the provider returns.
	Currencies []string
	Log        *zap.Logger
}

// Service exposes exchange rates against UAH.
type Service struct {
	pair       *pipeline.Pair[RateType, Rates]
	currencies []string
}

func NewService(cfg ServiceConfig) *Service {
	var backup pipeline.Source[RateType, Rates]
	if cfg.Backup != nil {
		backup = source(cfg.Backup)
	}
	return &Service{
		pair: pipeline.NewPair(pipeline.PairConfig[RateType, Rates]{
			Domain:   pipeline.DomainCurrency,
			Endpoint: "rates",
			Primary:  source(cfg.Primary),
			Backup:   backup,
			Cache:    cfg.Cache,
			TTL:      cfg.TTL,
			QueryKey: func(t RateType) string { return string(t) },
			Log:      cfg.Log,
		}),
		currencies: cfg.Currencies,
	}
}

// Rates returns rates of the given type from the provider selected by tier,
// ordered as the configured currency list.
func (s *Service) Rates(ctx context.Context, t RateType, tier pipeline.Tier) pipeline.Result[Rates] {
	r := s.pair.Fetch(ctx, t, tier)
	if !r.OK() || len(s.currencies) == 0 {
		return r
	}

	byCode := make(map[string]Rate, len(r.Value.Rates))
	for _, rate := range r.Value.Rates {
		byCode[strings.ToUpper(rate.Currency)] = rate
	}
	filtered := make([]Rate, 0, len(s.currencies))
	for _, code := range s.currencies {
		if rate, ok := byCode[code]; ok {
			filtered = append(filtered, rate)
		}
	}
	out := r.Value
	out.Rates = filtered
	return pipeline.Success(out)
}

// ProviderName returns the provider serving tier.
func (s *Service) ProviderName(tier pipeline.Tier) string {
	return s.pair.ProviderName(tier)
}

func source(p Provider) pipeline.Source[RateType, Rates] {
	return pipeline.SourceFunc[RateType, Rates]{Provider: p.Name(), Fn: p.Rates}
}
