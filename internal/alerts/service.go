package alerts

import (
	"context"

	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/pipeline"
	"github.com/i474232898/weather-alerts-aggregation/internal/store"
)

// ServiceConfig wires the alerts provider pair. Backup may be nil; Regions defaults to DefaultRegions.
type ServiceConfig struct {
	Primary Provider
	Backup  Provider
	Regions *RegionTable
	Cache   *store.MemoryCache
	TTL     pipeline.TTLs
	Log     *zap.Logger
}

// Service exposes normalized alert facts.
type Service struct {
	pair    *pipeline.Pair[struct{}, []Fact]
	regions *RegionTable
}

func NewService(cfg ServiceConfig) *Service {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	regions := cfg.Regions
	if regions == nil {
		regions = NewRegionTable(DefaultRegions)
	}

	var backup pipeline.Source[struct{}, []Fact]
	if cfg.Backup != nil {
		backup = normalizingSource(cfg.Backup, regions, log)
	}
	return &Service{
		pair: pipeline.NewPair(pipeline.PairConfig[struct{}, []Fact]{
			Domain:   pipeline.DomainAlerts,
			Endpoint: "active",
			Primary:  normalizingSource(cfg.Primary, regions, log),
			Backup:   backup,
			Cache:    cfg.Cache,
			TTL:      cfg.TTL,
			Log:      log,
		}),
		regions: regions,
	}
}

// Active returns the alert state of every region from the provider selected by tier.
func (s *Service) Active(ctx context.Context, tier pipeline.Tier) pipeline.Result[[]Fact] {
	return s.pair.Fetch(ctx, struct{}{}, tier)
}

// ProviderName returns the provider serving tier.
func (s *Service) ProviderName(tier pipeline.Tier) string {
	return s.pair.ProviderName(tier)
}

// Regions returns the region table used for normalization.
func (s *Service) Regions() *RegionTable {
	return s.regions
}

func normalizingSource(p Provider, regions *RegionTable, log *zap.Logger) pipeline.Source[struct{}, []Fact] {
	log = log.With(zap.String("provider", p.Name()))
	return pipeline.SourceFunc[struct{}, []Fact]{
		Provider: p.Name(),
		Fn: func(ctx context.Context, _ struct{}) ([]Fact, error) {
			records, err := p.Active(ctx)
			if err != nil {
				return nil, err
			}
			return regions.Normalize(records, log), nil
		},
	}
}

// ActiveCount returns the number of regions with an active alert.
func ActiveCount(facts []Fact) int {
	n := 0
	for _, f := range facts {
		if f.Active {
			n++
		}
	}
	return n
}
