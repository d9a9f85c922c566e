package pipeline

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/fetch"
	"github.com/i474232898/weather-alerts-aggregation/internal/store"
)

// Source is one provider's implementation of one endpoint, returning normalized data.
type Source[Q, T any] interface {
	Name() string
	Fetch(ctx context.Context, q Q) (T, error)
}

// SourceFunc adapts a provider method to Source.
type SourceFunc[Q, T any] struct {
	Provider string
	Fn       func(ctx context.Context, q Q) (T, error)
}

func (s SourceFunc[Q, T]) Name() string { return s.Provider }

func (s SourceFunc[Q, T]) Fetch(ctx context.Context, q Q) (T, error) {
	return s.Fn(ctx, q)
}

// TTLs holds cache freshness per tier.
type TTLs struct {
	Primary time.Duration
	Backup  time.Duration
}

// PairConfig configures a Pair. Backup and Cache are optional.
type PairConfig[Q, T any] struct {
	Domain   Domain
	Endpoint string
	Primary  Source[Q, T]
	Backup   Source[Q, T]
	Cache    *store.MemoryCache
	TTL      TTLs
	// QueryKey renders the query as the cache key component.
	QueryKey func(Q) string
	Log      *zap.Logger
}

// Pair offers a primary and an optional backup provider for one endpoint of a domain.
// The caller chooses the tier; there is no automatic failover between providers.
type Pair[Q, T any] struct {
	cfg PairConfig[Q, T]
	log *zap.Logger
}

// NewPair creates a Pair.
func NewPair[Q, T any](cfg PairConfig[Q, T]) *Pair[Q, T] {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.QueryKey == nil {
		cfg.QueryKey = func(Q) string { return "" }
	}
	return &Pair[Q, T]{
		cfg: cfg,
		log: log.With(zap.String("domain", string(cfg.Domain)), zap.String("endpoint", cfg.Endpoint)),
	}
}

// Domain returns the pair's data domain.
func (p *Pair[Q, T]) Domain() Domain {
	return p.cfg.Domain
}

// ProviderName returns the provider serving tier, or "" when none is configured.
func (p *Pair[Q, T]) ProviderName(tier Tier) string {
	src, _ := p.source(tier)
	if src == nil {
		return ""
	}
	return src.Name()
}

func (p *Pair[Q, T]) source(tier Tier) (Source[Q, T], time.Duration) {
	switch tier {
	case Primary:
		return p.cfg.Primary, p.cfg.TTL.Primary
	case Backup:
		return p.cfg.Backup, p.cfg.TTL.Backup
	default:
		return nil, 0
	}
}

// Fetch calls the provider selected by tier, through the cache when configured.
func (p *Pair[Q, T]) Fetch(ctx context.Context, q Q, tier Tier) Result[T] {
	src, ttl := p.source(tier)
	if src == nil {
		return Fail[T](&Failure{
			Code:    http.StatusInternalServerError,
			Message: "no " + tier.String() + " provider configured",
			Source:  string(p.cfg.Domain),
			Kind:    fetch.KindConfig,
		})
	}

	call := func() (any, bool) {
		v, err := src.Fetch(ctx, q)
		if err != nil {
			f := FailureFrom(src.Name(), err)
			p.log.Warn("provider fetch failed",
				zap.String("provider", f.Source),
				zap.String("tier", tier.String()),
				zap.Int("code", f.Code),
				zap.String("kind", string(f.Kind)),
				zap.String("message", f.Message),
			)
			return Fail[T](f), true
		}
		return Success(v), false
	}

	if p.cfg.Cache == nil {
		r, _ := call()
		return r.(Result[T])
	}

	key := store.Key{
		Namespace: string(p.cfg.Domain),
		Endpoint:  p.cfg.Endpoint,
		Query:     p.cfg.QueryKey(q),
		Provider:  src.Name(),
	}
	v := p.cfg.Cache.GetOrFetch(key, ttl, call)
	if r, ok := v.(Result[T]); ok {
		return r
	}
	// Another pair stored a different type under the same key; treat it as a miss.
	p.log.Error("cache entry has unexpected type", zap.String("key", key.String()))
	r, _ := call()
	return r.(Result[T])
}
