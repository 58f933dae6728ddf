package weather

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Result is a decoded record together with the instant its payload was
// downloaded. Stale is set when the payload is past the staleness threshold.
type Result struct {
	Record       Record    `json:"data"`
	DownloadedAt time.Time `json:"downloadedAt"`
	Stale        bool      `json:"stale"`
}

// Stats counts how requests were satisfied.
type Stats struct {
	CacheHits  int64 `json:"cacheHits"`
	Downloads  int64 `json:"downloads"`
	InProgress int64 `json:"inProgress"`
	Failures   int64 `json:"failures"`
	Fallbacks  int64 `json:"staleFallbacks"`
}

// Service answers data requests for tracked locations from the cache or the
// provider.
type Service struct {
	locations LocationStore
	cache     Store
	urls      URLBuilder
	fetcher   Fetcher

	policy CachePolicy
	units  UnitSystem
	now    func() time.Time
	logger zerolog.Logger

	hits       atomic.Int64
	downloads  atomic.Int64
	inProgress atomic.Int64
	failures   atomic.Int64
	fallbacks  atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithUnits selects the unit system records are decoded into.
func WithUnits(sys UnitSystem) Option {
	return func(s *Service) { s.units = sys }
}

func WithPolicy(p CachePolicy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService creates a Service. Records are decoded into Metric units with
// the default staleness threshold unless options say otherwise.
func NewService(locations LocationStore, cache Store, urls URLBuilder, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		locations: locations,
		cache:     cache,
		urls:      urls,
		fetcher:   fetcher,
		policy:    DefaultCachePolicy(),
		units:     Metric,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Units returns the unit system records are decoded into.
func (s *Service) Units() UnitSystem {
	return s.units
}

func (s *Service) fail(id string, kind DataKind, err error) error {
	return &RequestError{LocationID: id, Kind: kind, Err: err}
}

// RequestData returns the record of the given kind for a location. A fresh
// cached payload is decoded and returned unless force is set; otherwise the
// payload is downloaded, decoded and stored.
func (s *Service) RequestData(ctx context.Context, id string, kind DataKind, force bool) (Result, error) {
	if !kind.Valid() {
		return Result{}, s.fail(id, kind, fmt.Errorf("unknown data kind %d", int(kind)))
	}

	loc, err := s.locations.GetLocation(ctx, id)
	if err != nil {
		return Result{}, s.fail(id, kind, err)
	}

	slot, err := s.cache.GetCachedPayload(ctx, id, kind)
	if err != nil {
		return Result{}, s.fail(id, kind, err)
	}

	if s.policy.Resolve(slot, force, s.now()) == ActionReturnCached {
		rec, err := Decode(kind, slot.Payload, s.units)
		if err == nil {
			s.hits.Add(1)
			s.logger.Debug().Str("location", id).Str("kind", kind.String()).Msg("serving cached payload")
			return Result{Record: rec, DownloadedAt: slot.DownloadedAt}, nil
		}
		s.logger.Warn().Err(err).Str("location", id).Str("kind", kind.String()).
			Msg("cached payload unreadable; downloading")
	}

	if loc.Coord == nil {
		return Result{}, s.fail(id, kind, ErrMissingCoordinates)
	}

	url, err := s.urls.Build(kind, *loc.Coord)
	if err != nil {
		return Result{}, s.fail(id, kind, err)
	}

	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, ErrInProgress) {
			s.inProgress.Add(1)
		} else {
			s.failures.Add(1)
		}
		return Result{}, s.fail(id, kind, err)
	}

	rec, err := Decode(kind, body, s.units)
	if err != nil {
		s.failures.Add(1)
		return Result{}, s.fail(id, kind, err)
	}

	at := s.now()
	if err := s.cache.SetCachedPayload(ctx, id, kind, body, at); err != nil {
		return Result{}, s.fail(id, kind, err)
	}
	s.downloads.Add(1)
	s.logger.Info().Str("location", id).Str("kind", kind.String()).Int("bytes", len(body)).Msg("downloaded payload")

	return Result{Record: rec, DownloadedAt: at}, nil
}

// Cached decodes the last stored payload regardless of its age. It returns
// ErrNotCached when nothing was ever downloaded.
func (s *Service) Cached(ctx context.Context, id string, kind DataKind) (Result, error) {
	if !kind.Valid() {
		return Result{}, s.fail(id, kind, fmt.Errorf("unknown data kind %d", int(kind)))
	}
	if _, err := s.locations.GetLocation(ctx, id); err != nil {
		return Result{}, s.fail(id, kind, err)
	}
	slot, err := s.cache.GetCachedPayload(ctx, id, kind)
	if err != nil {
		return Result{}, s.fail(id, kind, err)
	}
	if slot.Empty() {
		return Result{}, s.fail(id, kind, ErrNotCached)
	}
	rec, err := Decode(kind, slot.Payload, s.units)
	if err != nil {
		return Result{}, s.fail(id, kind, err)
	}
	return Result{
		Record:       rec,
		DownloadedAt: slot.DownloadedAt,
		Stale:        s.policy.State(slot, s.now()) == StateStale,
	}, nil
}

// RequestOrCached behaves like RequestData but answers a failed or already
// running download with the last stored payload when there is one. The
// original error is returned when no fallback exists. Unknown locations and
// cancelled requests never fall back.
func (s *Service) RequestOrCached(ctx context.Context, id string, kind DataKind, force bool) (Result, error) {
	res, err := s.RequestData(ctx, id, kind, force)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, ErrLocationNotFound) || errors.Is(err, ErrCancelled) || ctx.Err() != nil {
		return Result{}, err
	}

	cached, cerr := s.Cached(ctx, id, kind)
	if cerr != nil {
		return Result{}, err
	}
	cached.Stale = true
	s.fallbacks.Add(1)
	s.logger.Warn().Err(err).Str("location", id).Str("kind", kind.String()).
		Time("downloadedAt", cached.DownloadedAt).Msg("serving stale payload")
	return cached, nil
}

// FiveDayForecast returns one forecast entry per future day for a location,
// picked relative to ref. See FiveDay.
func (s *Service) FiveDayForecast(ctx context.Context, id string, ref time.Time) ([]ForecastEntry, error) {
	res, err := s.RequestOrCached(ctx, id, KindForecast, false)
	if err != nil {
		return nil, err
	}
	series, ok := res.Record.(ForecastSeries)
	if !ok {
		return nil, s.fail(id, KindForecast, fmt.Errorf("unexpected record %T", res.Record))
	}
	return FiveDay(series, ref), nil
}

// Stats returns a snapshot of the request counters.
func (s *Service) Stats() Stats {
	return Stats{
		CacheHits:  s.hits.Load(),
		Downloads:  s.downloads.Load(),
		InProgress: s.inProgress.Load(),
		Failures:   s.failures.Load(),
		Fallbacks:  s.fallbacks.Load(),
	}
}
