package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-tracker/internal/weather"
)

const (
	defaultInterval = 15 * time.Minute
	runTimeout      = 30 * time.Second
	maxConcurrent   = 8
)

// Requester is the part of weather.Service the scheduler drives.
type Requester interface {
	RequestData(ctx context.Context, id string, kind weather.DataKind, force bool) (weather.Result, error)
}

// Lister lists the tracked locations to refresh.
type Lister interface {
	List(ctx context.Context) ([]weather.TrackedLocation, error)
}

// Scheduler periodically requests every data kind of every tracked location
// without forcing, so only stale or empty slots reach the network.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Requester
	locations Lister
	interval  time.Duration
	logger    zerolog.Logger
}

// New creates a new Scheduler.
func New(locations Lister, service Requester, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		service:   service,
		locations: locations,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if err := s.RefreshAll(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled refresh failed")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RefreshAll requests every kind for every location once. Per-request
// failures are logged; only a failure to list locations is returned.
func (s *Scheduler) RefreshAll(ctx context.Context) error {
	locs, err := s.locations.List(ctx)
	if err != nil {
		return err
	}
	if len(locs) == 0 {
		s.logger.Debug().Msg("no tracked locations; nothing to refresh")
		return nil
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for _, loc := range locs {
		for _, kind := range weather.Kinds {
			loc, kind := loc, kind
			g.Go(func() error {
				s.refresh(ctx, loc, kind)
				return nil
			})
		}
	}
	// refresh logs its own failures; the group only bounds concurrency.
	g.Wait()

	s.logger.Info().Int("locations", len(locs)).Dur("took", time.Since(start)).Msg("refresh completed")
	return nil
}

func (s *Scheduler) refresh(ctx context.Context, loc weather.TrackedLocation, kind weather.DataKind) {
	_, err := s.service.RequestData(ctx, loc.ID, kind, false)
	switch {
	case err == nil:
	case errors.Is(err, weather.ErrInProgress), errors.Is(err, weather.ErrMissingCoordinates), errors.Is(err, weather.ErrThrottled):
		s.logger.Debug().Err(err).Str("location", loc.ID).Str("kind", kind.String()).Msg("refresh skipped")
	default:
		s.logger.Warn().Err(err).Str("location", loc.ID).Str("kind", kind.String()).Msg("refresh failed")
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
