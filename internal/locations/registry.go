// Package locations manages the set of tracked locations: at most one GPS
// location and at most one default.
package locations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-tracker/internal/weather"
)

var (
	ErrEmptyLocation     = errors.New("location needs a name or a coordinate")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
)

var validate = validator.New()

type coordinate struct {
	Lat float64 `validate:"min=-90,max=90"`
	Lon float64 `validate:"min=-180,max=180"`
}

func checkCoordinate(c weather.Coordinate) error {
	if err := validate.Struct(coordinate{Lat: c.Lat, Lon: c.Lon}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCoordinate, c, err)
	}
	return nil
}

// Namer finds a display name for a coordinate.
type Namer interface {
	Name(ctx context.Context, c weather.Coordinate) (string, error)
}

// Registry creates and mutates tracked locations. Mutations are serialized so
// the GPS and default invariants hold across concurrent callers.
type Registry struct {
	mu sync.Mutex

	store  weather.LocationStore
	namer  Namer
	now    func() time.Time
	logger zerolog.Logger
}

type Option func(*Registry)

// WithNamer names locations added with a coordinate only.
func WithNamer(n Namer) Option {
	return func(r *Registry) { r.namer = n }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func NewRegistry(store weather.LocationStore, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewLocation describes a location to add.
type NewLocation struct {
	Name    string
	Coord   *weather.Coordinate
	Default bool
}

// Add creates a location. Adding a default clears the previous default.
func (r *Registry) Add(ctx context.Context, nl NewLocation) (weather.TrackedLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(ctx, nl, false)
}

// AddIfMissing adds nl unless a matching non-GPS location already exists, in
// which case that location is returned. A location with a coordinate matches
// on the coordinate alone, since its stored name may come from the namer;
// one without matches on name.
func (r *Registry) AddIfMissing(ctx context.Context, nl NewLocation) (weather.TrackedLocation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.store.ListLocations(ctx)
	if err != nil {
		return weather.TrackedLocation{}, false, err
	}
	for _, loc := range all {
		if loc.IsGPS || !sameCoord(loc.Coord, nl.Coord) {
			continue
		}
		if nl.Coord == nil && loc.Name != strings.TrimSpace(nl.Name) {
			continue
		}
		return loc, false, nil
	}

	loc, err := r.add(ctx, nl, false)
	return loc, err == nil, err
}

func (r *Registry) add(ctx context.Context, nl NewLocation, gps bool) (weather.TrackedLocation, error) {
	name := strings.TrimSpace(nl.Name)
	if name == "" && nl.Coord == nil {
		return weather.TrackedLocation{}, ErrEmptyLocation
	}

	loc := weather.TrackedLocation{
		ID:        uuid.NewString(),
		Name:      name,
		IsGPS:     gps,
		IsDefault: nl.Default,
		CreatedAt: r.now().UTC(),
	}
	if nl.Coord != nil {
		if err := checkCoordinate(*nl.Coord); err != nil {
			return weather.TrackedLocation{}, err
		}
		c := *nl.Coord
		loc.Coord = &c
		if loc.Name == "" {
			loc.Name = r.lookupName(ctx, c)
		}
	}

	if loc.IsDefault {
		if err := r.clearDefault(ctx, ""); err != nil {
			return weather.TrackedLocation{}, err
		}
	}
	if err := r.store.SaveLocation(ctx, loc); err != nil {
		return weather.TrackedLocation{}, err
	}

	r.logger.Info().Str("location", loc.ID).Str("name", loc.Name).Bool("gps", gps).Msg("location added")
	return loc, nil
}

// lookupName never fails; a location without a name is still usable.
func (r *Registry) lookupName(ctx context.Context, c weather.Coordinate) string {
	if r.namer == nil {
		return ""
	}
	name, err := r.namer.Name(ctx, c)
	if err != nil {
		r.logger.Warn().Err(err).Str("coord", c.String()).Msg("reverse geocoding failed")
		return ""
	}
	return name
}

func sameCoord(a, b *weather.Coordinate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *Registry) clearDefault(ctx context.Context, except string) error {
	all, err := r.store.ListLocations(ctx)
	if err != nil {
		return err
	}
	for _, loc := range all {
		if !loc.IsDefault || loc.ID == except {
			continue
		}
		loc.IsDefault = false
		if err := r.store.SaveLocation(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}

// GPS returns the GPS location, if one was resolved.
func (r *Registry) GPS(ctx context.Context) (weather.TrackedLocation, bool, error) {
	all, err := r.store.ListLocations(ctx)
	if err != nil {
		return weather.TrackedLocation{}, false, err
	}
	for _, loc := range all {
		if loc.IsGPS {
			return loc, true, nil
		}
	}
	return weather.TrackedLocation{}, false, nil
}

// ResolveGPS records a device position fix. The GPS location is created on
// the first fix. Coordinates never change in place: when the device moves the
// old GPS location and its cached payloads are replaced by a new one that
// keeps the default flag.
func (r *Registry) ResolveGPS(ctx context.Context, c weather.Coordinate) (weather.TrackedLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkCoordinate(c); err != nil {
		return weather.TrackedLocation{}, err
	}

	prev, found, err := r.GPS(ctx)
	if err != nil {
		return weather.TrackedLocation{}, err
	}
	if found && prev.Coord != nil && *prev.Coord == c {
		return prev, nil
	}

	nl := NewLocation{Coord: &c}
	if found {
		nl.Default = prev.IsDefault
		if err := r.store.DeleteLocation(ctx, prev.ID); err != nil && !errors.Is(err, weather.ErrLocationNotFound) {
			return weather.TrackedLocation{}, err
		}
		r.logger.Info().Str("location", prev.ID).Str("coord", c.String()).Msg("gps location moved")
	}
	return r.add(ctx, nl, true)
}

// Rename sets the display name of a location.
func (r *Registry) Rename(ctx context.Context, id, name string) (weather.TrackedLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc, err := r.store.GetLocation(ctx, id)
	if err != nil {
		return weather.TrackedLocation{}, err
	}
	loc.Name = strings.TrimSpace(name)
	if loc.Name == "" && loc.Coord == nil {
		return weather.TrackedLocation{}, ErrEmptyLocation
	}
	if err := r.store.SaveLocation(ctx, loc); err != nil {
		return weather.TrackedLocation{}, err
	}
	return loc, nil
}

// SetDefault marks or unmarks a location as the default. Marking one clears
// the flag everywhere else.
func (r *Registry) SetDefault(ctx context.Context, id string, isDefault bool) (weather.TrackedLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc, err := r.store.GetLocation(ctx, id)
	if err != nil {
		return weather.TrackedLocation{}, err
	}
	if isDefault {
		if err := r.clearDefault(ctx, id); err != nil {
			return weather.TrackedLocation{}, err
		}
	}
	loc.IsDefault = isDefault
	if err := r.store.SaveLocation(ctx, loc); err != nil {
		return weather.TrackedLocation{}, err
	}
	return loc, nil
}

// Delete removes a location and its cached payloads. The GPS location cannot
// be deleted.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc, err := r.store.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	if loc.IsGPS {
		return weather.ErrGPSLocationNotDeletable
	}
	if err := r.store.DeleteLocation(ctx, id); err != nil {
		return err
	}
	r.logger.Info().Str("location", id).Msg("location deleted")
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (weather.TrackedLocation, error) {
	return r.store.GetLocation(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]weather.TrackedLocation, error) {
	return r.store.ListLocations(ctx)
}
